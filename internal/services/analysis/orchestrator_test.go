package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

type fakeData struct {
	quote    *models.UnifiedQuote
	quoteErr error
	bars     []models.KLineBar
	barsErr  error
	chip     *models.ChipDistribution
}

func (f *fakeData) GetRealtime(context.Context, string) (*models.UnifiedQuote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeData) GetDaily(context.Context, string, int) ([]models.KLineBar, string, error) {
	if f.barsErr != nil {
		return nil, "", f.barsErr
	}
	return f.bars, "akshare", nil
}

func (f *fakeData) GetChip(context.Context, string) (*models.ChipDistribution, error) {
	return f.chip, nil
}

func (f *fakeData) SourceStatus() map[string]interface{} { return nil }

type fakeSearch struct {
	resp       *models.SearchResponse
	err        error
	configured bool
	lastQuery  string
}

func (f *fakeSearch) Search(_ context.Context, query string, _, _ int) (*models.SearchResponse, error) {
	f.lastQuery = query
	return f.resp, f.err
}

func (f *fakeSearch) IsConfigured() bool { return f.configured }

type fakeExperts struct {
	panel   *models.PanelResult
	err     error
	lastCtx *interfaces.AnalysisContext
}

func (f *fakeExperts) RunPanel(_ context.Context, analysisCtx *interfaces.AnalysisContext, _ []string) (*models.PanelResult, error) {
	f.lastCtx = analysisCtx
	return f.panel, f.err
}

func (f *fakeExperts) Models() []models.ModelConfig { return nil }
func (f *fakeExperts) Reload() error                { return nil }

type fakeReports struct {
	saved   []*models.AnalysisReport
	saveErr error
}

func (f *fakeReports) Save(_ context.Context, report *models.AnalysisReport) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReports) GetByQueryID(context.Context, string) (*models.AnalysisReport, error) {
	return nil, models.ErrNotFound
}

func (f *fakeReports) Query(context.Context, string, time.Time, time.Time, int, int) ([]*models.AnalysisReport, int, error) {
	return nil, 0, nil
}

type fakeNotifier struct {
	notified []*models.AnalysisReport
}

func (f *fakeNotifier) NotifyReport(_ context.Context, report *models.AnalysisReport) {
	f.notified = append(f.notified, report)
}

func (f *fakeNotifier) Channels() map[string]bool { return nil }

func goodPanel() *models.PanelResult {
	return &models.PanelResult{
		Results: []models.ModelResult{
			{ModelName: "a", Success: true, Score: models.Float(78), Advice: "buy", Trend: "uptrend intact"},
			{ModelName: "b", Success: true, Score: models.Float(66), Advice: "buy", Trend: "consolidation"},
		},
		ConsensusScore:    models.Float(72),
		ConsensusAdvice:   "buy",
		ConsensusSummary:  "All 2 experts recommend \"buy\".",
		ConsensusStrategy: &models.StrategyPoints{IdealBuy: "12.30", StopLoss: "11.40"},
	}
}

func goodQuote() *models.UnifiedQuote {
	return &models.UnifiedQuote{
		Code:      "600519",
		Name:      "Kweichow Moutai",
		Source:    models.SourceAKShare,
		Price:     models.Float(1520.0),
		ChangePct: models.Float(1.2),
	}
}

func newOrchestrator(data *fakeData, search *fakeSearch, experts *fakeExperts, reports *fakeReports, notifier *fakeNotifier) *Orchestrator {
	cfg := &common.Config{}
	cfg.Analysis.KLineDays = 60
	cfg.Analysis.NewsResults = 5
	cfg.Analysis.NewsDays = 7

	var searchSvc interfaces.SearchService
	if search != nil {
		searchSvc = search
	}
	var reportSvc interfaces.ReportStorage
	if reports != nil {
		reportSvc = reports
	}
	var notifySvc interfaces.NotificationService
	if notifier != nil {
		notifySvc = notifier
	}
	return NewOrchestrator(cfg, data, searchSvc, experts, reportSvc, notifySvc, nil)
}

func TestAnalyzeFullPipeline(t *testing.T) {
	data := &fakeData{
		quote: goodQuote(),
		bars:  []models.KLineBar{{Close: 1500}, {Close: 1520}},
		chip:  &models.ChipDistribution{ProfitRatio: 0.62},
	}
	published := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	search := &fakeSearch{
		configured: true,
		resp: &models.SearchResponse{Results: []models.SearchResult{
			{Title: "Moutai beats estimates", Source: "reuters", PublishedAt: &published, Content: "Quarterly revenue up."},
		}},
	}
	experts := &fakeExperts{panel: goodPanel()}
	reports := &fakeReports{}
	notifier := &fakeNotifier{}

	o := newOrchestrator(data, search, experts, reports, notifier)

	var progressLog []int
	report, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, func(pct int, _ string) {
		progressLog = append(progressLog, pct)
	})
	require.NoError(t, err)

	assert.Equal(t, "task_1", report.QueryID)
	assert.Equal(t, "600519", report.StockCode)
	assert.Equal(t, "Kweichow Moutai", report.StockName) // pulled from the quote
	require.NotNil(t, report.SentimentScore)
	assert.Equal(t, 72.0, *report.SentimentScore)
	assert.Equal(t, "mildly bullish", report.SentimentLabel)
	assert.Equal(t, "buy", report.Advice)
	assert.Equal(t, "uptrend intact", report.Trend) // highest-scoring result
	assert.Equal(t, "12.30", report.Strategy.IdealBuy)
	require.NotNil(t, report.CurrentPrice)
	assert.Equal(t, 1520.0, *report.CurrentPrice)
	assert.Contains(t, report.NewsContent, "Moutai beats estimates")
	assert.Contains(t, report.NewsContent, "2026-08-20")

	// Context handed to the panel carried everything.
	require.NotNil(t, experts.lastCtx)
	assert.NotNil(t, experts.lastCtx.Quote)
	assert.Len(t, experts.lastCtx.Bars, 2)
	assert.NotNil(t, experts.lastCtx.Chip)
	assert.NotEmpty(t, experts.lastCtx.NewsContext)

	// Persisted, notified, and the raw panel preserved.
	require.Len(t, reports.saved, 1)
	assert.Len(t, notifier.notified, 1)
	assert.NotNil(t, report.RawResult)
	assert.Equal(t, "buy", report.RawResult["consensus_advice"])
	assert.Equal(t, 2, report.ContextSnapshot["bars"])

	// Progress is monotone and ends at 100.
	for i := 1; i < len(progressLog); i++ {
		assert.GreaterOrEqual(t, progressLog[i], progressLog[i-1])
	}
	assert.Equal(t, 100, progressLog[len(progressLog)-1])
}

func TestAnalyzeRejectsUnknownSymbol(t *testing.T) {
	o := newOrchestrator(&fakeData{}, nil, &fakeExperts{}, nil, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "not-a-symbol!"}, nil)
	assert.ErrorIs(t, err, models.ErrUnsupportedMarket)
}

func TestAnalyzeFailsWithoutAnyMarketData(t *testing.T) {
	data := &fakeData{barsErr: models.ErrAllSourcesFailed}
	o := newOrchestrator(data, nil, &fakeExperts{panel: goodPanel()}, nil, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	assert.ErrorIs(t, err, models.ErrAllSourcesFailed)
}

func TestAnalyzeDegradesWithoutQuote(t *testing.T) {
	data := &fakeData{bars: []models.KLineBar{{Close: 10}}}
	o := newOrchestrator(data, nil, &fakeExperts{panel: goodPanel()}, nil, nil)

	report, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519", StockName: "Test Co"}, nil)
	require.NoError(t, err)
	assert.Nil(t, report.CurrentPrice)
	assert.Equal(t, "Test Co", report.StockName)
}

func TestAnalyzeFailsWhenAllModelsFail(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	experts := &fakeExperts{panel: &models.PanelResult{
		Results:         []models.ModelResult{{ModelName: "a", Success: false, Error: "boom"}},
		ConsensusAdvice: "insufficient data",
	}}
	o := newOrchestrator(data, nil, experts, nil, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	assert.ErrorIs(t, err, models.ErrAnalysisFailed)
}

func TestAnalyzeToleratesSearchFailure(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	search := &fakeSearch{configured: true, err: errors.New("all search providers failed")}
	o := newOrchestrator(data, search, &fakeExperts{panel: goodPanel()}, nil, nil)

	report, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	require.NoError(t, err)
	assert.Empty(t, report.NewsContent)
}

func TestAnalyzeSkipsSearchWhenUnconfigured(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	search := &fakeSearch{configured: false}
	o := newOrchestrator(data, search, &fakeExperts{panel: goodPanel()}, nil, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	require.NoError(t, err)
	assert.Empty(t, search.lastQuery)
}

func TestAnalyzeNewsQueryPrefersStockName(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	search := &fakeSearch{configured: true, resp: &models.SearchResponse{}}
	o := newOrchestrator(data, search, &fakeExperts{panel: goodPanel()}, nil, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	require.NoError(t, err)
	assert.Contains(t, search.lastQuery, "Kweichow Moutai")
}

func TestAnalyzePersistFailureFailsTask(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	reports := &fakeReports{saveErr: errors.New("disk full")}
	o := newOrchestrator(data, nil, &fakeExperts{panel: goodPanel()}, reports, nil)

	_, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "600519"}, nil)
	assert.ErrorContains(t, err, "disk full")
}

func TestAnalyzeNormalizesHKSymbol(t *testing.T) {
	data := &fakeData{quote: goodQuote()}
	experts := &fakeExperts{panel: goodPanel()}
	o := newOrchestrator(data, nil, experts, nil, nil)

	report, err := o.Analyze(context.Background(), "task_1", interfaces.SubmitRequest{StockCode: "HK700"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "00700", report.StockCode)
	assert.Equal(t, "00700", experts.lastCtx.StockCode)
}
