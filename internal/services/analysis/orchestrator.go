// Package analysis orchestrates one full analysis run: market context
// assembly from the data cascade, news collection, expert panel
// invocation, and report persistence.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Orchestrator implements interfaces.AnalysisService.
type Orchestrator struct {
	logger   arbor.ILogger
	data     interfaces.DataService
	search   interfaces.SearchService
	experts  interfaces.ExpertService
	reports  interfaces.ReportStorage
	notifier interfaces.NotificationService

	klineDays   int
	newsResults int
	newsDays    int
}

// NewOrchestrator wires the analysis pipeline. search, reports, and
// notifier may be nil; the pipeline degrades accordingly.
func NewOrchestrator(
	cfg *common.Config,
	data interfaces.DataService,
	search interfaces.SearchService,
	experts interfaces.ExpertService,
	reports interfaces.ReportStorage,
	notifier interfaces.NotificationService,
	logger arbor.ILogger,
) *Orchestrator {
	klineDays := cfg.Analysis.KLineDays
	if klineDays <= 0 {
		klineDays = 60
	}
	newsResults := cfg.Analysis.NewsResults
	if newsResults <= 0 {
		newsResults = 5
	}
	newsDays := cfg.Analysis.NewsDays
	if newsDays <= 0 {
		newsDays = 7
	}

	return &Orchestrator{
		logger:      logger,
		data:        data,
		search:      search,
		experts:     experts,
		reports:     reports,
		notifier:    notifier,
		klineDays:   klineDays,
		newsResults: newsResults,
		newsDays:    newsDays,
	}
}

// Analyze runs the full pipeline for one symbol and persists the report
// under queryID.
func (o *Orchestrator) Analyze(ctx context.Context, queryID string, req interfaces.SubmitRequest, progress func(pct int, msg string)) (*models.AnalysisReport, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	symbol := common.ParseSymbol(req.StockCode)
	if !symbol.IsAnalyzable() {
		return nil, fmt.Errorf("%w: unsupported symbol %q", models.ErrUnsupportedMarket, req.StockCode)
	}
	code := symbol.Code

	reportType := req.ReportType
	if reportType == "" {
		reportType = models.ReportFull
	}

	progress(10, "fetching market data")
	analysisCtx := o.buildContext(ctx, code, req.StockName, reportType)
	if analysisCtx.Quote == nil && len(analysisCtx.Bars) == 0 {
		return nil, fmt.Errorf("no market data available for %s: %w", code, models.ErrAllSourcesFailed)
	}

	progress(30, "collecting news")
	analysisCtx.NewsContext = o.collectNews(ctx, analysisCtx)

	progress(50, "running expert panel")
	panel, err := o.experts.RunPanel(ctx, analysisCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("expert panel failed for %s: %w", code, err)
	}
	if panel.ConsensusScore == nil && !anySuccess(panel) {
		return nil, fmt.Errorf("%w: no model produced a usable analysis for %s", models.ErrAnalysisFailed, code)
	}

	progress(85, "persisting report")
	report := o.composeReport(queryID, code, reportType, analysisCtx, panel)
	if o.reports != nil {
		if err := o.reports.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to persist report %s: %w", queryID, err)
		}
	}

	if o.logger != nil {
		o.logger.Info().
			Str("query_id", queryID).
			Str("stock_code", code).
			Str("advice", report.Advice).
			Msg("Analysis report composed")
	}

	if o.notifier != nil {
		o.notifier.NotifyReport(ctx, report)
	}

	progress(100, "analysis complete")
	return report, nil
}

// buildContext assembles the market context. Every piece is optional on
// its own; absence degrades the context instead of failing it.
func (o *Orchestrator) buildContext(ctx context.Context, code, name string, reportType models.ReportType) *interfaces.AnalysisContext {
	analysisCtx := &interfaces.AnalysisContext{
		StockCode:  code,
		StockName:  name,
		ReportType: reportType,
	}

	quote, err := o.data.GetRealtime(ctx, code)
	if err != nil && o.logger != nil {
		o.logger.Warn().Str("stock_code", code).Err(err).Msg("Realtime quote unavailable")
	}
	analysisCtx.Quote = quote
	if analysisCtx.StockName == "" && quote != nil {
		analysisCtx.StockName = quote.Name
	}

	bars, source, err := o.data.GetDaily(ctx, code, o.klineDays)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn().Str("stock_code", code).Err(err).Msg("Daily history unavailable")
		}
	} else {
		analysisCtx.Bars = bars
		if o.logger != nil {
			o.logger.Debug().
				Str("stock_code", code).
				Str("source", source).
				Int("bars", len(bars)).
				Msg("Daily history fetched")
		}
	}

	chip, err := o.data.GetChip(ctx, code)
	if err != nil && o.logger != nil {
		o.logger.Warn().Str("stock_code", code).Err(err).Msg("Chip distribution unavailable")
	}
	analysisCtx.Chip = chip

	return analysisCtx
}

// collectNews queries the search cascade and renders the hits into one
// context block. Failures degrade to an empty block.
func (o *Orchestrator) collectNews(ctx context.Context, analysisCtx *interfaces.AnalysisContext) string {
	if o.search == nil || !o.search.IsConfigured() {
		return ""
	}

	subject := analysisCtx.StockName
	if subject == "" {
		subject = analysisCtx.StockCode
	}
	query := subject + " 股票 最新消息"

	resp, err := o.search.Search(ctx, query, o.newsResults, o.newsDays)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn().Str("stock_code", analysisCtx.StockCode).Err(err).Msg("News search failed")
		}
		return ""
	}
	if resp == nil || len(resp.Results) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Source != "" {
			fmt.Fprintf(&sb, " (%s", r.Source)
			if r.PublishedAt != nil {
				fmt.Fprintf(&sb, ", %s", r.PublishedAt.Format("2006-01-02"))
			}
			sb.WriteString(")")
		} else if r.PublishedAt != nil {
			fmt.Fprintf(&sb, " (%s)", r.PublishedAt.Format("2006-01-02"))
		}
		sb.WriteString("\n")
		if r.Content != "" {
			sb.WriteString(strings.TrimSpace(r.Content))
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// composeReport flattens the panel consensus plus context metadata into
// the persisted report shape.
func (o *Orchestrator) composeReport(queryID, code string, reportType models.ReportType, analysisCtx *interfaces.AnalysisContext, panel *models.PanelResult) *models.AnalysisReport {
	report := &models.AnalysisReport{
		QueryID:    queryID,
		StockCode:  code,
		StockName:  analysisCtx.StockName,
		ReportType: reportType,
		CreatedAt:  time.Now(),

		SentimentScore: panel.ConsensusScore,
		Advice:         panel.ConsensusAdvice,
		Summary:        panel.ConsensusSummary,
		Trend:          bestTrend(panel),

		NewsContent: analysisCtx.NewsContext,
	}
	if panel.ConsensusScore != nil {
		report.SentimentLabel = models.SentimentLabelFor(*panel.ConsensusScore)
	}
	if panel.ConsensusStrategy != nil {
		report.Strategy = *panel.ConsensusStrategy
	}
	if analysisCtx.Quote != nil {
		report.CurrentPrice = analysisCtx.Quote.Price
		report.ChangePct = analysisCtx.Quote.ChangePct
	}

	report.RawResult = panelAsMap(panel)
	report.ContextSnapshot = contextSnapshot(analysisCtx)
	return report
}

// bestTrend takes the trend text of the highest-scoring successful
// result, falling back to the first one carrying a trend.
func bestTrend(panel *models.PanelResult) string {
	var best *models.ModelResult
	for i := range panel.Results {
		r := &panel.Results[i]
		if !r.Success || r.Trend == "" {
			continue
		}
		if best == nil || (r.Score != nil && best.Score != nil && *r.Score > *best.Score) {
			best = r
		}
	}
	if best != nil {
		return best.Trend
	}
	return ""
}

func anySuccess(panel *models.PanelResult) bool {
	for _, r := range panel.Results {
		if r.Success {
			return true
		}
	}
	return false
}

// panelAsMap round-trips the panel through JSON so the report's opaque
// raw_result blob matches the wire shape of the panel.
func panelAsMap(panel *models.PanelResult) map[string]interface{} {
	data, err := json.Marshal(panel)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// contextSnapshot records what market context the panel actually saw.
func contextSnapshot(analysisCtx *interfaces.AnalysisContext) map[string]interface{} {
	snapshot := map[string]interface{}{
		"stock_code": analysisCtx.StockCode,
		"stock_name": analysisCtx.StockName,
		"bars":       len(analysisCtx.Bars),
		"has_chip":   analysisCtx.Chip != nil,
		"has_news":   analysisCtx.NewsContext != "",
	}
	if analysisCtx.Quote != nil {
		snapshot["quote_source"] = string(analysisCtx.Quote.Source)
		if analysisCtx.Quote.Price != nil {
			snapshot["price"] = *analysisCtx.Quote.Price
		}
	}
	return snapshot
}
