package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/models"
)

type memoryReports struct {
	byID map[string]*models.AnalysisReport
}

func (m *memoryReports) Save(_ context.Context, report *models.AnalysisReport) error {
	m.byID[report.QueryID] = report
	return nil
}

func (m *memoryReports) GetByQueryID(_ context.Context, queryID string) (*models.AnalysisReport, error) {
	if report, ok := m.byID[queryID]; ok {
		return report, nil
	}
	return nil, models.ErrNotFound
}

func (m *memoryReports) Query(_ context.Context, code string, _, _ time.Time, offset, limit int) ([]*models.AnalysisReport, int, error) {
	var matched []*models.AnalysisReport
	for _, report := range m.byID {
		if report.StockCode == code {
			matched = append(matched, report)
		}
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func sampleReport() *models.AnalysisReport {
	return &models.AnalysisReport{
		QueryID:        "task_1",
		StockCode:      "600519",
		StockName:      "Kweichow Moutai",
		ReportType:     models.ReportFull,
		CreatedAt:      time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		SentimentScore: models.Float(72),
		SentimentLabel: "mildly bullish",
		Advice:         "buy",
		Summary:        "Volume confirms the breakout above the 20-day average.",
		Trend:          "Short-term uptrend likely to continue.",
		CurrentPrice:   models.Float(1520.5),
		ChangePct:      models.Float(1.2),
		Strategy: models.StrategyPoints{
			IdealBuy: "1480-1500",
			StopLoss: "1430",
		},
		NewsContent: "1. Moutai beats estimates (reuters, 2026-08-20)",
	}
}

func newTestService() *Service {
	return NewService(&memoryReports{byID: map[string]*models.AnalysisReport{"task_1": sampleReport()}}, arbor.NewLogger())
}

func TestGetReturnsEnvelope(t *testing.T) {
	svc := newTestService()

	envelope, err := svc.Get(context.Background(), "task_1")
	require.NoError(t, err)
	assert.Equal(t, "600519", envelope.Meta.StockCode)
	assert.Equal(t, "buy", envelope.Summary.OperationAdvice)
	assert.Equal(t, "1480-1500", envelope.Strategy.IdealBuy)

	_, err = svc.Get(context.Background(), "task_unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHistoryPaginatesAndCounts(t *testing.T) {
	store := &memoryReports{byID: map[string]*models.AnalysisReport{}}
	for _, id := range []string{"task_1", "task_2", "task_3"} {
		report := sampleReport()
		report.QueryID = id
		store.byID[id] = report
	}
	svc := NewService(store, arbor.NewLogger())

	envelopes, total, err := svc.History(context.Background(), "600519", time.Time{}, time.Time{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, envelopes, 2)
}

func TestRenderMarkdown(t *testing.T) {
	md := newTestService().RenderMarkdown(sampleReport())

	assert.Contains(t, md, "# Analysis Report: Kweichow Moutai (600519)")
	assert.Contains(t, md, "**Sentiment:** 72/100 (mildly bullish)")
	assert.Contains(t, md, "**Advice:** buy")
	assert.Contains(t, md, "| Ideal buy | 1480-1500 |")
	assert.Contains(t, md, "| Stop loss | 1430 |")
	assert.NotContains(t, md, "Secondary buy") // empty points are omitted
	assert.Contains(t, md, "## News Context")
}

func TestRenderHTML(t *testing.T) {
	html, err := newTestService().RenderHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>")
	assert.Contains(t, html, "Kweichow Moutai")
	assert.Contains(t, html, "<table>") // GFM table extension
}

func TestRenderPDF(t *testing.T) {
	pdf, err := newTestService().RenderPDF(sampleReport())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Greater(t, len(pdf), 500)
}
