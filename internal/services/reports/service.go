// Package reports serves persisted analysis reports: retrieval,
// paginated history queries, and rendered exports (markdown, HTML, PDF).
package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Service provides read access and rendering over the report store.
type Service struct {
	storage  interfaces.ReportStorage
	logger   arbor.ILogger
	markdown goldmark.Markdown
}

// NewService creates the report service.
func NewService(storage interfaces.ReportStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
	}
}

// Get returns one report envelope by query id.
func (s *Service) Get(ctx context.Context, queryID string) (*models.ReportEnvelope, error) {
	report, err := s.storage.GetByQueryID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	envelope := report.Envelope()
	return &envelope, nil
}

// GetRaw returns the stored report record by query id.
func (s *Service) GetRaw(ctx context.Context, queryID string) (*models.AnalysisReport, error) {
	return s.storage.GetByQueryID(ctx, queryID)
}

// History returns the report envelopes for a code within [start, end],
// newest first, plus the total match count.
func (s *Service) History(ctx context.Context, code string, start, end time.Time, offset, limit int) ([]models.ReportEnvelope, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reports, total, err := s.storage.Query(ctx, code, start, end, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	envelopes := make([]models.ReportEnvelope, len(reports))
	for i, report := range reports {
		envelopes[i] = report.Envelope()
	}
	return envelopes, total, nil
}

// RenderMarkdown renders a report into a markdown document.
func (s *Service) RenderMarkdown(report *models.AnalysisReport) string {
	var sb strings.Builder

	title := report.StockCode
	if report.StockName != "" {
		title = fmt.Sprintf("%s (%s)", report.StockName, report.StockCode)
	}
	fmt.Fprintf(&sb, "# Analysis Report: %s\n\n", title)
	fmt.Fprintf(&sb, "- **Date:** %s\n", report.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "- **Report type:** %s\n", report.ReportType)
	if report.CurrentPrice != nil {
		fmt.Fprintf(&sb, "- **Price:** %.2f", *report.CurrentPrice)
		if report.ChangePct != nil {
			fmt.Fprintf(&sb, " (%+.2f%%)", *report.ChangePct)
		}
		sb.WriteString("\n")
	}
	if report.SentimentScore != nil {
		fmt.Fprintf(&sb, "- **Sentiment:** %.0f/100 (%s)\n", *report.SentimentScore, report.SentimentLabel)
	}
	if report.Advice != "" {
		fmt.Fprintf(&sb, "- **Advice:** %s\n", report.Advice)
	}
	sb.WriteString("\n")

	if report.Summary != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(report.Summary)
		sb.WriteString("\n\n")
	}
	if report.Trend != "" {
		sb.WriteString("## Trend\n\n")
		sb.WriteString(report.Trend)
		sb.WriteString("\n\n")
	}

	if !report.Strategy.IsZero() {
		sb.WriteString("## Strategy\n\n")
		sb.WriteString("| Level | Price |\n|---|---|\n")
		if report.Strategy.IdealBuy != "" {
			fmt.Fprintf(&sb, "| Ideal buy | %s |\n", report.Strategy.IdealBuy)
		}
		if report.Strategy.SecondaryBuy != "" {
			fmt.Fprintf(&sb, "| Secondary buy | %s |\n", report.Strategy.SecondaryBuy)
		}
		if report.Strategy.StopLoss != "" {
			fmt.Fprintf(&sb, "| Stop loss | %s |\n", report.Strategy.StopLoss)
		}
		if report.Strategy.TakeProfit != "" {
			fmt.Fprintf(&sb, "| Take profit | %s |\n", report.Strategy.TakeProfit)
		}
		sb.WriteString("\n")
	}

	if report.NewsContent != "" {
		sb.WriteString("## News Context\n\n")
		sb.WriteString(report.NewsContent)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderHTML converts the report's markdown rendering to HTML.
func (s *Service) RenderHTML(report *models.AnalysisReport) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(s.RenderMarkdown(report)), &buf); err != nil {
		return "", fmt.Errorf("failed to render report HTML: %w", err)
	}
	return buf.String(), nil
}

// RenderPDF renders the report as a PDF document.
func (s *Service) RenderPDF(report *models.AnalysisReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Analysis %s", report.StockCode), true)
	pdf.AddPage()

	title := report.StockCode
	if report.StockName != "" {
		title = fmt.Sprintf("%s (%s)", report.StockName, report.StockCode)
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, fmt.Sprintf("Analysis Report: %s", title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	meta := []string{
		fmt.Sprintf("Date: %s", report.CreatedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("Report type: %s", report.ReportType),
	}
	if report.CurrentPrice != nil {
		line := fmt.Sprintf("Price: %.2f", *report.CurrentPrice)
		if report.ChangePct != nil {
			line += fmt.Sprintf(" (%+.2f%%)", *report.ChangePct)
		}
		meta = append(meta, line)
	}
	if report.SentimentScore != nil {
		meta = append(meta, fmt.Sprintf("Sentiment: %.0f/100 (%s)", *report.SentimentScore, report.SentimentLabel))
	}
	if report.Advice != "" {
		meta = append(meta, fmt.Sprintf("Advice: %s", report.Advice))
	}
	for _, line := range meta {
		pdf.MultiCell(0, 5.5, line, "", "L", false)
	}
	pdf.Ln(3)

	writeSection := func(heading, body string) {
		if body == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, heading, "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, body, "", "L", false)
		pdf.Ln(2)
	}

	writeSection("Summary", report.Summary)
	writeSection("Trend", report.Trend)

	if !report.Strategy.IsZero() {
		var lines []string
		if report.Strategy.IdealBuy != "" {
			lines = append(lines, "Ideal buy: "+report.Strategy.IdealBuy)
		}
		if report.Strategy.SecondaryBuy != "" {
			lines = append(lines, "Secondary buy: "+report.Strategy.SecondaryBuy)
		}
		if report.Strategy.StopLoss != "" {
			lines = append(lines, "Stop loss: "+report.Strategy.StopLoss)
		}
		if report.Strategy.TakeProfit != "" {
			lines = append(lines, "Take profit: "+report.Strategy.TakeProfit)
		}
		writeSection("Strategy", strings.Join(lines, "\n"))
	}

	writeSection("News Context", report.NewsContent)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	return buf.Bytes(), nil
}
