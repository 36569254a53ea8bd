package models

import "time"

// AnalysisReport is the immutable persisted record of a completed
// analysis. QueryID equals the submitting task's id when the analysis
// ran through the queue.
type AnalysisReport struct {
	QueryID    string     `json:"query_id" badgerhold:"key"`
	StockCode  string     `json:"stock_code" badgerhold:"index"`
	StockName  string     `json:"stock_name,omitempty"`
	ReportType ReportType `json:"report_type"`
	CreatedAt  time.Time  `json:"created_at" badgerhold:"index"`

	// Numeric summary
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
	SentimentLabel string   `json:"sentiment_label,omitempty"`
	Trend          string   `json:"trend,omitempty"`
	Advice         string   `json:"advice,omitempty"`
	Summary        string   `json:"summary,omitempty"`

	// Market snapshot at analysis time
	CurrentPrice *float64 `json:"current_price,omitempty"`
	ChangePct    *float64 `json:"change_pct,omitempty"`

	Strategy StrategyPoints `json:"strategy"`

	// Opaque blobs preserved for display and replay
	NewsContent     string                 `json:"news_content,omitempty"`
	RawResult       map[string]interface{} `json:"raw_result,omitempty"`
	ContextSnapshot map[string]interface{} `json:"context_snapshot,omitempty"`
}

// ReportEnvelope is the wire shape of a persisted report, grouped into
// meta/summary/strategy/details sections.
type ReportEnvelope struct {
	Meta     ReportMeta     `json:"meta"`
	Summary  ReportSummary  `json:"summary"`
	Strategy StrategyPoints `json:"strategy"`
	Details  ReportDetails  `json:"details"`
}

type ReportMeta struct {
	QueryID      string     `json:"query_id"`
	StockCode    string     `json:"stock_code"`
	StockName    string     `json:"stock_name,omitempty"`
	ReportType   ReportType `json:"report_type"`
	CreatedAt    time.Time  `json:"created_at"`
	CurrentPrice *float64   `json:"current_price,omitempty"`
	ChangePct    *float64   `json:"change_pct,omitempty"`
}

type ReportSummary struct {
	AnalysisSummary string   `json:"analysis_summary"`
	OperationAdvice string   `json:"operation_advice"`
	TrendPrediction string   `json:"trend_prediction"`
	SentimentScore  *float64 `json:"sentiment_score,omitempty"`
	SentimentLabel  string   `json:"sentiment_label,omitempty"`
}

type ReportDetails struct {
	NewsContent     string                 `json:"news_content,omitempty"`
	RawResult       map[string]interface{} `json:"raw_result,omitempty"`
	ContextSnapshot map[string]interface{} `json:"context_snapshot,omitempty"`
}

// Envelope converts the stored report into its wire shape.
func (r *AnalysisReport) Envelope() ReportEnvelope {
	return ReportEnvelope{
		Meta: ReportMeta{
			QueryID:      r.QueryID,
			StockCode:    r.StockCode,
			StockName:    r.StockName,
			ReportType:   r.ReportType,
			CreatedAt:    r.CreatedAt,
			CurrentPrice: r.CurrentPrice,
			ChangePct:    r.ChangePct,
		},
		Summary: ReportSummary{
			AnalysisSummary: r.Summary,
			OperationAdvice: r.Advice,
			TrendPrediction: r.Trend,
			SentimentScore:  r.SentimentScore,
			SentimentLabel:  r.SentimentLabel,
		},
		Strategy: r.Strategy,
		Details: ReportDetails{
			NewsContent:     r.NewsContent,
			RawResult:       r.RawResult,
			ContextSnapshot: r.ContextSnapshot,
		},
	}
}

// SentimentLabelFor maps a sentiment score to its display label.
func SentimentLabelFor(score float64) string {
	switch {
	case score >= 75:
		return "bullish"
	case score >= 55:
		return "mildly bullish"
	case score >= 45:
		return "neutral"
	case score >= 25:
		return "mildly bearish"
	default:
		return "bearish"
	}
}
