package models

import "time"

// QuoteSource identifies the upstream provider a quote came from.
type QuoteSource string

const (
	SourceAKShare  QuoteSource = "akshare"
	SourceTushare  QuoteSource = "tushare"
	SourceEFinance QuoteSource = "efinance"
	SourceYFinance QuoteSource = "yfinance"
	SourceAlpaca   QuoteSource = "alpaca"
)

// UnifiedQuote is the canonical point-in-time market snapshot produced
// by the data provider cascade. Any numeric field may be absent; absence
// is distinct from zero, so optional fields are pointers.
type UnifiedQuote struct {
	Code      string      `json:"code"`
	Name      string      `json:"name,omitempty"`
	Source    QuoteSource `json:"source"`
	FetchedAt time.Time   `json:"fetched_at"`

	// Price
	Price        *float64 `json:"price,omitempty"`
	ChangeAmount *float64 `json:"change_amount,omitempty"`
	ChangePct    *float64 `json:"change_pct,omitempty"`
	Open         *float64 `json:"open,omitempty"`
	High         *float64 `json:"high,omitempty"`
	Low          *float64 `json:"low,omitempty"`
	PrevClose    *float64 `json:"prev_close,omitempty"`

	// Flow
	Volume       *float64 `json:"volume,omitempty"` // shares
	Amount       *float64 `json:"amount,omitempty"` // currency
	VolumeRatio  *float64 `json:"volume_ratio,omitempty"`
	TurnoverRate *float64 `json:"turnover_rate,omitempty"`
	Amplitude    *float64 `json:"amplitude,omitempty"`

	// Valuation
	PE      *float64 `json:"pe,omitempty"`
	PB      *float64 `json:"pb,omitempty"`
	TotalMV *float64 `json:"total_mv,omitempty"`
	CircMV  *float64 `json:"circ_mv,omitempty"`

	// Range
	High52W     *float64 `json:"high_52w,omitempty"`
	Low52W      *float64 `json:"low_52w,omitempty"`
	Change60Day *float64 `json:"change_60d,omitempty"`
}

// HasBasicData reports whether the quote carries a usable price.
// True iff price is present and positive.
func (q *UnifiedQuote) HasBasicData() bool {
	return q != nil && q.Price != nil && *q.Price > 0
}

// Float returns a pointer to v, for populating optional quote fields.
func Float(v float64) *float64 {
	return &v
}
