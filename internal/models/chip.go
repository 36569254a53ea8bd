package models

import "time"

// ChipDistribution is the per-symbol holder-cost snapshot, available for
// A-share symbols only. Operations return nil (absence, not error) for
// other markets.
type ChipDistribution struct {
	Code        string    `json:"code"`
	Date        time.Time `json:"date"`
	ProfitRatio float64   `json:"profit_ratio"` // [0,1]
	AvgCost     float64   `json:"avg_cost"`

	// 70% cost band
	Cost70Low       float64 `json:"cost_70_low"`
	Cost70High      float64 `json:"cost_70_high"`
	Concentration70 float64 `json:"concentration_70"` // [0,1]

	// 90% cost band
	Cost90Low       float64 `json:"cost_90_low"`
	Cost90High      float64 `json:"cost_90_high"`
	Concentration90 float64 `json:"concentration_90"` // [0,1]
}
