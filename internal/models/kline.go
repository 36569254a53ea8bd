package models

import "time"

// KLineBar is one bar of daily history, normalized across providers.
// Bars are always returned ordered oldest-to-newest.
type KLineBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Amount float64   `json:"amount"`
	PctChg float64   `json:"pct_chg"`

	// Derived fields, populated when enough history is available
	MA5         *float64 `json:"ma5,omitempty"`
	MA10        *float64 `json:"ma10,omitempty"`
	MA20        *float64 `json:"ma20,omitempty"`
	VolumeRatio *float64 `json:"volume_ratio,omitempty"`
}

// ComputeMovingAverages fills MA5/MA10/MA20 and the 5-day volume ratio
// in place. Bars must be ordered oldest-to-newest.
func ComputeMovingAverages(bars []KLineBar) {
	for i := range bars {
		if ma, ok := trailingMean(bars, i, 5, func(b KLineBar) float64 { return b.Close }); ok {
			bars[i].MA5 = Float(ma)
		}
		if ma, ok := trailingMean(bars, i, 10, func(b KLineBar) float64 { return b.Close }); ok {
			bars[i].MA10 = Float(ma)
		}
		if ma, ok := trailingMean(bars, i, 20, func(b KLineBar) float64 { return b.Close }); ok {
			bars[i].MA20 = Float(ma)
		}
		if avg, ok := trailingMean(bars, i, 5, func(b KLineBar) float64 { return b.Volume }); ok && avg > 0 {
			bars[i].VolumeRatio = Float(bars[i].Volume / avg)
		}
	}
}

func trailingMean(bars []KLineBar, i, window int, field func(KLineBar) float64) (float64, bool) {
	if i+1 < window {
		return 0, false
	}
	sum := 0.0
	for j := i + 1 - window; j <= i; j++ {
		sum += field(bars[j])
	}
	return sum / float64(window), true
}
