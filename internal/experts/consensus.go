package experts

import (
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/augur/internal/models"
)

// adviceInsufficientData is the consensus advice when no model
// produced a scored result.
const adviceInsufficientData = "insufficient data"

// computeConsensus reduces the panel's model results onto the result's
// consensus fields. Only successful results carrying a score
// contribute; advice ties break by insertion order.
func computeConsensus(panel *models.PanelResult) {
	var successful []models.ModelResult
	for _, r := range panel.Results {
		if r.Success && r.Score != nil {
			successful = append(successful, r)
		}
	}

	if len(successful) == 0 {
		panel.ConsensusAdvice = adviceInsufficientData
		panel.ConsensusSummary = "All model analyses failed; no consensus conclusion available."
		return
	}

	sum := 0.0
	minScore, maxScore := math.MaxFloat64, -math.MaxFloat64
	for _, r := range successful {
		sum += *r.Score
		minScore = math.Min(minScore, *r.Score)
		maxScore = math.Max(maxScore, *r.Score)
	}
	mean := math.Round(sum / float64(len(successful)))
	panel.ConsensusScore = models.Float(mean)

	// Advice mode, first-seen wins ties.
	counts := make(map[string]int)
	var adviceOrder []string
	for _, r := range successful {
		if r.Advice == "" {
			continue
		}
		if _, seen := counts[r.Advice]; !seen {
			adviceOrder = append(adviceOrder, r.Advice)
		}
		counts[r.Advice]++
	}
	topAdvice := "watch"
	topCount := 0
	for _, advice := range adviceOrder {
		if counts[advice] > topCount {
			topAdvice = advice
			topCount = counts[advice]
		}
	}
	panel.ConsensusAdvice = topAdvice

	panel.ConsensusStrategy = pickStrategy(successful, topAdvice)
	panel.ConsensusSummary = buildSummary(successful, topAdvice, topCount, mean, minScore, maxScore)
}

// pickStrategy selects the strategy points of the highest-scoring
// result whose advice matches the mode; falls back to the first result
// carrying strategy points.
func pickStrategy(successful []models.ModelResult, topAdvice string) *models.StrategyPoints {
	var best *models.ModelResult
	for i := range successful {
		r := &successful[i]
		if r.Advice != topAdvice || r.Strategy == nil {
			continue
		}
		if best == nil || *r.Score > *best.Score {
			best = r
		}
	}
	if best != nil {
		return best.Strategy
	}
	for i := range successful {
		if successful[i].Strategy != nil {
			return successful[i].Strategy
		}
	}
	return nil
}

func buildSummary(successful []models.ModelResult, topAdvice string, topCount int, mean, minScore, maxScore float64) string {
	total := len(successful)

	var sb strings.Builder
	if topCount == total {
		fmt.Fprintf(&sb, "All %d experts recommend %q", total, topAdvice)
	} else {
		fmt.Fprintf(&sb, "%d/%d experts recommend %q", topCount, total, topAdvice)
		var dissent []string
		for _, r := range successful {
			if r.Advice != topAdvice && r.Advice != "" {
				dissent = append(dissent, fmt.Sprintf("%s recommends %q", r.ModelName, r.Advice))
			}
		}
		if len(dissent) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(dissent, ", "))
		}
	}
	fmt.Fprintf(&sb, ". Score range %.0f-%.0f, mean %.0f.", minScore, maxScore, mean)
	return sb.String()
}
