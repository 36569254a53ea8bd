package experts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/augur/internal/models"
)

// Outcome is a parsed model response, independent of the provider
// dialect that produced it.
type Outcome struct {
	Score      *float64
	Advice     string
	Trend      string
	Summary    string
	Confidence *float64
	Strategy   *models.StrategyPoints
	Raw        map[string]interface{}
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating markdown code fences and prose around the payload.
func extractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return trimmed[start : end+1], nil
}

// numberField reads a numeric field that models emit as either a JSON
// number or a quoted string.
func numberField(raw map[string]interface{}, key string) *float64 {
	switch t := raw[key].(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

func stringField(raw map[string]interface{}, key string) string {
	if s, ok := raw[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nestedMap(raw map[string]interface{}, keys ...string) map[string]interface{} {
	current := raw
	for _, key := range keys {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// ParseOutcome decodes a model's JSON response into an Outcome. The
// expected shape carries sentiment_score, operation_advice,
// trend_prediction, analysis_summary, confidence_level, and optional
// strategy points under dashboard.battle_plan.sniper_points.
func ParseOutcome(text string) (*Outcome, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	outcome := &Outcome{
		Score:      numberField(raw, "sentiment_score"),
		Advice:     stringField(raw, "operation_advice"),
		Trend:      stringField(raw, "trend_prediction"),
		Summary:    stringField(raw, "analysis_summary"),
		Confidence: numberField(raw, "confidence_level"),
		Raw:        raw,
	}

	if sniper := nestedMap(raw, "dashboard", "battle_plan", "sniper_points"); sniper != nil {
		strategy := models.StrategyPoints{
			IdealBuy:     stringField(sniper, "ideal_buy"),
			SecondaryBuy: stringField(sniper, "secondary_buy"),
			StopLoss:     stringField(sniper, "stop_loss"),
			TakeProfit:   stringField(sniper, "take_profit"),
		}
		if !strategy.IsZero() {
			outcome.Strategy = &strategy
		}
	}

	return outcome, nil
}
