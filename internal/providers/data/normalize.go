package data

import (
	"strconv"
	"strings"
)

// Unit conversions across Chinese market feeds. Upstream volume columns
// are in hands (lots of 100 shares) and some amount columns are in
// thousands of yuan; the unified model always carries shares and yuan.

// HandsToShares converts a lot count to a share count.
func HandsToShares(hands float64) float64 {
	return hands * 100
}

// ThousandsToCurrency converts a thousand-yuan amount to yuan.
func ThousandsToCurrency(v float64) float64 {
	return v * 1000
}

// asFloat extracts a float from a loosely typed JSON cell. Feed rows mix
// numbers, numeric strings, and "-" placeholders for missing values.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" || trimmed == "-" || trimmed == "--" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asString extracts a string cell, stringifying integral numbers (JSON
// feeds sometimes emit codes as numbers).
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// optFloat returns a pointer for a present cell, nil otherwise.
func optFloat(row map[string]interface{}, key string) *float64 {
	if f, ok := asFloat(row[key]); ok {
		return &f
	}
	return nil
}
