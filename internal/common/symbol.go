// Package common provides shared utilities across the application.
package common

import (
	"regexp"
	"strings"
)

// Market identifies the trading venue a symbol belongs to.
// Classification is derived from the symbol shape, never stored.
type Market string

const (
	MarketAShare  Market = "a_share"
	MarketHK      Market = "hk"
	MarketUS      Market = "us"
	MarketETF     Market = "etf"
	MarketUnknown Market = "unknown"
)

// Symbol represents a classified stock symbol.
type Symbol struct {
	// Code is the normalized code used against data providers
	// (e.g., "600519", "00700", "AAPL", "BRK.B")
	Code string
	// Market is the derived market classification
	Market Market
	// Raw is the original input string
	Raw string
}

// etfPrefixes are the exchange fund code prefixes for 6-digit codes.
// Shanghai ETFs: 51/52/56/58, Shenzhen funds: 15/16/18.
var etfPrefixes = []string{"51", "52", "56", "58", "15", "16", "18"}

var (
	sixDigitRe = regexp.MustCompile(`^\d{6}$`)
	usCodeRe   = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
)

// ParseSymbol classifies a raw symbol string by market heuristics:
//   - 6-digit numeric: A-share, or ETF when the code carries an ETF prefix
//   - "HK" + 1-5 digits, or bare 5-digit numeric: Hong Kong
//   - 1-5 uppercase letters with optional ".X" class suffix: US
func ParseSymbol(raw string) Symbol {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Symbol{Raw: raw, Market: MarketUnknown}
	}

	upper := strings.ToUpper(trimmed)

	// HK prefix form: HK00700, hk1810
	if strings.HasPrefix(upper, "HK") {
		numeric := upper[2:]
		if isDigits(numeric) && len(numeric) >= 1 && len(numeric) <= 5 {
			return Symbol{Code: padHKCode(numeric), Market: MarketHK, Raw: raw}
		}
	}

	// 6-digit numeric: A-share or ETF
	if sixDigitRe.MatchString(trimmed) {
		for _, prefix := range etfPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				return Symbol{Code: trimmed, Market: MarketETF, Raw: raw}
			}
		}
		return Symbol{Code: trimmed, Market: MarketAShare, Raw: raw}
	}

	// Bare 5-digit numeric: HK. Shorter numeric codes are ambiguous with
	// A-share codes and are only accepted with the HK prefix.
	if isDigits(trimmed) && len(trimmed) == 5 {
		return Symbol{Code: trimmed, Market: MarketHK, Raw: raw}
	}

	// US: letters with optional class suffix (BRK.B)
	if usCodeRe.MatchString(upper) {
		return Symbol{Code: upper, Market: MarketUS, Raw: raw}
	}

	return Symbol{Code: trimmed, Market: MarketUnknown, Raw: raw}
}

// IsAnalyzable reports whether the symbol maps to a supported market.
func (s Symbol) IsAnalyzable() bool {
	return s.Market != MarketUnknown
}

// HKNumeric returns the HK code without leading zeros, as some upstream
// APIs key HK symbols by the short form (e.g., "700" for "00700").
func (s Symbol) HKNumeric() string {
	if s.Market != MarketHK {
		return s.Code
	}
	return strings.TrimLeft(s.Code, "0")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// padHKCode left-pads an HK numeric code to the canonical 5 digits.
func padHKCode(numeric string) string {
	for len(numeric) < 5 {
		numeric = "0" + numeric
	}
	return numeric
}

// ParseSymbols parses a list of raw symbol strings, dropping blanks.
func ParseSymbols(raw []string) []Symbol {
	result := make([]Symbol, 0, len(raw))
	for _, r := range raw {
		if parsed := ParseSymbol(r); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
