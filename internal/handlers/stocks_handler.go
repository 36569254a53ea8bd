package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
)

// StocksHandler serves unified quote and history lookups.
type StocksHandler struct {
	data   interfaces.DataService
	logger arbor.ILogger
}

// NewStocksHandler creates the stocks handler.
func NewStocksHandler(data interfaces.DataService, logger arbor.ILogger) *StocksHandler {
	return &StocksHandler{data: data, logger: logger}
}

// QuoteHandler handles GET /api/v1/stocks/{code}/quote.
func (h *StocksHandler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	code, ok := h.symbolFromPath(w, r, "/quote")
	if !ok {
		return
	}

	quote, err := h.data.GetRealtime(r.Context(), code)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if quote == nil {
		WriteError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no quote available for %s", code))
		return
	}
	WriteJSON(w, http.StatusOK, quote)
}

// HistoryHandler handles GET /api/v1/stocks/{code}/history?period=daily&days=N.
func (h *StocksHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	code, ok := h.symbolFromPath(w, r, "/history")
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	if period != "" && period != "daily" {
		WriteError(w, http.StatusUnprocessableEntity, "unsupported_period",
			fmt.Sprintf("period %q is not supported; only daily bars are available", period))
		return
	}

	days := QueryInt(r, "days", 60)
	if days <= 0 || days > 365 {
		days = 60
	}

	bars, source, err := h.data.GetDaily(r.Context(), code, days)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stock_code": code,
		"period":     "daily",
		"source":     source,
		"bars":       bars,
		"count":      len(bars),
	})
}

// symbolFromPath extracts and classifies the {code} path segment from
// /api/v1/stocks/{code}<suffix>.
func (h *StocksHandler) symbolFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/stocks/")
	raw := strings.TrimSuffix(path, suffix)
	if raw == "" || strings.Contains(raw, "/") {
		WriteError(w, http.StatusBadRequest, "validation_error", "stock code is required")
		return "", false
	}

	symbol := common.ParseSymbol(raw)
	if !symbol.IsAnalyzable() {
		WriteError(w, http.StatusUnprocessableEntity, "unsupported_market",
			fmt.Sprintf("symbol %q does not map to a supported market", raw))
		return "", false
	}
	return symbol.Code, true
}
