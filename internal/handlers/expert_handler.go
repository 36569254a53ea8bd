package handlers

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
)

// ExpertHandler serves the direct expert-panel path: run the panel
// against live market context without going through the task queue.
type ExpertHandler struct {
	experts  interfaces.ExpertService
	data     interfaces.DataService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewExpertHandler creates the expert panel handler.
func NewExpertHandler(experts interfaces.ExpertService, data interfaces.DataService, logger arbor.ILogger) *ExpertHandler {
	return &ExpertHandler{
		experts:  experts,
		data:     data,
		validate: validator.New(),
		logger:   logger,
	}
}

type panelRequest struct {
	StockCode string   `json:"stock_code" validate:"required,max=16"`
	StockName string   `json:"stock_name" validate:"omitempty,max=64"`
	Models    []string `json:"models" validate:"omitempty,max=10,dive,required"`
	Days      int      `json:"days" validate:"omitempty,min=1,max=365"`
}

// AnalyzeHandler handles POST /api/v1/expert-panel/analyze.
func (h *ExpertHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req panelRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	symbol := common.ParseSymbol(req.StockCode)
	if !symbol.IsAnalyzable() {
		WriteError(w, http.StatusUnprocessableEntity, "unsupported_market",
			"symbol does not map to a supported market")
		return
	}
	days := req.Days
	if days == 0 {
		days = 60
	}

	quote, err := h.data.GetRealtime(r.Context(), symbol.Code)
	if err != nil {
		h.logger.Warn().Err(err).Str("code", symbol.Code).Msg("Quote unavailable for panel run")
	}
	bars, _, err := h.data.GetDaily(r.Context(), symbol.Code, days)
	if err != nil {
		h.logger.Warn().Err(err).Str("code", symbol.Code).Msg("Bars unavailable for panel run")
	}

	stockName := req.StockName
	if stockName == "" && quote != nil {
		stockName = quote.Name
	}

	result, err := h.experts.RunPanel(r.Context(), &interfaces.AnalysisContext{
		StockCode: symbol.Code,
		StockName: stockName,
		Quote:     quote,
		Bars:      bars,
	}, req.Models)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ModelsHandler handles GET /api/v1/expert-panel/models. Endpoint keys
// come back masked.
func (h *ExpertHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	configs := h.experts.Models()
	names := make([]string, len(configs))
	for i, cfg := range configs {
		names[i] = cfg.Name
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"models": configs,
		"names":  strings.Join(names, ","),
		"count":  len(configs),
	})
}
