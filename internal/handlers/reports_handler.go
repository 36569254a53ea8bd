package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/services/reports"
)

// ReportsHandler serves persisted analysis reports and exports.
type ReportsHandler struct {
	reports *reports.Service
	logger  arbor.ILogger
}

// NewReportsHandler creates the reports handler.
func NewReportsHandler(service *reports.Service, logger arbor.ILogger) *ReportsHandler {
	return &ReportsHandler{reports: service, logger: logger}
}

// HistoryHandler handles GET /api/v1/reports?code=&start=&end=&page=&page_size=.
func (h *ReportsHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "code query parameter is required")
		return
	}

	start, ok := h.parseDate(w, r.URL.Query().Get("start"), "start")
	if !ok {
		return
	}
	end, ok := h.parseDate(w, r.URL.Query().Get("end"), "end")
	if !ok {
		return
	}
	if !end.IsZero() {
		// Make the end bound inclusive of the whole day.
		end = end.Add(24*time.Hour - time.Nanosecond)
	}

	page := QueryInt(r, "page", 0)
	if page < 0 {
		page = 0
	}
	pageSize := QueryInt(r, "page_size", 20)
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	envelopes, total, err := h.reports.History(r.Context(), code, start, end, page*pageSize, pageSize)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports":   envelopes,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetHandler handles GET /api/v1/reports/{query_id} and the /pdf export
// sub-path.
func (h *ReportsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if strings.HasSuffix(path, "/pdf") {
		h.servePDF(w, r, strings.TrimSuffix(path, "/pdf"))
		return
	}
	if path == "" || strings.Contains(path, "/") {
		WriteError(w, http.StatusBadRequest, "validation_error", "query_id is required")
		return
	}

	envelope, err := h.reports.Get(r.Context(), path)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, envelope)
}

func (h *ReportsHandler) servePDF(w http.ResponseWriter, r *http.Request, queryID string) {
	if queryID == "" || strings.Contains(queryID, "/") {
		WriteError(w, http.StatusBadRequest, "validation_error", "query_id is required")
		return
	}

	report, err := h.reports.GetRaw(r.Context(), queryID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	pdf, err := h.reports.RenderPDF(report)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("report_%s_%s.pdf", report.StockCode, report.CreatedAt.Format("20060102"))))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *ReportsHandler) parseDate(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("%s must be a YYYY-MM-DD date", name))
		return time.Time{}, false
	}
	return parsed, true
}
