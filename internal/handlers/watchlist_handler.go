package handlers

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/services/watchlist"
)

// WatchlistHandler serves the watchlist CRUD endpoints.
type WatchlistHandler struct {
	watchlist *watchlist.Service
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewWatchlistHandler creates the watchlist handler.
func NewWatchlistHandler(service *watchlist.Service, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: service,
		validate:  validator.New(),
		logger:    logger,
	}
}

// ListHandler handles GET /api/v1/stocks/watchlist.
func (h *WatchlistHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	entries, err := h.watchlist.List(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type watchlistAddRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"omitempty,max=64"`
}

// AddHandler handles POST /api/v1/stocks/watchlist.
func (h *WatchlistHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req watchlistAddRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	entry, err := h.watchlist.Add(r.Context(), req.Code, req.Name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

// RemoveHandler handles DELETE /api/v1/stocks/watchlist/{code}.
func (h *WatchlistHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	code := strings.TrimPrefix(r.URL.Path, "/api/v1/stocks/watchlist/")
	if code == "" || strings.Contains(code, "/") {
		WriteError(w, http.StatusBadRequest, "validation_error", "stock code is required")
		return
	}

	if err := h.watchlist.Remove(r.Context(), code); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "removed", "code": code})
}
