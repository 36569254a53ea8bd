package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/augur/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response with a wire error kind.
func WriteError(w http.ResponseWriter, statusCode int, kind, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"error":   kind,
		"message": message,
	})
}

// WriteDomainError maps a domain error to its wire kind and status.
func WriteDomainError(w http.ResponseWriter, err error) error {
	var dup *models.DuplicateTaskError
	if errors.As(err, &dup) {
		return WriteJSON(w, http.StatusConflict, map[string]string{
			"error":            "duplicate_task",
			"stock_code":       dup.StockCode,
			"existing_task_id": dup.ExistingTaskID,
		})
	}

	var conflict *models.VersionConflictError
	if errors.As(err, &conflict) {
		return WriteJSON(w, http.StatusConflict, map[string]string{
			"error":                  "config_version_conflict",
			"message":                conflict.Error(),
			"current_config_version": conflict.CurrentVersion,
		})
	}

	var invalid *models.ValidationFailedError
	if errors.As(err, &invalid) {
		return WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"issues": invalid.Issues,
		})
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrUnsupportedMarket):
		return WriteError(w, http.StatusUnprocessableEntity, "unsupported_market", err.Error())
	case errors.Is(err, models.ErrUnsupportedPeriod):
		return WriteError(w, http.StatusUnprocessableEntity, "unsupported_period", err.Error())
	case errors.Is(err, models.ErrAnalysisFailed), errors.Is(err, models.ErrAllSourcesFailed):
		return WriteError(w, http.StatusInternalServerError, "analysis_failed", err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// DecodeJSON decodes a request body, rejecting unknown top-level syntax errors
// with a validation_error response. Returns false when decoding failed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// QueryInt parses an integer query parameter with a fallback default.
func QueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
