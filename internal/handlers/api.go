package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
)

type APIHandler struct {
	data   interfaces.DataService
	logger arbor.ILogger
}

func NewAPIHandler(data interfaces.DataService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{data: data, logger: logger}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status with data source diagnostics
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	response := map[string]interface{}{
		"status": "ok",
	}
	if h.data != nil {
		response["sources"] = h.data.SourceStatus()
	}
	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "not_found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
