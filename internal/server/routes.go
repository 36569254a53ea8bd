package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Analysis
	mux.HandleFunc("/api/v1/analysis/analyze", s.app.AnalysisHandler.AnalyzeHandler)
	mux.HandleFunc("/api/v1/analysis/status/", s.app.AnalysisHandler.StatusHandler)
	mux.HandleFunc("/api/v1/analysis/tasks", s.app.AnalysisHandler.TasksHandler)
	mux.HandleFunc("/api/v1/analysis/tasks/stream", s.app.StreamHandler.StreamTasksHandler)

	// API routes - Watchlist (registered before the stocks catch-all)
	mux.HandleFunc("/api/v1/stocks/watchlist", s.handleWatchlistCollection)
	mux.HandleFunc("/api/v1/stocks/watchlist/", s.app.WatchlistHandler.RemoveHandler)

	// API routes - Stock data ({code}/quote, {code}/history)
	mux.HandleFunc("/api/v1/stocks/", s.handleStockRoutes)

	// API routes - System configuration
	mux.HandleFunc("/api/v1/system/config", s.app.SettingsHandler.ConfigHandler)
	mux.HandleFunc("/api/v1/system/config/validate", s.app.SettingsHandler.ValidateHandler)
	mux.HandleFunc("/api/v1/system/config/schema", s.app.SettingsHandler.SchemaHandler)
	mux.HandleFunc("/api/v1/system/config/fetch-models", s.app.SettingsHandler.FetchModelsHandler)

	// API routes - Expert panel
	mux.HandleFunc("/api/v1/expert-panel/analyze", s.app.ExpertHandler.AnalyzeHandler)
	mux.HandleFunc("/api/v1/expert-panel/models", s.app.ExpertHandler.ModelsHandler)

	// API routes - Reports ({query_id}, {query_id}/pdf)
	mux.HandleFunc("/api/v1/reports", s.app.ReportsHandler.HistoryHandler)
	mux.HandleFunc("/api/v1/reports/", s.app.ReportsHandler.GetHandler)

	// System routes
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.Handle("/metrics", promhttp.Handler())

	// MCP endpoint (streamable HTTP transport)
	mux.Handle("/mcp", s.app.MCPHandler)

	// Catch-all for unknown API paths
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleWatchlistCollection routes the watchlist collection endpoint:
// GET lists entries, POST adds one.
func (s *Server) handleWatchlistCollection(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"GET":  s.app.WatchlistHandler.ListHandler,
		"POST": s.app.WatchlistHandler.AddHandler,
	})
}

// handleStockRoutes dispatches /api/v1/stocks/{code}/quote and
// /api/v1/stocks/{code}/history by path suffix.
func (s *Server) handleStockRoutes(w http.ResponseWriter, r *http.Request) {
	matched := RouteByPathSuffix(w, r, "/api/v1/stocks/", []PathSuffixRouter{
		{Suffix: "/quote", Handler: s.app.StocksHandler.QuoteHandler},
		{Suffix: "/history", Handler: s.app.StocksHandler.HistoryHandler},
	})
	if !matched {
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
