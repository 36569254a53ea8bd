package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// SettingsHandler serves the runtime configuration protocol: masked
// reads, optimistic-versioned updates, dry-run validation, schema
// metadata, and model discovery probes.
type SettingsHandler struct {
	settings interfaces.SettingsService
	validate *validator.Validate
	client   *resty.Client
	logger   arbor.ILogger
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(settings interfaces.SettingsService, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		validate: validator.New(),
		client:   resty.New().SetTimeout(20 * time.Second),
		logger:   logger,
	}
}

// ConfigHandler handles GET and PUT /api/v1/system/config.
func (h *SettingsHandler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getConfig(w, r)
	case http.MethodPut:
		h.updateConfig(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// getConfig returns the current snapshot with sensitive values masked.
// The mask token round-trips through updates unchanged.
func (h *SettingsHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.settings.GetConfig(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	sensitive := h.sensitiveKeys()
	items := make(map[string]string, len(snapshot.Items))
	for key, value := range snapshot.Items {
		if sensitive[key] && value != "" {
			items[key] = interfaces.MaskToken
			continue
		}
		items[key] = value
	}

	WriteJSON(w, http.StatusOK, models.SettingsSnapshot{
		Items:         items,
		ConfigVersion: snapshot.ConfigVersion,
		UpdatedAt:     snapshot.UpdatedAt,
	})
}

type settingsUpdateRequest struct {
	ConfigVersion string               `json:"config_version" validate:"required"`
	Items         []models.SettingItem `json:"items" validate:"required,min=1,dive"`
	ReloadNow     bool                 `json:"reload_now"`
}

func (h *SettingsHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.settings.Update(r.Context(), req.ConfigVersion, req.Items, interfaces.MaskToken, req.ReloadNow)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ValidateHandler handles POST /api/v1/system/config/validate: a dry
// run that reports issues without writing.
func (h *SettingsHandler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Items []models.SettingItem `json:"items"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	issues := h.settings.Validate(req.Items)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// SchemaHandler handles GET /api/v1/system/config/schema.
func (h *SettingsHandler) SchemaHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"groups": h.settings.GetSchema(),
	})
}

type fetchModelsRequest struct {
	BaseURL string `json:"base_url" validate:"omitempty,url"`
	APIKey  string `json:"api_key"`
}

// FetchModelsHandler handles POST /api/v1/system/config/fetch-models.
// It probes an OpenAI-compatible /models listing using the submitted
// credentials, falling back to stored settings. A masked key means
// "use the stored one".
func (h *SettingsHandler) FetchModelsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req fetchModelsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = h.settings.Get(r.Context(), "OPENAI_BASE_URL", "https://api.openai.com/v1")
	}
	apiKey := req.APIKey
	if apiKey == "" || apiKey == interfaces.MaskToken {
		apiKey = h.settings.Get(r.Context(), "OPENAI_API_KEY", "")
	}
	if apiKey == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "api_key is required and none is stored")
		return
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	resp, err := h.client.R().
		SetContext(r.Context()).
		SetAuthToken(apiKey).
		SetResult(&listing).
		Get(strings.TrimRight(baseURL, "/") + "/models")
	if err != nil {
		WriteError(w, http.StatusBadGateway, "internal_error", fmt.Sprintf("model listing failed: %v", err))
		return
	}
	if resp.IsError() {
		WriteError(w, http.StatusBadGateway, "internal_error",
			fmt.Sprintf("model listing failed: status %d", resp.StatusCode()))
		return
	}

	modelIDs := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		modelIDs = append(modelIDs, m.ID)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"base_url": baseURL,
		"models":   modelIDs,
		"count":    len(modelIDs),
	})
}

func (h *SettingsHandler) sensitiveKeys() map[string]bool {
	sensitive := make(map[string]bool)
	for _, group := range h.settings.GetSchema() {
		for _, field := range group.Fields {
			if field.IsSensitive {
				sensitive[field.Key] = true
			}
		}
	}
	return sensitive
}
