// Package experts implements the expert panel: logical model
// configuration, parallel fan-out with endpoint failover, and consensus
// reduction over heterogeneous model outputs.
package experts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/augur/internal/models"
)

// MaxModels caps the logical model set after aggregation.
const MaxModels = 10

// SettingsReader is the slice of the settings service the panel needs.
type SettingsReader interface {
	Get(ctx context.Context, key, fallback string) string
}

// usableKey rejects empty, placeholder, and too-short API keys.
func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || len(key) <= 10 {
		return false
	}
	lower := strings.ToLower(key)
	return !strings.HasPrefix(lower, "your_") && !strings.HasPrefix(lower, "your-")
}

// normalizeProvider maps a raw provider tag to the supported dialects.
// Anything unrecognized speaks the OpenAI-compatible wire format.
func normalizeProvider(raw string) models.ModelProvider {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return models.ProviderGemini
	case "claude", "anthropic":
		return models.ProviderClaude
	default:
		return models.ProviderOpenAICompatible
	}
}

// extractHostLabel derives a short display label from an endpoint URL.
func extractHostLabel(baseURL string) string {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	for _, prefix := range []string{"api.", "openai.", "gateway.", "chat."} {
		if strings.HasPrefix(host, prefix) {
			host = host[len(prefix):]
			break
		}
	}
	return strings.TrimPrefix(host, "www.")
}

func providerDefaultName(provider models.ModelProvider) string {
	switch provider {
	case models.ProviderGemini:
		return "Gemini"
	case models.ProviderClaude:
		return "Claude"
	default:
		return "OpenAI-Compatible"
	}
}

// fallbackName derives a logical name when model_name is absent: host
// of the first endpoint's base_url, else a provider default.
func fallbackName(provider models.ModelProvider, endpoints []models.ModelEndpoint) string {
	for _, ep := range endpoints {
		if host := extractHostLabel(ep.BaseURL); host != "" {
			return host
		}
	}
	return providerDefaultName(provider)
}

func parseFloatSetting(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBoolLoose(v interface{}, fallback bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

// singleEndpointModel wraps one credential into a one-endpoint logical
// model, used by the primary and numbered configuration sources.
func singleEndpointModel(sourceName string, provider models.ModelProvider, modelName, apiKey, baseURL, endpointID string, temperature *float64) models.ModelConfig {
	ep := models.ModelEndpoint{
		ID:          endpointID,
		APIKey:      strings.TrimSpace(apiKey),
		BaseURL:     strings.TrimSpace(baseURL),
		Priority:    0,
		Enabled:     true,
		Temperature: temperature,
		SourceName:  sourceName,
	}
	name := modelName
	if name == "" {
		name = fallbackName(provider, []models.ModelEndpoint{ep})
	}
	return models.ModelConfig{
		Name:      name,
		Provider:  provider,
		ModelName: modelName,
		Endpoints: []models.ModelEndpoint{ep},
	}
}

// parseRawEndpoint builds one endpoint from a JSON object, inheriting
// entry-level defaults. Endpoints without a usable key are absent.
func parseRawEndpoint(raw map[string]interface{}, fallbackID, inheritedBaseURL string, inheritedTemp *float64, inheritedVerifySSL *bool, sourceName string) *models.ModelEndpoint {
	apiKey, _ := raw["api_key"].(string)
	apiKey = strings.TrimSpace(apiKey)
	if !usableKey(apiKey) {
		return nil
	}

	ep := models.ModelEndpoint{
		ID:         fallbackID,
		APIKey:     apiKey,
		BaseURL:    inheritedBaseURL,
		Enabled:    parseBoolLoose(raw["enabled"], true),
		SourceName: sourceName,
	}
	if id, _ := raw["id"].(string); strings.TrimSpace(id) != "" {
		ep.ID = strings.TrimSpace(id)
	}
	if base, _ := raw["base_url"].(string); strings.TrimSpace(base) != "" {
		ep.BaseURL = strings.TrimSpace(base)
	}
	if p, ok := raw["priority"].(float64); ok {
		ep.Priority = int(p)
	}
	switch t := raw["temperature"].(type) {
	case float64:
		ep.Temperature = &t
	default:
		ep.Temperature = inheritedTemp
	}
	if v, present := raw["verify_ssl"]; present {
		verify := parseBoolLoose(v, true)
		ep.VerifySSL = &verify
	} else {
		ep.VerifySSL = inheritedVerifySSL
	}
	return &ep
}

// parseExtraEntry parses one EXTRA_AI_MODELS object. The entry may
// declare a nested endpoints array or be a flat single endpoint.
func parseExtraEntry(item map[string]interface{}, index int) *models.ModelConfig {
	providerRaw, _ := item["provider"].(string)
	provider := normalizeProvider(providerRaw)

	modelName, _ := item["model"].(string)
	if modelName == "" {
		modelName, _ = item["model_name"].(string)
	}
	modelName = strings.TrimSpace(modelName)

	sourceName, _ := item["name"].(string)
	sourceName = strings.TrimSpace(sourceName)

	inheritedBaseURL, _ := item["base_url"].(string)
	inheritedBaseURL = strings.TrimSpace(inheritedBaseURL)
	var inheritedTemp *float64
	if t, ok := item["temperature"].(float64); ok {
		inheritedTemp = &t
	}
	var inheritedVerifySSL *bool
	if v, present := item["verify_ssl"]; present {
		verify := parseBoolLoose(v, true)
		inheritedVerifySSL = &verify
	}

	var endpoints []models.ModelEndpoint
	if rawEndpoints, ok := item["endpoints"].([]interface{}); ok {
		for epIdx, rawEp := range rawEndpoints {
			epMap, ok := rawEp.(map[string]interface{})
			if !ok {
				continue
			}
			fallbackID := fmt.Sprintf("ep-%d-%d", index+1, epIdx+1)
			if ep := parseRawEndpoint(epMap, fallbackID, inheritedBaseURL, inheritedTemp, inheritedVerifySSL, sourceName); ep != nil {
				endpoints = append(endpoints, *ep)
			}
		}
	} else {
		fallbackID := fmt.Sprintf("ep-%d-1", index+1)
		if ep := parseRawEndpoint(item, fallbackID, inheritedBaseURL, inheritedTemp, inheritedVerifySSL, sourceName); ep != nil {
			endpoints = append(endpoints, *ep)
		}
	}
	if len(endpoints) == 0 {
		return nil
	}

	name := modelName
	if name == "" {
		name = sourceName
	}
	if name == "" {
		name = fallbackName(provider, endpoints)
	}
	return &models.ModelConfig{
		Name:      name,
		Provider:  provider,
		ModelName: modelName,
		Endpoints: endpoints,
	}
}

// ParseModelConfigs reads the current settings into the logical model
// set. Sources in order: primary Gemini entry, primary OpenAI entry,
// the EXTRA_AI_MODELS JSON array, numbered MODEL_N entries. Entries
// sharing a model_name merge into one logical model whose endpoint pool
// is the union sorted by priority descending.
func ParseModelConfigs(ctx context.Context, settings SettingsReader) []models.ModelConfig {
	var order []string
	groups := make(map[string][]models.ModelConfig)

	add := func(cfg models.ModelConfig) {
		key := cfg.ModelName
		if key == "" {
			key = cfg.Name
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], cfg)
	}

	// 1. Primary Gemini entry.
	if key := settings.Get(ctx, "GEMINI_API_KEY", ""); usableKey(key) {
		modelName := settings.Get(ctx, "GEMINI_MODEL", "gemini-2.0-flash")
		add(singleEndpointModel("Gemini", models.ProviderGemini, modelName, key, "",
			"gemini-primary", parseFloatSetting(settings.Get(ctx, "GEMINI_TEMPERATURE", ""))))
	}

	// 2. Primary OpenAI-compatible entry.
	if key := settings.Get(ctx, "OPENAI_API_KEY", ""); usableKey(key) {
		modelName := settings.Get(ctx, "OPENAI_MODEL", "gpt-4o-mini")
		add(singleEndpointModel("OpenAI", models.ProviderOpenAICompatible, modelName, key,
			settings.Get(ctx, "OPENAI_BASE_URL", ""),
			"openai-primary", parseFloatSetting(settings.Get(ctx, "OPENAI_TEMPERATURE", ""))))
	}

	// 3. EXTRA_AI_MODELS JSON array.
	if raw := strings.TrimSpace(settings.Get(ctx, "EXTRA_AI_MODELS", "")); raw != "" {
		var items []map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			for index, item := range items {
				if cfg := parseExtraEntry(item, index); cfg != nil {
					add(*cfg)
				}
			}
		}
	}

	// 4. Numbered MODEL_N entries.
	for i := 1; i <= MaxModels; i++ {
		key := settings.Get(ctx, fmt.Sprintf("MODEL_%d_API_KEY", i), "")
		if !usableKey(key) {
			continue
		}
		provider := normalizeProvider(settings.Get(ctx, fmt.Sprintf("MODEL_%d_PROVIDER", i), "openai"))
		modelName := settings.Get(ctx, fmt.Sprintf("MODEL_%d_NAME", i), "gpt-4o-mini")
		display := settings.Get(ctx, fmt.Sprintf("MODEL_%d_DISPLAY_NAME", i), fmt.Sprintf("Model-%d", i))
		add(singleEndpointModel(display, provider, modelName, key,
			settings.Get(ctx, fmt.Sprintf("MODEL_%d_BASE_URL", i), ""),
			fmt.Sprintf("model-%d-primary", i),
			parseFloatSetting(settings.Get(ctx, fmt.Sprintf("MODEL_%d_TEMPERATURE", i), ""))))
	}

	// Merge groups, endpoint pools sorted by priority descending.
	merged := make([]models.ModelConfig, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		var endpoints []models.ModelEndpoint
		for _, cfg := range group {
			endpoints = append(endpoints, cfg.Endpoints...)
		}
		sort.SliceStable(endpoints, func(i, j int) bool {
			return endpoints[i].Priority > endpoints[j].Priority
		})
		merged = append(merged, models.ModelConfig{
			Name:      key,
			Provider:  group[0].Provider,
			ModelName: key,
			Endpoints: endpoints,
		})
	}

	if len(merged) > MaxModels {
		merged = merged[:MaxModels]
	}
	return merged
}
