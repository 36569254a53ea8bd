// Package settings implements the runtime configuration service:
// schema metadata, validation, optimistic-versioned updates with the
// mask protocol, and hot reload over a pluggable backend.
package settings

import (
	"sort"
	"strings"

	"github.com/ternarybob/augur/internal/models"
)

// schemaVersion tags the field catalog; bump when fields change shape.
const schemaVersion = "1"

// timePattern is the default HH:MM constraint for time-typed fields.
const timePattern = `^([01]\d|2[0-3]):[0-5]\d$`

func f(v float64) *float64 { return &v }

// categoryOrder fixes the display order of schema categories.
var categoryOrder = []string{
	"ai_models", "data_sources", "search", "notifications", "scheduler", "uncategorized",
}

// knownFields is the settings catalog. Keys absent from it still load
// and store; they surface with inferred metadata under "uncategorized".
var knownFields = []models.SettingField{
	// AI models
	{Key: "GEMINI_API_KEY", Label: "Gemini API Key", Category: "ai_models", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 1},
	{Key: "GEMINI_MODEL", Label: "Gemini Model", Category: "ai_models", DataType: models.SettingString, DefaultValue: "gemini-2.0-flash", IsEditable: true, DisplayOrder: 2},
	{Key: "GEMINI_TEMPERATURE", Label: "Gemini Temperature", Category: "ai_models", DataType: models.SettingNumber, Min: f(0), Max: f(2), IsEditable: true, DisplayOrder: 3},
	{Key: "OPENAI_API_KEY", Label: "OpenAI API Key", Category: "ai_models", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 4},
	{Key: "OPENAI_MODEL", Label: "OpenAI Model", Category: "ai_models", DataType: models.SettingString, DefaultValue: "gpt-4o-mini", IsEditable: true, DisplayOrder: 5},
	{Key: "OPENAI_BASE_URL", Label: "OpenAI Base URL", Category: "ai_models", DataType: models.SettingString, IsEditable: true, DisplayOrder: 6},
	{Key: "OPENAI_TEMPERATURE", Label: "OpenAI Temperature", Category: "ai_models", DataType: models.SettingNumber, Min: f(0), Max: f(2), IsEditable: true, DisplayOrder: 7},
	{Key: "ANTHROPIC_API_KEY", Label: "Anthropic API Key", Category: "ai_models", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 8},
	{Key: "ANTHROPIC_MODEL", Label: "Anthropic Model", Category: "ai_models", DataType: models.SettingString, IsEditable: true, DisplayOrder: 9},
	{Key: "EXTRA_AI_MODELS", Label: "Extra AI Models", Description: "JSON array of additional model entries with endpoint pools", Category: "ai_models", DataType: models.SettingJSON, IsSensitive: true, IsEditable: true, DisplayOrder: 10},

	// Data sources
	{Key: "TUSHARE_TOKEN", Label: "Tushare Token", Category: "data_sources", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 1},
	{Key: "ALPACA_API_KEY", Label: "Alpaca API Key", Category: "data_sources", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 2},
	{Key: "ALPACA_SECRET_KEY", Label: "Alpaca Secret Key", Category: "data_sources", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 3},
	{Key: "AKSHARE_BASE_URL", Label: "AKShare Proxy URL", Category: "data_sources", DataType: models.SettingString, IsEditable: true, DisplayOrder: 4},

	// Search
	{Key: "TAVILY_API_KEYS", Label: "Tavily API Keys", Description: "Comma-separated key pool", Category: "search", DataType: models.SettingArray, Delimiter: ",", IsSensitive: true, IsEditable: true, DisplayOrder: 1},
	{Key: "SERPAPI_API_KEYS", Label: "SerpAPI Keys", Description: "Comma-separated key pool", Category: "search", DataType: models.SettingArray, Delimiter: ",", IsSensitive: true, IsEditable: true, DisplayOrder: 2},
	{Key: "SEARCH_MAX_RESULTS", Label: "Search Max Results", Category: "search", DataType: models.SettingInteger, Min: f(1), Max: f(20), DefaultValue: "5", IsEditable: true, DisplayOrder: 3},
	{Key: "SEARCH_RECENCY_DAYS", Label: "Search Recency Days", Category: "search", DataType: models.SettingInteger, Min: f(1), Max: f(30), DefaultValue: "7", IsEditable: true, DisplayOrder: 4},

	// Notifications
	{Key: "TELEGRAM_BOT_TOKEN", Label: "Telegram Bot Token", Category: "notifications", DataType: models.SettingString, IsSensitive: true, IsEditable: true, DisplayOrder: 1},
	{Key: "TELEGRAM_CHAT_ID", Label: "Telegram Chat ID", Category: "notifications", DataType: models.SettingString, IsEditable: true, DisplayOrder: 2},
	{Key: "WEBHOOK_URL", Label: "Webhook URL", Category: "notifications", DataType: models.SettingString, IsEditable: true, DisplayOrder: 3},
	{Key: "NOTIFY_ON_COMPLETION", Label: "Notify On Completion", Category: "notifications", DataType: models.SettingBoolean, DefaultValue: "true", IsEditable: true, DisplayOrder: 4},

	// Scheduler
	{Key: "SCHEDULE_ENABLED", Label: "Scheduler Enabled", Category: "scheduler", DataType: models.SettingBoolean, DefaultValue: "false", IsEditable: true, DisplayOrder: 1},
	{Key: "SCHEDULE_CRON", Label: "Schedule Cron", Description: "Cron expression for batch analysis", Category: "scheduler", DataType: models.SettingString, DefaultValue: "30 8 * * 1-5", IsEditable: true, DisplayOrder: 2},
	{Key: "SCHEDULE_TIME", Label: "Schedule Time", Category: "scheduler", DataType: models.SettingTime, Pattern: timePattern, DefaultValue: "08:30", IsEditable: true, DisplayOrder: 3},
	{Key: "STOCK_LIST", Label: "Watchlist Symbols", Description: "Comma-separated symbols analyzed by the scheduler", Category: "scheduler", DataType: models.SettingArray, Delimiter: ",", IsEditable: true, DisplayOrder: 4},
	{Key: "BATCH_REPORT_TYPE", Label: "Batch Report Type", Category: "scheduler", DataType: models.SettingString, Options: []string{"simple", "full"}, DefaultValue: "full", IsEditable: true, DisplayOrder: 5},
}

var fieldIndex = func() map[string]models.SettingField {
	index := make(map[string]models.SettingField, len(knownFields))
	for _, field := range knownFields {
		index[field.Key] = field
	}
	return index
}()

// sensitiveNameMarkers flag unknown keys that look secret-bearing.
var sensitiveNameMarkers = []string{"KEY", "TOKEN", "SECRET", "PASSWORD"}

// FieldFor returns the schema field for a key, inferring metadata for
// keys outside the catalog.
func FieldFor(key string) models.SettingField {
	if field, ok := fieldIndex[key]; ok {
		return field
	}

	field := models.SettingField{
		Key:        key,
		Label:      key,
		Category:   "uncategorized",
		DataType:   models.SettingString,
		IsEditable: true,
	}
	upper := strings.ToUpper(key)
	for _, marker := range sensitiveNameMarkers {
		if strings.Contains(upper, marker) {
			field.IsSensitive = true
			break
		}
	}
	return field
}

// SensitiveKeys returns the catalog keys flagged sensitive.
func SensitiveKeys() map[string]bool {
	out := make(map[string]bool)
	for _, field := range knownFields {
		if field.IsSensitive {
			out[field.Key] = true
		}
	}
	return out
}

// SchemaGroups returns the catalog grouped by category in display order.
func SchemaGroups() []models.SchemaGroup {
	byCategory := make(map[string][]models.SettingField)
	for _, field := range knownFields {
		byCategory[field.Category] = append(byCategory[field.Category], field)
	}

	groups := make([]models.SchemaGroup, 0, len(byCategory))
	for _, category := range categoryOrder {
		fields, ok := byCategory[category]
		if !ok {
			continue
		}
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].DisplayOrder < fields[j].DisplayOrder
		})
		groups = append(groups, models.SchemaGroup{Category: category, Fields: fields})
	}
	return groups
}
