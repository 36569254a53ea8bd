package settings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/augur/internal/models"
)

func issuesFor(t *testing.T, key, value string) []models.SettingIssue {
	t.Helper()
	issues, _ := ValidateItems([]models.SettingItem{{Key: key, Value: value}}, nil)
	return issues
}

func TestValidateScalarFields(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"valid integer", "SEARCH_MAX_RESULTS", "5", false},
		{"integer below min", "SEARCH_MAX_RESULTS", "0", true},
		{"integer above max", "SEARCH_MAX_RESULTS", "50", true},
		{"integer not numeric", "SEARCH_MAX_RESULTS", "five", true},
		{"valid number", "GEMINI_TEMPERATURE", "0.7", false},
		{"number above max", "GEMINI_TEMPERATURE", "2.5", true},
		{"boolean true", "SCHEDULE_ENABLED", "true", false},
		{"boolean mixed case", "SCHEDULE_ENABLED", "TRUE", false},
		{"boolean invalid", "SCHEDULE_ENABLED", "yes", true},
		{"valid time", "SCHEDULE_TIME", "08:30", false},
		{"time out of range", "SCHEDULE_TIME", "25:00", true},
		{"time wrong shape", "SCHEDULE_TIME", "8am", true},
		{"enum valid", "BATCH_REPORT_TYPE", "simple", false},
		{"enum invalid", "BATCH_REPORT_TYPE", "detailed", true},
		{"plain string", "OPENAI_MODEL", "gpt-4o-mini", false},
		{"empty optional", "OPENAI_BASE_URL", "", false},
		{"unknown key accepted", "SOME_CUSTOM_FLAG", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := issuesFor(t, tt.key, tt.value)
			if tt.wantErr {
				assert.NotEmpty(t, issues)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestValidateRejectsNewlines(t *testing.T) {
	issues := issuesFor(t, "OPENAI_MODEL", "gpt-4o\nmini")
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "newline")
}

func TestValidateExtraModels(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{"valid flat entry", `[{"provider": "openai", "model": "m", "api_key": "k"}]`, ""},
		{"valid nested endpoints", `[{"provider": "openai", "model": "m", "endpoints": [{"api_key": "k", "priority": 1}]}]`, ""},
		{"not an array", `{"provider": "openai"}`, "JSON array"},
		{"missing provider", `[{"model": "m", "api_key": "k"}]`, "provider is required"},
		{"missing model", `[{"provider": "openai", "api_key": "k"}]`, "model is required"},
		{"no api key without endpoints", `[{"provider": "openai", "model": "m"}]`, "api_key is required"},
		{"empty endpoints", `[{"provider": "openai", "model": "m", "endpoints": []}]`, "non-empty"},
		{"endpoint without api key", `[{"provider": "openai", "model": "m", "endpoints": [{"priority": 1}]}]`, "api_key is required"},
		{"temperature out of range", `[{"provider": "openai", "model": "m", "api_key": "k", "temperature": 3.0}]`, "temperature"},
		{"verify_ssl not boolean", `[{"provider": "openai", "model": "m", "api_key": "k", "verify_ssl": 1}]`, "verify_ssl"},
		{"all endpoints disabled", `[{"provider": "openai", "model": "m", "endpoints": [{"api_key": "k", "enabled": false}]}]`, "all endpoints are disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := issuesFor(t, "EXTRA_AI_MODELS", tt.value)
			if tt.wantErr == "" {
				assert.Empty(t, issues)
				return
			}
			require.NotEmpty(t, issues)
			found := false
			for _, issue := range issues {
				if issue.Key == "EXTRA_AI_MODELS" && strings.Contains(issue.Message, tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "no issue mentioning %q in %v", tt.wantErr, issues)
		})
	}
}

func TestValidateExtraModelsStringVerifySSLWarns(t *testing.T) {
	issues, warnings := ValidateItems([]models.SettingItem{{
		Key:   "EXTRA_AI_MODELS",
		Value: `[{"provider": "openai", "model": "m", "api_key": "k", "verify_ssl": "false"}]`,
	}}, nil)

	assert.Empty(t, issues)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "deprecated")
}

func TestValidateTelegramCrossField(t *testing.T) {
	issues, _ := ValidateItems([]models.SettingItem{
		{Key: "TELEGRAM_BOT_TOKEN", Value: "123456:token"},
	}, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, "TELEGRAM_CHAT_ID", issues[0].Key)

	// Chat id may come from the stored settings rather than the update.
	issues, _ = ValidateItems([]models.SettingItem{
		{Key: "TELEGRAM_BOT_TOKEN", Value: "123456:token"},
	}, map[string]string{"TELEGRAM_CHAT_ID": "-100200300"})
	assert.Empty(t, issues)

	// Both in the same update also passes.
	issues, _ = ValidateItems([]models.SettingItem{
		{Key: "TELEGRAM_BOT_TOKEN", Value: "123456:token"},
		{Key: "TELEGRAM_CHAT_ID", Value: "-100200300"},
	}, nil)
	assert.Empty(t, issues)
}

func TestFieldForInfersUnknownKeys(t *testing.T) {
	field := FieldFor("MY_VENDOR_API_KEY")
	assert.Equal(t, "uncategorized", field.Category)
	assert.True(t, field.IsSensitive)

	field = FieldFor("DISPLAY_LANGUAGE")
	assert.False(t, field.IsSensitive)
}

func TestSchemaGroupsOrdering(t *testing.T) {
	groups := SchemaGroups()
	require.NotEmpty(t, groups)
	assert.Equal(t, "ai_models", groups[0].Category)

	for _, group := range groups {
		for i := 1; i < len(group.Fields); i++ {
			assert.LessOrEqual(t, group.Fields[i-1].DisplayOrder, group.Fields[i].DisplayOrder)
		}
	}
}

func TestSensitiveKeysCoverSecrets(t *testing.T) {
	sensitive := SensitiveKeys()
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "TUSHARE_TOKEN", "TAVILY_API_KEYS", "TELEGRAM_BOT_TOKEN", "EXTRA_AI_MODELS"} {
		assert.True(t, sensitive[key], "%s should be sensitive", key)
	}
	assert.False(t, sensitive["OPENAI_MODEL"])
}
