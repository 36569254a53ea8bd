package settings

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/augur/internal/models"
)

// ValidateItems checks submitted items against the schema. current is
// the merged view used for cross-field rules; it may be nil. Warnings
// are advisory and never block an update.
func ValidateItems(items []models.SettingItem, current map[string]string) (issues []models.SettingIssue, warnings []string) {
	merged := make(map[string]string, len(current)+len(items))
	for k, v := range current {
		merged[k] = v
	}
	for _, item := range items {
		merged[item.Key] = item.Value
	}

	for _, item := range items {
		fieldIssues, fieldWarnings := validateField(item)
		issues = append(issues, fieldIssues...)
		warnings = append(warnings, fieldWarnings...)
	}

	issues = append(issues, validateCrossField(merged)...)
	return issues, warnings
}

func validateField(item models.SettingItem) (issues []models.SettingIssue, warnings []string) {
	if item.Key == "" {
		return []models.SettingIssue{{Key: item.Key, Message: "key must not be empty"}}, nil
	}
	if strings.ContainsAny(item.Value, "\n\r") {
		return []models.SettingIssue{{Key: item.Key, Message: "value must not contain newlines"}}, nil
	}

	field := FieldFor(item.Key)
	if item.Value == "" {
		if field.IsRequired {
			issues = append(issues, models.SettingIssue{Key: item.Key, Message: "value is required"})
		}
		return issues, nil
	}

	switch field.DataType {
	case models.SettingInteger:
		n, err := strconv.ParseInt(item.Value, 10, 64)
		if err != nil {
			return append(issues, models.SettingIssue{Key: item.Key, Message: "value must be an integer"}), nil
		}
		issues = append(issues, checkRange(item.Key, float64(n), field)...)

	case models.SettingNumber:
		n, err := strconv.ParseFloat(item.Value, 64)
		if err != nil {
			return append(issues, models.SettingIssue{Key: item.Key, Message: "value must be a number"}), nil
		}
		issues = append(issues, checkRange(item.Key, n, field)...)

	case models.SettingBoolean:
		lower := strings.ToLower(item.Value)
		if lower != "true" && lower != "false" {
			issues = append(issues, models.SettingIssue{Key: item.Key, Message: "value must be true or false"})
		}

	case models.SettingTime:
		pattern := field.Pattern
		if pattern == "" {
			pattern = timePattern
		}
		if matched, err := regexp.MatchString(pattern, item.Value); err != nil || !matched {
			issues = append(issues, models.SettingIssue{Key: item.Key, Message: "value must be a time in HH:MM format"})
		}

	case models.SettingJSON:
		if item.Key == "EXTRA_AI_MODELS" {
			modelIssues, modelWarnings := validateExtraModels(item.Value)
			issues = append(issues, modelIssues...)
			warnings = append(warnings, modelWarnings...)
		} else if !json.Valid([]byte(item.Value)) {
			issues = append(issues, models.SettingIssue{Key: item.Key, Message: "value must be valid JSON"})
		}

	case models.SettingString, models.SettingArray:
		if field.Pattern != "" {
			if matched, err := regexp.MatchString(field.Pattern, item.Value); err != nil || !matched {
				issues = append(issues, models.SettingIssue{Key: item.Key, Message: fmt.Sprintf("value does not match pattern %s", field.Pattern)})
			}
		}
	}

	if len(field.Options) > 0 {
		found := false
		for _, option := range field.Options {
			if item.Value == option {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, models.SettingIssue{Key: item.Key, Message: fmt.Sprintf("value must be one of: %s", strings.Join(field.Options, ", "))})
		}
	}

	return issues, warnings
}

func checkRange(key string, n float64, field models.SettingField) []models.SettingIssue {
	var issues []models.SettingIssue
	if field.Min != nil && n < *field.Min {
		issues = append(issues, models.SettingIssue{Key: key, Message: fmt.Sprintf("value must be >= %g", *field.Min)})
	}
	if field.Max != nil && n > *field.Max {
		issues = append(issues, models.SettingIssue{Key: key, Message: fmt.Sprintf("value must be <= %g", *field.Max)})
	}
	return issues
}

// validateExtraModels structurally validates the EXTRA_AI_MODELS array:
// every entry needs provider and model; endpoint pools must be
// non-empty with per-endpoint api keys; temperatures stay in [0,2]; a
// model whose endpoints are all disabled is rejected.
func validateExtraModels(value string) (issues []models.SettingIssue, warnings []string) {
	const key = "EXTRA_AI_MODELS"

	var entries []map[string]interface{}
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		return []models.SettingIssue{{Key: key, Message: "value must be a JSON array of model objects"}}, nil
	}

	for i, entry := range entries {
		label := fmt.Sprintf("entry %d", i+1)

		if s, _ := entry["provider"].(string); strings.TrimSpace(s) == "" {
			issues = append(issues, models.SettingIssue{Key: key, Message: label + ": provider is required"})
		}
		if s, _ := entry["model"].(string); strings.TrimSpace(s) == "" {
			issues = append(issues, models.SettingIssue{Key: key, Message: label + ": model is required"})
		}

		if tempIssue := checkTemperature(entry["temperature"], key, label); tempIssue != nil {
			issues = append(issues, *tempIssue)
		}
		if w := checkVerifySSL(entry["verify_ssl"], key, label, &issues); w != "" {
			warnings = append(warnings, w)
		}

		rawEndpoints, hasEndpoints := entry["endpoints"]
		if !hasEndpoints {
			if s, _ := entry["api_key"].(string); strings.TrimSpace(s) == "" {
				issues = append(issues, models.SettingIssue{Key: key, Message: label + ": api_key is required when no endpoints are declared"})
			}
			continue
		}

		endpoints, ok := rawEndpoints.([]interface{})
		if !ok || len(endpoints) == 0 {
			issues = append(issues, models.SettingIssue{Key: key, Message: label + ": endpoints must be a non-empty array"})
			continue
		}

		anyEnabled := false
		for j, rawEndpoint := range endpoints {
			endpoint, ok := rawEndpoint.(map[string]interface{})
			if !ok {
				issues = append(issues, models.SettingIssue{Key: key, Message: fmt.Sprintf("%s endpoint %d: must be an object", label, j+1)})
				continue
			}
			if s, _ := endpoint["api_key"].(string); strings.TrimSpace(s) == "" {
				issues = append(issues, models.SettingIssue{Key: key, Message: fmt.Sprintf("%s endpoint %d: api_key is required", label, j+1)})
			}
			if tempIssue := checkTemperature(endpoint["temperature"], key, fmt.Sprintf("%s endpoint %d", label, j+1)); tempIssue != nil {
				issues = append(issues, *tempIssue)
			}
			if w := checkVerifySSL(endpoint["verify_ssl"], key, fmt.Sprintf("%s endpoint %d", label, j+1), &issues); w != "" {
				warnings = append(warnings, w)
			}
			if enabled, ok := endpoint["enabled"].(bool); !ok || enabled {
				anyEnabled = true
			}
		}
		if !anyEnabled {
			issues = append(issues, models.SettingIssue{Key: key, Message: label + ": all endpoints are disabled"})
		}
	}

	return issues, warnings
}

func checkTemperature(raw interface{}, key, label string) *models.SettingIssue {
	if raw == nil {
		return nil
	}
	n, ok := raw.(float64)
	if !ok {
		return &models.SettingIssue{Key: key, Message: label + ": temperature must be a number"}
	}
	if n < 0 || n > 2 {
		return &models.SettingIssue{Key: key, Message: label + ": temperature must be in [0,2]"}
	}
	return nil
}

// checkVerifySSL enforces boolean verify_ssl, downgrading string
// booleans to a deprecation warning.
func checkVerifySSL(raw interface{}, key, label string, issues *[]models.SettingIssue) (warning string) {
	switch t := raw.(type) {
	case nil, bool:
		return ""
	case string:
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "true" || lower == "false" {
			return fmt.Sprintf("%s: string verify_ssl is deprecated, use a JSON boolean", label)
		}
		*issues = append(*issues, models.SettingIssue{Key: key, Message: label + ": verify_ssl must be a boolean"})
		return ""
	default:
		*issues = append(*issues, models.SettingIssue{Key: key, Message: label + ": verify_ssl must be a boolean"})
		return ""
	}
}

// validateCrossField enforces relations between keys over the merged
// settings view.
func validateCrossField(merged map[string]string) []models.SettingIssue {
	var issues []models.SettingIssue
	if merged["TELEGRAM_BOT_TOKEN"] != "" && merged["TELEGRAM_CHAT_ID"] == "" {
		issues = append(issues, models.SettingIssue{
			Key:     "TELEGRAM_CHAT_ID",
			Message: "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set",
		})
	}
	return issues
}
