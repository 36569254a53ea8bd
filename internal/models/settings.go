package models

import "time"

// SettingDataType enumerates the value types the settings schema knows.
type SettingDataType string

const (
	SettingString  SettingDataType = "string"
	SettingInteger SettingDataType = "integer"
	SettingNumber  SettingDataType = "number"
	SettingBoolean SettingDataType = "boolean"
	SettingArray   SettingDataType = "array"
	SettingJSON    SettingDataType = "json"
	SettingTime    SettingDataType = "time"
)

// SettingField describes one known settings key: display metadata,
// typing, and validation constraints. Unknown keys get inferred schemas
// in the "uncategorized" category.
type SettingField struct {
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category"`
	DataType     SettingDataType `json:"data_type"`
	DefaultValue string          `json:"default_value,omitempty"`
	IsSensitive  bool            `json:"is_sensitive"`
	IsRequired   bool            `json:"is_required"`
	IsEditable   bool            `json:"is_editable"`
	DisplayOrder int             `json:"display_order"`

	// Validation constraints
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Options   []string `json:"options,omitempty"` // enum restriction
	Pattern   string   `json:"pattern,omitempty"` // regex for string/time values
	Delimiter string   `json:"delimiter,omitempty"`
}

// SettingItem is one key/value pair submitted for update.
type SettingItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SettingIssue is one per-field validation finding.
type SettingIssue struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// SettingsSnapshot is the read view of the settings store.
type SettingsSnapshot struct {
	Items         map[string]string `json:"items"`
	ConfigVersion string            `json:"config_version"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// SettingsUpdateResult reports the outcome of an optimistic update.
type SettingsUpdateResult struct {
	Success            bool     `json:"success"`
	NewConfigVersion   string   `json:"new_config_version"`
	AppliedCount       int      `json:"applied_count"`
	SkippedMaskedCount int      `json:"skipped_masked_count"`
	ReloadTriggered    bool     `json:"reload_triggered"`
	UpdatedKeys        []string `json:"updated_keys"`
	Warnings           []string `json:"warnings,omitempty"`
}

// SchemaGroup is one category of fields in the schema response.
type SchemaGroup struct {
	Category string         `json:"category"`
	Fields   []SettingField `json:"fields"`
}
