package models

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Wire-observable error kinds. Handlers map these to HTTP statuses;
// everything else is internal_error / 500.
var (
	ErrNotFound          = errors.New("not_found")
	ErrUnsupportedPeriod = errors.New("unsupported_period")
	ErrUnsupportedMarket = errors.New("unsupported_market")
	ErrAnalysisFailed    = errors.New("analysis_failed")
	ErrAllSourcesFailed  = errors.New("all data sources failed")
)

// DuplicateTaskError signals a dedupe collision on submit. It carries
// the id of the task already in flight for the same symbol.
type DuplicateTaskError struct {
	StockCode      string
	ExistingTaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task for %s (existing: %s)", e.StockCode, e.ExistingTaskID)
}

// VersionConflictError signals an optimistic-lock miss on a settings
// update. CurrentVersion is the version the caller must re-read.
type VersionConflictError struct {
	SubmittedVersion string
	CurrentVersion   string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("config version conflict: submitted %s, current %s", e.SubmittedVersion, e.CurrentVersion)
}

// ValidationFailedError carries the per-field issues of a rejected
// settings update.
type ValidationFailedError struct {
	Issues []SettingIssue
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %d issues", len(e.Issues))
}

// TruncateError bounds an error string for attachment to lifecycle
// events and task records.
func TruncateError(msg string, limit int) string {
	if limit <= 0 {
		limit = 200
	}
	if len(msg) <= limit {
		return msg
	}
	// Back off to a rune boundary so multi-byte messages stay valid UTF-8.
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
