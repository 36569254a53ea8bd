package common

import (
	"github.com/google/uuid"
)

// NewTaskID generates a unique analysis task ID
// Format: task_<uuid>
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewReportID generates a unique analysis report ID
// Format: rpt_<uuid>
func NewReportID() string {
	return "rpt_" + uuid.New().String()
}
