package domain

import (
	"strings"
	"time"
)

// RestoreRequest names the dump to restore: either an uploaded file or a
// path relative to the project root.
type RestoreRequest struct {
	UploadPath       string
	UploadName       string
	ServerPath       string
	IgnoreErrors     bool
	PreRestoreBackup bool
}

// ResolvedSource is a dump location that passed path validation.
type ResolvedSource struct {
	Path   string
	Root   string
	Gzip   bool
	Upload bool
}

// IsGzipName reports whether name carries a .gz suffix, case-insensitively.
func IsGzipName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gz")
}

// RestoreJob is the in-flight record of a single restore attempt.
type RestoreJob struct {
	ID                 string
	Source             ResolvedSource
	IgnoreErrors       bool
	StartedAt          time.Time
	StatementsExecuted int
	TablesRestored     int
	RecordsRestored    int64
	ErrorCount         int
	Errors             []string
}

type RestoreResult struct {
	Success            bool     `json:"success"`
	TablesRestored     int      `json:"tables_restored"`
	RecordsRestored    int64    `json:"records_restored"`
	StatementsExecuted int      `json:"statements_executed"`
	ExecutionSeconds   float64  `json:"execution_time"`
	Warnings           string   `json:"warnings,omitempty"`
	ErrorDetails       []string `json:"error_details"`
	SafetyBackup       string   `json:"safety_backup,omitempty"`
}

type DropResult struct {
	Success       bool     `json:"success"`
	TablesDropped int      `json:"tables_dropped"`
	Tables        []string `json:"tables"`
}
