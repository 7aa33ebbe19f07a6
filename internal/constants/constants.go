package constants

import (
	"net/http"
	"time"
)

// Classification API defaults
const (
	DefaultBaseURL     = "http://localhost:18020"
	DefaultIntentPath  = "/api/intent"
	DefaultHealthPath  = "/healthz"
	DefaultCSVFile     = "assets/intents-pre-loaded.csv"
	DefaultReportDir   = "."
	ReportFilePrefix   = "intent_test_report_"
	ReportTimestampFmt = "2006-01-02 15:04:05"
)

// Time and Duration Constants
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultRequestDelay   = 500 * time.Millisecond
	DefaultHealthStatus   = http.StatusOK
)

// Usage endpoint defaults
const (
	DefaultUsageURL     = "https://openrouter.ai/api/v1/key"
	DefaultUsageKeyEnv  = "OPENROUTER_API_KEY"
	DefaultUsageTimeout = 15 * time.Second
)

// Report listing
const (
	MaxValidationFailuresShown = 5
)

// Database Constants
const (
	DefaultSQLitePath         = "intentrun.db"
	DefaultPostgresPort       = 5432
	DefaultPostgresSSLMode    = "disable"
	DefaultRunsTable          = "intent_runs"
	DefaultOutcomesTable      = "intent_outcomes"
	RunsSuffix                = "_runs"
	OutcomesSuffix            = "_outcomes"
	DefaultSQLiteMaxOpenConns = 1 // SQLite allows only one writer
	DefaultHistoryLimit       = 20
)

// Mock server defaults
const (
	DefaultMockAddr = ":18020"
)
