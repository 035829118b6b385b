package models

import "time"

// Run status values recorded in the ledger.
const (
	RunStatusCompleted = "completed"
	RunStatusDegraded  = "degraded"
	RunStatusFailed    = "failed"
)

// RunRecord is the persisted ledger entry for one pipeline execution.
type RunRecord struct {
	ID            string        `json:"id" badgerhold:"key"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	Duration      time.Duration `json:"duration"`
	PeriodStart   string        `json:"period_start"`
	PeriodEnd     string        `json:"period_end"`
	TicketCount   int           `json:"ticket_count"`
	AnalysisCount int           `json:"analysis_count"`
	SummaryCount  int           `json:"summary_count"`
	FallbackCount int           `json:"fallback_count"`
	ReportPath    string        `json:"report_path"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
}
