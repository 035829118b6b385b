package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// -------------------------------------------------------------------------
// Executive report schema
// -------------------------------------------------------------------------

// Period bounds the reporting window. Both fields use DateKeyFormat.
type Period struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// HealthSnapshot is the report's at-a-glance assessment of customer health.
type HealthSnapshot struct {
	OverallHealth      string   `json:"overall_health"`
	TicketVolumeTrend  string   `json:"ticket_volume_trend"`
	ComplaintRateTrend string   `json:"complaint_rate_trend"`
	TopDrivers         []string `json:"top_drivers"`
}

// KeyInsight is one cross-day finding surfaced by the report, ranked by
// severity and backed by evidence from the daily summaries.
type KeyInsight struct {
	Insight        string `json:"insight"`
	Severity       string `json:"severity"`
	Evidence       string `json:"evidence"`
	CustomerImpact string `json:"customer_impact"`
}

// RecommendedAction is one concrete follow-up the report proposes.
type RecommendedAction struct {
	Action          string `json:"action"`
	Priority        string `json:"priority"`
	EstimatedImpact string `json:"estimated_impact"`
	SuggestedOwner  string `json:"suggested_owner"`
	SuccessMetrics  string `json:"success_metrics"`
}

// CustomerQuote is a representative quote attributed to a source ticket.
// Quotes whose ticket id cannot be traced back to the input summaries are
// dropped during normalization, so TicketID is always verifiable here.
type CustomerQuote struct {
	Quote    string `json:"quote" validate:"required"`
	TicketID string `json:"ticket_id" validate:"required"`
}

// PeriodComparison contrasts the reporting window against the preceding one.
type PeriodComparison struct {
	Improved     []string `json:"improved"`
	Deteriorated []string `json:"deteriorated"`
	StayedSame   []string `json:"stayed_same"`
}

// ExecutiveReport is the layer-3 output: the single document synthesized from
// every daily summary in the window.
type ExecutiveReport struct {
	Period             Period              `json:"period" validate:"required"`
	ExecutiveSummary   string              `json:"executive_summary" validate:"required"`
	Health             HealthSnapshot      `json:"health_snapshot"`
	KeyInsights        []KeyInsight        `json:"key_insights"`
	RecommendedActions []RecommendedAction `json:"recommended_actions"`
	CustomerQuotes     []CustomerQuote     `json:"customer_voice" validate:"dive"`
	Comparison         PeriodComparison    `json:"period_comparison"`

	// DailySummaries carries the layer-2 inputs so the rendered report is
	// self-contained.
	DailySummaries []DailySummary `json:"daily_summaries"`

	// Fallback marks reports produced without a successful model call.
	Fallback bool `json:"fallback,omitempty"`
}

var reportValidator = validator.New()

// Validate checks the report satisfies its structural constraints.
func (r *ExecutiveReport) Validate() error {
	if err := reportValidator.Struct(r); err != nil {
		return fmt.Errorf("invalid executive report: %w", err)
	}
	return nil
}

// NewFallbackReport builds the minimal report used when synthesis fails. It
// carries the real period bounds and summaries so the rendered document still
// shows the underlying daily data.
func NewFallbackReport(period Period, summaries []DailySummary, cause error) *ExecutiveReport {
	return &ExecutiveReport{
		Period:           period,
		ExecutiveSummary: fmt.Sprintf("Report generation failed: %v. Daily summaries for the period are included below.", cause),
		Health: HealthSnapshot{
			OverallHealth:      "unknown",
			TicketVolumeTrend:  "unknown",
			ComplaintRateTrend: "unknown",
			TopDrivers:         []string{},
		},
		KeyInsights:        []KeyInsight{},
		RecommendedActions: []RecommendedAction{},
		CustomerQuotes:     []CustomerQuote{},
		Comparison: PeriodComparison{
			Improved:     []string{},
			Deteriorated: []string{},
			StayedSame:   []string{},
		},
		DailySummaries: summaries,
		Fallback:       true,
	}
}
