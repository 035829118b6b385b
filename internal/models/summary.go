package models

import "fmt"

// DailySummary is the layer-2 output: the aggregate view of one calendar day.
// Date uses DateKeyFormat.
type DailySummary struct {
	Date           string   `json:"date"`
	TicketCount    int      `json:"ticket_count"`
	KeyThemes      []string `json:"key_themes"`
	TrendAnalysis  string   `json:"trend_analysis"`
	CriticalIssues []string `json:"critical_issues"`
	Narrative      string   `json:"narrative"`

	// Fallback marks summaries produced without a successful model call.
	// Fallback summaries still feed the next day's trend context but are
	// never cached.
	Fallback bool `json:"fallback,omitempty"`
}

// NewFallbackSummary builds the degraded summary for a day whose model call
// failed. The ticket count is real since it comes from local data; the
// model-derived fields explain the gap instead of fabricating content.
func NewFallbackSummary(date string, ticketCount int, cause error) *DailySummary {
	return &DailySummary{
		Date:           date,
		TicketCount:    ticketCount,
		KeyThemes:      []string{},
		TrendAnalysis:  fmt.Sprintf("Summary unavailable: %v", cause),
		CriticalIssues: []string{},
		Narrative:      fmt.Sprintf("Automated summarization failed for %s. %d tickets were received on this day; see individual ticket analyses for detail.", date, ticketCount),
		Fallback:       true,
	}
}
