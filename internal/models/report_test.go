package models

import (
	"fmt"
	"strings"
	"testing"
)

func validReport() *ExecutiveReport {
	return &ExecutiveReport{
		Period:           Period{Start: "2025-01-01", End: "2025-01-07"},
		ExecutiveSummary: "Login failures dominated the week.",
		CustomerQuotes: []CustomerQuote{
			{Quote: "locked out again", TicketID: "ticket_4"},
		},
	}
}

func TestExecutiveReportValidate(t *testing.T) {
	if err := validReport().Validate(); err != nil {
		t.Errorf("Validate() rejected a well-formed report: %v", err)
	}

	missing := validReport()
	missing.ExecutiveSummary = ""
	if err := missing.Validate(); err == nil {
		t.Error("Validate() should reject a report without an executive summary")
	}

	unbounded := validReport()
	unbounded.Period = Period{}
	if err := unbounded.Validate(); err == nil {
		t.Error("Validate() should reject a report without period bounds")
	}

	untraced := validReport()
	untraced.CustomerQuotes = []CustomerQuote{{Quote: "no source ticket"}}
	if err := untraced.Validate(); err == nil {
		t.Error("Validate() should reject a quote without a ticket id")
	}
}

func TestNewFallbackReportValidates(t *testing.T) {
	summaries := []DailySummary{{Date: "2025-01-01", TicketCount: 4}}
	report := NewFallbackReport(Period{Start: "2025-01-01", End: "2025-01-02"}, summaries, fmt.Errorf("model unavailable"))

	if err := report.Validate(); err != nil {
		t.Errorf("fallback report should satisfy the structural constraints: %v", err)
	}
	if !report.Fallback {
		t.Error("fallback report must carry the fallback flag")
	}
	if !strings.Contains(report.ExecutiveSummary, "model unavailable") {
		t.Error("fallback summary should explain the failure")
	}
	if len(report.DailySummaries) != 1 {
		t.Error("fallback report should carry the input summaries")
	}
}
