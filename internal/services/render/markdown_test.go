package render

import (
	"strings"
	"testing"

	"github.com/ternarybob/relatio/internal/models"
)

func sampleReport() *models.ExecutiveReport {
	return &models.ExecutiveReport{
		Period:           models.Period{Start: "2025-01-01", End: "2025-01-07"},
		ExecutiveSummary: "Login failures drove complaint volume up sharply.",
		Health: models.HealthSnapshot{
			OverallHealth:      "concerning",
			TicketVolumeTrend:  "+40%",
			ComplaintRateTrend: "+12%",
			TopDrivers:         []string{"login", "billing"},
		},
		KeyInsights: []models.KeyInsight{
			{Insight: "Auth regressions cluster after deploys", Severity: "high", Evidence: "spike on Jan 3", CustomerImpact: "lockouts"},
		},
		RecommendedActions: []models.RecommendedAction{
			{Action: "Add login smoke test", Priority: "immediate", EstimatedImpact: "high", SuggestedOwner: "platform", SuccessMetrics: "error rate"},
		},
		CustomerQuotes: []models.CustomerQuote{
			{Quote: "locked out for two days", TicketID: "ticket_12"},
		},
		Comparison: models.PeriodComparison{
			Improved:     []string{"response time"},
			Deteriorated: []string{"login reliability"},
			StayedSame:   []string{},
		},
		DailySummaries: []models.DailySummary{
			{
				Date:           "2025-01-01",
				TicketCount:    9,
				KeyThemes:      []string{"login"},
				TrendAnalysis:  "baseline",
				CriticalIssues: []string{"ticket_12 locked out"},
				Narrative:      "A quiet start.",
			},
		},
	}
}

func TestMarkdownRendersAllSections(t *testing.T) {
	md := Markdown(sampleReport())

	wantFragments := []string{
		"# Support Ticket Analysis Report",
		"**Period:** 2025-01-01 to 2025-01-07",
		"## Executive Summary",
		"Login failures drove complaint volume up sharply.",
		"## Health Snapshot",
		"- **Overall Health:** concerning",
		"## Key Insights",
		"### Insight 1: Auth regressions cluster after deploys",
		"## Recommended Actions",
		"### Action 1: Add login smoke test",
		"## Customer Voice",
		"> locked out for two days (ticket_12)",
		"## Period Comparison",
		"### Improved",
		"### Deteriorated",
		"## Daily Summaries",
		"### 2025-01-01 (9 tickets)",
	}

	for _, fragment := range wantFragments {
		if !strings.Contains(md, fragment) {
			t.Errorf("Markdown() missing fragment %q", fragment)
		}
	}

	// Empty comparison buckets are skipped entirely
	if strings.Contains(md, "### Stayed the Same") {
		t.Error("Markdown() should omit empty comparison sections")
	}
}

func TestMarkdownFillsMissingValues(t *testing.T) {
	report := sampleReport()
	report.Health.TicketVolumeTrend = ""
	report.KeyInsights[0].Evidence = ""

	md := Markdown(report)

	if !strings.Contains(md, "- **Ticket Volume Trend:** N/A") {
		t.Error("Markdown() should substitute N/A for a missing trend")
	}
	if !strings.Contains(md, "- **Evidence:** N/A") {
		t.Error("Markdown() should substitute N/A for missing evidence")
	}
}

func TestHTMLWrapsConvertedMarkdown(t *testing.T) {
	html, err := HTML(sampleReport())
	if err != nil {
		t.Fatalf("HTML() failed: %v", err)
	}

	doc := string(html)
	for _, fragment := range []string{
		"<!DOCTYPE html>",
		"<h1",
		"Support Ticket Analysis Report",
		"<blockquote>",
		"ticket_12",
	} {
		if !strings.Contains(doc, fragment) {
			t.Errorf("HTML() missing fragment %q", fragment)
		}
	}
}

func TestPDFProducesDocument(t *testing.T) {
	pdf, err := PDF(sampleReport())
	if err != nil {
		t.Fatalf("PDF() failed: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("PDF() produced an empty document")
	}
	if !strings.HasPrefix(string(pdf[:5]), "%PDF-") {
		t.Errorf("PDF() output does not start with the PDF magic, got %q", pdf[:5])
	}
}
