// Package render turns an executive report into its output formats.
// Rendering is pure formatting: nothing here calls the model service or
// touches the cache.
package render

import (
	"fmt"
	"strings"

	"github.com/ternarybob/relatio/internal/models"
)

// Markdown renders the report as a Markdown document: period, executive
// summary, health snapshot, insights, actions, customer voice, comparison,
// then the per-day appendix.
func Markdown(report *models.ExecutiveReport) string {
	var b strings.Builder

	b.WriteString("# Support Ticket Analysis Report\n")
	fmt.Fprintf(&b, "**Period:** %s to %s\n\n", report.Period.Start, report.Period.End)

	b.WriteString("## Executive Summary\n")
	b.WriteString(report.ExecutiveSummary)
	b.WriteString("\n\n")

	b.WriteString("## Health Snapshot\n")
	fmt.Fprintf(&b, "- **Overall Health:** %s\n", report.Health.OverallHealth)
	fmt.Fprintf(&b, "- **Ticket Volume Trend:** %s\n", orNA(report.Health.TicketVolumeTrend))
	fmt.Fprintf(&b, "- **Complaint Rate Trend:** %s\n", orNA(report.Health.ComplaintRateTrend))
	if len(report.Health.TopDrivers) > 0 {
		b.WriteString("- **Top Drivers:**\n")
		for _, driver := range report.Health.TopDrivers {
			fmt.Fprintf(&b, "  - %s\n", driver)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Key Insights\n")
	for i, insight := range report.KeyInsights {
		fmt.Fprintf(&b, "### Insight %d: %s\n", i+1, insight.Insight)
		fmt.Fprintf(&b, "- **Severity:** %s\n", insight.Severity)
		fmt.Fprintf(&b, "- **Evidence:** %s\n", orNA(insight.Evidence))
		fmt.Fprintf(&b, "- **Customer Impact:** %s\n\n", orNA(insight.CustomerImpact))
	}

	b.WriteString("## Recommended Actions\n")
	for i, action := range report.RecommendedActions {
		fmt.Fprintf(&b, "### Action %d: %s\n", i+1, action.Action)
		fmt.Fprintf(&b, "- **Priority:** %s\n", action.Priority)
		fmt.Fprintf(&b, "- **Estimated Impact:** %s\n", action.EstimatedImpact)
		fmt.Fprintf(&b, "- **Suggested Owner:** %s\n", orNA(action.SuggestedOwner))
		fmt.Fprintf(&b, "- **Success Metrics:** %s\n\n", orNA(action.SuccessMetrics))
	}

	if len(report.CustomerQuotes) > 0 {
		b.WriteString("## Customer Voice\n")
		for _, quote := range report.CustomerQuotes {
			fmt.Fprintf(&b, "> %s (%s)\n", quote.Quote, quote.TicketID)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Period Comparison\n")
	writeComparisonSection(&b, "Improved", report.Comparison.Improved)
	writeComparisonSection(&b, "Deteriorated", report.Comparison.Deteriorated)
	writeComparisonSection(&b, "Stayed the Same", report.Comparison.StayedSame)

	if len(report.DailySummaries) > 0 {
		b.WriteString("## Daily Summaries\n")
		for _, summary := range report.DailySummaries {
			fmt.Fprintf(&b, "### %s (%d tickets)\n", summary.Date, summary.TicketCount)
			if len(summary.KeyThemes) > 0 {
				fmt.Fprintf(&b, "- **Themes:** %s\n", strings.Join(summary.KeyThemes, ", "))
			}
			if summary.TrendAnalysis != "" {
				fmt.Fprintf(&b, "- **Trend:** %s\n", summary.TrendAnalysis)
			}
			for _, issue := range summary.CriticalIssues {
				fmt.Fprintf(&b, "- **Critical:** %s\n", issue)
			}
			if summary.Narrative != "" {
				fmt.Fprintf(&b, "\n%s\n", summary.Narrative)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeComparisonSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
