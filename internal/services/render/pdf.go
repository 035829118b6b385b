package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/ternarybob/relatio/internal/models"
)

// PDF renders the report as an A4 PDF, built directly from the report
// structure rather than through the Markdown form.
func PDF(report *models.ExecutiveReport) ([]byte, error) {
	doc := newPDFDoc()

	doc.title("Support Ticket Analysis Report")
	doc.body(fmt.Sprintf("Period: %s to %s", report.Period.Start, report.Period.End))
	doc.gap()

	doc.heading("Executive Summary")
	doc.body(report.ExecutiveSummary)
	doc.gap()

	doc.heading("Health Snapshot")
	doc.bullet(fmt.Sprintf("Overall Health: %s", report.Health.OverallHealth))
	doc.bullet(fmt.Sprintf("Ticket Volume Trend: %s", orNA(report.Health.TicketVolumeTrend)))
	doc.bullet(fmt.Sprintf("Complaint Rate Trend: %s", orNA(report.Health.ComplaintRateTrend)))
	for _, driver := range report.Health.TopDrivers {
		doc.bullet(fmt.Sprintf("Driver: %s", driver))
	}
	doc.gap()

	doc.heading("Key Insights")
	for i, insight := range report.KeyInsights {
		doc.subheading(fmt.Sprintf("Insight %d: %s", i+1, insight.Insight))
		doc.bullet(fmt.Sprintf("Severity: %s", insight.Severity))
		doc.bullet(fmt.Sprintf("Evidence: %s", orNA(insight.Evidence)))
		doc.bullet(fmt.Sprintf("Customer Impact: %s", orNA(insight.CustomerImpact)))
	}
	doc.gap()

	doc.heading("Recommended Actions")
	for i, action := range report.RecommendedActions {
		doc.subheading(fmt.Sprintf("Action %d: %s", i+1, action.Action))
		doc.bullet(fmt.Sprintf("Priority: %s", action.Priority))
		doc.bullet(fmt.Sprintf("Estimated Impact: %s", action.EstimatedImpact))
		doc.bullet(fmt.Sprintf("Suggested Owner: %s", orNA(action.SuggestedOwner)))
		doc.bullet(fmt.Sprintf("Success Metrics: %s", orNA(action.SuccessMetrics)))
	}
	doc.gap()

	if len(report.CustomerQuotes) > 0 {
		doc.heading("Customer Voice")
		for _, quote := range report.CustomerQuotes {
			doc.quote(fmt.Sprintf("\"%s\" (%s)", quote.Quote, quote.TicketID))
		}
		doc.gap()
	}

	doc.heading("Period Comparison")
	doc.comparisonSection("Improved", report.Comparison.Improved)
	doc.comparisonSection("Deteriorated", report.Comparison.Deteriorated)
	doc.comparisonSection("Stayed the Same", report.Comparison.StayedSame)

	if len(report.DailySummaries) > 0 {
		doc.gap()
		doc.heading("Daily Summaries")
		for _, summary := range report.DailySummaries {
			doc.subheading(fmt.Sprintf("%s (%d tickets)", summary.Date, summary.TicketCount))
			if summary.TrendAnalysis != "" {
				doc.bullet(fmt.Sprintf("Trend: %s", summary.TrendAnalysis))
			}
			for _, issue := range summary.CriticalIssues {
				doc.bullet(fmt.Sprintf("Critical: %s", issue))
			}
			if summary.Narrative != "" {
				doc.body(summary.Narrative)
			}
		}
	}

	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfDoc wraps fpdf with the small set of primitives the report needs.
type pdfDoc struct {
	pdf *fpdf.Fpdf
}

func newPDFDoc() *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)
	return &pdfDoc{pdf: pdf}
}

func (d *pdfDoc) title(text string) {
	d.pdf.SetFont("Arial", "B", 14)
	d.pdf.MultiCell(0, 7, text, "", "L", false)
	d.pdf.SetFont("Arial", "", 9)
	d.pdf.Ln(2)
}

func (d *pdfDoc) heading(text string) {
	d.pdf.SetFont("Arial", "B", 12)
	d.pdf.MultiCell(0, 6, text, "", "L", false)
	d.pdf.SetFont("Arial", "", 9)
	d.pdf.Ln(1)
}

func (d *pdfDoc) subheading(text string) {
	d.pdf.SetFont("Arial", "B", 10)
	d.pdf.MultiCell(0, 5, text, "", "L", false)
	d.pdf.SetFont("Arial", "", 9)
}

func (d *pdfDoc) body(text string) {
	d.pdf.MultiCell(0, 5, text, "", "L", false)
}

func (d *pdfDoc) bullet(text string) {
	d.pdf.SetX(14)
	d.pdf.MultiCell(0, 5, "- "+text, "", "L", false)
	d.pdf.SetX(10)
}

func (d *pdfDoc) quote(text string) {
	d.pdf.SetFont("Arial", "I", 9)
	d.pdf.SetX(14)
	d.pdf.MultiCell(0, 5, text, "", "L", false)
	d.pdf.SetX(10)
	d.pdf.SetFont("Arial", "", 9)
}

func (d *pdfDoc) gap() {
	d.pdf.Ln(3)
}

func (d *pdfDoc) comparisonSection(title string, items []string) {
	if len(items) == 0 {
		return
	}
	d.subheading(title)
	for _, item := range items {
		d.bullet(item)
	}
}
