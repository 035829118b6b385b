package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

// Reporter is layer 3: one ExecutiveReport from the whole window of daily
// summaries, in a single model invocation. The report is the unit of work,
// so there is no per-unit cache key; re-running regenerates it.
type Reporter struct {
	llm     interfaces.LLMService
	prompts *Prompts
	logger  arbor.ILogger
}

// NewReporter creates the layer-3 processor.
func NewReporter(llm interfaces.LLMService, prompts *Prompts, logger arbor.ILogger) *Reporter {
	return &Reporter{
		llm:     llm,
		prompts: prompts,
		logger:  logger,
	}
}

// BuildReport synthesizes the executive report. The caller always receives a
// report object: any unrecoverable failure, credential rejections included,
// resolves to a minimal fallback report carrying the raw summaries, because
// by this stage the run has already paid for layers 1 and 2.
//
// A window of 7+ days gives the most meaningful comparison, but any
// non-empty window renders.
func (r *Reporter) BuildReport(ctx context.Context, summaries []*models.DailySummary) *models.ExecutiveReport {
	owned := make([]models.DailySummary, len(summaries))
	for i, s := range summaries {
		owned[i] = *s
	}

	period := periodBounds(owned)
	if len(owned) == 0 {
		return models.NewFallbackReport(period, owned, fmt.Errorf("no daily summaries in window"))
	}

	prompt := r.prompts.ReportPrompt(formatSummaries(owned))
	req := &interfaces.CompletionRequest{
		Messages:  []interfaces.Message{{Role: "user", Content: prompt}},
		MaxTokens: reportMaxTokens,
	}

	raw, err := r.llm.GenerateJSON(ctx, req)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Report generation failed, producing minimal report")
		return models.NewFallbackReport(period, owned, err)
	}

	report, err := normalizeReport(period, owned, traceableTickets(owned), raw)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Report payload did not normalize, producing minimal report")
		return models.NewFallbackReport(period, owned, err)
	}

	r.logger.Info().
		Str("start", period.Start).
		Str("end", period.End).
		Int("insights", len(report.KeyInsights)).
		Int("actions", len(report.RecommendedActions)).
		Int("quotes", len(report.CustomerQuotes)).
		Msg("Executive report generated")

	return report
}

// periodBounds derives the window from the summaries themselves, so the
// report's bounds always equal the min/max contributing dates.
func periodBounds(summaries []models.DailySummary) models.Period {
	var period models.Period
	for _, s := range summaries {
		if period.Start == "" || s.Date < period.Start {
			period.Start = s.Date
		}
		if period.End == "" || s.Date > period.End {
			period.End = s.Date
		}
	}
	return period
}

// traceableTickets collects every ticket id mentioned in the summaries'
// critical issues or narratives. Quotes must resolve to one of these ids.
func traceableTickets(summaries []models.DailySummary) map[string]bool {
	known := make(map[string]bool)
	for _, s := range summaries {
		for _, issue := range s.CriticalIssues {
			for _, id := range ticketIDPattern.FindAllString(issue, -1) {
				known[id] = true
			}
		}
		for _, id := range ticketIDPattern.FindAllString(s.Narrative, -1) {
			known[id] = true
		}
	}
	return known
}

// formatSummaries renders the daily summaries as prompt context, one block
// per day in window order.
func formatSummaries(summaries []models.DailySummary) string {
	blocks := make([]string, 0, len(summaries))
	for _, s := range summaries {
		blocks = append(blocks, fmt.Sprintf(
			"Date: %s\nTickets: %d\nThemes: %s\nAnalysis: %s",
			s.Date,
			s.TicketCount,
			strings.Join(s.KeyThemes, ", "),
			s.TrendAnalysis,
		))
	}
	return strings.Join(blocks, "\n\n")
}
