package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/services/llm"
)

// Sampling caps for the summarization prompt: enough context for the model,
// bounded token cost for the caller.
const (
	topThemeCount     = 10
	sampleTicketCount = 15
)

// Summarizer is layer 2: one DailySummary per calendar day. Days process
// strictly in chronological order because day D's prompt carries day D-1's
// trend analysis; the previous summary travels as an explicit accumulator,
// not shared state.
type Summarizer struct {
	llm     interfaces.LLMService
	cache   interfaces.ResultCache
	prompts *Prompts
	logger  arbor.ILogger
}

// NewSummarizer creates the layer-2 processor.
func NewSummarizer(llm interfaces.LLMService, cache interfaces.ResultCache, prompts *Prompts, logger arbor.ILogger) *Summarizer {
	return &Summarizer{
		llm:     llm,
		cache:   cache,
		prompts: prompts,
		logger:  logger,
	}
}

// SummarizeRange summarizes each day in byDate in ascending date order. A
// day whose model call fails resolves to a fallback summary and the sequence
// continues; the fallback still feeds the next day's trend context but is
// never cached. A credential rejection aborts the range.
func (s *Summarizer) SummarizeRange(ctx context.Context, byDate map[string][]*models.TicketAnalysis) ([]*models.DailySummary, error) {
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	summaries := make([]*models.DailySummary, 0, len(dates))
	var previous *models.DailySummary

	for _, date := range dates {
		analyses := byDate[date]

		summary, err := s.summarizeDay(ctx, date, analyses, previous)
		if err != nil {
			if llm.IsAuthError(err) {
				return nil, err
			}
			s.logger.Warn().
				Str("date", date).
				Err(err).
				Msg("Daily summarization failed, producing fallback summary")
			summary = models.NewFallbackSummary(date, len(analyses), err)
		}

		summaries = append(summaries, summary)
		previous = summary
	}

	s.logger.Info().
		Int("days", len(summaries)).
		Msg("Daily summarization completed")

	return summaries, nil
}

// summarizeDay summarizes one day: cache check, local aggregation, model
// call, normalize, cache write. Only successful summaries are cached.
func (s *Summarizer) summarizeDay(ctx context.Context, date string, analyses []*models.TicketAnalysis, previous *models.DailySummary) (*models.DailySummary, error) {
	if cached, ok := s.cache.GetSummary(date); ok {
		s.logger.Debug().Str("date", date).Msg("Summary cache hit")
		return cached, nil
	}

	previousTrend := "No previous summary"
	if previous != nil && previous.TrendAnalysis != "" {
		previousTrend = previous.TrendAnalysis
	}

	prompt := s.prompts.SummarizePrompt(
		len(analyses),
		formatCategoryCounts(analyses),
		formatTopThemes(analyses, topThemeCount),
		formatSamples(analyses, sampleTicketCount),
		previousTrend,
	)

	req := &interfaces.CompletionRequest{
		Messages:  []interfaces.Message{{Role: "user", Content: prompt}},
		MaxTokens: summarizeMaxTokens,
	}

	raw, err := s.llm.GenerateJSON(ctx, req)
	if err != nil {
		return nil, err
	}

	summary, err := normalizeSummary(date, len(analyses), raw)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutSummary(summary); err != nil {
		s.logger.Warn().
			Str("date", date).
			Err(err).
			Msg("Failed to cache daily summary")
	}

	return summary, nil
}

// formatCategoryCounts renders category tallies as "bug: 3, complaint: 1"
// with stable ordering.
func formatCategoryCounts(analyses []*models.TicketAnalysis) string {
	counts := make(map[string]int)
	for _, a := range analyses {
		counts[string(a.Category)]++
	}

	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%s: %d", category, counts[category]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// formatTopThemes renders the most frequent themes, highest count first,
// ties broken alphabetically so prompts are deterministic.
func formatTopThemes(analyses []*models.TicketAnalysis, limit int) string {
	counts := make(map[string]int)
	for _, a := range analyses {
		for _, theme := range a.Themes {
			counts[theme]++
		}
	}

	themes := make([]string, 0, len(counts))
	for theme := range counts {
		themes = append(themes, theme)
	}
	sort.Slice(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return themes[i] < themes[j]
	})

	if len(themes) > limit {
		themes = themes[:limit]
	}

	parts := make([]string, 0, len(themes))
	for _, theme := range themes {
		parts = append(parts, fmt.Sprintf("%s: %d", theme, counts[theme]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// formatSamples renders up to limit one-line ticket digests for prompt
// context.
func formatSamples(analyses []*models.TicketAnalysis, limit int) string {
	if len(analyses) > limit {
		analyses = analyses[:limit]
	}
	lines := make([]string, 0, len(analyses))
	for _, a := range analyses {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", a.Priority, a.Category, a.Summary))
	}
	return strings.Join(lines, "\n")
}
