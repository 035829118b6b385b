package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in prompt templates. Placeholders use {name} syntax and are filled
// with strings.Replacer so template text stays copy-pasteable into a YAML
// override file.
const (
	defaultExtractPrompt = `Analyze this support ticket:

{ticket_content}

Extract JSON with: category, product_area, sentiment, priority, themes (list), summary

Categories: bug, feature_request, question, complaint
Sentiments: positive, neutral, negative, frustrated
Priorities: low, medium, high, critical

Return ONLY valid JSON.`

	defaultSummarizePrompt = `Summarize today's support tickets.

Stats:
- Total tickets: {ticket_count}
- Categories: {categories}
- Top themes: {top_themes}

Sample tickets:
{samples}

Yesterday's summary: {previous_summary}

Generate JSON with:
- key_themes: list of 5 most important themes
- trend_analysis: how this compares to yesterday
- critical_issues: anything requiring immediate attention
- narrative: a short prose summary of the day

Return ONLY valid JSON.`

	defaultReportPrompt = `Generate an executive report optimized for product team engagement and action.

Daily summaries for the period:
{summaries}

Create a JSON report with the following structure:

1. executive_summary:
   - Start with the most critical insight (what changed and why it matters)
   - End with business impact (customer satisfaction, revenue risk, brand reputation)
   - Keep to 3-4 sentences max

2. health_snapshot:
   - overall_health: "critical" | "concerning" | "stable" | "improving"
   - ticket_volume_trend: numerical change with percentage
   - complaint_rate_trend: numerical change with percentage
   - top_drivers: list of issue types driving the most volume

3. key_insights (5 insights, prioritized by impact):
   For each insight provide:
   - insight: the finding itself
   - severity: "critical" | "high" | "medium" | "low"
   - evidence: specific data points or patterns supporting this
   - customer_impact: how this affects customer experience

4. recommended_actions (3-5 actions, prioritized):
   For each action provide:
   - action: specific, actionable task
   - priority: "immediate" | "this_week" | "this_month"
   - estimated_impact: "high" | "medium" | "low"
   - suggested_owner: which team should own this
   - success_metrics: how to measure if this worked

5. customer_voice:
   - 2-3 verbatim quotes illustrating the most critical issues
   - Each quote must carry the source ticket id, e.g. {"quote": "...", "ticket_id": "ticket_42"}

6. period_comparison:
   - improved, deteriorated, stayed_same: lists of actionable changes

Guidelines:
- Use specific numbers over vague terms
- Frame insights around customer impact and business risk
- Prioritize ruthlessly - what matters MOST right now

Return ONLY valid JSON.`
)

// Token budgets per layer. The report synthesizes a whole window, so it gets
// the largest budget.
const (
	extractMaxTokens   = 1024
	summarizeMaxTokens = 2048
	reportMaxTokens    = 4096
)

// Prompts holds the three layer templates. Prompt text is configuration: an
// operator can replace any template via a YAML override file without
// touching the pipeline.
type Prompts struct {
	Extract   string `yaml:"extract"`
	Summarize string `yaml:"summarize"`
	Report    string `yaml:"report"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *Prompts {
	return &Prompts{
		Extract:   defaultExtractPrompt,
		Summarize: defaultSummarizePrompt,
		Report:    defaultReportPrompt,
	}
}

// LoadPrompts returns the built-in templates with any overrides from the
// YAML file at path applied. An empty path means no overrides; a missing or
// unreadable file is an error since the operator asked for it explicitly.
func LoadPrompts(path string) (*Prompts, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}

	var overrides Prompts
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	if overrides.Extract != "" {
		prompts.Extract = overrides.Extract
	}
	if overrides.Summarize != "" {
		prompts.Summarize = overrides.Summarize
	}
	if overrides.Report != "" {
		prompts.Report = overrides.Report
	}

	return prompts, nil
}

// ExtractPrompt builds the layer-1 prompt for one ticket.
func (p *Prompts) ExtractPrompt(ticketContent string) string {
	return strings.NewReplacer(
		"{ticket_content}", ticketContent,
	).Replace(p.Extract)
}

// SummarizePrompt builds the layer-2 prompt for one day.
func (p *Prompts) SummarizePrompt(ticketCount int, categories, topThemes, samples, previousSummary string) string {
	return strings.NewReplacer(
		"{ticket_count}", fmt.Sprintf("%d", ticketCount),
		"{categories}", categories,
		"{top_themes}", topThemes,
		"{samples}", samples,
		"{previous_summary}", previousSummary,
	).Replace(p.Summarize)
}

// ReportPrompt builds the layer-3 prompt over the whole window.
func (p *Prompts) ReportPrompt(summaries string) string {
	return strings.NewReplacer(
		"{summaries}", summaries,
	).Replace(p.Report)
}
