package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/relatio/internal/models"
)

// Model output arrives as loosely shaped JSON: fields go missing, enums vary
// in casing, scalars show up wrapped in objects, lists arrive as single
// strings. Each normalize function coerces one entity field by field with
// defined defaults so downstream code never sees a hole.

// normalizeAnalysis coerces an extraction payload into a TicketAnalysis.
// The only hard failure is a payload that is not a JSON object; every field
// inside the object degrades to its default instead.
func normalizeAnalysis(ticketID string, raw json.RawMessage) (*models.TicketAnalysis, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("extraction payload is not a JSON object: %w", err)
	}

	analysis := &models.TicketAnalysis{
		TicketID:    ticketID,
		Category:    models.ParseCategory(stringField(fields, "category")),
		ProductArea: stringField(fields, "product_area", "area", "product"),
		Sentiment:   models.ParseSentiment(stringField(fields, "sentiment")),
		Priority:    models.ParsePriority(stringField(fields, "priority")),
		Themes:      stringList(fields["themes"], "theme", "text"),
		Summary:     stringField(fields, "summary", "text", "description"),
	}
	if analysis.ProductArea == "" {
		analysis.ProductArea = "unknown"
	}
	return analysis, nil
}

// normalizeSummary coerces a summarization payload into a DailySummary. The
// date and ticket count come from local data, never from the model.
func normalizeSummary(date string, ticketCount int, raw json.RawMessage) (*models.DailySummary, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("summary payload is not a JSON object: %w", err)
	}

	summary := &models.DailySummary{
		Date:           date,
		TicketCount:    ticketCount,
		KeyThemes:      stringList(fields["key_themes"], "theme", "text"),
		TrendAnalysis:  scalarOrKeyed(fields["trend_analysis"], "note", "text", "analysis"),
		CriticalIssues: stringList(fields["critical_issues"], "issue", "text", "description"),
		Narrative:      scalarOrKeyed(fields["narrative"], "narrative", "text", "summary"),
	}
	return summary, nil
}

// normalizeReport coerces a report payload into an ExecutiveReport. Quotes
// are checked against knownTickets: a quote the model attributed to an id
// outside the input window is dropped, never fabricated into traceability.
func normalizeReport(period models.Period, summaries []models.DailySummary, knownTickets map[string]bool, raw json.RawMessage) (*models.ExecutiveReport, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("report payload is not a JSON object: %w", err)
	}

	report := &models.ExecutiveReport{
		Period:             period,
		ExecutiveSummary:   scalarOrKeyed(fields["executive_summary"], "summary", "text", "note"),
		Health:             normalizeHealth(fields["health_snapshot"]),
		KeyInsights:        normalizeInsights(fields["key_insights"]),
		RecommendedActions: normalizeActions(fields["recommended_actions"]),
		CustomerQuotes:     normalizeQuotes(fields["customer_voice"], knownTickets),
		Comparison:         normalizeComparison(fields["period_comparison"], fields["week_over_week_comparison"]),
		DailySummaries:     summaries,
	}
	if report.ExecutiveSummary == "" {
		return nil, fmt.Errorf("report payload carries no executive summary")
	}
	return report, nil
}

func normalizeHealth(v interface{}) models.HealthSnapshot {
	fields, ok := v.(map[string]interface{})
	if !ok {
		return models.HealthSnapshot{
			OverallHealth:      "unknown",
			TicketVolumeTrend:  "unknown",
			ComplaintRateTrend: "unknown",
			TopDrivers:         []string{},
		}
	}

	health := models.HealthSnapshot{
		OverallHealth:      stringField(fields, "overall_health", "health", "status"),
		TicketVolumeTrend:  stringField(fields, "ticket_volume_trend", "volume_trend"),
		ComplaintRateTrend: stringField(fields, "complaint_rate_trend", "complaint_trend"),
		TopDrivers:         stringList(firstPresent(fields, "top_drivers", "top_3_drivers"), "driver", "text"),
	}
	if health.OverallHealth == "" {
		health.OverallHealth = "unknown"
	}
	return health
}

func normalizeInsights(v interface{}) []models.KeyInsight {
	items, ok := v.([]interface{})
	if !ok {
		return []models.KeyInsight{}
	}

	insights := make([]models.KeyInsight, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case map[string]interface{}:
			insight := models.KeyInsight{
				Insight:        stringField(it, "insight", "finding", "text"),
				Severity:       stringField(it, "severity"),
				Evidence:       stringField(it, "evidence", "text"),
				CustomerImpact: stringField(it, "customer_impact", "impact"),
			}
			if insight.Severity == "" {
				insight.Severity = "medium"
			}
			if insight.Insight != "" {
				insights = append(insights, insight)
			}
		default:
			if s := asString(item); s != "" {
				insights = append(insights, models.KeyInsight{Insight: s, Severity: "medium"})
			}
		}
	}
	return insights
}

func normalizeActions(v interface{}) []models.RecommendedAction {
	items, ok := v.([]interface{})
	if !ok {
		return []models.RecommendedAction{}
	}

	actions := make([]models.RecommendedAction, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case map[string]interface{}:
			action := models.RecommendedAction{
				Action:          stringField(it, "action", "task", "text"),
				Priority:        stringField(it, "priority"),
				EstimatedImpact: stringField(it, "estimated_impact", "impact"),
				SuggestedOwner:  stringField(it, "suggested_owner", "owner"),
				SuccessMetrics:  stringField(it, "success_metrics", "metrics"),
			}
			if action.Priority == "" {
				action.Priority = "this_week"
			}
			if action.EstimatedImpact == "" {
				action.EstimatedImpact = "medium"
			}
			if action.Action != "" {
				actions = append(actions, action)
			}
		default:
			if s := asString(item); s != "" {
				actions = append(actions, models.RecommendedAction{
					Action:          s,
					Priority:        "this_week",
					EstimatedImpact: "medium",
				})
			}
		}
	}
	return actions
}

// ticketIDPattern matches loader-assigned ticket ids embedded in free text,
// so a quote whose attribution only appears inline still resolves.
var ticketIDPattern = regexp.MustCompile(`ticket_\d+`)

// normalizeQuotes accepts quotes as {quote, ticket_id} objects, bare strings
// with an embedded ticket id, or a {quotes: [...]} wrapper. A quote that
// cannot be traced to a known ticket id is dropped.
func normalizeQuotes(v interface{}, knownTickets map[string]bool) []models.CustomerQuote {
	// Unwrap {"quotes": [...]}
	if wrapper, ok := v.(map[string]interface{}); ok {
		v = wrapper["quotes"]
	}

	items, ok := v.([]interface{})
	if !ok {
		return []models.CustomerQuote{}
	}

	quotes := make([]models.CustomerQuote, 0, len(items))
	for _, item := range items {
		var quote models.CustomerQuote
		switch it := item.(type) {
		case map[string]interface{}:
			quote.Quote = stringField(it, "quote", "text")
			quote.TicketID = stringField(it, "ticket_id", "source", "id")
		default:
			quote.Quote = asString(item)
		}
		if quote.Quote == "" {
			continue
		}
		if quote.TicketID == "" {
			quote.TicketID = ticketIDPattern.FindString(quote.Quote)
		}
		if quote.TicketID == "" || !knownTickets[quote.TicketID] {
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes
}

func normalizeComparison(candidates ...interface{}) models.PeriodComparison {
	comparison := models.PeriodComparison{
		Improved:     []string{},
		Deteriorated: []string{},
		StayedSame:   []string{},
	}
	for _, candidate := range candidates {
		fields, ok := candidate.(map[string]interface{})
		if !ok {
			continue
		}
		comparison.Improved = stringList(fields["improved"], "item", "text")
		comparison.Deteriorated = stringList(fields["deteriorated"], "item", "text")
		comparison.StayedSame = stringList(firstPresent(fields, "stayed_same", "unchanged"), "item", "text")
		break
	}
	return comparison
}

// -------------------------------------------------------------------------
// Coercion helpers
// -------------------------------------------------------------------------

// asString renders a scalar as a string. Objects and lists render through
// their JSON form so nothing is silently lost.
func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	case bool:
		return fmt.Sprintf("%v", s)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// stringField returns the first non-empty value among keys, coerced to a
// string.
func stringField(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			if s := scalarOrKeyed(v, keys...); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarOrKeyed coerces string-or-object variants: a plain scalar passes
// through, an object resolves via the given keys then falls back to its JSON
// form.
func scalarOrKeyed(v interface{}, keys ...string) string {
	if obj, ok := v.(map[string]interface{}); ok {
		for _, key := range keys {
			if inner, ok := obj[key]; ok {
				if s := asString(inner); s != "" {
					return s
				}
			}
		}
		return asString(v)
	}
	return asString(v)
}

// stringList coerces string-or-list variants: a single string becomes a
// one-element list, list items that are objects resolve via itemKeys.
func stringList(v interface{}, itemKeys ...string) []string {
	switch items := v.(type) {
	case nil:
		return []string{}
	case string:
		if trimmed := strings.TrimSpace(items); trimmed != "" {
			return []string{trimmed}
		}
		return []string{}
	case []interface{}:
		result := make([]string, 0, len(items))
		for _, item := range items {
			if s := scalarOrKeyed(item, itemKeys...); s != "" {
				result = append(result, s)
			}
		}
		return result
	default:
		if s := asString(v); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// firstPresent returns the first value present under any of the keys.
func firstPresent(fields map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := fields[key]; ok {
			return v
		}
	}
	return nil
}
