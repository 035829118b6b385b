package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/ternarybob/relatio/internal/models"
)

func TestNormalizeAnalysisCoercesLooseFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.TicketAnalysis
	}{
		{
			name: "clean payload",
			raw:  `{"category": "bug", "product_area": "auth", "sentiment": "frustrated", "priority": "critical", "themes": ["login", "2fa"], "summary": "cannot log in"}`,
			want: models.TicketAnalysis{
				TicketID:    "ticket_1",
				Category:    models.CategoryBug,
				ProductArea: "auth",
				Sentiment:   models.SentimentFrustrated,
				Priority:    models.PriorityCritical,
				Summary:     "cannot log in",
			},
		},
		{
			name: "enum variants and missing fields",
			raw:  `{"category": "Feature Request", "sentiment": "HAPPY", "priority": "blocker"}`,
			want: models.TicketAnalysis{
				TicketID:    "ticket_1",
				Category:    models.CategoryFeatureRequest,
				ProductArea: "unknown",
				Sentiment:   models.SentimentPositive,
				Priority:    models.PriorityCritical,
			},
		},
		{
			name: "unknown enums degrade to defaults",
			raw:  `{"category": "misc", "sentiment": "confused", "priority": "someday"}`,
			want: models.TicketAnalysis{
				TicketID:    "ticket_1",
				Category:    models.DefaultCategory,
				ProductArea: "unknown",
				Sentiment:   models.DefaultSentiment,
				Priority:    models.DefaultPriority,
			},
		},
		{
			name: "themes as a single string",
			raw:  `{"category": "bug", "themes": "login", "summary": "x"}`,
			want: models.TicketAnalysis{
				TicketID:    "ticket_1",
				Category:    models.CategoryBug,
				ProductArea: "unknown",
				Sentiment:   models.DefaultSentiment,
				Priority:    models.DefaultPriority,
				Summary:     "x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeAnalysis("ticket_1", json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("normalizeAnalysis() failed: %v", err)
			}
			if got.Category != tt.want.Category || got.Sentiment != tt.want.Sentiment || got.Priority != tt.want.Priority {
				t.Errorf("enums = %s/%s/%s, want %s/%s/%s",
					got.Category, got.Sentiment, got.Priority,
					tt.want.Category, tt.want.Sentiment, tt.want.Priority)
			}
			if got.ProductArea != tt.want.ProductArea {
				t.Errorf("ProductArea = %q, want %q", got.ProductArea, tt.want.ProductArea)
			}
			if tt.want.Summary != "" && got.Summary != tt.want.Summary {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.want.Summary)
			}
		})
	}
}

func TestNormalizeAnalysisRejectsNonObjects(t *testing.T) {
	if _, err := normalizeAnalysis("ticket_1", json.RawMessage(`["not", "an", "object"]`)); err == nil {
		t.Error("normalizeAnalysis() should reject a non-object payload")
	}
	if _, err := normalizeAnalysis("ticket_1", json.RawMessage(`"just a string"`)); err == nil {
		t.Error("normalizeAnalysis() should reject a scalar payload")
	}
}

func TestNormalizeSummaryKeepsLocalFacts(t *testing.T) {
	raw := json.RawMessage(`{
		"date": "2099-12-31",
		"ticket_count": 9999,
		"key_themes": ["a", "b"],
		"trend_analysis": {"note": "volume doubled"},
		"critical_issues": "single critical issue",
		"narrative": "busy day"
	}`)

	summary, err := normalizeSummary("2025-01-15", 6, raw)
	if err != nil {
		t.Fatalf("normalizeSummary() failed: %v", err)
	}

	// Date and count come from local data, never from the model
	if summary.Date != "2025-01-15" {
		t.Errorf("Date = %s, model must not override it", summary.Date)
	}
	if summary.TicketCount != 6 {
		t.Errorf("TicketCount = %d, model must not override it", summary.TicketCount)
	}
	if summary.TrendAnalysis != "volume doubled" {
		t.Errorf("TrendAnalysis = %q, want the keyed object resolved", summary.TrendAnalysis)
	}
	if len(summary.CriticalIssues) != 1 || summary.CriticalIssues[0] != "single critical issue" {
		t.Errorf("CriticalIssues = %v, want single-string coercion", summary.CriticalIssues)
	}
}

func TestNormalizeReportDropsUntraceableQuotes(t *testing.T) {
	period := models.Period{Start: "2025-01-01", End: "2025-01-02"}
	known := map[string]bool{"ticket_5": true}

	raw := json.RawMessage(`{
		"executive_summary": "summary",
		"customer_voice": {"quotes": [
			{"quote": "real quote", "ticket_id": "ticket_5"},
			{"quote": "invented quote", "ticket_id": "ticket_50"},
			{"quote": "no attribution at all"}
		]}
	}`)

	report, err := normalizeReport(period, nil, known, raw)
	if err != nil {
		t.Fatalf("normalizeReport() failed: %v", err)
	}

	if len(report.CustomerQuotes) != 1 {
		t.Fatalf("quotes = %+v, want only the traceable one", report.CustomerQuotes)
	}
	if report.CustomerQuotes[0].TicketID != "ticket_5" {
		t.Errorf("kept quote attributed to %s, want ticket_5", report.CustomerQuotes[0].TicketID)
	}
}

func TestNormalizeReportDefaultsMissingSections(t *testing.T) {
	raw := json.RawMessage(`{"executive_summary": "just the summary"}`)

	report, err := normalizeReport(models.Period{Start: "2025-01-01", End: "2025-01-01"}, nil, nil, raw)
	if err != nil {
		t.Fatalf("normalizeReport() failed: %v", err)
	}

	if report.Health.OverallHealth != "unknown" {
		t.Errorf("OverallHealth = %q, want unknown default", report.Health.OverallHealth)
	}
	if report.KeyInsights == nil || report.RecommendedActions == nil || report.CustomerQuotes == nil {
		t.Error("missing sections should normalize to empty slices, not nil")
	}
	if report.Comparison.Improved == nil || report.Comparison.Deteriorated == nil || report.Comparison.StayedSame == nil {
		t.Error("comparison lists should normalize to empty slices, not nil")
	}
}

func TestNormalizeInsightsAcceptsBareStrings(t *testing.T) {
	insights := normalizeInsights([]interface{}{
		"bare finding",
		map[string]interface{}{"insight": "structured finding", "severity": "critical"},
	})

	if len(insights) != 2 {
		t.Fatalf("insights = %+v, want 2", insights)
	}
	if insights[0].Severity != "medium" {
		t.Errorf("bare-string insight severity = %q, want medium default", insights[0].Severity)
	}
	if insights[1].Severity != "critical" {
		t.Errorf("structured insight severity = %q", insights[1].Severity)
	}
}
