package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/models"
)

// scriptedModel answers each layer's prompt shape and counts calls per layer.
type scriptedModel struct {
	mu         sync.Mutex
	extracts   int
	summarizes int
	reports    int
}

func (s *scriptedModel) respond(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.Contains(prompt, "Analyze this support ticket"):
		s.extracts++
		return `{"category": "bug", "product_area": "auth", "sentiment": "negative", "priority": "high", "themes": ["login"], "summary": "login broken"}`, nil
	case strings.Contains(prompt, "Summarize today's support tickets"):
		s.summarizes++
		return `{"key_themes": ["login"], "trend_analysis": "steady", "critical_issues": ["ticket_0 cannot access account"], "narrative": "login issues dominated"}`, nil
	default:
		s.reports++
		return `{
			"executive_summary": "Login reliability needs attention.",
			"health_snapshot": {"overall_health": "concerning"},
			"key_insights": [{"insight": "login failures recur daily", "severity": "high"}],
			"recommended_actions": [{"action": "audit auth service", "priority": "immediate", "estimated_impact": "high"}],
			"customer_voice": [{"quote": "locked out again", "ticket_id": "ticket_0"}],
			"period_comparison": {"improved": [], "deteriorated": ["login"], "stayed_same": []}
		}`, nil
	}
}

func (s *scriptedModel) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extracts, s.summarizes, s.reports
}

func e2eConfig(t *testing.T) *common.Config {
	t.Helper()
	root := t.TempDir()

	csvPath := filepath.Join(root, "tickets.csv")
	csv := `ds,original_message
2025-01-01T08:00:00,cannot log in at all
2025-01-01T09:30:00,password reset email never arrives
2025-01-01T11:00:00,how do I change my plan
2025-01-02T08:45:00,login loops back to the form
2025-01-02T10:15:00,billing total looks wrong
`
	if err := os.WriteFile(csvPath, []byte(csv), 0644); err != nil {
		t.Fatalf("failed to write ticket export: %v", err)
	}

	config := common.NewDefaultConfig()
	config.Pipeline.InputFile = csvPath
	config.Pipeline.StartDate = "2025-01-01"
	config.Pipeline.EndDate = "2025-01-02"
	config.Storage.Filesystem.Analyses = filepath.Join(root, "analyses")
	config.Storage.Filesystem.Summaries = filepath.Join(root, "summaries")
	config.Storage.Filesystem.Reports = filepath.Join(root, "reports")
	config.Prompts.File = ""
	return config
}

func TestPipelineEndToEnd(t *testing.T) {
	config := e2eConfig(t)
	model := &scriptedModel{}
	mock := &mockLLM{respond: model.respond}

	store, err := newPipelineCache(config)
	if err != nil {
		t.Fatalf("cache setup failed: %v", err)
	}

	pipe, err := New(config, mock, store, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	result, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.TicketCount != 5 || result.AnalysisCount != 5 {
		t.Errorf("tickets/analyses = %d/%d, want 5/5", result.TicketCount, result.AnalysisCount)
	}
	if result.SummaryCount != 2 {
		t.Errorf("summaries = %d, want one per day", result.SummaryCount)
	}
	if result.FallbackCount != 0 {
		t.Errorf("fallbacks = %d, want 0 for a healthy run", result.FallbackCount)
	}
	if result.Report == nil || result.Report.Fallback {
		t.Fatal("run should produce a real report")
	}
	if result.Period.Start != "2025-01-01" || result.Period.End != "2025-01-02" {
		t.Errorf("period = %s..%s", result.Period.Start, result.Period.End)
	}

	extracts, summarizes, reports := model.counts()
	if extracts != 5 || summarizes != 2 || reports != 1 {
		t.Errorf("model calls = %d/%d/%d, want 5 extractions, 2 summaries, 1 report", extracts, summarizes, reports)
	}

	// JSON and Markdown artifacts always; HTML and PDF only when enabled
	for _, path := range []string{result.ReportJSON, result.ReportMarkdown} {
		if path == "" {
			t.Fatal("artifact path missing from result")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s not written: %v", path, err)
		}
	}
	if result.ReportHTML != "" || result.ReportPDF != "" {
		t.Error("HTML/PDF artifacts should not be written unless enabled")
	}
	wantBase := "report_2025-01-01_2025-01-02"
	if filepath.Base(result.ReportJSON) != wantBase+".json" {
		t.Errorf("report JSON named %s, want %s.json", filepath.Base(result.ReportJSON), wantBase)
	}
}

func TestPipelineSecondRunServesFromCache(t *testing.T) {
	config := e2eConfig(t)
	model := &scriptedModel{}
	mock := &mockLLM{respond: model.respond}

	store, err := newPipelineCache(config)
	if err != nil {
		t.Fatalf("cache setup failed: %v", err)
	}

	pipe, err := New(config, mock, store, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}
	if _, err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}

	// Warm cache: the second run re-pays only the report synthesis
	extracts, summarizes, reports := model.counts()
	if extracts != 5 {
		t.Errorf("extraction calls across both runs = %d, want 5", extracts)
	}
	if summarizes != 2 {
		t.Errorf("summary calls across both runs = %d, want 2", summarizes)
	}
	if reports != 2 {
		t.Errorf("report calls across both runs = %d, want 2", reports)
	}
}

func TestPipelineRendersOptionalFormats(t *testing.T) {
	config := e2eConfig(t)
	config.Render.HTML = true
	config.Render.PDF = true

	model := &scriptedModel{}
	mock := &mockLLM{respond: model.respond}

	store, err := newPipelineCache(config)
	if err != nil {
		t.Fatalf("cache setup failed: %v", err)
	}

	pipe, err := New(config, mock, store, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	result, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	for _, path := range []string{result.ReportHTML, result.ReportPDF} {
		if path == "" {
			t.Fatal("enabled artifact path missing from result")
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("artifact %s not written: %v", path, err)
		}
	}
}

func TestPipelineFailsWithoutTickets(t *testing.T) {
	config := e2eConfig(t)
	config.Pipeline.StartDate = "2030-01-01"
	config.Pipeline.EndDate = "2030-01-02"

	mock := &mockLLM{respond: func(prompt string) (string, error) {
		return "", fmt.Errorf("should not be called")
	}}

	store, err := newPipelineCache(config)
	if err != nil {
		t.Fatalf("cache setup failed: %v", err)
	}

	pipe, err := New(config, mock, store, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := pipe.Run(context.Background()); err == nil {
		t.Error("Run() should fail when the window holds no tickets")
	}
}

func TestResolveWindowPrefersConfiguredDates(t *testing.T) {
	config := e2eConfig(t)
	pipe, err := New(config, &mockLLM{respond: func(string) (string, error) { return "", nil }}, newTestCache(t), nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	start, end, err := pipe.resolveWindow(config.Pipeline.InputFile)
	if err != nil {
		t.Fatalf("resolveWindow() failed: %v", err)
	}
	if start.Format(models.DateKeyFormat) != "2025-01-01" || end.Format(models.DateKeyFormat) != "2025-01-02" {
		t.Errorf("window = %s..%s, want configured dates", start.Format(models.DateKeyFormat), end.Format(models.DateKeyFormat))
	}

	// Without explicit dates the export's latest two days win
	config.Pipeline.StartDate = ""
	config.Pipeline.EndDate = ""
	start, end, err = pipe.resolveWindow(config.Pipeline.InputFile)
	if err != nil {
		t.Fatalf("resolveWindow() failed: %v", err)
	}
	if start.Format(models.DateKeyFormat) != "2025-01-01" || end.Format(models.DateKeyFormat) != "2025-01-02" {
		t.Errorf("derived window = %s..%s", start.Format(models.DateKeyFormat), end.Format(models.DateKeyFormat))
	}
}
