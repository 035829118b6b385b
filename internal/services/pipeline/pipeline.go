// Package pipeline drives the three analysis layers over a ticket export:
// per-ticket extraction, daily summarization, and executive reporting.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/services/render"
	"github.com/ternarybob/relatio/internal/services/tickets"
)

// RunResult is what one complete pipeline execution hands back to the
// caller: the report plus the data-quality counters operators watch.
type RunResult struct {
	RunID   string
	Report  *models.ExecutiveReport
	Period  models.Period
	Elapsed time.Duration

	TicketCount   int
	AnalysisCount int
	SummaryCount  int

	// FallbackCount tallies degraded records across all three layers. A
	// run with fallbacks still completes; this number is how operators
	// gauge how much of the report to trust.
	FallbackCount int

	// Paths of the written report artifacts. JSON and Markdown are always
	// present; HTML and PDF only when enabled in config.
	ReportJSON     string
	ReportMarkdown string
	ReportHTML     string
	ReportPDF      string
}

// Pipeline sequences the three layers over the configured ticket export.
type Pipeline struct {
	config     *common.Config
	loader     *tickets.Loader
	extractor  *Extractor
	summarizer *Summarizer
	reporter   *Reporter
	runs       interfaces.RunStorage
	logger     arbor.ILogger
}

// New wires the pipeline. Prompt overrides load here so a bad prompts file
// fails startup, not the first scheduled run. The run ledger is optional;
// nil disables run history.
func New(config *common.Config, llmService interfaces.LLMService, cache interfaces.ResultCache, runs interfaces.RunStorage, logger arbor.ILogger) (*Pipeline, error) {
	prompts, err := LoadPrompts(config.Prompts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	return &Pipeline{
		config:     config,
		loader:     tickets.NewLoader(logger),
		extractor:  NewExtractor(llmService, cache, prompts, logger),
		summarizer: NewSummarizer(llmService, cache, prompts, logger),
		reporter:   NewReporter(llmService, prompts, logger),
		runs:       runs,
		logger:     logger,
	}, nil
}

// Run executes extract, summarize, and report over the configured window
// and writes the report artifacts. Per-item failures degrade to fallback
// records; only configuration-level failures (missing input, rejected
// credentials) return an error.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	startedAt := time.Now()
	runID := common.NewRunID()

	inputFile := p.config.Pipeline.InputFile

	start, end, err := p.resolveWindow(inputFile)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("run_id", runID).
		Str("input", inputFile).
		Str("start", start.Format(models.DateKeyFormat)).
		Str("end", end.Format(models.DateKeyFormat)).
		Msg("Starting pipeline run")

	ticketList, err := p.loader.LoadWindow(inputFile, start, end)
	if err != nil {
		return nil, err
	}
	if len(ticketList) == 0 {
		return nil, fmt.Errorf("no tickets found in %s between %s and %s",
			inputFile, start.Format(models.DateKeyFormat), end.Format(models.DateKeyFormat))
	}

	// Layer 1: fan-out extraction
	analyses, err := p.extractor.ExtractBatch(ctx, ticketList)
	if err != nil {
		p.recordRun(ctx, runID, startedAt, models.Period{}, 0, 0, 0, 0, "", err)
		return nil, err
	}

	// Layer 2: group by day, summarize sequentially
	byDate := make(map[string][]*models.TicketAnalysis)
	for i, ticket := range ticketList {
		dateKey := ticket.DateKey()
		byDate[dateKey] = append(byDate[dateKey], analyses[i])
	}

	summaries, err := p.summarizer.SummarizeRange(ctx, byDate)
	if err != nil {
		p.recordRun(ctx, runID, startedAt, models.Period{}, len(ticketList), len(analyses), 0, 0, "", err)
		return nil, err
	}

	// Layer 3: single synthesis call; always yields a report
	report := p.reporter.BuildReport(ctx, summaries)

	result := &RunResult{
		RunID:         runID,
		Report:        report,
		Period:        report.Period,
		TicketCount:   len(ticketList),
		AnalysisCount: len(analyses),
		SummaryCount:  len(summaries),
		FallbackCount: countFallbacks(analyses, summaries, report),
	}

	if err := p.writeArtifacts(result); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(startedAt)
	p.recordRun(ctx, runID, startedAt, report.Period, result.TicketCount, result.AnalysisCount, result.SummaryCount, result.FallbackCount, result.ReportJSON, nil)

	p.logger.Info().
		Str("run_id", runID).
		Int("tickets", result.TicketCount).
		Int("summaries", result.SummaryCount).
		Int("fallbacks", result.FallbackCount).
		Dur("elapsed", result.Elapsed).
		Str("report", result.ReportJSON).
		Msg("Pipeline run completed")

	return result, nil
}

// resolveWindow picks the reporting window: explicit config dates win,
// otherwise the export's latest day and the day before it.
func (p *Pipeline) resolveWindow(inputFile string) (time.Time, time.Time, error) {
	var start, end time.Time

	if p.config.Pipeline.StartDate != "" {
		t, err := time.Parse(models.DateKeyFormat, p.config.Pipeline.StartDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date '%s': %w", p.config.Pipeline.StartDate, err)
		}
		start = t
	}
	if p.config.Pipeline.EndDate != "" {
		t, err := time.Parse(models.DateKeyFormat, p.config.Pipeline.EndDate)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date '%s': %w", p.config.Pipeline.EndDate, err)
		}
		end = t
	}

	if start.IsZero() || end.IsZero() {
		defaultStart, defaultEnd, err := p.loader.DateRange(inputFile)
		if err != nil {
			return start, end, fmt.Errorf("failed to derive date range: %w", err)
		}
		if start.IsZero() {
			start = defaultStart
		}
		if end.IsZero() {
			end = defaultEnd
		}
	}

	return start, end, nil
}

// writeArtifacts persists the report: JSON and Markdown always, HTML and
// PDF when configured. Artifact names carry the window bounds, so re-running
// the same window overwrites the previous report.
func (p *Pipeline) writeArtifacts(result *RunResult) error {
	reportsDir := p.config.Storage.Filesystem.Reports
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("failed to create reports directory %s: %w", reportsDir, err)
	}

	base := fmt.Sprintf("report_%s_%s", result.Period.Start, result.Period.End)

	// A structurally invalid report is still written so operators can see
	// what the model produced
	if err := result.Report.Validate(); err != nil {
		p.logger.Warn().Str("run_id", result.RunID).Err(err).Msg("Report failed structural validation")
	}

	data, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	result.ReportJSON = filepath.Join(reportsDir, base+".json")
	if err := os.WriteFile(result.ReportJSON, data, 0644); err != nil {
		return fmt.Errorf("failed to write report JSON: %w", err)
	}

	markdown := render.Markdown(result.Report)
	result.ReportMarkdown = filepath.Join(reportsDir, base+".md")
	if err := os.WriteFile(result.ReportMarkdown, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write report Markdown: %w", err)
	}

	if p.config.Render.HTML {
		html, err := render.HTML(result.Report)
		if err != nil {
			return fmt.Errorf("failed to render report HTML: %w", err)
		}
		result.ReportHTML = filepath.Join(reportsDir, base+".html")
		if err := os.WriteFile(result.ReportHTML, html, 0644); err != nil {
			return fmt.Errorf("failed to write report HTML: %w", err)
		}
	}

	if p.config.Render.PDF {
		pdf, err := render.PDF(result.Report)
		if err != nil {
			return fmt.Errorf("failed to render report PDF: %w", err)
		}
		result.ReportPDF = filepath.Join(reportsDir, base+".pdf")
		if err := os.WriteFile(result.ReportPDF, pdf, 0644); err != nil {
			return fmt.Errorf("failed to write report PDF: %w", err)
		}
	}

	return nil
}

// recordRun writes the run ledger entry. Ledger failures are logged, never
// surfaced: history is operational metadata, not pipeline output.
func (p *Pipeline) recordRun(ctx context.Context, runID string, startedAt time.Time, period models.Period, ticketCount, analysisCount, summaryCount, fallbackCount int, reportPath string, runErr error) {
	if p.runs == nil {
		return
	}

	status := models.RunStatusCompleted
	errText := ""
	switch {
	case runErr != nil:
		status = models.RunStatusFailed
		errText = runErr.Error()
	case fallbackCount > 0:
		status = models.RunStatusDegraded
	}

	completedAt := time.Now()
	record := &models.RunRecord{
		ID:            runID,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		Duration:      completedAt.Sub(startedAt),
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		TicketCount:   ticketCount,
		AnalysisCount: analysisCount,
		SummaryCount:  summaryCount,
		FallbackCount: fallbackCount,
		ReportPath:    reportPath,
		Status:        status,
		Error:         errText,
	}

	if err := p.runs.StoreRun(ctx, record); err != nil {
		p.logger.Warn().Str("run_id", runID).Err(err).Msg("Failed to record run in ledger")
	}
}

// countFallbacks tallies degraded records across all three layers.
func countFallbacks(analyses []*models.TicketAnalysis, summaries []*models.DailySummary, report *models.ExecutiveReport) int {
	count := 0
	for _, a := range analyses {
		if a.Fallback {
			count++
		}
	}
	for _, s := range summaries {
		if s.Fallback {
			count++
		}
	}
	if report != nil && report.Fallback {
		count++
	}
	return count
}
