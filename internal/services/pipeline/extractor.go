package pipeline

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/services/llm"
)

// Extractor is layer 1: one structured analysis per raw ticket. Tickets fan
// out concurrently up to the model client's shared in-flight cap; results
// land in input order regardless of completion order.
type Extractor struct {
	llm     interfaces.LLMService
	cache   interfaces.ResultCache
	prompts *Prompts
	logger  arbor.ILogger
}

// NewExtractor creates the layer-1 processor.
func NewExtractor(llm interfaces.LLMService, cache interfaces.ResultCache, prompts *Prompts, logger arbor.ILogger) *Extractor {
	return &Extractor{
		llm:     llm,
		cache:   cache,
		prompts: prompts,
		logger:  logger,
	}
}

// ExtractBatch analyzes every ticket, one TicketAnalysis per input in input
// order. Per-ticket failures resolve to fallback records so one bad ticket
// never sinks the batch; only a credential rejection aborts, since no
// further call can succeed once the provider refuses the key.
func (e *Extractor) ExtractBatch(ctx context.Context, tickets []*models.Ticket) ([]*models.TicketAnalysis, error) {
	if len(tickets) == 0 {
		return []*models.TicketAnalysis{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Indexed result slice keeps output order equal to input order; each
	// worker writes only its own slot so no locking is needed.
	results := make([]*models.TicketAnalysis, len(tickets))

	var wg sync.WaitGroup
	var authOnce sync.Once
	var authErr error

	for i, ticket := range tickets {
		wg.Add(1)
		go func(idx int, t *models.Ticket) {
			defer wg.Done()

			analysis, err := e.extractOne(ctx, t)
			if err != nil {
				if llm.IsAuthError(err) {
					// Stop the remaining workers; their calls would fail
					// the same way.
					authOnce.Do(func() {
						authErr = err
						cancel()
					})
				}
				e.logger.Warn().
					Str("ticket_id", t.ID).
					Err(err).
					Msg("Ticket extraction failed, producing fallback analysis")
				analysis = models.NewFallbackAnalysis(t.ID, err)
			}
			results[idx] = analysis
		}(i, ticket)
	}
	wg.Wait()

	if authErr != nil {
		return nil, authErr
	}

	fallbacks := 0
	for _, analysis := range results {
		if analysis.Fallback {
			fallbacks++
		}
	}
	e.logger.Info().
		Int("tickets", len(tickets)).
		Int("fallbacks", fallbacks).
		Msg("Ticket extraction completed")

	return results, nil
}

// extractOne analyzes a single ticket: cache check, model call, normalize,
// cache write. Fallback records are never cached, so a degraded result is
// recomputed on the next run instead of poisoning the memo permanently.
func (e *Extractor) extractOne(ctx context.Context, ticket *models.Ticket) (*models.TicketAnalysis, error) {
	dateKey := ticket.DateKey()

	if cached, ok := e.cache.GetAnalysis(dateKey, ticket.ID); ok {
		e.logger.Debug().
			Str("ticket_id", ticket.ID).
			Str("date", dateKey).
			Msg("Analysis cache hit")
		return cached, nil
	}

	req := &interfaces.CompletionRequest{
		Messages: []interfaces.Message{
			{Role: "user", Content: e.prompts.ExtractPrompt(ticket.Content)},
		},
		MaxTokens: extractMaxTokens,
	}

	raw, err := e.llm.GenerateJSON(ctx, req)
	if err != nil {
		return nil, err
	}

	analysis, err := normalizeAnalysis(ticket.ID, raw)
	if err != nil {
		return nil, err
	}

	if err := e.cache.PutAnalysis(dateKey, analysis); err != nil {
		// A failed cache write costs a recompute next run, not correctness.
		e.logger.Warn().
			Str("ticket_id", ticket.ID).
			Err(err).
			Msg("Failed to cache analysis")
	}

	return analysis, nil
}
