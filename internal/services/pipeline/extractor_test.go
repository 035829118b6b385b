package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/services/llm"
)

func extractionJSON(summary string) string {
	return fmt.Sprintf(`{"category": "bug", "product_area": "auth", "sentiment": "negative", "priority": "high", "themes": ["login"], "summary": %q}`, summary)
}

func TestExtractBatchPreservesInputOrder(t *testing.T) {
	tickets := make([]*models.Ticket, 5)
	for i := range tickets {
		tickets[i] = testTicket(i, "2025-01-01", fmt.Sprintf("message-%d", i))
	}

	// Later tickets answer faster, so completion order inverts input order
	mock := &mockLLM{respond: func(prompt string) (string, error) {
		for i := range tickets {
			if strings.Contains(prompt, fmt.Sprintf("message-%d", i)) {
				time.Sleep(time.Duration(len(tickets)-i) * 5 * time.Millisecond)
				return extractionJSON(fmt.Sprintf("summary-%d", i)), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}}

	extractor := NewExtractor(mock, newTestCache(t), DefaultPrompts(), arbor.NewLogger())
	analyses, err := extractor.ExtractBatch(context.Background(), tickets)
	if err != nil {
		t.Fatalf("ExtractBatch() failed: %v", err)
	}

	if len(analyses) != len(tickets) {
		t.Fatalf("ExtractBatch() returned %d analyses, want %d", len(analyses), len(tickets))
	}
	for i, analysis := range analyses {
		if analysis.TicketID != tickets[i].ID {
			t.Errorf("result %d carries %s, want %s", i, analysis.TicketID, tickets[i].ID)
		}
		if want := fmt.Sprintf("summary-%d", i); analysis.Summary != want {
			t.Errorf("result %d summary = %q, want %q", i, analysis.Summary, want)
		}
	}
}

func TestExtractBatchUsesCache(t *testing.T) {
	store := newTestCache(t)
	tickets := []*models.Ticket{
		testTicket(0, "2025-01-01", "cached one"),
		testTicket(1, "2025-01-01", "cached two"),
	}

	for _, ticket := range tickets {
		cached := &models.TicketAnalysis{
			TicketID: ticket.ID,
			Category: models.CategoryComplaint,
			Summary:  "from cache",
		}
		if err := store.PutAnalysis(ticket.DateKey(), cached); err != nil {
			t.Fatalf("PutAnalysis() failed: %v", err)
		}
	}

	mock := &mockLLM{respond: func(prompt string) (string, error) {
		return "", errors.New("model should not be called on a warm cache")
	}}

	extractor := NewExtractor(mock, store, DefaultPrompts(), arbor.NewLogger())
	analyses, err := extractor.ExtractBatch(context.Background(), tickets)
	if err != nil {
		t.Fatalf("ExtractBatch() failed: %v", err)
	}

	if mock.callCount() != 0 {
		t.Errorf("model called %d times on a warm cache, want 0", mock.callCount())
	}
	for _, analysis := range analyses {
		if analysis.Summary != "from cache" {
			t.Errorf("analysis %s did not come from cache", analysis.TicketID)
		}
	}
}

func TestExtractBatchFallsBackPerTicket(t *testing.T) {
	store := newTestCache(t)
	tickets := []*models.Ticket{
		testTicket(0, "2025-01-01", "works fine"),
		testTicket(1, "2025-01-01", "always fails"),
		testTicket(2, "2025-01-01", "also works"),
	}

	mock := &mockLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "always fails") {
			return "", &llm.ServiceError{Kind: llm.KindNetwork, Provider: "test", Err: errors.New("boom")}
		}
		return extractionJSON("ok"), nil
	}}

	extractor := NewExtractor(mock, store, DefaultPrompts(), arbor.NewLogger())
	analyses, err := extractor.ExtractBatch(context.Background(), tickets)
	if err != nil {
		t.Fatalf("ExtractBatch() failed: %v", err)
	}

	if len(analyses) != 3 {
		t.Fatalf("ExtractBatch() returned %d analyses, want one per ticket", len(analyses))
	}

	failed := analyses[1]
	if !failed.Fallback {
		t.Error("failed ticket should resolve to a fallback analysis")
	}
	if failed.Category != models.DefaultCategory || failed.Sentiment != models.DefaultSentiment || failed.Priority != models.DefaultPriority {
		t.Errorf("fallback enums = %s/%s/%s, want defaults", failed.Category, failed.Sentiment, failed.Priority)
	}
	if analyses[0].Fallback || analyses[2].Fallback {
		t.Error("healthy tickets should not be marked fallback")
	}

	// Fallback records are never cached; successful ones are
	if _, ok := store.GetAnalysis(tickets[1].DateKey(), tickets[1].ID); ok {
		t.Error("fallback analysis must not be cached")
	}
	if _, ok := store.GetAnalysis(tickets[0].DateKey(), tickets[0].ID); !ok {
		t.Error("successful analysis should be cached")
	}
}

func TestExtractBatchAbortsOnAuthError(t *testing.T) {
	tickets := []*models.Ticket{
		testTicket(0, "2025-01-01", "one"),
		testTicket(1, "2025-01-01", "two"),
		testTicket(2, "2025-01-01", "three"),
	}

	mock := &mockLLM{respond: func(prompt string) (string, error) {
		return "", &llm.ServiceError{Kind: llm.KindAuth, Provider: "test", Err: errors.New("invalid api key")}
	}}

	extractor := NewExtractor(mock, newTestCache(t), DefaultPrompts(), arbor.NewLogger())
	analyses, err := extractor.ExtractBatch(context.Background(), tickets)
	if err == nil {
		t.Fatal("ExtractBatch() should abort on credential rejection")
	}
	if !llm.IsAuthError(err) {
		t.Errorf("ExtractBatch() error = %v, want an auth error", err)
	}
	if analyses != nil {
		t.Error("an aborted batch should not return partial results")
	}
}

func TestExtractBatchEmptyInput(t *testing.T) {
	mock := &mockLLM{respond: func(prompt string) (string, error) {
		return "", errors.New("should not be called")
	}}

	extractor := NewExtractor(mock, newTestCache(t), DefaultPrompts(), arbor.NewLogger())
	analyses, err := extractor.ExtractBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExtractBatch(nil) failed: %v", err)
	}
	if len(analyses) != 0 {
		t.Errorf("ExtractBatch(nil) returned %d analyses, want 0", len(analyses))
	}
}
