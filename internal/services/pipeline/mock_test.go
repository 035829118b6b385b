package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/services/cache"
)

// mockLLM scripts model responses for pipeline tests. respond receives the
// last user message and returns the raw model output.
type mockLLM struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(prompt string) (string, error)
}

func (m *mockLLM) record(req *interfaces.CompletionRequest) string {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return prompt
}

func (m *mockLLM) GenerateJSON(ctx context.Context, req *interfaces.CompletionRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := m.respond(m.record(req))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(text), nil
}

func (m *mockLLM) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLM) Close() error                          { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockLLM) promptLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func newPipelineCache(config *common.Config) (*cache.Store, error) {
	return cache.NewStore(config.Storage.Filesystem.Analyses, config.Storage.Filesystem.Summaries, arbor.NewLogger())
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	root := t.TempDir()
	store, err := cache.NewStore(filepath.Join(root, "analyses"), filepath.Join(root, "summaries"), arbor.NewLogger())
	if err != nil {
		t.Fatalf("cache.NewStore() failed: %v", err)
	}
	return store
}

func testTicket(idx int, day string, content string) *models.Ticket {
	created, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(fmt.Sprintf("bad test day %q: %v", day, err))
	}
	return &models.Ticket{
		ID:        fmt.Sprintf("ticket_%d", idx),
		Content:   content,
		CreatedAt: created.Add(9 * time.Hour),
	}
}
