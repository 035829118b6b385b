package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func TestSchedulerRunNowExecutesPipeline(t *testing.T) {
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

	scheduler := NewScheduler(pipe, arbor.NewLogger())
	scheduler.RunNow()

	// The run is asynchronous; the Markdown artifact is the last file the
	// driver writes for this configuration, so its appearance means the run
	// went end to end.
	markdown := filepath.Join(config.Storage.Filesystem.Reports, "report_2025-01-01_2025-01-02.md")
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(markdown); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("RunNow() did not produce a report before the deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	extracts, summarizes, reports := model.counts()
	if extracts != 5 || summarizes != 2 || reports != 1 {
		t.Errorf("model calls = %d/%d/%d, want 5 extractions, 2 summaries, 1 report", extracts, summarizes, reports)
	}
}
