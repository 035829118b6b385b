package tickets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test CSV: %v", err)
	}
	return path
}

func TestLoadAssignsPositionalIDs(t *testing.T) {
	path := writeCSV(t, `ds,original_message
2025-01-01T09:00:00,App crashes on login
2025-01-01T10:30:00,How do I export my data?
2025-01-02T08:15:00,Billing page shows wrong total
`)

	loader := NewLoader(arbor.NewLogger())
	tickets, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(tickets) != 3 {
		t.Fatalf("Load() returned %d tickets, want 3", len(tickets))
	}

	wantIDs := []string{"ticket_0", "ticket_1", "ticket_2"}
	for i, ticket := range tickets {
		if ticket.ID != wantIDs[i] {
			t.Errorf("ticket %d has id %s, want %s", i, ticket.ID, wantIDs[i])
		}
	}
	if tickets[0].Content != "App crashes on login" {
		t.Errorf("ticket_0 content = %q", tickets[0].Content)
	}
	if tickets[2].DateKey() != "2025-01-02" {
		t.Errorf("ticket_2 date key = %s, want 2025-01-02", tickets[2].DateKey())
	}
}

func TestLoadWindowFiltersByDay(t *testing.T) {
	path := writeCSV(t, `ds,original_message
2025-01-01T09:00:00,in window day one
2025-01-02T10:00:00,in window day two
2025-01-03T11:00:00,outside window
2024-12-31T12:00:00,before window
`)

	loader := NewLoader(arbor.NewLogger())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	tickets, err := loader.LoadWindow(path, start, end)
	if err != nil {
		t.Fatalf("LoadWindow() failed: %v", err)
	}

	if len(tickets) != 2 {
		t.Fatalf("LoadWindow() returned %d tickets, want 2", len(tickets))
	}
	// Ids stay positional relative to the full export, not the filtered view
	if tickets[0].ID != "ticket_0" || tickets[1].ID != "ticket_1" {
		t.Errorf("filtered ids = %s, %s; want ticket_0, ticket_1", tickets[0].ID, tickets[1].ID)
	}
}

func TestLoadKeepsTicketsWithUnparseableTimestamps(t *testing.T) {
	path := writeCSV(t, `ds,original_message
not-a-date,ticket with broken timestamp
2025-01-01T09:00:00,normal ticket
`)

	loader := NewLoader(arbor.NewLogger())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tickets, err := loader.LoadWindow(path, start, end)
	if err != nil {
		t.Fatalf("LoadWindow() failed: %v", err)
	}

	// The broken-timestamp ticket passes the window filter rather than being
	// silently dropped
	if len(tickets) != 2 {
		t.Fatalf("LoadWindow() returned %d tickets, want 2", len(tickets))
	}
	if tickets[0].CreatedAt.IsZero() {
		t.Error("broken-timestamp ticket should carry the load time, not zero")
	}
}

func TestLoadParsesExtraColumnAsMetadata(t *testing.T) {
	path := writeCSV(t, `ds,original_message,extra
2025-01-01T09:00:00,crash on save,"{""plan"": ""pro"", ""region"": ""eu""}"
2025-01-01T10:00:00,slow search,not json
`)

	loader := NewLoader(arbor.NewLogger())
	tickets, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if tickets[0].Metadata["plan"] != "pro" {
		t.Errorf("ticket_0 metadata = %v, want plan=pro", tickets[0].Metadata)
	}
	// Undecodable extra is ignored, not fatal
	if tickets[1].Metadata != nil {
		t.Errorf("ticket_1 metadata = %v, want nil for unparseable extra", tickets[1].Metadata)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	path := writeCSV(t, `timestamp,message
2025-01-01,hello
`)

	loader := NewLoader(arbor.NewLogger())
	if _, err := loader.Load(path); err == nil {
		t.Error("Load() should fail when required columns are missing")
	}
}

func TestDateRangeDefaultsToLatestTwoDays(t *testing.T) {
	path := writeCSV(t, `ds,original_message
2025-01-01T09:00:00,old
2025-01-05T09:00:00,latest
2025-01-03T09:00:00,middle
`)

	loader := NewLoader(arbor.NewLogger())
	start, end, err := loader.DateRange(path)
	if err != nil {
		t.Fatalf("DateRange() failed: %v", err)
	}

	if got := start.Format("2006-01-02"); got != "2025-01-04" {
		t.Errorf("DateRange() start = %s, want 2025-01-04", got)
	}
	if got := end.Format("2006-01-02"); got != "2025-01-05" {
		t.Errorf("DateRange() end = %s, want 2025-01-05", got)
	}
}

func TestDateRangeFailsWithoutParseableDates(t *testing.T) {
	path := writeCSV(t, `ds,original_message
garbage,one
more garbage,two
`)

	loader := NewLoader(arbor.NewLogger())
	if _, _, err := loader.DateRange(path); err == nil {
		t.Error("DateRange() should fail when no row has a parseable date")
	}
}
