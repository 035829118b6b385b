package models

import "time"

// DateKeyFormat is the canonical day format used for grouping tickets,
// naming summary cache entries, and building report period bounds.
const DateKeyFormat = "2006-01-02"

// Ticket represents a single inbound support ticket loaded from a CSV export.
// Tickets are immutable once loaded: the extractor consumes them exactly once.
type Ticket struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// DateKey returns the calendar day this ticket belongs to.
// The loader guarantees CreatedAt is populated, so the key is stable
// within and across runs.
func (t *Ticket) DateKey() string {
	return t.CreatedAt.Format(DateKeyFormat)
}
