// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"github.com/ternarybob/relatio/internal/models"
)

// ResultCache provides persistence for per-ticket analyses and daily
// summaries between runs. A cache miss and a corrupt entry are
// indistinguishable to callers: both report absent, so the pipeline
// recomputes and overwrites.
type ResultCache interface {
	// GetAnalysis retrieves the cached analysis for a ticket on the given
	// day. Returns the analysis and true on a hit, nil and false otherwise.
	GetAnalysis(dateKey, ticketID string) (*models.TicketAnalysis, bool)

	// PutAnalysis persists a successful analysis under the ticket's day.
	PutAnalysis(dateKey string, analysis *models.TicketAnalysis) error

	// GetSummary retrieves the cached summary for a day.
	GetSummary(dateKey string) (*models.DailySummary, bool)

	// PutSummary persists a successful daily summary.
	PutSummary(summary *models.DailySummary) error
}
