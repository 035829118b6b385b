// -----------------------------------------------------------------------
// Last Modified: Tuesday, 14th July 2026 9:41:17 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/relatio/internal/models"
)

// RunStorage - interface for pipeline run ledger persistence
type RunStorage interface {
	// Run operations
	StoreRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	CountRuns(ctx context.Context) (int, error)

	// Bulk operations
	ClearAll(ctx context.Context) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	RunStorage() RunStorage
	DB() interface{}
	Close() error
}
