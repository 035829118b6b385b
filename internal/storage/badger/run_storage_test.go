package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

func newTestRunStorage(t *testing.T) interfaces.RunStorage {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRunStorage(db, arbor.NewLogger())
}

func testRun(id string, startedAt time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:          id,
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(time.Minute),
		Duration:    time.Minute,
		PeriodStart: "2025-01-01",
		PeriodEnd:   "2025-01-02",
		TicketCount: 10,
		Status:      models.RunStatusCompleted,
	}
}

func TestRunStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := newTestRunStorage(t)

	run := testRun("run_abc", time.Now().UTC())
	require.NoError(t, storage.StoreRun(ctx, run))

	got, err := storage.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.TicketCount, got.TicketCount)
	assert.Equal(t, run.Status, got.Status)
}

func TestRunStorageRejectsMissingID(t *testing.T) {
	storage := newTestRunStorage(t)
	assert.Error(t, storage.StoreRun(context.Background(), &models.RunRecord{}))
}

func TestRunStorageGetMissing(t *testing.T) {
	storage := newTestRunStorage(t)
	_, err := storage.GetRun(context.Background(), "run_nope")
	assert.Error(t, err)
}

func TestRunStorageUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	storage := newTestRunStorage(t)

	run := testRun("run_abc", time.Now().UTC())
	require.NoError(t, storage.StoreRun(ctx, run))

	run.Status = models.RunStatusDegraded
	run.FallbackCount = 3
	require.NoError(t, storage.StoreRun(ctx, run))

	got, err := storage.GetRun(ctx, "run_abc")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDegraded, got.Status)
	assert.Equal(t, 3, got.FallbackCount)

	count, err := storage.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "upserting the same id twice must not duplicate")
}

func TestRunStorageListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	storage := newTestRunStorage(t)

	base := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := testRun(fmt.Sprintf("run_%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, storage.StoreRun(ctx, run))
	}

	runs, err := storage.ListRecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	wantIDs := []string{"run_4", "run_3", "run_2"}
	for i, run := range runs {
		assert.Equal(t, wantIDs[i], run.ID, "runs must list newest first")
	}
}

func TestRunStorageClearAll(t *testing.T) {
	ctx := context.Background()
	storage := newTestRunStorage(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, storage.StoreRun(ctx, testRun(fmt.Sprintf("run_%d", i), time.Now().UTC())))
	}

	require.NoError(t, storage.ClearAll(ctx))

	count, err := storage.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
