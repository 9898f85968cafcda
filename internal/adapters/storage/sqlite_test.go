package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/butterfly/internal/adapters/storage"
	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 12, 12, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeSnapshot(t *testing.T, i int) domain.LivePositionSnapshot {
	t.Helper()
	positions := []domain.Position{
		{Title: "Will Elon Musk post 200-219 tweets?", EventSlug: "ev", Outcome: domain.OutcomeYes, Size: 500, AvgPrice: 0.2, CurPrice: 0.25, CurrentValue: 125, CashPnL: 25, PercentPnL: 25},
		{Title: "Will Elon Musk post 180-199 tweets?", Bucket: "180-199", EventSlug: "ev", Outcome: domain.OutcomeNo, Size: 100, CurrentValue: 80, CashPnL: float64(-i)},
	}
	snap, err := domain.NewSnapshot(fmt.Sprintf("snap-%02d", i), base.Add(time.Duration(i)*5*time.Second), positions)
	require.NoError(t, err)
	return snap
}

func TestSQLiteStorage_AppendAndLoadBetween(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.AppendSnapshot(ctx, makeSnapshot(t, i)))
	}

	snaps, err := db.SnapshotsBetween(ctx, base, base.Add(5*time.Second))
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	s := snaps[1]
	assert.Equal(t, "snap-01", s.ID)
	assert.Equal(t, base.Add(5*time.Second), s.Timestamp)
	assert.Equal(t, 2, s.TotalPositions)
	assert.InDelta(t, 205.0, s.TotalValue, 1e-9)
	assert.InDelta(t, 24.0, s.TotalPnL, 1e-9)

	require.Len(t, s.Exposures, 2)
	assert.Equal(t, "180-199", s.Exposures[0].Bucket)
	assert.Equal(t, -100.0, s.Exposures[0].Net())
	assert.Equal(t, 500.0, s.Exposures[1].YesSize)

	require.Len(t, s.Positions, 2)
	assert.Equal(t, domain.OutcomeYes, s.Positions[0].Outcome)
	assert.InDelta(t, 0.25, s.Positions[0].CurPrice, 1e-12)
	assert.Equal(t, "180-199", s.Positions[1].Bucket)
}

func TestSQLiteStorage_DuplicateIDRollsBack(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	snap := makeSnapshot(t, 0)
	require.NoError(t, db.AppendSnapshot(ctx, snap))
	require.Error(t, db.AppendSnapshot(ctx, snap))

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)

	snaps, err := db.LoadRecentSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0].Exposures, 2, "la transacción fallida no deja filas sueltas")
}

func TestSQLiteStorage_LoadRecentSnapshots(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, db.AppendSnapshot(ctx, makeSnapshot(t, i)))
	}

	snaps, err := db.LoadRecentSnapshots(ctx, 4)
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, "snap-02", snaps[0].ID)
	assert.Equal(t, "snap-05", snaps[3].ID)

	all, err := db.LoadRecentSnapshots(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	none, err := db.LoadRecentSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStorage_Stats(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Count)
	assert.True(t, st.First.IsZero())

	for i := 0; i < 3; i++ {
		require.NoError(t, db.AppendSnapshot(ctx, makeSnapshot(t, i)))
	}

	st, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, base, st.First)
	assert.Equal(t, base.Add(10*time.Second), st.Last)
	assert.Equal(t, 2, st.UniqueBuckets)
}

func TestSQLiteStorage_HistoryRoundTrip(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	start := time.Date(2025, 12, 2, 17, 0, 0, 0, time.UTC)
	w1, err := domain.NewHistoricalWeek(start, start.AddDate(0, 0, 7), "200-219", "Dec 2 - Dec 9")
	require.NoError(t, err)
	w0, err := domain.NewHistoricalWeek(start.AddDate(0, 0, -7), start, "140-339", "Nov 25 - Dec 2")
	require.NoError(t, err)

	require.NoError(t, db.SaveHistory(ctx, []domain.HistoricalWeek{w1, w0}))

	weeks, err := db.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, w0, weeks[0], "ordenado por cierre")
	assert.Equal(t, w1, weeks[1])

	// SaveHistory reemplaza
	require.NoError(t, db.SaveHistory(ctx, []domain.HistoricalWeek{w1}))
	weeks, err = db.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, weeks, 1)
}

func TestSQLiteStorage_EmptyHistory(t *testing.T) {
	db := newStore(t)
	weeks, err := db.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, weeks)
}
