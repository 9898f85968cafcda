package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

type fakePositions struct {
	mu        sync.Mutex
	positions []domain.Position
	err       error
	calls     int
}

func (f *fakePositions) FetchPositions(context.Context, string, string) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.positions, f.err
}

type memStore struct {
	mu    sync.Mutex
	snaps []domain.LivePositionSnapshot
	err   error
}

func (m *memStore) AppendSnapshot(_ context.Context, s domain.LivePositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *memStore) SnapshotsBetween(_ context.Context, from, to time.Time) ([]domain.LivePositionSnapshot, error) {
	return nil, nil
}

func (m *memStore) LoadRecentSnapshots(_ context.Context, limit int) ([]domain.LivePositionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) > limit {
		return m.snaps[len(m.snaps)-limit:], nil
	}
	return m.snaps, nil
}

func (m *memStore) Stats(context.Context) (domain.SnapshotStats, error) {
	return domain.SnapshotStats{Count: len(m.snaps)}, nil
}

func (m *memStore) Close() error { return nil }

func butterflyPositions() []domain.Position {
	return []domain.Position{
		{Title: "Will Elon Musk post 200-219 tweets?", Outcome: domain.OutcomeYes, Size: 500, CurrentValue: 150, CashPnL: 20},
		{Title: "Will Elon Musk post 180-199 tweets?", Outcome: domain.OutcomeYes, Size: 300, CurrentValue: 60, CashPnL: -5},
		{Title: "Will Elon Musk post 260-279 tweets?", Outcome: domain.OutcomeNo, Size: 200, CurrentValue: 190, CashPnL: 2},
	}
}

func newTestTracker(provider *fakePositions, store ports.SnapshotStore, retention int) *Tracker {
	tr := New(Config{Wallet: "0xabc", EventSlug: "ev", Retention: retention}, provider, store)
	clock := time.Date(2025, 12, 12, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time {
		clock = clock.Add(5 * time.Second)
		return clock
	}
	return tr
}

func TestPoll_PublishesAndPersists(t *testing.T) {
	store := &memStore{}
	tr := newTestTracker(&fakePositions{positions: butterflyPositions()}, store, 0)

	snap, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 3, snap.TotalPositions)
	assert.InDelta(t, 400.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 17.0, snap.TotalPnL, 1e-9)

	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, snap.ID, latest.ID)
	assert.Len(t, store.snaps, 1)
	assert.Equal(t, snap.Timestamp, tr.LastUpdate())

	bf, ok := tr.Butterfly()
	require.True(t, ok)
	require.Len(t, bf, 3)
	assert.Equal(t, "180-199", bf[0].Bucket)
	assert.Equal(t, "260-279", bf[2].Bucket)
	assert.Equal(t, -200.0, bf[2].Net())
}

func TestPoll_NoPositionsAppendsNothing(t *testing.T) {
	store := &memStore{}
	tr := newTestTracker(&fakePositions{}, store, 0)

	_, err := tr.Poll(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoData)
	assert.Empty(t, tr.History())
	assert.Empty(t, store.snaps)

	_, ok := tr.Latest()
	assert.False(t, ok)
	_, ok = tr.Butterfly()
	assert.False(t, ok)
}

func TestPoll_FetchError(t *testing.T) {
	tr := newTestTracker(&fakePositions{err: errors.New("data-api 503")}, nil, 0)
	_, err := tr.Poll(context.Background())
	require.Error(t, err)
	assert.Empty(t, tr.History())
}

func TestPoll_WithoutStoreKeepsMemoryOnly(t *testing.T) {
	tr := New(Config{Retention: 2}, &fakePositions{positions: butterflyPositions()}, nil)

	n, err := tr.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 3; i++ {
		_, err := tr.Poll(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, tr.History(), 2)
	_, ok := tr.Latest()
	assert.True(t, ok)
}

func TestPoll_StoreErrorStillPublishes(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	tr := newTestTracker(&fakePositions{positions: butterflyPositions()}, store, 0)

	_, err := tr.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, tr.History(), 1)
}

func TestPoll_RetentionKeepsNewest(t *testing.T) {
	tr := newTestTracker(&fakePositions{positions: butterflyPositions()}, nil, 3)

	var ids []string
	for i := 0; i < 5; i++ {
		s, err := tr.Poll(context.Background())
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	h := tr.History()
	require.Len(t, h, 3)
	assert.Equal(t, ids[2], h[0].ID)
	assert.Equal(t, ids[4], h[2].ID)
}

func TestHistory_ReadersKeepTheirView(t *testing.T) {
	tr := newTestTracker(&fakePositions{positions: butterflyPositions()}, nil, 0)
	_, err := tr.Poll(context.Background())
	require.NoError(t, err)

	before := tr.History()
	_, err = tr.Poll(context.Background())
	require.NoError(t, err)

	assert.Len(t, before, 1)
	assert.Len(t, tr.History(), 2)
}

func TestRestore_LoadsFromStore(t *testing.T) {
	store := &memStore{}
	first := newTestTracker(&fakePositions{positions: butterflyPositions()}, store, 0)
	for i := 0; i < 4; i++ {
		_, err := first.Poll(context.Background())
		require.NoError(t, err)
	}

	second := newTestTracker(&fakePositions{}, store, 2)
	n, err := second.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, store.snaps[3].Timestamp, second.LastUpdate())
}

func TestDownsample(t *testing.T) {
	var history []domain.LivePositionSnapshot
	base := time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2500; i++ {
		history = append(history, domain.LivePositionSnapshot{Timestamp: base.Add(time.Duration(i) * time.Second), TotalValue: float64(i)})
	}

	points := Downsample(history, 1000)
	require.Len(t, points, 1000)
	assert.Equal(t, 0.0, points[0].TotalValue)
	assert.Equal(t, 2499.0, points[999].TotalValue, "last point kept")

	assert.Len(t, Downsample(history[:10], 1000), 10)
	assert.Equal(t, 2499.0, Downsample(history, 1)[0].TotalValue)
	assert.Nil(t, Downsample(nil, 10))
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	provider := &fakePositions{positions: butterflyPositions()}
	tr := New(Config{Interval: 10 * time.Millisecond}, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return len(tr.History()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
