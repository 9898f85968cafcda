package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultRetention = 20_000 // ~27h a 5s por tick
)

// Config contiene la configuración del tracker.
type Config struct {
	Wallet    string
	EventSlug string
	Interval  time.Duration
	Retention int // snapshots en memoria; el store los guarda todos
}

// view es lo que ven los lectores: se publica entera en cada tick y nunca se muta.
type view struct {
	history []domain.LivePositionSnapshot
	updated time.Time
}

// Tracker sondea las posiciones de una wallet y guarda un snapshot por tick.
//
// Un único writer (Poll/Run) publica una view inmutable con atomic.Pointer;
// los lectores (handlers HTTP) nunca ven un estado a medio actualizar.
type Tracker struct {
	cfg       Config
	positions ports.PositionProvider
	store     ports.SnapshotStore
	view      atomic.Pointer[view]
	now       func() time.Time
}

// New crea un Tracker. store puede ser nil (solo memoria).
func New(cfg Config, positions ports.PositionProvider, store ports.SnapshotStore) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	t := &Tracker{
		cfg:       cfg,
		positions: positions,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
	t.view.Store(&view{})
	return t
}

// Restore recarga desde el store los últimos snapshots (hasta Retention).
func (t *Tracker) Restore(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	snaps, err := t.store.LoadRecentSnapshots(ctx, t.cfg.Retention)
	if err != nil {
		return 0, fmt.Errorf("tracker.Restore: %w", err)
	}
	v := &view{history: snaps}
	if n := len(snaps); n > 0 {
		v.updated = snaps[n-1].Timestamp
	}
	t.view.Store(v)
	slog.Info("tracker history restored", "snapshots", len(snaps))
	return len(snaps), nil
}

// Poll hace un tick: fetch → snapshot → store → publish.
// Sin posiciones devuelve ErrNoData y no añade nada.
func (t *Tracker) Poll(ctx context.Context) (domain.LivePositionSnapshot, error) {
	positions, err := t.positions.FetchPositions(ctx, t.cfg.Wallet, t.cfg.EventSlug)
	if err != nil {
		return domain.LivePositionSnapshot{}, fmt.Errorf("tracker.Poll: %w", err)
	}
	if len(positions) == 0 {
		return domain.LivePositionSnapshot{}, fmt.Errorf("tracker.Poll: %w", domain.ErrNoData)
	}

	snap, err := domain.NewSnapshot(uuid.New().String(), t.now(), positions)
	if err != nil {
		slog.Warn("positions without bucket excluded from exposure", "err", err)
	}

	if t.store != nil {
		if err := t.store.AppendSnapshot(ctx, snap); err != nil {
			slog.Warn("snapshot store error", "err", err)
		}
	}

	t.publish(snap)

	slog.Debug("positions updated",
		"positions", snap.TotalPositions,
		"value", snap.TotalValue,
		"pnl", snap.TotalPnL,
	)
	return snap, nil
}

// publish añade el snapshot y aplica la retención. Solo lo llama el writer.
func (t *Tracker) publish(snap domain.LivePositionSnapshot) {
	old := t.view.Load()
	history := append(old.history, snap)
	if over := len(history) - t.cfg.Retention; over > 0 {
		history = history[over:]
	}
	t.view.Store(&view{history: history, updated: snap.Timestamp})
}

// Run sondea cada Interval hasta que el contexto se cancele.
func (t *Tracker) Run(ctx context.Context) error {
	slog.Info("tracker starting",
		"wallet", t.cfg.Wallet,
		"event", t.cfg.EventSlug,
		"interval", t.cfg.Interval,
	)

	t.tick(ctx)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("tracker stopped")
			return nil
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	if _, err := t.Poll(ctx); err != nil {
		if errors.Is(err, domain.ErrNoData) {
			slog.Debug("no positions for event", "event", t.cfg.EventSlug)
			return
		}
		if ctx.Err() == nil {
			slog.Warn("poll failed", "err", err)
		}
	}
}

// Latest devuelve el último snapshot publicado.
func (t *Tracker) Latest() (domain.LivePositionSnapshot, bool) {
	v := t.view.Load()
	if len(v.history) == 0 {
		return domain.LivePositionSnapshot{}, false
	}
	return v.history[len(v.history)-1], true
}

// LastUpdate es el timestamp del último snapshot (cero si no hay).
func (t *Tracker) LastUpdate() time.Time {
	return t.view.Load().updated
}

// History devuelve la historia en memoria. El slice es de solo lectura.
func (t *Tracker) History() []domain.LivePositionSnapshot {
	return t.view.Load().history
}

// Butterfly devuelve la exposición por bucket del último snapshot, ordenada por bucket.
func (t *Tracker) Butterfly() ([]domain.BucketExposure, bool) {
	snap, ok := t.Latest()
	if !ok {
		return nil, false
	}
	return snap.Exposures, true
}

// TimelinePoint es un punto del gráfico de evolución.
type TimelinePoint struct {
	Time       time.Time          `json:"timestamp"`
	TotalValue float64            `json:"total_value"`
	TotalPnL   float64            `json:"total_pnl"`
	Net        map[string]float64 `json:"buckets"`
}

// Timeline reduce la historia a como mucho maxPoints puntos equiespaciados,
// conservando siempre el primero y el último.
func (t *Tracker) Timeline(maxPoints int) []TimelinePoint {
	return Downsample(t.History(), maxPoints)
}

// Downsample elige maxPoints índices equiespaciados de history (incluye el último).
func Downsample(history []domain.LivePositionSnapshot, maxPoints int) []TimelinePoint {
	n := len(history)
	if n == 0 {
		return nil
	}
	idx := make([]int, 0, min(n, max(maxPoints, 1)))
	switch {
	case maxPoints <= 0 || n <= maxPoints:
		for i := 0; i < n; i++ {
			idx = append(idx, i)
		}
	case maxPoints == 1:
		idx = append(idx, n-1)
	default:
		for i := 0; i < maxPoints; i++ {
			idx = append(idx, i*(n-1)/(maxPoints-1))
		}
	}

	out := make([]TimelinePoint, len(idx))
	for i, j := range idx {
		s := history[j]
		out[i] = TimelinePoint{
			Time:       s.Timestamp,
			TotalValue: s.TotalValue,
			TotalPnL:   s.TotalPnL,
			Net:        s.Net(),
		}
	}
	return out
}
