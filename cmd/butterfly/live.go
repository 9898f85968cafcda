package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/butterfly/config"
	"github.com/alejandrodnm/butterfly/internal/adapters/notify"
	"github.com/alejandrodnm/butterfly/internal/adapters/polymarket"
	"github.com/alejandrodnm/butterfly/internal/application/planner"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

// corpusRefreshEvery es cada cuánto se vuelve a descargar el corpus en modo live.
const corpusRefreshEvery = 6 * time.Hour

type liveDeps struct {
	history  ports.HistoryProvider
	store    ports.HistoryStore
	client   *polymarket.Client
	notifier ports.Notifier
	console  *notify.Console
}

func runLive(ctx context.Context, cfg *config.Config, deps liveDeps, every time.Duration, once bool) {
	if cfg.Market.EventSlug == "" {
		slog.Error("live mode needs market.event_slug (or BUTTERFLY_EVENT_SLUG)")
		os.Exit(1)
	}

	p := planner.New(plannerConfig(cfg), planner.NewAppState(nil), planner.Deps{
		History:   deps.history,
		Store:     deps.store,
		Market:    deps.client,
		Events:    deps.client,
		Positions: deps.client,
		Notifier:  deps.notifier,
	})

	// Sin corpus el pipeline sigue: la std sale de la propia simulación.
	if err := p.Refresh(ctx); err != nil {
		slog.Warn("historical corpus unavailable", "err", err)
	}

	tick := func() {
		if time.Since(p.State().LastFetch()) > corpusRefreshEvery {
			if err := p.Refresh(ctx); err != nil {
				slog.Warn("corpus refresh failed", "err", err)
			}
		}
		lp, err := p.LivePlan(ctx, time.Now().UTC())
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("live plan failed", "err", err)
			}
			return
		}
		deps.console.PrintLivePlan(lp)
	}

	slog.Info("live planner starting", "event", cfg.Market.EventSlug, "every", every)
	tick()
	if once {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("live planner stopped")
			return
		case <-ticker.C:
			tick()
		}
	}
}
