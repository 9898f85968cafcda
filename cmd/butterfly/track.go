package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/butterfly/config"
	"github.com/alejandrodnm/butterfly/internal/adapters/notify"
	"github.com/alejandrodnm/butterfly/internal/adapters/polymarket"
	"github.com/alejandrodnm/butterfly/internal/adapters/storage"
	"github.com/alejandrodnm/butterfly/internal/adapters/web"
	"github.com/alejandrodnm/butterfly/internal/application/tracker"
)

func runTrack(ctx context.Context, cfg *config.Config, client *polymarket.Client, store *storage.SQLiteStorage, console *notify.Console, once bool) {
	if cfg.Market.Wallet == "" {
		slog.Error("track mode needs market.wallet (or BUTTERFLY_WALLET)")
		os.Exit(1)
	}

	tr := tracker.New(tracker.Config{
		Wallet:    cfg.Market.Wallet,
		EventSlug: cfg.Market.EventSlug,
		Interval:  cfg.TrackerInterval(),
		Retention: cfg.Tracker.Retention,
	}, client, store)

	if once {
		snap, err := tr.Poll(ctx)
		if err != nil {
			slog.Error("poll failed", "err", err)
			os.Exit(1)
		}
		console.PrintSnapshot(snap)
		return
	}

	if _, err := tr.Restore(ctx); err != nil {
		slog.Warn("could not restore tracker history", "err", err)
	}

	// Si el servidor no arranca (puerto ocupado) se para también el tracker.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := web.NewServer(tr, store, cfg.Tracker.TimelinePoints)
	errCh := make(chan error, 1)
	go func() {
		err := srv.Run(ctx, cfg.Tracker.HTTPAddr)
		if err != nil {
			cancel()
		}
		errCh <- err
	}()

	if err := tr.Run(ctx); err != nil {
		slog.Error("tracker exited with error", "err", err)
		os.Exit(1)
	}
	if err := <-errCh; err != nil {
		slog.Error("http server exited with error", "err", err)
		os.Exit(1)
	}
}

func runReport(ctx context.Context, store *storage.SQLiteStorage, console *notify.Console) {
	st, err := store.Stats(ctx)
	if err != nil {
		slog.Error("failed to read store stats", "err", err)
		os.Exit(1)
	}
	console.PrintStoreStats(st)
}
