package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/butterfly/config"
	"github.com/alejandrodnm/butterfly/internal/adapters/notify"
	"github.com/alejandrodnm/butterfly/internal/application/allocator"
	"github.com/alejandrodnm/butterfly/internal/application/planner"
	"github.com/alejandrodnm/butterfly/internal/application/projector"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

// plannerConfig traduce la config de archivo a la del pipeline.
func plannerConfig(cfg *config.Config) planner.Config {
	tiered := allocator.TieredConfig{
		DefaultWeight:   cfg.Allocation.DefaultWeight,
		BonusMultiplier: cfg.Allocation.BonusMultiplier,
		MinDisplay:      cfg.Allocation.MinDisplayUSD,
	}
	for _, t := range cfg.Allocation.Tiers {
		tiered.Tiers = append(tiered.Tiers, allocator.Tier{MaxZ: t.MaxZ, Weight: t.Weight})
	}

	rebalance := allocator.DefaultRebalanceConfig(cfg.Allocation.Capital)
	rebalance.Threshold = cfg.Allocation.RebalanceThresh
	rebalance.MaxFraction = cfg.Allocation.MaxBucketFraction

	return planner.Config{
		EventSlug:     cfg.Market.EventSlug,
		Wallet:        cfg.Market.Wallet,
		ShortLookback: cfg.ShortLookback(),
		LongLookback:  cfg.LongLookback(),
		HistoryWindow: cfg.HistoryWindow(),
		Capital:       cfg.Allocation.Capital,
		CurveWidth:    cfg.Allocation.CurveWidth,
		TotalHours:    cfg.Market.TotalHours,
		Projection: projector.Config{
			Simulations: cfg.Projection.Simulations,
			Workers:     cfg.Projection.Workers,
			Seed:        cfg.Projection.Seed,
		},
		Tiered:    tiered,
		Rebalance: rebalance,
	}
}

func runPlan(ctx context.Context, cfg *config.Config, history ports.HistoryProvider, store ports.HistoryStore, console *notify.Console) {
	p := planner.New(plannerConfig(cfg), planner.NewAppState(nil), planner.Deps{
		History: history,
		Store:   store,
	})

	if err := p.Refresh(ctx); err != nil {
		slog.Error("no historical corpus available", "err", err)
		os.Exit(1)
	}

	res, err := p.PrePlan()
	if err != nil {
		slog.Error("pre-plan failed", "err", err)
		os.Exit(1)
	}
	console.PrintPrePlan(res)
}
