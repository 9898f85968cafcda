package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/butterfly/config"
	"github.com/alejandrodnm/butterfly/internal/adapters/cache"
	"github.com/alejandrodnm/butterfly/internal/adapters/notify"
	"github.com/alejandrodnm/butterfly/internal/adapters/polymarket"
	"github.com/alejandrodnm/butterfly/internal/adapters/storage"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	plan := flag.Bool("plan", false, "pre-week plan from the historical corpus and exit")
	track := flag.Bool("track", false, "track wallet positions and serve them over HTTP")
	report := flag.Bool("report", false, "print snapshot store stats and exit")
	once := flag.Bool("once", false, "run one live/track cycle and exit")
	every := flag.Duration("every", time.Minute, "live plan refresh interval")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	mode := "live"
	switch {
	case *plan:
		mode = "plan"
	case *track:
		mode = "track"
	case *report:
		mode = "report"
	}

	slog.Info("butterfly starting",
		"config", *configPath,
		"mode", mode,
		"event", cfg.Market.EventSlug,
		"once", *once,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if mode == "report" {
		runReport(ctx, store, console)
		return
	}

	client := polymarket.NewClient(cfg.API.GammaBase, cfg.API.DataBase, cfg.API.XTrackerBase).
		WithTrackedUser(cfg.API.XTrackerUser)

	switch mode {
	case "plan":
		history, closeCache := historyProvider(ctx, cfg, client)
		defer closeCache()
		runPlan(ctx, cfg, history, store, console)
	case "track":
		runTrack(ctx, cfg, client, store, console, *once)
	default:
		history, closeCache := historyProvider(ctx, cfg, client)
		defer closeCache()
		notifier := buildNotifier(cfg, console)
		runLive(ctx, cfg, liveDeps{
			history:  history,
			store:    store,
			client:   client,
			notifier: notifier,
			console:  console,
		}, *every, *once)
	}

	slog.Info("butterfly stopped cleanly")
}

// historyProvider envuelve el cliente con la caché Redis si hay addr configurada.
func historyProvider(ctx context.Context, cfg *config.Config, client *polymarket.Client) (ports.HistoryProvider, func()) {
	if cfg.Cache.RedisAddr == "" {
		return client, func() {}
	}
	c := cache.NewCorpusCache(cache.NewRedisClient(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword), cfg.CacheTTL())
	if err := c.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, corpus cache degraded", "addr", cfg.Cache.RedisAddr, "err", err)
	}
	return cache.NewCachedHistory(client, c), func() { _ = c.Close() }
}

// buildNotifier combina consola y, si está habilitado, Telegram.
func buildNotifier(cfg *config.Config, console *notify.Console) ports.Notifier {
	if !cfg.Telegram.Enabled {
		return console
	}
	tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		slog.Warn("telegram disabled", "err", err)
		return console
	}
	return notify.Multi{console, tg}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
