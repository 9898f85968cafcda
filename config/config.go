package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de butterfly.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Market     MarketConfig     `yaml:"market"`
	Projection ProjectionConfig `yaml:"projection"`
	Allocation AllocationConfig `yaml:"allocation"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	GammaBase    string `yaml:"gamma_base"`
	DataBase     string `yaml:"data_base"`
	XTrackerBase string `yaml:"xtracker_base"`
	XTrackerUser string `yaml:"xtracker_user"`
}

// MarketConfig identifica el mercado semanal y la wallet a seguir.
type MarketConfig struct {
	EventSlug  string  `yaml:"event_slug"`
	Wallet     string  `yaml:"wallet"`      // vacío = sin tracker ni sugerencias
	TotalHours float64 `yaml:"total_hours"` // si el evento no trae fechas
}

// ProjectionConfig controla el Monte Carlo y las ventanas de tasa.
type ProjectionConfig struct {
	Simulations        int    `yaml:"simulations"`
	ShortLookbackHours int    `yaml:"short_lookback_hours"`
	LongLookbackHours  int    `yaml:"long_lookback_hours"`
	HistoryDays        int    `yaml:"history_days"`
	Workers            int    `yaml:"workers"` // 0 = secuencial
	Seed               uint64 `yaml:"seed"`    // 0 = por tiempo
}

// TierConfig es un escalón de la estrategia por tiers: z < MaxZ → Weight.
type TierConfig struct {
	MaxZ   float64 `yaml:"max_z"`
	Weight float64 `yaml:"weight"`
}

// AllocationConfig parametriza las estrategias de asignación.
type AllocationConfig struct {
	Capital           float64      `yaml:"capital"`
	CurveWidth        float64      `yaml:"curve_width"`
	MinDisplayUSD     float64      `yaml:"min_display_usd"`
	BonusMultiplier   float64      `yaml:"bonus_multiplier"`
	Tiers             []TierConfig `yaml:"tiers"`
	DefaultWeight     float64      `yaml:"default_weight"`
	RebalanceThresh   float64      `yaml:"rebalance_threshold_usd"`
	MaxBucketFraction float64      `yaml:"max_bucket_fraction"`
}

// TrackerConfig controla el seguimiento de posiciones y su API HTTP.
type TrackerConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Retention       int    `yaml:"retention"`
	HTTPAddr        string `yaml:"http_addr"`
	TimelinePoints  int    `yaml:"timeline_points"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// CacheConfig configura la caché Redis del corpus. Sin addr no hay caché.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	TTLHours      int    `yaml:"ttl_hours"`
}

// TelegramConfig configura las alertas por Telegram.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// TrackerInterval devuelve el intervalo de sondeo como time.Duration.
func (c *Config) TrackerInterval() time.Duration {
	return time.Duration(c.Tracker.IntervalSeconds) * time.Second
}

// ShortLookback es la ventana de la tasa corta.
func (c *Config) ShortLookback() time.Duration {
	return time.Duration(c.Projection.ShortLookbackHours) * time.Hour
}

// LongLookback es la ventana de la tasa larga.
func (c *Config) LongLookback() time.Duration {
	return time.Duration(c.Projection.LongLookbackHours) * time.Hour
}

// HistoryWindow es la ventana de las estadísticas por hora.
func (c *Config) HistoryWindow() time.Duration {
	return time.Duration(c.Projection.HistoryDays) * 24 * time.Hour
}

// CacheTTL es la vida del corpus en Redis.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BUTTERFLY_WALLET"); v != "" {
		cfg.Market.Wallet = v
	}
	if v := os.Getenv("BUTTERFLY_EVENT_SLUG"); v != "" {
		cfg.Market.EventSlug = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.XTrackerBase == "" {
		cfg.API.XTrackerBase = "https://xtracker.polymarket.com"
	}
	if cfg.API.XTrackerUser == "" {
		cfg.API.XTrackerUser = "elonmusk"
	}
	if cfg.Market.TotalHours <= 0 {
		cfg.Market.TotalHours = 168
	}

	if cfg.Projection.Simulations <= 0 {
		cfg.Projection.Simulations = 10_000
	}
	if cfg.Projection.ShortLookbackHours <= 0 {
		cfg.Projection.ShortLookbackHours = 24
	}
	if cfg.Projection.LongLookbackHours <= 0 {
		cfg.Projection.LongLookbackHours = 72
	}
	if cfg.Projection.HistoryDays <= 0 {
		cfg.Projection.HistoryDays = 365
	}

	if cfg.Allocation.Capital <= 0 {
		cfg.Allocation.Capital = 250
	}
	if cfg.Allocation.CurveWidth <= 0 {
		cfg.Allocation.CurveWidth = 20
	}
	if cfg.Allocation.MinDisplayUSD <= 0 {
		cfg.Allocation.MinDisplayUSD = 5
	}
	if cfg.Allocation.BonusMultiplier <= 0 {
		cfg.Allocation.BonusMultiplier = 5
	}
	if len(cfg.Allocation.Tiers) == 0 {
		cfg.Allocation.Tiers = []TierConfig{
			{MaxZ: 0.5, Weight: 80},
			{MaxZ: 1.0, Weight: 50},
			{MaxZ: 1.5, Weight: 25},
		}
	}
	if cfg.Allocation.DefaultWeight <= 0 {
		cfg.Allocation.DefaultWeight = 10
	}
	if cfg.Allocation.RebalanceThresh <= 0 {
		cfg.Allocation.RebalanceThresh = 5
	}
	if cfg.Allocation.MaxBucketFraction <= 0 {
		cfg.Allocation.MaxBucketFraction = 0.4
	}

	if cfg.Tracker.IntervalSeconds <= 0 {
		cfg.Tracker.IntervalSeconds = 5
	}
	if cfg.Tracker.Retention <= 0 {
		cfg.Tracker.Retention = 20_000
	}
	if cfg.Tracker.HTTPAddr == "" {
		cfg.Tracker.HTTPAddr = ":5000"
	}
	if cfg.Tracker.TimelinePoints <= 0 {
		cfg.Tracker.TimelinePoints = 1000
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "butterfly.db"
	}
	if cfg.Cache.TTLHours <= 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
