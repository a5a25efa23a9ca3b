package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Storage    StorageConfig              `yaml:"storage"`
	Log        LogConfig                  `yaml:"log"`
	HTTP       HTTPConfig                 `yaml:"http"`
	Engine     EngineConfig               `yaml:"engine"`
	Catalog    CatalogConfig              `yaml:"catalog"`
	Bookmakers map[string]BookmakerConfig `yaml:"bookmakers"`
	Notify     NotifyConfig               `yaml:"notify"`
	Redis      RedisConfig                `yaml:"redis"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, ":memory:" o postgres://...
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// HTTPConfig controla el servidor de websockets.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"` // vacío desactiva el servidor
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EngineConfig controla los loops del motor.
type EngineConfig struct {
	Benchmark                string   `yaml:"benchmark"` // bookmaker key del benchmark
	RecomputeIntervalSeconds int      `yaml:"recompute_interval_seconds"`
	SyncIntervalSeconds      int      `yaml:"sync_interval_seconds"`
	AutoTradeIntervalSeconds int      `yaml:"autotrade_interval_seconds"`
	BroadcastTickSeconds     int      `yaml:"broadcast_tick_seconds"`
	SyncConcurrency          int      `yaml:"sync_concurrency"`
	Leagues                  []string `yaml:"leagues"` // ligas cuyo árbol completo se descarga en cada ciclo
}

// CatalogConfig siembra deportes y ligas al arrancar.
type CatalogConfig struct {
	Sports  []SportSeed  `yaml:"sports"`
	Leagues []LeagueSeed `yaml:"leagues"`
}

type SportSeed struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Group string `yaml:"group"`
}

type LeagueSeed struct {
	Key   string `yaml:"key"`
	Sport string `yaml:"sport"`
	Title string `yaml:"title"`
	Group string `yaml:"group"`
}

// Domain convierte las semillas del catálogo.
func (c CatalogConfig) Domain() ([]domain.Sport, []domain.League) {
	sports := make([]domain.Sport, 0, len(c.Sports))
	for _, s := range c.Sports {
		sports = append(sports, domain.Sport{Key: s.Key, Title: s.Title, Group: s.Group})
	}
	leagues := make([]domain.League, 0, len(c.Leagues))
	for _, l := range c.Leagues {
		leagues = append(leagues, domain.League{Key: l.Key, SportKey: l.Sport, Title: l.Title, Group: l.Group})
	}
	return sports, leagues
}

// BookmakerConfig es la semilla de un bookmaker. Los campos de
// domain.BookmakerConfig van al mismo nivel en el YAML.
type BookmakerConfig struct {
	Title     string `yaml:"title"`
	ModelType string `yaml:"model_type"` // simple | api
	Active    *bool  `yaml:"active"`

	domain.BookmakerConfig `yaml:",inline"`
}

// NotifyConfig controla los canales de notificación.
type NotifyConfig struct {
	Console  bool           `yaml:"console"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig vacío desactiva Telegram.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// RedisConfig vacío desactiva el fan-out por Redis.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica el YAML y aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// RecomputeInterval es el intervalo del estimador de cuotas justas.
func (c *Config) RecomputeInterval() time.Duration {
	return time.Duration(c.Engine.RecomputeIntervalSeconds) * time.Second
}

// SyncInterval es el intervalo del ciclo de sync + autotrade + settlement.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Engine.SyncIntervalSeconds) * time.Second
}

// AutoTradeInterval es el intervalo del executor.
func (c *Config) AutoTradeInterval() time.Duration {
	return time.Duration(c.Engine.AutoTradeIntervalSeconds) * time.Second
}

// BroadcastTick es el intervalo del broadcast loop.
func (c *Config) BroadcastTick() time.Duration {
	return time.Duration(c.Engine.BroadcastTickSeconds) * time.Second
}

// BookmakerSeeds devuelve los bookmakers configurados ordenados por key.
func (c *Config) BookmakerSeeds() []domain.Bookmaker {
	keys := make([]string, 0, len(c.Bookmakers))
	for k := range c.Bookmakers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Bookmaker, 0, len(keys))
	for _, k := range keys {
		b := c.Bookmakers[k]
		active := true
		if b.Active != nil {
			active = *b.Active
		}
		out = append(out, domain.Bookmaker{
			Key:       k,
			Title:     b.Title,
			ModelType: domain.ModelType(b.ModelType),
			Active:    active,
			Config:    b.BookmakerConfig,
		})
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "valuebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Engine.Benchmark == "" {
		cfg.Engine.Benchmark = "pinnacle"
	}
	if cfg.Engine.RecomputeIntervalSeconds <= 0 {
		cfg.Engine.RecomputeIntervalSeconds = 60
	}
	if cfg.Engine.SyncIntervalSeconds <= 0 {
		cfg.Engine.SyncIntervalSeconds = 60
	}
	if cfg.Engine.AutoTradeIntervalSeconds <= 0 {
		cfg.Engine.AutoTradeIntervalSeconds = 30
	}
	if cfg.Engine.BroadcastTickSeconds <= 0 {
		cfg.Engine.BroadcastTickSeconds = 5
	}
	if cfg.Engine.SyncConcurrency <= 0 {
		cfg.Engine.SyncConcurrency = 4
	}
	if cfg.Redis.ChannelPrefix == "" {
		cfg.Redis.ChannelPrefix = "valuebot"
	}
	for k, b := range cfg.Bookmakers {
		if b.ModelType == "" {
			b.ModelType = string(domain.ModelSimple)
		}
		if b.Title == "" {
			b.Title = k
		}
		cfg.Bookmakers[k] = b
	}
}

func (c *Config) validate() error {
	for k, b := range c.Bookmakers {
		switch domain.ModelType(b.ModelType) {
		case domain.ModelSimple, domain.ModelAPI:
		default:
			return fmt.Errorf("bookmaker %q: unknown model_type %q", k, b.ModelType)
		}
	}
	for _, l := range c.Catalog.Leagues {
		if l.Key == "" || l.Sport == "" {
			return fmt.Errorf("catalog.leagues: key and sport are required")
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}
