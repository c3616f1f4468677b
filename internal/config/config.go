// Package config loads PressQuote's runtime configuration from a config file,
// PRESSQUOTE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/piwi3910/PressQuote/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. PRESSQUOTE_SERVER_ADDR.
const EnvPrefix = "PRESSQUOTE"

// Rate store kinds.
const (
	StoreStatic   = "static"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Store   StoreConfig    `mapstructure:"store"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Log     LogConfig      `mapstructure:"log"`
	Pricing model.Settings `mapstructure:"pricing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects where rates come from. The static store holds whatever
// RatesFile contains, or nothing, in which case every rate is a fallback.
type StoreConfig struct {
	Kind        string `mapstructure:"kind"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	RatesFile   string `mapstructure:"rates_file"`
}

// CacheConfig controls the rate cache. An empty Dir keeps it in memory.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Format string `mapstructure:"format"` // logfmt or json
	Level  string `mapstructure:"level"`  // debug, info, warn, error
}

// DefaultConfigDir returns ~/.pressquote, or ./.pressquote when the home
// directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".pressquote")
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
		Store: StoreConfig{
			Kind:       StoreSQLite,
			SQLitePath: filepath.Join(DefaultConfigDir(), "rates.db"),
		},
		Cache:   CacheConfig{Enabled: true, TTL: 10 * time.Minute},
		Log:     LogConfig{Format: "logfmt", Level: "info"},
		Pricing: model.DefaultSettings(),
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"store":         "store.kind",
	"sqlite-path":   "store.sqlite_path",
	"postgres-dsn":  "store.postgres_dsn",
	"rates-file":    "store.rates_file",
	"cache":         "cache.enabled",
	"cache-dir":     "cache.dir",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"profit-margin": "pricing.profit_margin",
	"wastage":       "pricing.default_wastage_sheets",
}

// RegisterFlags adds the configuration flags to fs. Only flags the user sets
// take precedence over the config file and the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "config file (yaml, toml or json)")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
	fs.String("store", d.Store.Kind, "rate store: static, sqlite or postgres")
	fs.String("sqlite-path", d.Store.SQLitePath, "sqlite rate database")
	fs.String("postgres-dsn", "", "postgres connection string")
	fs.String("rates-file", "", "CSV or Excel rate sheet for the static store")
	fs.Bool("cache", d.Cache.Enabled, "cache resolved rates")
	fs.String("cache-dir", "", "badger cache directory (empty keeps the cache in memory)")
	fs.String("log-format", d.Log.Format, "log format: logfmt or json")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	fs.Float64("profit-margin", d.Pricing.ProfitMargin, "default profit margin as a fraction")
	fs.Int("wastage", d.Pricing.DefaultWastageSheets, "make-ready sheets added to every run")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.postgres_dsn", d.Store.PostgresDSN)
	v.SetDefault("store.rates_file", d.Store.RatesFile)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)

	p := d.Pricing
	v.SetDefault("pricing.conversion_factor", p.ConversionFactor)
	v.SetDefault("pricing.default_wastage_sheets", p.DefaultWastageSheets)
	v.SetDefault("pricing.sheets_per_ream", p.SheetsPerReam)
	v.SetDefault("pricing.sheets_per_pack", p.SheetsPerPack)
	v.SetDefault("pricing.large_plate_threshold", float64(p.LargePlateThreshold))
	v.SetDefault("pricing.profit_margin", p.ProfitMargin)
	v.SetDefault("pricing.paper_formula", string(p.PaperFormula))
	v.SetDefault("pricing.ink_formula", string(p.InkFormula))
}

// Load builds the configuration. Precedence, highest first: flags the user
// set, environment, config file, defaults. A non-empty path must exist;
// otherwise pressquote.{yaml,toml,json} is looked up in the working directory
// and DefaultConfigDir, and its absence is not an error.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("pressquote")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Pricing = cfg.Pricing.Normalize()
	cfg.Store.Kind = strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings no component can run with.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreStatic:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite store")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	switch c.Log.Format {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}
