package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"arbradar/internal/exchange"
	"arbradar/internal/model"
	"arbradar/internal/notify"
)

const (
	// PathEnv names the environment variable holding the config file path.
	PathEnv     = "ARBY_CONFIG_PATH"
	DefaultPath = "config.json"
	envPrefix   = "ARBY"
)

// ErrInvalidConfig is returned when the config file exists but cannot be used.
// The accompanying Config holds defaults.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scanner   model.FilterSettings `mapstructure:"scanner" json:"scanner"`
	Favorites []string             `mapstructure:"favorites" json:"favorites"`
	Database  DatabaseConfig       `mapstructure:"database" json:"database"`
	Redis     RedisConfig          `mapstructure:"redis" json:"redis"`
	Server    ServerConfig         `mapstructure:"server" json:"server"`
	LogLevel  string               `mapstructure:"log_level" json:"log_level"`
}

// DatabaseConfig defines the database connection settings. The event log is
// disabled while Host is empty.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	DBName   string `mapstructure:"dbname" json:"dbname"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// ConnString builds a postgres URL from the settings.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// RedisConfig defines the signal publisher. Disabled while Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
	Channel  string `mapstructure:"channel" json:"channel"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setDefaults(v *viper.Viper) {
	d := model.DefaultFilterSettings()
	v.SetDefault("scanner.top_n", d.TopN)
	v.SetDefault("scanner.min_profit_pct", d.MinProfitPct)
	v.SetDefault("scanner.min_volume", d.MinVolume)
	v.SetDefault("scanner.only_usdt", d.OnlyUSDT)
	v.SetDefault("scanner.exclude_leveraged", d.ExcludeLeveraged)
	v.SetDefault("scanner.show_only_signals", d.ShowOnlySignals)
	v.SetDefault("scanner.show_favorites_only", d.ShowFavoritesOnly)
	v.SetDefault("scanner.cooldown_sec", d.CooldownSec)
	v.SetDefault("scanner.max_profit_suspicious", d.MaxProfitSuspicious)
	v.SetDefault("scanner.stale_sec", d.StaleSec)
	v.SetDefault("scanner.update_interval_ms", d.UpdateIntervalMS)
	v.SetDefault("scanner.data_source", d.DataSource)
	v.SetDefault("favorites", []string{})

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", notify.DefaultChannel)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log_level", "info")
}

// Defaults returns the configuration used when nothing is configured.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// ResolvePath returns path, or the ARBY_CONFIG_PATH value, or config.json.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig reads configuration from a JSON file and ARBY_* environment
// variables, after loading .env if present. A missing file yields defaults.
// A malformed file yields defaults with environment overrides and an error
// wrapping ErrInvalidConfig.
func LoadConfig(path string) (config Config, err error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Defaults(), fmt.Errorf("%w: .env: %v", ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(ResolvePath(path))
	v.SetConfigType("json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var readErr error
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		readErr = fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		v = viper.New()
		setDefaults(v)
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if err := v.Unmarshal(&config); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	config.Scanner.DataSource = exchange.ParseMode(config.Scanner.DataSource)
	return config, readErr
}

// Save writes cfg to path as indented JSON, replacing the file atomically.
func Save(path string, cfg Config) error {
	if cfg.Favorites == nil {
		cfg.Favorites = []string{}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Store persists the user-owned parts of a loaded config.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

func NewStore(path string, cfg Config) *Store {
	return &Store{path: ResolvePath(path), cfg: cfg}
}

// Persist saves the scanner settings and favorites. A nil Store saves nothing.
func (s *Store) Persist(filters model.FilterSettings, favorites []string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Scanner = filters
	s.cfg.Favorites = favorites
	return Save(s.path, s.cfg)
}

func (s *Store) Path() string {
	return s.path
}
