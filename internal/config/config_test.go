package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbradar/internal/model"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFilterSettings(), cfg.Scanner)
	assert.Empty(t, cfg.Favorites)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "arbradar:signals", cfg.Redis.Channel)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "config.json", `{
		"scanner": {"top_n": 20, "min_profit_pct": 1.2, "only_usdt": true, "data_source": "Live"},
		"favorites": ["BTC/USDT", "ETH/USDT"],
		"database": {"host": "db", "port": 6543, "user": "radar", "password": "secret", "dbname": "events"},
		"log_level": "debug"
	}`)
	t.Setenv("ARBY_SCANNER_COOLDOWN_SEC", "9")
	t.Setenv("ARBY_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Scanner.TopN)
	assert.Equal(t, 1.2, cfg.Scanner.MinProfitPct)
	assert.True(t, cfg.Scanner.OnlyUSDT)
	assert.Equal(t, model.ModeLive, cfg.Scanner.DataSource)
	assert.Equal(t, 9, cfg.Scanner.CooldownSec)
	assert.Equal(t, model.DefaultMinVolume, cfg.Scanner.MinVolume, "unset keys keep defaults")
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Favorites)
	assert.Equal(t, "postgres://radar:secret@db:6543/events", cfg.Database.ConnString())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadConfig_NormalizesDataSource(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeFile(t, "config.json", `{"scanner": {"data_source": "live"}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, model.ModeLive, cfg.Scanner.DataSource)

	path = writeFile(t, "typo.json", `{"scanner": {"data_source": "Simulatr", "top_n": 7}}`)
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, model.ModeSimulator, cfg.Scanner.DataSource)
	assert.Equal(t, 7, cfg.Scanner.TopN)
}

func TestLoadConfig_PathFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "custom.json", `{"scanner": {"stale_sec": 7}}`)
	t.Setenv(PathEnv, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scanner.StaleSec)
}

func TestLoadConfig_MalformedFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "config.json", `{"scanner": {"top_n": `)

	cfg, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, model.DefaultFilterSettings(), cfg.Scanner)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ARBY_SERVER_ADDR=:9999\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ARBY_SERVER_ADDR") })

	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestStore_PersistRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	base := Defaults()
	base.Database.Host = "db"

	store := NewStore(path, base)
	filters := model.DefaultFilterSettings()
	filters.TopN = 0
	filters.ExcludeLeveraged = true
	require.NoError(t, store.Persist(filters, []string{"SOL/USDT"}))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filters, cfg.Scanner)
	assert.Equal(t, []string{"SOL/USDT"}, cfg.Favorites)
	assert.Equal(t, "db", cfg.Database.Host)
}

func TestStore_NilPersistsNothing(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Persist(model.DefaultFilterSettings(), []string{"BTC/USDT"}))
}

func TestParseHelpers(t *testing.T) {
	floats := []struct {
		in   string
		want float64
	}{
		{"0.75", 0.75},
		{" 1.5% ", 1.5},
		{"", 0.5},
		{"abc", 0.5},
		{"NaN", 0.5},
		{"-2", -2},
	}
	for _, tc := range floats {
		assert.Equal(t, tc.want, ParseFloat(tc.in, 0.5), "ParseFloat(%q)", tc.in)
	}

	volumes := []struct {
		in   string
		want float64
	}{
		{"250k", 250_000},
		{"1.5M", 1_500_000},
		{"100,000", 100_000},
		{"lots", 100_000},
		{"", 100_000},
	}
	for _, tc := range volumes {
		assert.Equal(t, tc.want, ParseVolume(tc.in, 100_000), "ParseVolume(%q)", tc.in)
	}

	topN := []struct {
		in   string
		want int
	}{
		{"All", 0},
		{"", 0},
		{"25", 25},
		{"-3", 0},
		{"ten", 0},
	}
	for _, tc := range topN {
		assert.Equal(t, tc.want, ParseTopN(tc.in), "ParseTopN(%q)", tc.in)
	}
}
