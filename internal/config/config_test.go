package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so a developer's .env does not leak in.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := chdir(t)
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.Server.Addr)
	assert.Equal(t, 8*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 20, cfg.Predictor.Window)
	assert.Equal(t, 15, cfg.Predictor.Epochs)
	assert.Equal(t, BackendFile, cfg.Ledger.Backend)
	assert.Equal(t, "data/predictions.json", cfg.Ledger.Path)
	assert.Equal(t, 1000, cfg.Ledger.Capacity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.TelegramEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
providers:
  timeout: 3s
ledger:
  backend: sqlite
schedule:
  symbols: [SPY, QQQ]
telegram:
  bot_token: from-file
  chat_id: "1"
`), 0o644))
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, BackendSQLite, cfg.Ledger.Backend)
	assert.Equal(t, "data/forecast.db", cfg.Ledger.Path)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Schedule.Symbols)
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WATCHLIST=SPY, ^GSPC ,\nSERVICE_BASE_URL=http://127.0.0.1:8787\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("WATCHLIST")
		os.Unsetenv("SERVICE_BASE_URL")
	})

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "^GSPC"}, cfg.Schedule.Symbols)
	assert.Equal(t, "http://127.0.0.1:8787", cfg.Service.BaseURL)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		applyDefaults(c)
		return c
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.Ledger.Backend = "redis" }, "ledger.backend"},
		{"negative capacity", func(c *Config) { c.Ledger.Capacity = -1 }, "ledger.capacity"},
		{"tiny window", func(c *Config) { c.Predictor.Window = 1 }, "predictor.window"},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }, "must be set together"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			assert.ErrorContains(t, c.Validate(), tc.want)
		})
	}
}
