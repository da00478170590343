package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Ledger backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Service struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"service"`
	Providers struct {
		ChartBaseURL    string        `yaml:"chart_base_url"`
		StooqBaseURL    string        `yaml:"stooq_base_url"`
		YahooCSVBaseURL string        `yaml:"yahoo_csv_base_url"`
		Timeout         time.Duration `yaml:"timeout"`
	} `yaml:"providers"`
	Predictor struct {
		Window int   `yaml:"window"`
		Epochs int   `yaml:"epochs"`
		Seed   int64 `yaml:"seed"`
	} `yaml:"predictor"`
	Ledger struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		Capacity int    `yaml:"capacity"`
	} `yaml:"ledger"`
	Schedule struct {
		Cron    string   `yaml:"cron"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then .env, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SERVICE_BASE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := os.Getenv("SERVICE_API_KEY"); v != "" {
		cfg.Service.APIKey = v
	}
	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Providers.Timeout = d
		}
	}
	if v := os.Getenv("LEDGER_BACKEND"); v != "" {
		cfg.Ledger.Backend = v
	}
	if v := os.Getenv("LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("LEDGER_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ledger.Capacity = n
		}
	}
	if v := os.Getenv("CRON_WATCHLIST"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Schedule.Symbols = splitList(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8787"
	}
	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = 8 * time.Second
	}
	if cfg.Predictor.Window == 0 {
		cfg.Predictor.Window = 20
	}
	if cfg.Predictor.Epochs == 0 {
		cfg.Predictor.Epochs = 15
	}
	if cfg.Predictor.Seed == 0 {
		cfg.Predictor.Seed = 1
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = BackendFile
	}
	if cfg.Ledger.Path == "" {
		switch cfg.Ledger.Backend {
		case BackendSQLite:
			cfg.Ledger.Path = "data/forecast.db"
		default:
			cfg.Ledger.Path = "data/predictions.json"
		}
	}
	if cfg.Ledger.Capacity == 0 {
		cfg.Ledger.Capacity = 1000
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 30 21 * * 1-5"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("ledger.backend must be one of memory, file, sqlite; got %q", c.Ledger.Backend)
	}
	if c.Ledger.Capacity < 0 {
		return fmt.Errorf("ledger.capacity must not be negative")
	}
	if c.Predictor.Window < 2 {
		return fmt.Errorf("predictor.window must be at least 2")
	}
	if c.Predictor.Epochs < 0 {
		return fmt.Errorf("predictor.epochs must not be negative")
	}
	if c.Providers.Timeout < 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
