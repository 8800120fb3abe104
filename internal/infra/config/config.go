package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"api_key"`

	// Logging
	LogLevel string `json:"log_level"`
	Env      string `json:"env"`

	// Storage
	Database DatabaseConfig `json:"database"`

	// Sessions
	ReconnectInterval   time.Duration `json:"-"`
	ReconnectIntervalMs int           `json:"reconnect_interval_ms"`
	MaxReconnectRetries int           `json:"max_reconnect_retries"`
	SSEMaxQRGeneration  int           `json:"sse_max_qr_generation"`
	BrowserName         string        `json:"browser_name"`

	// Connection update notifications
	Notify NotifyConfig `json:"notify"`
}

// DatabaseConfig selects the SQL driver backing both the session store and
// the protocol device store.
type DatabaseConfig struct {
	Driver    string `json:"driver"`
	URL       string `json:"url"`
	StorePath string `json:"store_path"`
}

// NotifyConfig configures optional connection update publishers.
type NotifyConfig struct {
	RedisURL     string `json:"redis_url"`
	RedisChannel string `json:"redis_channel"`
	AMQPURL      string `json:"amqp_url"`
	AMQPExchange string `json:"amqp_exchange"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultStore := filepath.Join(homeDir, ".baileys-api", "store")

	return &Config{
		Host:                "0.0.0.0",
		Port:                3000,
		LogLevel:            "info",
		Env:                 "development",
		MaxReconnectRetries: 5,
		SSEMaxQRGeneration:  5,
		BrowserName:         "Whatsapp Bot",
		Database: DatabaseConfig{
			Driver:    "sqlite3",
			StorePath: defaultStore,
		},
		Notify: NotifyConfig{
			RedisChannel: "baileys-api:connection",
			AMQPExchange: "baileys-api.events",
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.ReconnectIntervalMs > 0 {
		cfg.ReconnectInterval = time.Duration(cfg.ReconnectIntervalMs) * time.Millisecond
	}

	return cfg, nil
}

// Load loads configuration from environment variables with defaults.
// If configPath is provided, loads from file first.
func Load(configPath string) *Config {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			cfg = Default()
		}
	} else {
		cfg = Default()
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Database.StorePath = v
	}
	if v := os.Getenv("RECONNECT_INTERVAL"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.ReconnectInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("MAX_RECONNECT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxReconnectRetries = n
		}
	}
	if v := os.Getenv("SSE_MAX_QR_GENERATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SSEMaxQRGeneration = n
		}
	}
	if v := os.Getenv("NAME_BOT_BROWSER"); v != "" {
		cfg.BrowserName = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Notify.RedisURL = v
	}
	if v := os.Getenv("REDIS_CHANNEL"); v != "" {
		cfg.Notify.RedisChannel = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Notify.AMQPURL = v
	}
	if v := os.Getenv("AMQP_EXCHANGE"); v != "" {
		cfg.Notify.AMQPExchange = v
	}

	return cfg
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the data source name for the configured driver. The sqlite
// database lives under StorePath unless an explicit URL is given.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return filepath.Join(c.Database.StorePath, "baileys.db") + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// EnsureStorePath creates the store directory if it doesn't exist.
func (c *Config) EnsureStorePath() error {
	if c.Database.Driver != "sqlite3" || c.Database.URL != "" {
		return nil
	}
	return os.MkdirAll(c.Database.StorePath, 0755)
}
