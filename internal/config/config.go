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

	"medinv/m/internal/dispense"
)

// Auth modes.
const (
	AuthDatabase = "database"
	AuthStatic   = "static"
)

// Config holds application configuration values.
type Config struct {
	Secret            string
	DatabaseDSN       string
	HTTPPort          string
	AuthMode          string
	TokenTTL          time.Duration
	LogLevel          string
	FeedEnabled       bool
	FeedInterval      time.Duration
	FeedCapacity      int
	LowStockThreshold int64
	CORSOrigins       []string
	RateLimit         int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Secret:            "dev_secret",
		DatabaseDSN:       "file:medinv.db?_pragma=foreign_keys(1)",
		HTTPPort:          "8080",
		AuthMode:          AuthDatabase,
		TokenTTL:          24 * time.Hour,
		LogLevel:          "info",
		FeedEnabled:       true,
		FeedInterval:      10 * time.Second,
		FeedCapacity:      500,
		LowStockThreshold: 50,
		CORSOrigins:       []string{"*"},
		RateLimit:         300,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load reads .env (if present), an optional YAML file named by CONFIG_FILE and
// then environment variables, which take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Secret = getEnv("SECRET", cfg.Secret)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.AuthMode = strings.ToLower(getEnv("AUTH_MODE", cfg.AuthMode))
	cfg.TokenTTL = getDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.FeedEnabled = getBool("FEED_ENABLED", cfg.FeedEnabled)
	cfg.FeedInterval = getDuration("FEED_INTERVAL", cfg.FeedInterval)
	cfg.FeedCapacity = getInt("FEED_CAPACITY", cfg.FeedCapacity)
	cfg.LowStockThreshold = int64(getInt("LOW_STOCK_THRESHOLD", int(cfg.LowStockThreshold)))
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}
	cfg.RateLimit = getInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit)
	cfg.ReadTimeout = getDuration("HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return cfg, fmt.Errorf("invalid HTTP_PORT value %q", cfg.HTTPPort)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.AuthMode != AuthDatabase && c.AuthMode != AuthStatic {
		return fmt.Errorf("auth mode must be %q or %q, got %q", AuthDatabase, AuthStatic, c.AuthMode)
	}
	if c.Secret == "" {
		return errors.New("secret is required")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database dsn is required")
	}
	if c.FeedInterval <= 0 {
		return errors.New("feed interval must be positive")
	}
	if c.FeedCapacity <= 0 || c.FeedCapacity > dispense.MaxCapacity {
		return fmt.Errorf("feed capacity must be between 1 and %d", dispense.MaxCapacity)
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

// fileConfig mirrors Config with string durations so the YAML file can use
// "10s" style values.
type fileConfig struct {
	Secret            *string  `yaml:"secret"`
	DatabaseDSN       *string  `yaml:"database_dsn"`
	HTTPPort          *string  `yaml:"http_port"`
	AuthMode          *string  `yaml:"auth_mode"`
	TokenTTL          *string  `yaml:"token_ttl"`
	LogLevel          *string  `yaml:"log_level"`
	FeedEnabled       *bool    `yaml:"feed_enabled"`
	FeedInterval      *string  `yaml:"feed_interval"`
	FeedCapacity      *int     `yaml:"feed_capacity"`
	LowStockThreshold *int64   `yaml:"low_stock_threshold"`
	CORSOrigins       []string `yaml:"cors_origins"`
	RateLimit         *int     `yaml:"rate_limit_per_minute"`
	ReadTimeout       *string  `yaml:"read_timeout"`
	WriteTimeout      *string  `yaml:"write_timeout"`
	IdleTimeout       *string  `yaml:"idle_timeout"`
	ShutdownTimeout   *string  `yaml:"shutdown_timeout"`
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&c.Secret, fc.Secret)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.HTTPPort, fc.HTTPPort)
	setString(&c.AuthMode, fc.AuthMode)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.FeedEnabled != nil {
		c.FeedEnabled = *fc.FeedEnabled
	}
	if fc.FeedCapacity != nil {
		c.FeedCapacity = *fc.FeedCapacity
	}
	if fc.LowStockThreshold != nil {
		c.LowStockThreshold = *fc.LowStockThreshold
	}
	if fc.RateLimit != nil {
		c.RateLimit = *fc.RateLimit
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"token_ttl", fc.TokenTTL, &c.TokenTTL},
		{"feed_interval", fc.FeedInterval, &c.FeedInterval},
		{"read_timeout", fc.ReadTimeout, &c.ReadTimeout},
		{"write_timeout", fc.WriteTimeout, &c.WriteTimeout},
		{"idle_timeout", fc.IdleTimeout, &c.IdleTimeout},
		{"shutdown_timeout", fc.ShutdownTimeout, &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := parseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := parseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(val string) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err == nil {
		return d, nil
	}
	if secs, convErr := strconv.Atoi(val); convErr == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, err
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
