package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the storefront sync service configuration.
type Config struct {
	HTTPAddr  string        `toml:"http_addr"`
	LogLevel  string        `toml:"log_level"`
	LogFormat string        `toml:"log_format"`
	Storage   StorageConfig `toml:"storage"`
	Feed      FeedConfig    `toml:"feed"`
}

type StorageConfig struct {
	Backend     string `toml:"backend"` // file, memory, postgres, redis
	Dir         string `toml:"dir"`
	DatabaseURL string `toml:"database_url"`
	RedisAddr   string `toml:"redis_addr"`
}

type FeedConfig struct {
	Transport     string `toml:"transport"` // stan, redis; empty disables the feed
	NatsURL       string `toml:"nats_url"`
	ClusterID     string `toml:"cluster_id"`
	ClientID      string `toml:"client_id"`
	SubjectPrefix string `toml:"subject_prefix"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
}

const (
	TransportStan  = "stan"
	TransportRedis = "redis"

	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	defaultConfigPath = "~/.config/storefront/config.toml"
	defaultHTTPAddr   = ":8080"
	defaultStorageDir = "~/.local/share/storefront"
	defaultPrefix     = "orders"
)

// Load reads the TOML file at path (default location when empty), falling
// back to defaults when it is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:  defaultHTTPAddr,
		LogLevel:  "info",
		LogFormat: "console",
		Storage:   StorageConfig{Backend: BackendFile, Dir: defaultStorageDir},
		Feed:      FeedConfig{SubjectPrefix: defaultPrefix},
	}

	resolved, err := expandPath(orDefault(path, defaultConfigPath))
	if err != nil {
		return Config{}, err
	}
	raw, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg.normalize()
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Dir = getEnv("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.RedisAddr = getEnv("STORAGE_REDIS_ADDR", cfg.Storage.RedisAddr)

	cfg.Feed.Transport = getEnv("FEED_TRANSPORT", cfg.Feed.Transport)
	cfg.Feed.NatsURL = getEnv("NATS_URL", cfg.Feed.NatsURL)
	cfg.Feed.ClusterID = getEnv("STAN_CLUSTER_ID", cfg.Feed.ClusterID)
	cfg.Feed.ClientID = getEnv("STAN_CLIENT_ID", cfg.Feed.ClientID)
	cfg.Feed.SubjectPrefix = getEnv("FEED_SUBJECT_PREFIX", cfg.Feed.SubjectPrefix)
	cfg.Feed.RedisAddr = getEnv("FEED_REDIS_ADDR", cfg.Feed.RedisAddr)
	cfg.Feed.RedisPassword = getEnv("FEED_REDIS_PASSWORD", cfg.Feed.RedisPassword)
}

func (c Config) normalize() (Config, error) {
	c.HTTPAddr = orDefault(c.HTTPAddr, defaultHTTPAddr)
	c.Feed.SubjectPrefix = orDefault(c.Feed.SubjectPrefix, defaultPrefix)
	c.Feed.Transport = strings.ToLower(strings.TrimSpace(c.Feed.Transport))

	c.Storage.Backend = strings.ToLower(orDefault(c.Storage.Backend, BackendFile))
	switch c.Storage.Backend {
	case BackendFile:
		dir, err := expandPath(orDefault(c.Storage.Dir, defaultStorageDir))
		if err != nil {
			return Config{}, err
		}
		c.Storage.Dir = dir
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return Config{}, fmt.Errorf("storage backend postgres requires database_url")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return Config{}, fmt.Errorf("storage backend redis requires redis_addr")
		}
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return c, nil
}

// FeedConfigured reports whether the selected transport has what it needs
// to connect. An unconfigured feed leaves order sync disabled.
func (c Config) FeedConfigured() bool {
	switch c.Feed.Transport {
	case TransportStan:
		return strings.TrimSpace(c.Feed.NatsURL) != "" && strings.TrimSpace(c.Feed.ClusterID) != ""
	case TransportRedis:
		return strings.TrimSpace(c.Feed.RedisAddr) != ""
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
