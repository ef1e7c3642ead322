// Package config loads service configuration from defaults plus an
// optional JSON file.
package config

import (
	"fmt"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Engine  EngineConfig  `koanf:"engine"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Catalog CatalogConfig `koanf:"catalog"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type EngineConfig struct {
	MaxWorkers int `koanf:"max_workers"`
}

// StorageConfig selects the artifact store backend. PostgresDSN, when
// set, wins over the bbolt path. ClickHouseDSN enables the execution
// audit stream.
type StorageConfig struct {
	BoltPath      string `koanf:"bolt_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	ClickHouseDSN string `koanf:"clickhouse_dsn"`
}

// AuthConfig selects the authenticator. PostgresDSN, when set, enables
// DB-backed key validation; otherwise the static key set applies, and
// an empty set accepts any ask_ key.
type AuthConfig struct {
	APIKeys         []string `koanf:"api_keys"`
	PostgresDSN     string   `koanf:"postgres_dsn"`
	FailOpen        bool     `koanf:"fail_open"`
	CacheTTLSeconds int      `koanf:"cache_ttl_seconds"`
}

type CatalogConfig struct {
	OverlayPath string `koanf:"overlay_path"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":            ":8085",
		"engine.max_workers":     4,
		"storage.bolt_path":      "analysis.db",
		"auth.cache_ttl_seconds": 30,
	}
}

// Load builds the configuration from defaults, overlaid with the JSON
// file at path when path is non-empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Engine.MaxWorkers <= 0 {
		return nil, fmt.Errorf("engine.max_workers must be positive, got %d", cfg.Engine.MaxWorkers)
	}
	return &cfg, nil
}
