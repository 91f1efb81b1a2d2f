package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-commerce/types"
)

var validate = validator.New()

// Load reads, defaults and validates the service configuration. A missing
// cache-store address is the one fatal startup condition: every cache and
// rate-limit operation needs the shared connection to exist, even though
// its runtime failures degrade gracefully.
func Load(path string) (*types.Config, error) {
	if path == "" {
		return nil, types.ErrConfigInvalidPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return Parse(raw)
}

func Parse(raw []byte) (*types.Config, error) {
	cfg := &types.Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, types.WrapError(err, "config parse failed")
	}

	applyDefaults(cfg)

	if cfg.Redis.Addr == "" {
		return nil, types.ErrCacheAddrMissing
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, types.WrapError(err, "config validate failed")
	}

	return cfg, nil
}

func applyDefaults(cfg *types.Config) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sai-commerce"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.MinIdleConnections == 0 {
		cfg.Redis.MinIdleConnections = 2
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = types.Duration(5 * time.Second)
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = types.Duration(3 * time.Second)
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = types.Duration(3 * time.Second)
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "sai_commerce"
	}
	if cfg.RateLimit.CommandTimeout == 0 {
		cfg.RateLimit.CommandTimeout = types.Duration(250 * time.Millisecond)
	}
}
