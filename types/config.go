package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes either a duration string ("250ms") or a nanosecond
// integer from configuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

type RedisConfig struct {
	Addr               string        `yaml:"addr" json:"addr" validate:"required"`
	Password           string        `yaml:"password" json:"password"`
	DB                 int           `yaml:"db" json:"db"`
	PoolSize           int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConnections int           `yaml:"min_idle_connections" json:"min_idle_connections"`
	DialTimeout        Duration      `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout        Duration      `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout       Duration      `yaml:"write_timeout" json:"write_timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" json:"namespace"`
}

type RateLimitConfig struct {
	// CommandTimeout bounds every rate-limit store command so a hung cache
	// command never stalls the request pipeline. A timeout is treated the
	// same as an unhealthy store.
	CommandTimeout Duration `yaml:"command_timeout" json:"command_timeout"`
}

type Config struct {
	ServiceName string          `yaml:"service_name" json:"service_name"`
	Logger      LoggerConfig    `yaml:"logger" json:"logger"`
	Redis       RedisConfig     `yaml:"redis" json:"redis" validate:"required"`
	Store       StoreConfig     `yaml:"store" json:"store"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}
