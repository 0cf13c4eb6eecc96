package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cartkv/cartkv/internal/log"
	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"CART_ENV"`
	LogLevel string `mapstructure:"CART_LOG_LEVEL"`
	HTTPAddr string `mapstructure:"CART_HTTP_ADDR"`

	Store    StoreConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	Backend  string `mapstructure:"CART_KV_BACKEND"`
	RedisURL string `mapstructure:"CART_REDIS_URL"`
}

type SecurityConfig struct {
	RateLimitRPM int `mapstructure:"CART_RATE_LIMIT_RPM"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

// Load reads configuration from the environment and any .env file found in
// the working directory or its parent.
func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()

	// REDIS_URL is honored for stores shared with older tooling
	if err := v.BindEnv("CART_REDIS_URL", "CART_REDIS_URL", "REDIS_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind CART_REDIS_URL: %w", err)
	}

	v.SetDefault("CART_ENV", "dev")
	v.SetDefault("CART_LOG_LEVEL", "")
	v.SetDefault("CART_HTTP_ADDR", ":8080")
	v.SetDefault("CART_KV_BACKEND", string(kv.BackendRedis))
	v.SetDefault("CART_REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("CART_RATE_LIMIT_RPM", 120)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Store.RedisURL = strings.TrimSpace(cfg.Store.RedisURL)
	cfg.LogLevel = strings.TrimSpace(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch kv.Backend(c.Store.Backend) {
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("CART_REDIS_URL is required when CART_KV_BACKEND is redis")
		}
	default:
		return fmt.Errorf("invalid CART_KV_BACKEND %q (must be memory or redis)", c.Store.Backend)
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("CART_RATE_LIMIT_RPM must be positive, got %d", c.Security.RateLimitRPM)
	}
	return nil
}

// KV converts the store section into a kv.Config
func (c *Config) KV() kv.Config {
	return kv.Config{
		Backend:  kv.Backend(c.Store.Backend),
		RedisURL: c.Store.RedisURL,
	}
}

// Log returns logger options for the named service. An empty LogLevel keeps
// the env default.
func (c *Config) Log(service string) log.Options {
	return log.Options{
		Env:     c.Env,
		Service: service,
		Level:   c.LogLevel,
	}
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
