package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"movierec/pkg/database"
	"movierec/pkg/logger"
)

const (
	EnvPrefix     = "MOVIEREC_"
	ConfigPathEnv = "MOVIEREC_CONFIG"
)

type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Database database.Config `koanf:"database"`
	Catalog  CatalogConfig   `koanf:"catalog"`
	Cache    CacheConfig     `koanf:"cache"`
	Jobs     JobsConfig      `koanf:"jobs"`
	Auth     AuthConfig      `koanf:"auth"`
	Logging  logger.Config   `koanf:"logging"`
}

type ServerConfig struct {
	Addr           string   `koanf:"addr" validate:"required"`
	GRPCAddr       string   `koanf:"grpc_addr"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type CatalogConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	APIKey        string        `koanf:"api_key"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int           `koanf:"burst" validate:"gte=0"`
}

type CacheConfig struct {
	Backend   string `koanf:"backend" validate:"oneof=memory redis"`
	RedisAddr string `koanf:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `koanf:"redis_db" validate:"gte=0"`
	Prefix    string `koanf:"prefix"`
}

type JobsConfig struct {
	Workers              int           `koanf:"workers" validate:"gte=0"`
	PollInterval         time.Duration `koanf:"poll_interval" validate:"gt=0"`
	RetryDelay           time.Duration `koanf:"retry_delay" validate:"gte=0"`
	DailySyncInterval    time.Duration `koanf:"daily_sync_interval" validate:"gte=0"`
	TrendingSyncInterval time.Duration `koanf:"trending_sync_interval" validate:"gte=0"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			GRPCAddr:       ":9090",
			TrustedProxies: []string{"127.0.0.1"},
		},
		Database: database.DefaultConfig(),
		Catalog: CatalogConfig{
			BaseURL:       "https://api.themoviedb.org/3",
			Timeout:       10 * time.Second,
			RatePerSecond: 20,
			Burst:         10,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Prefix:  "movierec",
		},
		Jobs: JobsConfig{
			Workers:              2,
			PollInterval:         time.Second,
			RetryDelay:           30 * time.Second,
			DailySyncInterval:    24 * time.Hour,
			TrendingSyncInterval: time.Hour,
		},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret: "dev-secret-change-me",
			JWTIssuer: "movierec",
		},
		Logging: logger.Config{
			Mode:  "dev",
			Level: "info",
		},
	}
}

// LoadConfig layers built-in defaults, an optional YAML file and
// MOVIEREC_* environment variables, in that order of precedence.
//
//	MOVIEREC_CATALOG_API_KEY -> catalog.api_key
//	MOVIEREC_JOBS_RETRY_DELAY -> jobs.retry_delay
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	// comma separated lists coming from env arrive as a single string
	if raw, ok := k.Get("server.trusted_proxies").(string); ok {
		_ = k.Set("server.trusted_proxies", splitList(raw))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps MOVIEREC_SECTION_FIELD_NAME to section.field_name: the first
// underscore separates the section, the rest belong to the field.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	for _, p := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
