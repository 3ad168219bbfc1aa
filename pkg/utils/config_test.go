package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("MOVIEREC_DATABASE_PATH", filepath.Join(t.TempDir(), "data.db"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Catalog.Timeout != 10*time.Second {
		t.Fatalf("catalog timeout = %s, want 10s", cfg.Catalog.Timeout)
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Jobs.DailySyncInterval != 24*time.Hour {
		t.Fatalf("daily interval = %s", cfg.Jobs.DailySyncInterval)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("MOVIEREC_CATALOG_API_KEY", "k-123")
	t.Setenv("MOVIEREC_JOBS_RETRY_DELAY", "5s")
	t.Setenv("MOVIEREC_SERVER_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Catalog.APIKey != "k-123" {
		t.Fatalf("api key = %q", cfg.Catalog.APIKey)
	}
	if cfg.Jobs.RetryDelay != 5*time.Second {
		t.Fatalf("retry delay = %s, want 5s", cfg.Jobs.RetryDelay)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "10.0.0.2" {
		t.Fatalf("trusted proxies = %v", cfg.Server.TrustedProxies)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "catalog:\n  base_url: http://catalog.local/3\n  api_key: from-file\ncache:\n  backend: redis\n  redis_addr: localhost:6379\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("MOVIEREC_CATALOG_API_KEY", "from-env")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Catalog.BaseURL != "http://catalog.local/3" {
		t.Fatalf("base url = %q", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.APIKey != "from-env" {
		t.Fatalf("env should win over file, got %q", cfg.Catalog.APIKey)
	}
	if cfg.Cache.Backend != "redis" {
		t.Fatalf("backend = %q", cfg.Cache.Backend)
	}
}

func TestValidateRejectsRedisWithoutAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"MOVIEREC_CATALOG_API_KEY":          "catalog.api_key",
		"MOVIEREC_JOBS_DAILY_SYNC_INTERVAL": "jobs.daily_sync_interval",
		"MOVIEREC_DATABASE_PATH":            "database.path",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
