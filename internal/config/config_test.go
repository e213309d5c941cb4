package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// TestNewConfig tests creating a config with defaults
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	if cfg == nil {
		t.Fatal("NewConfig() returned nil")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Indexer.MaxRetries != 5 {
		t.Errorf("Expected default max retries 5, got %d", cfg.Indexer.MaxRetries)
	}
	if cfg.Indexer.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("Expected default retry base 500ms, got %v", cfg.Indexer.RetryBaseDelay)
	}
	if cfg.Campaign.RegistryAppID != 3215540125 {
		t.Errorf("Expected default registry app, got %d", cfg.Campaign.RegistryAppID)
	}
	if cfg.Cache.TTL != 300*time.Second {
		t.Errorf("Expected default cache TTL 300s, got %v", cfg.Cache.TTL)
	}
	if cfg.Campaign.ProfileSource != ProfileSourceRegistry {
		t.Errorf("Expected default registry profile source, got %q", cfg.Campaign.ProfileSource)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", cfg.API.Port)
	}
	if cfg.Entrants.RegressionTolerance != 0 {
		t.Errorf("Expected zero regression tolerance, got %d", cfg.Entrants.RegressionTolerance)
	}
	if len(cfg.Campaign.Weeks) != 2 {
		t.Errorf("Expected two configured badge weeks, got %d", len(cfg.Campaign.Weeks))
	}
}

// TestConfigValidation tests configuration validation
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing indexer base",
			mutate:  func(c *Config) { c.Indexer.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Indexer.MaxRetries = 0 },
			wantErr: true,
		},
		{
			name:    "negative throttle",
			mutate:  func(c *Config) { c.Indexer.RequestsPerSecond = -1 },
			wantErr: true,
		},
		{
			name:    "missing registry app",
			mutate:  func(c *Config) { c.Campaign.RegistryAppID = 0 },
			wantErr: true,
		},
		{
			name:    "week outside campaign",
			mutate:  func(c *Config) { c.Campaign.Weeks = []WeekConfig{{Week: 14, AssetID: 1}} },
			wantErr: true,
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: true,
		},
		{
			name:    "unknown profile source",
			mutate:  func(c *Config) { c.Campaign.ProfileSource = "sdk" },
			wantErr: true,
		},
		{
			name:   "inspector profile source",
			mutate: func(c *Config) { c.Campaign.ProfileSource = ProfileSourceInspector },
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: true,
		},
		{
			name: "redis with address",
			mutate: func(c *Config) {
				c.Cache.Backend = "redis"
				c.Cache.Redis.Addr = "localhost:6379"
			},
		},
		{
			name:    "refresh interval too short",
			mutate:  func(c *Config) { c.Challenges.RefreshInterval = time.Millisecond },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoadFromEnv tests environment overrides
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALGOLAND_INDEXER_BASE", "http://indexer.local/")
	t.Setenv("ALGOLAND_APP_ID", "42")
	t.Setenv("ALGOLAND_CACHE_TTL", "90s")
	t.Setenv("ALGOLAND_INDEXER_MAX_RETRIES", "3")
	t.Setenv("ALGOLAND_INDEXER_RETRY_BASE", "10ms")
	t.Setenv("ALGOLAND_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ALGOLAND_CHALLENGE_REFRESH", "2m")
	t.Setenv("ALGOLAND_ENTRANTS_REGRESSION_TOLERANCE", "5")
	t.Setenv("ALGOLAND_CACHE_BACKEND", "pebble")
	t.Setenv("ALGOLAND_PROFILE_SOURCE", " Inspector ")
	t.Setenv("PORT", "8081")

	cfg := NewConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Indexer.BaseURL != "http://indexer.local" {
		t.Errorf("Expected trimmed indexer base, got %q", cfg.Indexer.BaseURL)
	}
	if cfg.Campaign.RegistryAppID != 42 {
		t.Errorf("Expected app id 42, got %d", cfg.Campaign.RegistryAppID)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Expected cache TTL 90s, got %v", cfg.Cache.TTL)
	}
	if cfg.Indexer.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.Indexer.MaxRetries)
	}
	if cfg.Indexer.RetryBaseDelay != 10*time.Millisecond {
		t.Errorf("Expected retry base 10ms, got %v", cfg.Indexer.RetryBaseDelay)
	}
	wantOrigins := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.API.AllowedOrigins, wantOrigins) {
		t.Errorf("Expected origins %v, got %v", wantOrigins, cfg.API.AllowedOrigins)
	}
	if cfg.Challenges.RefreshInterval != 2*time.Minute {
		t.Errorf("Expected refresh 2m, got %v", cfg.Challenges.RefreshInterval)
	}
	if cfg.Entrants.RegressionTolerance != 5 {
		t.Errorf("Expected tolerance 5, got %d", cfg.Entrants.RegressionTolerance)
	}
	if cfg.Cache.Backend != "pebble" {
		t.Errorf("Expected pebble backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Campaign.ProfileSource != ProfileSourceInspector {
		t.Errorf("Expected inspector profile source, got %q", cfg.Campaign.ProfileSource)
	}
	if cfg.API.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.API.Port)
	}
}

// TestLoadFromEnvWildcardOrigins tests that "*" clears the allowlist
func TestLoadFromEnvWildcardOrigins(t *testing.T) {
	t.Setenv("ALGOLAND_ALLOWED_ORIGINS", "*")

	cfg := NewConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.API.AllowedOrigins == nil || len(cfg.API.AllowedOrigins) != 0 {
		t.Errorf("Expected empty non-nil allowlist, got %#v", cfg.API.AllowedOrigins)
	}

	cfg.SetDefaults()
	if len(cfg.API.AllowedOrigins) != 0 {
		t.Errorf("SetDefaults() must not refill an explicit empty allowlist, got %v", cfg.API.AllowedOrigins)
	}
}

// TestLoadFromEnvInvalid tests malformed environment values
func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ALGOLAND_INDEXER_TIMEOUT", "soon"},
		{"ALGOLAND_INDEXER_MAX_RETRIES", "many"},
		{"ALGOLAND_INDEXER_RETRY_BASE", "fast"},
		{"ALGOLAND_INDEXER_RPS", "lots"},
		{"ALGOLAND_APP_ID", "-1"},
		{"ALGOLAND_TOTAL_WEEKS", "thirteen"},
		{"ALGOLAND_CACHE_TTL", "300"},
		{"ALGOLAND_CACHE_MAX_ENTRIES", "big"},
		{"ALGOLAND_REDIS_DB", "zero"},
		{"ALGOLAND_ENTRANTS_REGRESSION_TOLERANCE", "-2"},
		{"ALGOLAND_CHALLENGE_REFRESH", "hourly"},
		{"PORT", "http"},
		{"ALGOLAND_RATE_LIMIT_PER_MINUTE", "x"},
		{"ALGOLAND_BULK_WORKERS", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := NewConfig()
			if err := cfg.LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

// TestLoadFromFile tests loading configuration from a YAML file
func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
indexer:
  base_url: http://file-indexer
  max_retries: 2
  retry_base_delay: 250ms

campaign:
  registry_app_id: 77
  weeks:
    - week: 1
      asset_id: 1001
    - week: 3
      asset_id: 1003
  distributors:
    default:
      - AAAA
    by_asset:
      1001:
        - BBBB

cache:
  backend: redis
  redis:
    addr: localhost:6379
    db: 2

entrants:
  regression_tolerance: 3

api:
  allowed_origins: []
  bulk_workers: 8

log:
  level: debug
  format: console
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := NewConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Indexer.BaseURL != "http://file-indexer" {
		t.Errorf("Expected base URL from file, got %q", cfg.Indexer.BaseURL)
	}
	if cfg.Indexer.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("Expected retry base 250ms, got %v", cfg.Indexer.RetryBaseDelay)
	}
	if cfg.Campaign.RegistryAppID != 77 {
		t.Errorf("Expected registry app 77, got %d", cfg.Campaign.RegistryAppID)
	}
	wantWeeks := []WeekConfig{{Week: 1, AssetID: 1001}, {Week: 3, AssetID: 1003}}
	if !reflect.DeepEqual(cfg.Campaign.Weeks, wantWeeks) {
		t.Errorf("Expected weeks %v, got %v", wantWeeks, cfg.Campaign.Weeks)
	}
	if got := cfg.Campaign.Distributors.ByAsset[1001]; !reflect.DeepEqual(got, []string{"BBBB"}) {
		t.Errorf("Expected per-asset distributor, got %v", got)
	}
	if cfg.Cache.Redis.DB != 2 {
		t.Errorf("Expected redis db 2, got %d", cfg.Cache.Redis.DB)
	}
	if cfg.Entrants.RegressionTolerance != 3 {
		t.Errorf("Expected tolerance 3, got %d", cfg.Entrants.RegressionTolerance)
	}
	if len(cfg.API.AllowedOrigins) != 0 {
		t.Errorf("Expected empty allowlist from file, got %v", cfg.API.AllowedOrigins)
	}
	if cfg.API.BulkWorkers != 8 {
		t.Errorf("Expected 8 bulk workers, got %d", cfg.API.BulkWorkers)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// TestLoadFromInvalidFile tests loading from a non-existent or malformed file
func TestLoadFromInvalidFile(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error when loading non-existent file, got nil")
	}

	configFile := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
indexer:
  base_url: "http://localhost
  timeout: invalid
`
	if err := os.WriteFile(configFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write invalid config file: %v", err)
	}
	if err := cfg.LoadFromFile(configFile); err == nil {
		t.Error("Expected error when loading invalid YAML, got nil")
	}
}

// TestConfigPriority tests configuration priority (env > file > defaults)
func TestConfigPriority(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
indexer:
  base_url: http://file-indexer
cache:
  ttl: 45s
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("ALGOLAND_INDEXER_BASE", "http://env-indexer")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Indexer.BaseURL != "http://env-indexer" {
		t.Errorf("Expected indexer base from env, got %q", cfg.Indexer.BaseURL)
	}
	if cfg.Cache.TTL != 45*time.Second {
		t.Errorf("Expected cache TTL from file, got %v", cfg.Cache.TTL)
	}
	if cfg.Indexer.AlgodURL == "" {
		t.Error("Expected algod URL default to be applied")
	}
}

// TestLoadWithoutFile tests that defaults alone produce a valid configuration
func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Expected memory backend, got %q", cfg.Cache.Backend)
	}
}

// TestLoadInvalidConfig tests Load rejecting an invalid file
func TestLoadInvalidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("cache:\n  backend: tape\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("Expected error for unknown cache backend, got nil")
	}
}
