package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/algoland-api/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service
type Config struct {
	Indexer    IndexerConfig    `yaml:"indexer"`
	Campaign   CampaignConfig   `yaml:"campaign"`
	Cache      CacheConfig      `yaml:"cache"`
	Entrants   EntrantsConfig   `yaml:"entrants"`
	Challenges ChallengesConfig `yaml:"challenges"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
}

// IndexerConfig holds upstream client configuration
type IndexerConfig struct {
	// BaseURL is the indexer REST endpoint
	BaseURL string `yaml:"base_url"`
	// AlgodURL is the algod REST endpoint used for user boxes
	AlgodURL string `yaml:"algod_url"`
	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is the total number of attempts for 429/5xx responses
	MaxRetries int `yaml:"max_retries"`
	// RetryBaseDelay is the first backoff delay, doubled after every attempt
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// RequestsPerSecond throttles outgoing requests; 0 disables throttling
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CampaignConfig describes the on-chain campaign
type CampaignConfig struct {
	RegistryAppID uint64            `yaml:"registry_app_id"`
	TotalWeeks    int               `yaml:"total_weeks"`
	Weeks         []WeekConfig      `yaml:"weeks"`
	Distributors  DistributorConfig `yaml:"distributors"`
	// PrizesFile is the JSON prize catalogue; a missing file means every week is "coming soon"
	PrizesFile string `yaml:"prizes_file"`
	// AppSpecFile optionally overrides the embedded ARC-56 struct definitions
	AppSpecFile string `yaml:"app_spec_file"`
	// ProfileSource selects how user records become profiles: "registry" maps
	// the typed User struct, "inspector" normalises the decoded record by
	// field-name synonyms, for contracts whose User layout has drifted
	ProfileSource string `yaml:"profile_source"`
}

// Profile sources
const (
	ProfileSourceRegistry  = "registry"
	ProfileSourceInspector = "inspector"
)

// WeekConfig maps a campaign week to its completion badge asset
type WeekConfig struct {
	Week    int    `yaml:"week"`
	AssetID uint64 `yaml:"asset_id"`
}

// DistributorConfig lists addresses excluded from holder counts
type DistributorConfig struct {
	Default []string            `yaml:"default"`
	ByAsset map[uint64][]string `yaml:"by_asset"`
}

// CacheConfig holds cache store configuration
type CacheConfig struct {
	// TTL is the response and profile cache lifetime
	TTL time.Duration `yaml:"ttl"`
	// Backend is the store implementation: "memory", "redis" or "pebble"
	Backend    string `yaml:"backend"`
	MaxEntries int    `yaml:"max_entries"`
	KeyPrefix  string `yaml:"key_prefix"`
	// PebblePath is the database directory when backend is "pebble"
	PebblePath string      `yaml:"pebble_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// EntrantsConfig holds entrant counter configuration
type EntrantsConfig struct {
	// RegressionTolerance is how far the global counter may fall below the
	// cached count before enumeration is forced. 0 rejects any regression.
	RegressionTolerance uint64 `yaml:"regression_tolerance"`
}

// ChallengesConfig holds challenge prize service configuration
type ChallengesConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	BulkWorkers        int           `yaml:"bulk_workers"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewConfig creates a configuration populated with defaults
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset value
func (c *Config) SetDefaults() {
	// Indexer defaults
	if c.Indexer.BaseURL == "" {
		c.Indexer.BaseURL = constants.DefaultIndexerBase
	}
	if c.Indexer.AlgodURL == "" {
		c.Indexer.AlgodURL = constants.DefaultAlgodBase
	}
	if c.Indexer.Timeout == 0 {
		c.Indexer.Timeout = constants.DefaultIndexerTimeout
	}
	if c.Indexer.MaxRetries == 0 {
		c.Indexer.MaxRetries = constants.DefaultMaxRetries
	}
	if c.Indexer.RetryBaseDelay == 0 {
		c.Indexer.RetryBaseDelay = constants.DefaultRetryBaseDelay
	}

	// Campaign defaults
	if c.Campaign.RegistryAppID == 0 {
		c.Campaign.RegistryAppID = constants.DefaultRegistryAppID
	}
	if c.Campaign.TotalWeeks == 0 {
		c.Campaign.TotalWeeks = constants.DefaultTotalWeeks
	}
	if c.Campaign.Weeks == nil {
		c.Campaign.Weeks = []WeekConfig{
			{Week: 1, AssetID: 3215542832},
			{Week: 2, AssetID: 3215542840},
		}
	}
	if c.Campaign.Distributors.Default == nil {
		c.Campaign.Distributors.Default = []string{constants.DefaultDistributor}
	}
	if c.Campaign.Distributors.ByAsset == nil {
		c.Campaign.Distributors.ByAsset = map[uint64][]string{
			3215542832: {constants.DefaultDistributor},
			3215542840: {constants.DefaultDistributor},
		}
	}
	if c.Campaign.PrizesFile == "" {
		c.Campaign.PrizesFile = constants.DefaultPrizesFile
	}
	if c.Campaign.ProfileSource == "" {
		c.Campaign.ProfileSource = ProfileSourceRegistry
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = constants.DefaultCacheTTL
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = constants.DefaultCacheMaxEntries
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = constants.DefaultCacheKeyPrefix
	}
	if c.Cache.PebblePath == "" {
		c.Cache.PebblePath = "./data/cache"
	}
	if c.Cache.Redis.PoolSize == 0 {
		c.Cache.Redis.PoolSize = 10
	}

	// Challenge defaults
	if c.Challenges.RefreshInterval == 0 {
		c.Challenges.RefreshInterval = constants.DefaultChallengeRefresh
	}

	// API defaults
	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = append([]string(nil), constants.DefaultAllowedOrigins...)
	}
	if c.API.RateLimitPerMinute == 0 {
		c.API.RateLimitPerMinute = constants.DefaultRateLimitPerMinute
	}
	if c.API.BulkWorkers == 0 {
		c.API.BulkWorkers = constants.DefaultBulkWorkers
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = constants.DefaultWriteTimeout
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = constants.DefaultShutdownTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// LoadFromEnv overrides configuration from ALGOLAND_* environment variables
func (c *Config) LoadFromEnv() error {
	// Indexer configuration
	if base := os.Getenv("ALGOLAND_INDEXER_BASE"); base != "" {
		c.Indexer.BaseURL = strings.TrimRight(base, "/")
	}
	if base := os.Getenv("ALGOLAND_ALGOD_BASE"); base != "" {
		c.Indexer.AlgodURL = strings.TrimRight(base, "/")
	}
	if timeout := os.Getenv("ALGOLAND_INDEXER_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_INDEXER_TIMEOUT: %w", err)
		}
		c.Indexer.Timeout = duration
	}
	if retries := os.Getenv("ALGOLAND_INDEXER_MAX_RETRIES"); retries != "" {
		val, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_INDEXER_MAX_RETRIES: %w", err)
		}
		c.Indexer.MaxRetries = val
	}
	if delay := os.Getenv("ALGOLAND_INDEXER_RETRY_BASE"); delay != "" {
		duration, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_INDEXER_RETRY_BASE: %w", err)
		}
		c.Indexer.RetryBaseDelay = duration
	}
	if rps := os.Getenv("ALGOLAND_INDEXER_RPS"); rps != "" {
		val, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_INDEXER_RPS: %w", err)
		}
		c.Indexer.RequestsPerSecond = val
	}

	// Campaign configuration
	if appID := os.Getenv("ALGOLAND_APP_ID"); appID != "" {
		val, err := strconv.ParseUint(appID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_APP_ID: %w", err)
		}
		c.Campaign.RegistryAppID = val
	}
	if weeks := os.Getenv("ALGOLAND_TOTAL_WEEKS"); weeks != "" {
		val, err := strconv.Atoi(weeks)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_TOTAL_WEEKS: %w", err)
		}
		c.Campaign.TotalWeeks = val
	}
	if distributors := os.Getenv("ALGOLAND_DISTRIBUTORS"); distributors != "" {
		c.Campaign.Distributors.Default = splitList(distributors)
	}
	if path := os.Getenv("ALGOLAND_PRIZES_FILE"); path != "" {
		c.Campaign.PrizesFile = path
	}
	if path := os.Getenv("ALGOLAND_APP_SPEC_FILE"); path != "" {
		c.Campaign.AppSpecFile = path
	}
	if source := os.Getenv("ALGOLAND_PROFILE_SOURCE"); source != "" {
		c.Campaign.ProfileSource = strings.ToLower(strings.TrimSpace(source))
	}

	// Cache configuration
	if ttl := os.Getenv("ALGOLAND_CACHE_TTL"); ttl != "" {
		duration, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = duration
	}
	if backend := os.Getenv("ALGOLAND_CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = backend
	}
	if maxEntries := os.Getenv("ALGOLAND_CACHE_MAX_ENTRIES"); maxEntries != "" {
		val, err := strconv.Atoi(maxEntries)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_CACHE_MAX_ENTRIES: %w", err)
		}
		c.Cache.MaxEntries = val
	}
	if path := os.Getenv("ALGOLAND_PEBBLE_PATH"); path != "" {
		c.Cache.PebblePath = path
	}
	if addr := os.Getenv("ALGOLAND_REDIS_ADDR"); addr != "" {
		c.Cache.Redis.Addr = addr
	}
	if password := os.Getenv("ALGOLAND_REDIS_PASSWORD"); password != "" {
		c.Cache.Redis.Password = password
	}
	if db := os.Getenv("ALGOLAND_REDIS_DB"); db != "" {
		val, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_REDIS_DB: %w", err)
		}
		c.Cache.Redis.DB = val
	}

	// Entrants configuration
	if tolerance := os.Getenv("ALGOLAND_ENTRANTS_REGRESSION_TOLERANCE"); tolerance != "" {
		val, err := strconv.ParseUint(tolerance, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_ENTRANTS_REGRESSION_TOLERANCE: %w", err)
		}
		c.Entrants.RegressionTolerance = val
	}

	// Challenge configuration
	if refresh := os.Getenv("ALGOLAND_CHALLENGE_REFRESH"); refresh != "" {
		duration, err := time.ParseDuration(refresh)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_CHALLENGE_REFRESH: %w", err)
		}
		c.Challenges.RefreshInterval = duration
	}

	// API configuration
	if host := os.Getenv("ALGOLAND_API_HOST"); host != "" {
		c.API.Host = host
	}
	for _, name := range []string{"PORT", "ALGOLAND_API_PORT"} {
		if port := os.Getenv(name); port != "" {
			val, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			c.API.Port = val
		}
	}
	if origins := os.Getenv("ALGOLAND_ALLOWED_ORIGINS"); origins != "" {
		if strings.TrimSpace(origins) == "*" {
			c.API.AllowedOrigins = []string{}
		} else {
			c.API.AllowedOrigins = splitList(origins)
		}
	}
	if limit := os.Getenv("ALGOLAND_RATE_LIMIT_PER_MINUTE"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.API.RateLimitPerMinute = val
	}
	if workers := os.Getenv("ALGOLAND_BULK_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid ALGOLAND_BULK_WORKERS: %w", err)
		}
		c.API.BulkWorkers = val
	}

	// Log configuration
	if level := os.Getenv("ALGOLAND_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("ALGOLAND_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Indexer.BaseURL == "" {
		return fmt.Errorf("indexer base URL is required")
	}
	if c.Indexer.MaxRetries <= 0 {
		return fmt.Errorf("indexer max retries must be positive")
	}
	if c.Indexer.RetryBaseDelay <= 0 {
		return fmt.Errorf("indexer retry base delay must be positive")
	}
	if c.Indexer.RequestsPerSecond < 0 {
		return fmt.Errorf("indexer requests per second cannot be negative")
	}

	if c.Campaign.RegistryAppID == 0 {
		return fmt.Errorf("registry app id is required")
	}
	if c.Campaign.TotalWeeks <= 0 || c.Campaign.TotalWeeks > 255 {
		return fmt.Errorf("total weeks must be between 1 and 255")
	}
	for _, week := range c.Campaign.Weeks {
		if week.Week < 1 || week.Week > c.Campaign.TotalWeeks {
			return fmt.Errorf("week %d is outside 1..%d", week.Week, c.Campaign.TotalWeeks)
		}
	}
	if c.Campaign.ProfileSource != ProfileSourceRegistry && c.Campaign.ProfileSource != ProfileSourceInspector {
		return fmt.Errorf("invalid profile source %q, must be one of: registry, inspector", c.Campaign.ProfileSource)
	}

	validBackends := map[string]bool{
		"memory": true,
		"redis":  true,
		"pebble": true,
	}
	if !validBackends[c.Cache.Backend] {
		return fmt.Errorf("invalid cache backend %q, must be one of: memory, redis, pebble", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("redis cache backend selected but no address configured")
	}

	if c.Challenges.RefreshInterval < time.Second {
		return fmt.Errorf("challenge refresh interval must be at least 1s")
	}

	if c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort {
		return fmt.Errorf("port must be between %d and %d", constants.MinPort, constants.MaxPort)
	}
	if c.API.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit per minute must be positive")
	}
	if c.API.BulkWorkers <= 0 {
		return fmt.Errorf("bulk workers must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	return nil
}

// Load is a convenience method that loads configuration in the following order:
// 1. Set defaults
// 2. Load from file (if provided)
// 3. Load from environment variables (override file)
// 4. Validate
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
