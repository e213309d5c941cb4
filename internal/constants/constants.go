package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "0.0.0.0"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 3000

	// MinPort is the minimum valid port number
	MinPort = 1

	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout.
	// Holder enumeration for a popular asset walks many indexer pages.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum request header size (1 MB)
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB

	// DefaultRateLimitPerMinute is the number of requests a single IP may issue per minute
	DefaultRateLimitPerMinute = 60

	// DefaultRateLimiterTTL is how long an idle per-IP limiter is kept
	DefaultRateLimiterTTL = 10 * time.Minute

	// DefaultBulkWorkers bounds concurrent holder lookups for /api/completions/bulk
	DefaultBulkWorkers = 4

	// ServiceName is reported by /api/ping
	ServiceName = "algoland-backend"
)

// Default CORS origins
var DefaultAllowedOrigins = []string{
	"https://emnetcm.com",
	"https://www.emnetcm.com",
}

// Indexer Constants
const (
	// DefaultIndexerBase is the public mainnet indexer
	DefaultIndexerBase = "https://mainnet-idx.algonode.cloud"

	// DefaultAlgodBase is the public mainnet algod node, used for user boxes
	DefaultAlgodBase = "https://mainnet-api.algonode.cloud"

	// DefaultIndexerTimeout is the per-request HTTP timeout
	DefaultIndexerTimeout = 30 * time.Second

	// DefaultMaxRetries is the total number of attempts for a retryable request
	DefaultMaxRetries = 5

	// DefaultRetryBaseDelay is the first backoff delay; it doubles after every attempt
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultPageLimit is the page size requested from paginated indexer endpoints
	DefaultPageLimit = 1000
)

// Campaign Constants
const (
	// DefaultRegistryAppID is the Algoland registry application on mainnet
	DefaultRegistryAppID = 3215540125

	// DefaultTotalWeeks is the length of the campaign
	DefaultTotalWeeks = 13

	// DefaultDistributor holds undistributed badges and prizes
	DefaultDistributor = "HHADCZKQV24QDCBER5GTOH7BOLF4ZQ6WICNHAA3GZUECIMJXIIMYBIWEZM"

	// DefaultPrizesFile is the prize catalogue read by /api/prizes
	DefaultPrizesFile = "prizes.json"
)

// Cache Constants
const (
	// DefaultCacheTTL is the response and profile cache lifetime
	DefaultCacheTTL = 300 * time.Second

	// MinAgedCacheWindow is the lower bound for cachedAt-aged stores (holders, weekly draws)
	MinAgedCacheWindow = 60 * time.Second

	// DefaultIDLookupTTL is how long a relative id to address mapping is kept
	DefaultIDLookupTTL = 12 * time.Hour

	// DefaultIDNegativeTTL is how long a missing relative id is remembered
	DefaultIDNegativeTTL = 60 * time.Second

	// DefaultAssetMetadataTTL is how long asset admin addresses are kept
	DefaultAssetMetadataTTL = 24 * time.Hour

	// DefaultCacheMaxEntries bounds each in-memory store
	DefaultCacheMaxEntries = 10000

	// DefaultCacheKeyPrefix namespaces keys in shared backends
	DefaultCacheKeyPrefix = "algoland"
)

// Challenge Constants
const (
	// DefaultChallengeRefresh is the background refresh interval for the challenge snapshot
	DefaultChallengeRefresh = 600 * time.Second
)

// Metrics Constants
const (
	// MetricsNamespace prefixes every exported metric
	MetricsNamespace = "algoland"
)
