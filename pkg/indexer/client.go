package indexer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/algoland-api/internal/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 32 << 20
	maxErrorBody     = 512
	base64Prefix     = "base64:"
	boxNameParam     = "name"
)

// Params are query parameters. Keys are sent sorted; empty values are skipped.
type Params map[string]string

// Config holds client configuration
type Config struct {
	// BaseURL is the REST endpoint, e.g. https://mainnet-idx.algonode.cloud
	BaseURL string
	// Name labels metrics and logs ("indexer", "algod")
	Name string
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	// MaxRetries is the total number of attempts for retryable failures
	MaxRetries int
	// RetryBaseDelay is doubled after every failed attempt
	RetryBaseDelay time.Duration
	// RequestsPerSecond throttles outgoing requests; 0 disables it
	RequestsPerSecond float64
	// HTTPClient overrides the default client
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a read-only REST client for the Algorand indexer and algod box API
type Client struct {
	baseURL        string
	name           string
	maxRetries     int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewClient creates a new client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "indexer"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = constants.DefaultMaxRetries
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = constants.DefaultRetryBaseDelay
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultIndexerTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		name:           name,
		maxRetries:     maxRetries,
		retryBaseDelay: baseDelay,
		httpClient:     httpClient,
		limiter:        limiter,
		logger:         logger.With(zap.String("upstream", name)),
	}, nil
}

// BaseURL returns the configured endpoint
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes the JSON body into out.
// 429, 5xx and transport errors are retried with exponential backoff.
func (c *Client) Get(ctx context.Context, path string, params Params, out interface{}) error {
	body, err := c.fetch(ctx, c.buildURL(path, params))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Paginate walks a paginated endpoint, feeding each raw page to fn and
// following next-token until it is absent. It returns the number of pages read.
func (c *Client) Paginate(ctx context.Context, path string, params Params, fn func(page json.RawMessage) error) (int, error) {
	query := make(Params, len(params)+1)
	for k, v := range params {
		query[k] = v
	}

	pages := 0
	for {
		var raw json.RawMessage
		if err := c.Get(ctx, path, query, &raw); err != nil {
			return pages, err
		}
		pages++

		if err := fn(raw); err != nil {
			return pages, err
		}

		var cursor pageCursor
		if err := json.Unmarshal(raw, &cursor); err != nil {
			return pages, fmt.Errorf("failed to decode page cursor: %w", err)
		}
		if cursor.NextToken == "" {
			return pages, nil
		}
		if cursor.NextToken == query["next"] {
			return pages, fmt.Errorf("indexer repeated next-token %q on %s", cursor.NextToken, path)
		}
		query["next"] = cursor.NextToken
	}
}

// Application fetches an application and its global state
func (c *Client) Application(ctx context.Context, appID uint64) (*Application, error) {
	var resp applicationResponse
	if err := c.Get(ctx, fmt.Sprintf("/v2/applications/%d", appID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Application, nil
}

// ApplicationAccounts walks every account opted into an application
func (c *Client) ApplicationAccounts(ctx context.Context, appID uint64, fn func([]Account) error) (int, error) {
	params := Params{
		"limit":       strconv.Itoa(constants.DefaultPageLimit),
		"include-all": "false",
	}
	return c.Paginate(ctx, fmt.Sprintf("/v2/applications/%d/accounts", appID), params, func(raw json.RawMessage) error {
		var page accountsPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("failed to decode accounts page: %w", err)
		}
		return fn(page.Accounts)
	})
}

// Asset fetches asset parameters
func (c *Client) Asset(ctx context.Context, assetID uint64) (*Asset, error) {
	var resp assetResponse
	if err := c.Get(ctx, fmt.Sprintf("/v2/assets/%d", assetID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Asset, nil
}

// AssetBalances walks every non-zero balance of an asset
func (c *Client) AssetBalances(ctx context.Context, assetID uint64, fn func([]AssetHolding) error) (int, error) {
	params := Params{
		"limit":                 strconv.Itoa(constants.DefaultPageLimit),
		"currency-greater-than": "0",
		"include-all":           "false",
	}
	return c.Paginate(ctx, fmt.Sprintf("/v2/assets/%d/balances", assetID), params, func(raw json.RawMessage) error {
		var page balancesPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("failed to decode balances page: %w", err)
		}
		return fn(page.Balances)
	})
}

// Box reads a single application box by its raw name
func (c *Client) Box(ctx context.Context, appID uint64, name []byte) ([]byte, error) {
	params := Params{boxNameParam: base64Prefix + base64.StdEncoding.EncodeToString(name)}

	var resp boxResponse
	if err := c.Get(ctx, fmt.Sprintf("/v2/applications/%d/box", appID), params, &resp); err != nil {
		return nil, err
	}

	value, err := base64.StdEncoding.DecodeString(resp.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 box value: %w", err)
	}
	return value, nil
}

// ApplicationBoxes lists the names of every box owned by an application
func (c *Client) ApplicationBoxes(ctx context.Context, appID uint64) ([][]byte, error) {
	params := Params{"limit": strconv.Itoa(constants.DefaultPageLimit)}

	var names [][]byte
	_, err := c.Paginate(ctx, fmt.Sprintf("/v2/applications/%d/boxes", appID), params, func(raw json.RawMessage) error {
		var page boxesPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("failed to decode boxes page: %w", err)
		}
		for _, box := range page.Boxes {
			name, err := base64.StdEncoding.DecodeString(box.Name)
			if err != nil {
				return fmt.Errorf("invalid base64 box name: %w", err)
			}
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) buildURL(path string, params Params) string {
	query := encodeQuery(params)
	if query == "" {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + query
}

// encodeQuery escapes every key and value except the literal base64: prefix
// of the box name parameter, which the indexer expects unescaped.
func encodeQuery(params Params) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		v := params[k]
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		if k == boxNameParam && strings.HasPrefix(v, base64Prefix) {
			b.WriteString(base64Prefix)
			b.WriteString(url.QueryEscape(strings.TrimPrefix(v, base64Prefix)))
		} else {
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay << (attempt - 1)
			retriesTotal.WithLabelValues(c.name).Inc()
			c.logger.Warn("Retrying upstream request",
				zap.String("url", target),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, status, err := c.do(ctx, target)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if status != 0 && !retryableStatus(status) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrUpstreamUnavailable, target, c.maxRetries, lastErr)
}

// do performs one attempt. status is 0 for transport errors.
func (c *Client) do(ctx context.Context, target string) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(c.name, "error", statusClass(0)).Inc()
		return nil, 0, fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		requestsTotal.WithLabelValues(c.name, "error", statusClass(0)).Inc()
		return nil, 0, fmt.Errorf("failed to read response from %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestsTotal.WithLabelValues(c.name, "error", statusClass(resp.StatusCode)).Inc()
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, resp.StatusCode, &Error{StatusCode: resp.StatusCode, Body: text, URL: target}
	}

	requestsTotal.WithLabelValues(c.name, "ok", statusClass(resp.StatusCode)).Inc()
	c.logger.Debug("Upstream request completed",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return body, resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
