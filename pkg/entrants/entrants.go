// Package entrants counts campaign participants. The registry's global
// counter is the fast path; enumerating opted-in accounts is the fallback when
// the counter is unreadable or has gone backwards.
package entrants

import (
	"context"
	"fmt"
	"time"

	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"go.uber.org/zap"
)

// Counting methods reported in Meta.Method
const (
	MethodGlobalState = "global-state"
	MethodEnumeration = "enumeration"
)

const cacheKey = "entrants"

// Counter reads the registry's participant counter
type Counter interface {
	AppID() uint64
	Source() string
	UserCounter(ctx context.Context) (uint64, error)
}

// AccountLister walks the accounts opted into an application
type AccountLister interface {
	ApplicationAccounts(ctx context.Context, appID uint64, fn func([]indexer.Account) error) (int, error)
}

// Meta describes how a count was obtained
type Meta struct {
	Method         string  `json:"method"`
	DurationMs     float64 `json:"durationMs"`
	AppID          uint64  `json:"appId,omitempty"`
	PageCount      int     `json:"pageCount,omitempty"`
	UniqueAccounts int     `json:"uniqueAccounts,omitempty"`
}

// Snapshot is a participant count
type Snapshot struct {
	Entrants  uint64    `json:"entrants"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    string    `json:"source"`
	Meta      Meta      `json:"meta"`
	Stale     bool      `json:"stale,omitempty"`
}

// Config configures a Service
type Config struct {
	Counter  Counter
	Accounts AccountLister
	Store    cache.Store[Snapshot]
	// TTL is how long a count is kept as the stale fallback
	TTL time.Duration
	// RegressionTolerance is how far the counter may fall below the cached
	// count before enumeration takes over
	RegressionTolerance uint64
	Logger              *zap.Logger
}

// Service resolves the participant count
type Service struct {
	counter   Counter
	accounts  AccountLister
	aged      *cache.Aged[Snapshot]
	tolerance uint64
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service
func NewService(cfg *Config) (*Service, error) {
	if cfg.Counter == nil || cfg.Accounts == nil {
		return nil, fmt.Errorf("counter and account lister are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &Service{
		counter:  cfg.Counter,
		accounts: cfg.Accounts,
		aged: cache.NewAged(cfg.Store, cache.AgedConfig{
			Name:   "entrants",
			TTL:    ttl,
			Logger: logger,
		}),
		tolerance: cfg.RegressionTolerance,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Count returns the current participant count. When both strategies fail
// the last cached count is returned with Stale set.
func (s *Service) Count(ctx context.Context) (Snapshot, error) {
	res, err := s.aged.Get(ctx, cacheKey, s.fetch)
	if err != nil {
		return Snapshot{}, err
	}
	snap := res.Value
	snap.Stale = res.Stale
	return snap, nil
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	cached, hasCached := s.aged.Peek(ctx, cacheKey)
	if snap, ok := s.fromCounter(ctx, cached, hasCached); ok {
		return snap, nil
	}
	return s.enumerate(ctx)
}

func (s *Service) fromCounter(ctx context.Context, cached cache.Entry[Snapshot], hasCached bool) (Snapshot, bool) {
	start := s.now()
	count, err := s.counter.UserCounter(ctx)
	if err != nil {
		s.logger.Warn("Failed to read global entrants counter", zap.Error(err))
		return Snapshot{}, false
	}
	if hasCached && !Accept(count, cached.Value.Entrants, s.tolerance) {
		s.logger.Warn("Global counter lower than cached entrants, falling back to enumeration",
			zap.Uint64("counter", count),
			zap.Uint64("cachedEntrants", cached.Value.Entrants),
		)
		return Snapshot{}, false
	}

	snap := Snapshot{
		Entrants:  count,
		UpdatedAt: s.now().UTC(),
		Source:    s.counter.Source(),
		Meta: Meta{
			Method:     MethodGlobalState,
			DurationMs: millis(s.now().Sub(start)),
			AppID:      s.counter.AppID(),
		},
	}
	s.logger.Info("Entrants counter fetched from global state",
		zap.Uint64("entrants", count),
		zap.Float64("durationMs", snap.Meta.DurationMs),
	)
	return snap, true
}

func (s *Service) enumerate(ctx context.Context) (Snapshot, error) {
	start := s.now()
	seen := make(map[string]struct{})
	pages, err := s.accounts.ApplicationAccounts(ctx, s.counter.AppID(), func(accounts []indexer.Account) error {
		for _, acct := range accounts {
			if addr := campaign.NormaliseAddress(acct.Address); addr != "" {
				seen[addr] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("enumerate entrants: %w", err)
	}

	snap := Snapshot{
		Entrants:  uint64(len(seen)),
		UpdatedAt: s.now().UTC(),
		Source:    s.counter.Source(),
		Meta: Meta{
			Method:         MethodEnumeration,
			DurationMs:     millis(s.now().Sub(start)),
			PageCount:      pages,
			UniqueAccounts: len(seen),
		},
	}
	s.logger.Info("Entrants computed via enumeration",
		zap.Uint64("entrants", snap.Entrants),
		zap.Int("pageCount", pages),
		zap.Float64("durationMs", snap.Meta.DurationMs),
	)
	return snap, nil
}

// Accept reports whether a counter reading may replace the cached count
func Accept(counter, cached, tolerance uint64) bool {
	return counter >= cached || cached-counter <= tolerance
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
