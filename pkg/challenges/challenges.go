// Package challenges serves the per-week challenge configuration read from the
// draw application, merged with known prize metadata. The snapshot is kept warm
// by a background refresher; when the chain cannot be read the last good
// snapshot, or a legacy one built from the week table and prize catalogue, is
// served instead.
package challenges

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/prizes"
	"github.com/0xmhha/algoland-api/pkg/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Week statuses
const (
	StatusConfigured = "configured"
	StatusPending    = "pending"
	StatusLegacy     = "legacy"
)

// Snapshot sources
const (
	SourceChain  = "algoland-sdk"
	SourceLegacy = "legacy-prizes"
)

const snapshotKey = "snapshot"

// Source reads challenge boxes from the draw application
type Source interface {
	ChallengeWeeks(ctx context.Context) ([]uint8, error)
	Challenge(ctx context.Context, week uint8) (*registry.Challenge, error)
}

// WeekTable is the static campaign layout
type WeekTable interface {
	TotalWeeks() int
	WeekAsset(week int) uint64
}

// Catalogue lists the configured weekly prizes
type Catalogue interface {
	All() ([]prizes.Prize, error)
}

// Week is the challenge configuration of one week
type Week struct {
	Week          int              `json:"week"`
	BadgeAsa      *string          `json:"badgeAsa"`
	PrizeAsa      *string          `json:"prizeAsa"`
	Status        string           `json:"status"`
	TimeStart     *uint64          `json:"timeStart,omitempty"`
	TimeEnd       *uint64          `json:"timeEnd,omitempty"`
	BadgeMetadata *prizes.Metadata `json:"badgeMetadata,omitempty"`
	PrizeMetadata *prizes.Metadata `json:"prizeMetadata,omitempty"`
}

// Snapshot is the full week list at a point in time
type Snapshot struct {
	Weeks     []Week    `json:"weeks"`
	FetchedAt time.Time `json:"fetchedAt"`
	Source    string    `json:"source"`
	Stale     bool      `json:"stale"`
	Error     string    `json:"error,omitempty"`
}

// Config configures a Service
type Config struct {
	Source    Source
	Weeks     WeekTable
	Catalogue Catalogue
	Store     cache.Store[Snapshot]
	// RefreshInterval is both the snapshot lifetime and the refresh period
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

// Service serves challenge snapshots
type Service struct {
	source    Source
	weeks     WeekTable
	catalogue Catalogue
	store     cache.Store[Snapshot]
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	lastGood *Snapshot

	refresher *refresher
}

// NewService creates a Service. The refresher is not started.
func NewService(cfg *Config) (*Service, error) {
	if cfg.Source == nil || cfg.Weeks == nil || cfg.Catalogue == nil {
		return nil, fmt.Errorf("challenge source, week table and catalogue are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:    cfg.Source,
		weeks:     cfg.Weeks,
		catalogue: cfg.Catalogue,
		store:     cfg.Store,
		interval:  cfg.RefreshInterval,
		logger:    logger.Named("challenges"),
		now:       time.Now,
	}
	s.refresher = newRefresher(s.interval, s.refresh, s.logger)
	return s, nil
}

// Snapshot returns the cached snapshot while it is fresh, otherwise reads the
// chain. A failed read serves the last good snapshot marked stale, or the
// legacy snapshot when nothing was ever read.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if cached, ok := s.cached(ctx); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(snapshotKey, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	if err == nil {
		return v.(Snapshot), nil
	}

	if last, ok := s.last(); ok {
		s.logger.Warn("Serving last challenge snapshot", zap.Error(err))
		last.Stale = true
		last.Error = err.Error()
		return last, nil
	}
	return s.legacy(ctx, err)
}

// Start refreshes the snapshot now and then on every interval
func (s *Service) Start() error {
	return s.refresher.start()
}

// Stop halts the refresher, waiting for a running refresh until ctx is done
func (s *Service) Stop(ctx context.Context) error {
	return s.refresher.stop(ctx)
}

func (s *Service) refresh(ctx context.Context) {
	if _, err := s.fetch(ctx); err != nil {
		s.logger.Warn("Failed to refresh challenge prizes", zap.Error(err))
	}
}

func (s *Service) cached(ctx context.Context) (Snapshot, bool) {
	entry, err := s.store.Get(ctx, snapshotKey)
	if err != nil {
		return Snapshot{}, false
	}
	lifetime := s.interval
	if entry.Value.Source == SourceLegacy {
		lifetime = 2 * s.interval
	}
	if s.now().Sub(entry.CachedAt) > lifetime {
		return Snapshot{}, false
	}
	return cloneSnapshot(entry.Value), true
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	ids, err := s.source.ChallengeWeeks(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list challenges: %w", err)
	}
	total := s.weeks.TotalWeeks()
	byWeek := make(map[int]Week, len(ids))
	for _, id := range ids {
		week := int(id)
		if week < 1 || week > total {
			continue
		}
		c, err := s.source.Challenge(ctx, id)
		if err != nil {
			return Snapshot{}, err
		}
		byWeek[week] = normaliseChallenge(week, c)
	}

	weeks := make([]Week, 0, total)
	for week := 1; week <= total; week++ {
		if w, ok := byWeek[week]; ok {
			weeks = append(weeks, w)
			continue
		}
		weeks = append(weeks, withMetadata(Week{
			Week:     week,
			BadgeAsa: assetString(s.weeks.WeekAsset(week)),
			Status:   StatusPending,
		}))
	}

	snap := Snapshot{Weeks: weeks, FetchedAt: s.now().UTC(), Source: SourceChain}
	s.remember(ctx, snap, s.interval)
	s.logger.Info("Challenge snapshot refreshed", zap.Int("challenges", len(byWeek)))
	return cloneSnapshot(snap), nil
}

func (s *Service) legacy(ctx context.Context, cause error) (Snapshot, error) {
	catalogue, err := s.catalogue.All()
	if err != nil {
		return Snapshot{}, fmt.Errorf("legacy prizes: %w", err)
	}
	byWeek := make(map[int]prizes.Prize, len(catalogue))
	for _, p := range catalogue {
		byWeek[p.Week] = p
	}

	total := s.weeks.TotalWeeks()
	weeks := make([]Week, 0, total)
	for week := 1; week <= total; week++ {
		w := Week{Week: week, BadgeAsa: assetString(s.weeks.WeekAsset(week))}
		if p, ok := byWeek[week]; ok && p.AssetID != nil {
			w.PrizeAsa = assetString(*p.AssetID)
		}
		if w.BadgeAsa != nil || w.PrizeAsa != nil {
			w.Status = StatusLegacy
		} else {
			w.Status = StatusPending
		}
		weeks = append(weeks, withMetadata(w))
	}

	snap := Snapshot{
		Weeks:     weeks,
		FetchedAt: s.now().UTC(),
		Source:    SourceLegacy,
		Stale:     true,
		Error:     cause.Error(),
	}
	s.remember(ctx, snap, 2*s.interval)
	s.logger.Warn("Serving legacy challenge snapshot", zap.Error(cause))
	return cloneSnapshot(snap), nil
}

func (s *Service) remember(ctx context.Context, snap Snapshot, ttl time.Duration) {
	if err := s.store.Set(ctx, snapshotKey, snap, ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.Error(err))
	}
	s.mu.Lock()
	s.lastGood = &snap
	s.mu.Unlock()
}

func (s *Service) last() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood == nil {
		return Snapshot{}, false
	}
	return cloneSnapshot(*s.lastGood), true
}

func normaliseChallenge(week int, c *registry.Challenge) Week {
	start, end := c.TimeStart, c.TimeEnd
	w := Week{
		Week:      week,
		BadgeAsa:  assetString(c.CompletionBadgeAssetID),
		TimeStart: &start,
		TimeEnd:   &end,
		Status:    StatusPending,
	}
	if len(c.DrawPrizeAssetIDs) > 0 {
		w.PrizeAsa = assetString(c.DrawPrizeAssetIDs[0])
	}
	if w.BadgeAsa != nil || w.PrizeAsa != nil {
		w.Status = StatusConfigured
	}
	return withMetadata(w)
}

func withMetadata(w Week) Week {
	if w.BadgeAsa != nil {
		if meta, ok := lookup(*w.BadgeAsa); ok {
			w.BadgeMetadata = &meta
		}
	}
	if w.PrizeAsa != nil {
		if meta, ok := lookup(*w.PrizeAsa); ok {
			w.PrizeMetadata = &meta
		}
	}
	return w
}

func lookup(asa string) (prizes.Metadata, bool) {
	id, err := strconv.ParseUint(asa, 10, 64)
	if err != nil {
		return prizes.Metadata{}, false
	}
	return prizes.Lookup(id)
}

func assetString(id uint64) *string {
	if id == 0 {
		return nil
	}
	s := strconv.FormatUint(id, 10)
	return &s
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Weeks = append([]Week(nil), s.Weeks...)
	return s
}
