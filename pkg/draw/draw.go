// Package draw assembles the on-chain result of a weekly prize draw: the
// week's challenge, the draw progress, the selected winners and who holds
// each prize asset.
package draw

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/holders"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"github.com/0xmhha/algoland-api/pkg/registry"
	"go.uber.org/zap"
)

// NotPublishedMessage is reported when a week's draw boxes do not exist yet
const NotPublishedMessage = "Indexer returned 404 (state not found or not yet published)"

const minMaxAge = 60 * time.Second

var (
	// ErrNotPublished is returned when the challenge or draw-state box of a week is missing
	ErrNotPublished = errors.New("draw: state not found or not yet published")
	// ErrInvalidWeek is returned for weeks outside 1..255
	ErrInvalidWeek = errors.New("draw: week must be a positive integer")
)

// Source reads the draw application
type Source interface {
	Challenge(ctx context.Context, week uint8) (*registry.Challenge, error)
	WeeklyState(ctx context.Context, week uint8) (*registry.WeeklyDrawState, error)
	UserByRelativeID(ctx context.Context, id uint32) (string, *registry.User, error)
}

// HolderEnumerator lists the current holders of an asset
type HolderEnumerator interface {
	Enumerate(ctx context.Context, assetID uint64) (holders.HolderSet, error)
}

// Challenge is the week's challenge configuration
type Challenge struct {
	QuestIDs                []uint64 `json:"questIds"`
	DrawPrizeAssetIDs       []uint64 `json:"drawPrizeAssetIds"`
	NumDrawEligibleAccounts uint64   `json:"numDrawEligibleAccounts"`
	NumDrawWinners          uint64   `json:"numDrawWinners"`
	CompletionBadgeAssetID  string   `json:"completionBadgeAssetId,omitempty"`
	TimeStart               uint64   `json:"timeStart"`
	TimeEnd                 uint64   `json:"timeEnd"`
}

// WeeklyState is the week's draw progress. Status is nil before the draw starts.
type WeeklyState struct {
	Status           *uint64  `json:"status"`
	AccountsIngested uint64   `json:"accountsIngested"`
	LastRelativeID   uint64   `json:"lastRelativeId"`
	CommitBlocks     []uint64 `json:"commitBlocks"`
	Winners          []uint64 `json:"winners"`
	TxIDs            []string `json:"txIds"`
}

// Winner is a selected participant with display-ready points
type Winner struct {
	RelativeID             uint64   `json:"relativeId"`
	Address                string   `json:"address"`
	ReferrerID             *uint64  `json:"referrerId"`
	Points                 float64  `json:"points"`
	RedeemedPoints         float64  `json:"redeemedPoints"`
	WeeklyDrawEntries      int      `json:"weeklyDrawEntries"`
	CompletedQuests        []string `json:"completedQuests"`
	CompletedChallenges    []string `json:"completedChallenges"`
	NumReferrals           uint64   `json:"numReferrals"`
	ReferralIDs            []uint64 `json:"referralIds"`
	AvailablePrizeAssetIDs []uint64 `json:"availablePrizeAssetIds"`
	ClaimedPrizeAssetIDs   []uint64 `json:"claimedPrizeAssetIds"`
}

// PrizeAsset is the holder set of one prize asset, or the reason it is missing
type PrizeAsset struct {
	AssetID   uint64            `json:"assetId"`
	Holders   []string          `json:"holders,omitempty"`
	Balances  []holders.Balance `json:"balances,omitempty"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
	Source    string            `json:"source,omitempty"`
	Meta      *holders.Meta     `json:"meta,omitempty"`
	Error     string            `json:"error,omitempty"`
	Stale     bool              `json:"stale,omitempty"`
}

// Result is the assembled draw of one week
type Result struct {
	Week        int          `json:"week"`
	FetchedAt   time.Time    `json:"fetchedAt"`
	Stale       bool         `json:"stale"`
	Challenge   Challenge    `json:"challenge"`
	WeeklyState WeeklyState  `json:"weeklyState"`
	Winners     []Winner     `json:"winners"`
	PrizeAssets []PrizeAsset `json:"prizeAssets"`
}

// Config configures a Service
type Config struct {
	Source  Source
	Holders HolderEnumerator
	Store   cache.Store[Result]
	// TTL is the response cache lifetime; results are reused for max(TTL, 60s)
	TTL    time.Duration
	Logger *zap.Logger
}

// Service reads and caches weekly draws
type Service struct {
	source  Source
	holders HolderEnumerator
	results *cache.Aged[Result]
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service
func NewService(cfg *Config) (*Service, error) {
	if cfg.Source == nil || cfg.Holders == nil {
		return nil, fmt.Errorf("draw source and holder enumerator are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("result store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAge := cfg.TTL
	if maxAge < minMaxAge {
		maxAge = minMaxAge
	}
	return &Service{
		source:  cfg.Source,
		holders: cfg.Holders,
		results: cache.NewAged(cfg.Store, cache.AgedConfig{
			Name:   "weekly_draw",
			MaxAge: maxAge,
			Logger: logger,
		}),
		logger: logger.Named("draw"),
		now:    time.Now,
	}, nil
}

// Week returns the draw of a week. A cached result is served while fresh, and
// marked stale when a refresh fails.
func (s *Service) Week(ctx context.Context, week int) (Result, error) {
	if week < 1 || week > 255 {
		return Result{}, ErrInvalidWeek
	}
	res, err := s.results.Get(ctx, "weekly-draw:"+strconv.Itoa(week), func(ctx context.Context) (Result, error) {
		return s.fetch(ctx, uint8(week))
	})
	if err != nil {
		return Result{}, err
	}
	out := res.Value
	out.Stale = res.Stale
	return out, nil
}

func (s *Service) fetch(ctx context.Context, week uint8) (Result, error) {
	challenge, err := s.source.Challenge(ctx, week)
	if err != nil {
		return Result{}, notPublished(err)
	}
	state, err := s.source.WeeklyState(ctx, week)
	if err != nil {
		return Result{}, notPublished(err)
	}

	winners := make([]Winner, 0, len(state.Winners))
	for _, id := range state.Winners {
		w, err := s.winner(ctx, id)
		if err != nil {
			return Result{}, err
		}
		winners = append(winners, w)
	}

	prizeIDs := challenge.PrizeAssetIDs()
	prizes := make([]PrizeAsset, 0, len(prizeIDs))
	for _, assetID := range prizeIDs {
		prizes = append(prizes, s.prizeAsset(ctx, assetID))
	}

	s.logger.Info("Weekly draw fetched",
		zap.Uint8("week", week),
		zap.Int("winners", len(winners)),
		zap.Int("prizeAssets", len(prizes)),
	)
	return Result{
		Week:        int(week),
		FetchedAt:   s.now().UTC(),
		Challenge:   sanitiseChallenge(challenge),
		WeeklyState: sanitiseWeeklyState(state),
		Winners:     winners,
		PrizeAssets: prizes,
	}, nil
}

func (s *Service) winner(ctx context.Context, id uint64) (Winner, error) {
	if id > uint64(^uint32(0)) {
		return Winner{}, fmt.Errorf("winner relative id %d out of range", id)
	}
	addr, u, err := s.source.UserByRelativeID(ctx, uint32(id))
	if err != nil {
		return Winner{}, fmt.Errorf("winner %d: %w", id, err)
	}
	w := Winner{
		RelativeID:             id,
		Address:                addr,
		Points:                 float64(u.Points) * 100,
		RedeemedPoints:         float64(u.RedeemedPoints) * 100,
		WeeklyDrawEntries:      len(u.WeeklyDrawEligibility),
		CompletedQuests:        labels("Quest", u.CompletedQuests),
		CompletedChallenges:    labels("Challenge", u.CompletedChallenges),
		NumReferrals:           u.NumReferrals,
		ReferralIDs:            append([]uint64{}, u.Referrals...),
		AvailablePrizeAssetIDs: positive(u.AvailableDrawPrizeAssetIDs),
		ClaimedPrizeAssetIDs:   positive(u.ClaimedDrawPrizeAssetIDs),
	}
	if u.ReferrerID > 0 {
		ref := u.ReferrerID
		w.ReferrerID = &ref
	}
	return w, nil
}

func (s *Service) prizeAsset(ctx context.Context, assetID uint64) PrizeAsset {
	set, err := s.holders.Enumerate(ctx, assetID)
	if err != nil {
		s.logger.Warn("Prize asset holders unavailable", zap.Uint64("assetId", assetID), zap.Error(err))
		return PrizeAsset{AssetID: assetID, Error: ErrorMessage(err)}
	}
	updated := set.UpdatedAt
	meta := set.Meta
	return PrizeAsset{
		AssetID:   set.AssetID,
		Holders:   set.Holders,
		Balances:  set.Balances,
		UpdatedAt: &updated,
		Source:    set.Source,
		Meta:      &meta,
		Stale:     set.Stale,
	}
}

// ErrorMessage renders a draw failure for API consumers. Missing state reads
// as not yet published.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotPublished) || indexer.IsNotFound(err) || strings.Contains(err.Error(), "404") {
		return NotPublishedMessage
	}
	return err.Error()
}

func notPublished(err error) error {
	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotPublished, err)
	}
	return err
}

func sanitiseChallenge(c *registry.Challenge) Challenge {
	out := Challenge{
		QuestIDs:                nonNil(c.QuestIDs),
		DrawPrizeAssetIDs:       nonNil(c.DrawPrizeAssetIDs),
		NumDrawEligibleAccounts: c.NumDrawEligibleAccounts,
		NumDrawWinners:          c.NumDrawWinners,
		TimeStart:               c.TimeStart,
		TimeEnd:                 c.TimeEnd,
	}
	if c.CompletionBadgeAssetID > 0 {
		out.CompletionBadgeAssetID = strconv.FormatUint(c.CompletionBadgeAssetID, 10)
	}
	return out
}

func sanitiseWeeklyState(w *registry.WeeklyDrawState) WeeklyState {
	out := WeeklyState{
		AccountsIngested: w.AccountsIngested,
		LastRelativeID:   w.LastRelativeID,
		CommitBlocks:     nonNil(w.CommitBlocks),
		Winners:          nonNil(w.Winners),
		TxIDs:            append([]string{}, w.TxIDs...),
	}
	if w.Status > 0 {
		status := w.Status
		out.Status = &status
	}
	return out
}

func labels(prefix string, ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = prefix + " " + strconv.FormatUint(id, 10)
	}
	return out
}

func positive(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []uint64) []uint64 {
	return append([]uint64{}, ids...)
}
