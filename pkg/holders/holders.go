// Package holders resolves who holds a campaign asset. Asset administrators
// and configured distributors are never counted as holders.
package holders

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"go.uber.org/zap"
)

// AssetSource reads asset parameters and balances
type AssetSource interface {
	BaseURL() string
	Asset(ctx context.Context, assetID uint64) (*indexer.Asset, error)
	AssetBalances(ctx context.Context, assetID uint64, fn func([]indexer.AssetHolding) error) (int, error)
}

// Allowlist returns the distributor addresses excluded for an asset
type Allowlist interface {
	DistributorsFor(assetID uint64) []string
}

// AssetMeta is the cached admin metadata of an asset
type AssetMeta struct {
	Decimals       uint64   `json:"decimals"`
	AdminAddresses []string `json:"adminAddresses"`
	CreationRound  uint64   `json:"creationRound,omitempty"`
}

// Balance is a holder and its raw amount as a decimal string
type Balance struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Meta describes a holder enumeration
type Meta struct {
	DurationMs      float64 `json:"durationMs"`
	PageCount       int     `json:"pageCount"`
	ScannedBalances int     `json:"scannedBalances"`
	UniqueHolders   int     `json:"uniqueHolders"`
}

// HolderSet is the sorted, deduplicated set of holders of an asset
type HolderSet struct {
	AssetID   uint64    `json:"assetId"`
	Holders   []string  `json:"holders"`
	Balances  []Balance `json:"balances"`
	UpdatedAt time.Time `json:"updatedAt"`
	Source    string    `json:"source"`
	Meta      Meta      `json:"meta"`
	Stale     bool      `json:"stale,omitempty"`
}

// Completion is the number of holders of a week's badge asset
type Completion struct {
	AssetID     uint64    `json:"assetId"`
	Completions int       `json:"completions"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Source      string    `json:"source"`
	Meta        Meta      `json:"meta"`
	Stale       bool      `json:"stale,omitempty"`
}

// Stores groups the caches used by a Resolver
type Stores struct {
	Meta        cache.Store[AssetMeta]
	Holders     cache.Store[HolderSet]
	Completions cache.Store[Completion]
}

// Config configures a Resolver
type Config struct {
	Source    AssetSource
	Allowlist Allowlist
	Stores    Stores
	// TTL is the response cache lifetime; holder sets are refreshed after
	// max(TTL, 60s)
	TTL    time.Duration
	Logger *zap.Logger
}

// Resolver enumerates and caches asset holders
type Resolver struct {
	source      AssetSource
	allowlist   Allowlist
	meta        *cache.Aged[AssetMeta]
	holders     *cache.Aged[HolderSet]
	completions *cache.Aged[Completion]
	logger      *zap.Logger
	now         func() time.Time
}

// NewResolver creates a Resolver
func NewResolver(cfg *Config) (*Resolver, error) {
	if cfg.Source == nil || cfg.Allowlist == nil {
		return nil, fmt.Errorf("asset source and allowlist are required")
	}
	if cfg.Stores.Meta == nil || cfg.Stores.Holders == nil || cfg.Stores.Completions == nil {
		return nil, fmt.Errorf("meta, holders and completions stores are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	maxAge := ttl
	if maxAge < constants.MinAgedCacheWindow {
		maxAge = constants.MinAgedCacheWindow
	}

	return &Resolver{
		source:    cfg.Source,
		allowlist: cfg.Allowlist,
		meta: cache.NewAged(cfg.Stores.Meta, cache.AgedConfig{
			Name:   "asset_meta",
			MaxAge: constants.DefaultAssetMetadataTTL,
			TTL:    constants.DefaultAssetMetadataTTL,
			Logger: logger,
		}),
		holders: cache.NewAged(cfg.Stores.Holders, cache.AgedConfig{
			Name:   "holders",
			MaxAge: maxAge,
			Logger: logger,
		}),
		completions: cache.NewAged(cfg.Stores.Completions, cache.AgedConfig{
			Name:   "completions",
			TTL:    ttl,
			Logger: logger,
		}),
		logger: logger,
		now:    time.Now,
	}, nil
}

// AssetMeta returns the admin metadata of an asset, cached for a day
func (r *Resolver) AssetMeta(ctx context.Context, assetID uint64) (AssetMeta, error) {
	res, err := r.meta.Get(ctx, key(assetID), func(ctx context.Context) (AssetMeta, error) {
		asset, err := r.source.Asset(ctx, assetID)
		if err != nil {
			return AssetMeta{}, fmt.Errorf("asset %d: %w", assetID, err)
		}
		p := asset.Params
		return AssetMeta{
			Decimals:       p.Decimals,
			AdminAddresses: campaign.NormaliseAddresses([]string{p.Creator, p.Manager, p.Reserve, p.Freeze, p.Clawback}),
			CreationRound:  asset.CreatedAtRound,
		}, nil
	})
	if err != nil {
		return AssetMeta{}, err
	}
	return res.Value, nil
}

// Holders returns the holder set of an asset. A cached set is reused while
// it is younger than max(TTL, 60s); when a refresh fails the cached set is
// returned with Stale set.
func (r *Resolver) Holders(ctx context.Context, assetID uint64) (HolderSet, error) {
	res, err := r.holders.Get(ctx, key(assetID), func(ctx context.Context) (HolderSet, error) {
		return r.Enumerate(ctx, assetID)
	})
	if err != nil {
		return HolderSet{}, err
	}
	set := res.Value
	set.Stale = res.Stale
	return set, nil
}

// Enumerate walks every balance of an asset without consulting the holder cache
func (r *Resolver) Enumerate(ctx context.Context, assetID uint64) (HolderSet, error) {
	start := r.now()
	meta, err := r.AssetMeta(ctx, assetID)
	if err != nil {
		return HolderSet{}, err
	}

	excluded := make(map[string]struct{})
	for _, addr := range r.allowlist.DistributorsFor(assetID) {
		excluded[campaign.NormaliseAddress(addr)] = struct{}{}
	}
	for _, addr := range meta.AdminAddresses {
		excluded[addr] = struct{}{}
	}

	amounts := make(map[string]string)
	scanned := 0
	pages, err := r.source.AssetBalances(ctx, assetID, func(balances []indexer.AssetHolding) error {
		scanned += len(balances)
		for _, b := range balances {
			addr := campaign.NormaliseAddress(b.Address)
			if addr == "" {
				continue
			}
			if _, skip := excluded[addr]; skip {
				continue
			}
			amount, ok := positiveAmount(b.Amount.String())
			if !ok {
				continue
			}
			amounts[addr] = amount
		}
		return nil
	})
	if err != nil {
		return HolderSet{}, fmt.Errorf("asset %d balances: %w", assetID, err)
	}

	holders := make([]string, 0, len(amounts))
	for addr := range amounts {
		holders = append(holders, addr)
	}
	sort.Strings(holders)
	balances := make([]Balance, len(holders))
	for i, addr := range holders {
		balances[i] = Balance{Address: addr, Amount: amounts[addr]}
	}

	set := HolderSet{
		AssetID:   assetID,
		Holders:   holders,
		Balances:  balances,
		UpdatedAt: r.now().UTC(),
		Source:    r.source.BaseURL(),
		Meta: Meta{
			DurationMs:      float64(r.now().Sub(start)) / float64(time.Millisecond),
			PageCount:       pages,
			ScannedBalances: scanned,
			UniqueHolders:   len(holders),
		},
	}
	r.logger.Info("Asset holders enumerated",
		zap.Uint64("assetId", assetID),
		zap.Int("holders", len(holders)),
		zap.Int("pageCount", pages),
		zap.Int("scannedBalances", scanned),
	)
	return set, nil
}

// Completions counts the holders of a badge asset
func (r *Resolver) Completions(ctx context.Context, assetID uint64) (Completion, error) {
	res, err := r.completions.Get(ctx, key(assetID), func(ctx context.Context) (Completion, error) {
		set, err := r.Holders(ctx, assetID)
		if err != nil {
			return Completion{}, err
		}
		c := Completion{
			AssetID:     set.AssetID,
			Completions: len(set.Holders),
			UpdatedAt:   set.UpdatedAt,
			Source:      set.Source,
			Meta:        set.Meta,
			Stale:       set.Stale,
		}
		r.logger.Debug("Completions computed",
			zap.Uint64("assetId", assetID),
			zap.Int("completions", c.Completions),
			zap.Bool("stale", c.Stale),
		)
		return c, nil
	})
	if err != nil {
		return Completion{}, err
	}
	c := res.Value
	c.Stale = c.Stale || res.Stale
	return c, nil
}

func positiveAmount(raw string) (string, bool) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() <= 0 {
		return "", false
	}
	return n.String(), true
}

func key(assetID uint64) string {
	return strconv.FormatUint(assetID, 10)
}
