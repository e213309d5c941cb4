// Package campaign holds the static campaign layout: the week table, the
// distributor allowlist and address normalisation.
package campaign

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/0xmhha/algoland-api/internal/config"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Week is one row of the week table. AssetID is nil until the week's badge is minted.
type Week struct {
	Week    int     `json:"week"`
	AssetID *uint64 `json:"assetId"`
}

// Allowlist is the distributor exclusion list as reported by /api/ping
type Allowlist struct {
	Default []string            `json:"default"`
	ByAsset map[string][]string `json:"byAsset"`
}

// Campaign is the immutable campaign layout
type Campaign struct {
	registryAppID uint64
	totalWeeks    int
	weeks         []Week
	distributors  []string
	byAsset       map[uint64][]string
}

// New builds the campaign layout from configuration
func New(cfg config.CampaignConfig) (*Campaign, error) {
	if cfg.TotalWeeks <= 0 {
		return nil, fmt.Errorf("total weeks must be positive")
	}

	c := &Campaign{
		registryAppID: cfg.RegistryAppID,
		totalWeeks:    cfg.TotalWeeks,
		weeks:         make([]Week, cfg.TotalWeeks),
		distributors:  NormaliseAddresses(cfg.Distributors.Default),
		byAsset:       make(map[uint64][]string, len(cfg.Distributors.ByAsset)),
	}
	for i := range c.weeks {
		c.weeks[i] = Week{Week: i + 1}
	}
	for _, w := range cfg.Weeks {
		if w.Week < 1 || w.Week > cfg.TotalWeeks {
			return nil, fmt.Errorf("week %d is outside 1..%d", w.Week, cfg.TotalWeeks)
		}
		if w.AssetID > 0 {
			id := w.AssetID
			c.weeks[w.Week-1].AssetID = &id
		}
	}
	for assetID, list := range cfg.Distributors.ByAsset {
		c.byAsset[assetID] = NormaliseAddresses(list)
	}
	return c, nil
}

// RegistryAppID is the campaign registry application
func (c *Campaign) RegistryAppID() uint64 {
	return c.registryAppID
}

// TotalWeeks is the campaign length
func (c *Campaign) TotalWeeks() int {
	return c.totalWeeks
}

// ValidWeek reports whether week is within 1..TotalWeeks
func (c *Campaign) ValidWeek(week int) bool {
	return week >= 1 && week <= c.totalWeeks
}

// Weeks returns a copy of the week table
func (c *Campaign) Weeks() []Week {
	out := make([]Week, len(c.weeks))
	copy(out, c.weeks)
	return out
}

// WeekAsset returns the badge asset of a week, or 0
func (c *Campaign) WeekAsset(week int) uint64 {
	if !c.ValidWeek(week) || c.weeks[week-1].AssetID == nil {
		return 0
	}
	return *c.weeks[week-1].AssetID
}

// DistributorsFor returns the allowlist for an asset. Assets without their
// own list, and asset 0, use the default list.
func (c *Campaign) DistributorsFor(assetID uint64) []string {
	if assetID != 0 {
		if list := c.byAsset[assetID]; len(list) > 0 {
			return list
		}
	}
	return c.distributors
}

// Allowlist returns the allowlist in its wire shape
func (c *Campaign) Allowlist() Allowlist {
	out := Allowlist{
		Default: append([]string{}, c.distributors...),
		ByAsset: make(map[string][]string, len(c.byAsset)),
	}
	for assetID, list := range c.byAsset {
		out.ByAsset[strconv.FormatUint(assetID, 10)] = append([]string{}, list...)
	}
	return out
}

// NormaliseAddress trims and uppercases an address; empty input yields ""
func NormaliseAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// NormaliseAddresses normalises a list, dropping empty entries and duplicates
func NormaliseAddresses(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, addr := range list {
		n := NormaliseAddress(addr)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ParseAddress validates a 58-character checksummed address
func ParseAddress(addr string) (types.Address, error) {
	normalised := NormaliseAddress(addr)
	if len(normalised) != 58 {
		return types.Address{}, fmt.Errorf("address must be 58 characters, got %d", len(normalised))
	}
	parsed, err := types.DecodeAddress(normalised)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return parsed, nil
}

// IsValidAddress reports whether addr is a valid Algorand address
func IsValidAddress(addr string) bool {
	_, err := ParseAddress(addr)
	return err == nil
}

// AddressFromPublicKey encodes a 32-byte public key as an address
func AddressFromPublicKey(key []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("public key must be 32 bytes, got %d", len(key))
	}
	var addr types.Address
	copy(addr[:], key)
	return addr.String(), nil
}
