package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apimiddleware "github.com/0xmhha/algoland-api/api/middleware"
	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/holders"
	"github.com/0xmhha/algoland-api/pkg/profile"
)

const (
	upstreamMessage        = "Indexer is temporarily unavailable. Please retry shortly."
	bulkUnavailableMessage = "Unable to fetch completions for that asset."
)

// PingResponse is the /api/ping body
type PingResponse struct {
	OK                bool               `json:"ok"`
	Service           string             `json:"service"`
	Provider          string             `json:"provider"`
	CacheTTLSeconds   int64              `json:"cacheTtlSeconds"`
	Now               time.Time          `json:"now"`
	ConfiguredOrigins []string           `json:"configuredOrigins"`
	Weeks             []campaign.Week    `json:"weeks"`
	Allowlist         campaign.Allowlist `json:"allowlist"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	origins := s.config.AllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	apimiddleware.WriteJSON(w, http.StatusOK, PingResponse{
		OK:                true,
		Service:           constants.ServiceName,
		Provider:          s.services.Provider,
		CacheTTLSeconds:   int64(s.services.CacheTTL / time.Second),
		Now:               time.Now().UTC(),
		ConfiguredOrigins: origins,
		Weeks:             s.services.Campaign.Weeks(),
		Allowlist:         s.services.Campaign.Allowlist(),
	})
}

func (s *Server) handleEntrants(w http.ResponseWriter, r *http.Request) {
	snap, err := s.services.Entrants.Count(r.Context())
	if err != nil {
		s.log(r.Context()).Error("failed to count entrants", zap.Error(err))
		apimiddleware.WriteError(w, http.StatusBadGateway, "upstream_unavailable", upstreamMessage)
		return
	}
	apimiddleware.WriteJSON(w, http.StatusOK, struct {
		Entrants  uint64    `json:"entrants"`
		UpdatedAt time.Time `json:"updatedAt"`
		Source    string    `json:"source"`
		Stale     bool      `json:"stale,omitempty"`
	}{snap.Entrants, snap.UpdatedAt, snap.Source, snap.Stale})
}

// CompletionResponse is the /api/completions body
type CompletionResponse struct {
	AssetID     uint64    `json:"assetId"`
	Completions int       `json:"completions"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Source      string    `json:"source"`
	Stale       bool      `json:"stale,omitempty"`
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("asset")
	if raw == "" {
		apimiddleware.WriteError(w, http.StatusBadRequest, "missing_asset", "asset query parameter is required")
		return
	}
	assetID, ok := parseAssetID(raw)
	if !ok {
		apimiddleware.WriteError(w, http.StatusBadRequest, "invalid_asset", "asset must be a numeric ID")
		return
	}

	c, err := s.services.Completions.Completions(r.Context(), assetID)
	if err != nil {
		s.log(r.Context()).Error("failed to count completions", zap.Uint64("asset_id", assetID), zap.Error(err))
		apimiddleware.WriteError(w, http.StatusBadGateway, "upstream_unavailable", upstreamMessage)
		return
	}
	apimiddleware.WriteJSON(w, http.StatusOK, CompletionResponse{
		AssetID:     c.AssetID,
		Completions: c.Completions,
		UpdatedAt:   c.UpdatedAt,
		Source:      c.Source,
		Stale:       c.Stale,
	})
}

// BulkResult is one entry of /api/completions/bulk. Failed lookups carry
// Error and Message instead of a count.
type BulkResult struct {
	AssetID     uint64     `json:"assetId"`
	Completions *int       `json:"completions,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Source      string     `json:"source,omitempty"`
	Stale       *bool      `json:"stale,omitempty"`
	Error       string     `json:"error,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// BulkResponse is the /api/completions/bulk body
type BulkResponse struct {
	Results       []BulkResult `json:"results"`
	InvalidAssets []string     `json:"invalidAssets,omitempty"`
}

func (s *Server) handleBulkCompletions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("assets")
	if raw == "" {
		apimiddleware.WriteError(w, http.StatusBadRequest, "missing_assets", "assets query parameter is required")
		return
	}

	var ids []uint64
	var invalid []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		if id, ok := parseAssetID(part); ok {
			ids = append(ids, id)
		} else {
			invalid = append(invalid, part)
		}
	}
	if len(seen) == 0 {
		apimiddleware.WriteError(w, http.StatusBadRequest, "invalid_assets", "assets query parameter must contain numeric IDs")
		return
	}

	results := make([]BulkResult, len(ids))
	done := make([]bool, len(ids))
	group := s.pool.NewGroupContext(r.Context())
	for i, id := range ids {
		group.Submit(func() {
			results[i] = s.bulkLookup(group.Context(), id)
			done[i] = true
		})
	}
	if err := group.Wait(); err != nil {
		s.log(r.Context()).Warn("bulk completions interrupted", zap.Error(err))
		for i, id := range ids {
			if !done[i] {
				results[i] = BulkResult{AssetID: id, Error: "unavailable", Message: bulkUnavailableMessage}
			}
		}
	}

	apimiddleware.WriteJSON(w, http.StatusOK, BulkResponse{Results: results, InvalidAssets: invalid})
}

func (s *Server) bulkLookup(ctx context.Context, id uint64) BulkResult {
	c, err := s.services.Completions.Completions(ctx, id)
	if err != nil {
		s.log(ctx).Warn("bulk completion lookup failed", zap.Uint64("asset_id", id), zap.Error(err))
		return BulkResult{AssetID: id, Error: "unavailable", Message: bulkUnavailableMessage}
	}
	return bulkSuccess(c)
}

func bulkSuccess(c holders.Completion) BulkResult {
	count := c.Completions
	updated := c.UpdatedAt
	stale := c.Stale
	return BulkResult{
		AssetID:     c.AssetID,
		Completions: &count,
		UpdatedAt:   &updated,
		Source:      c.Source,
		Stale:       &stale,
	}
}

// StatsResponse is a profile annotated with how it was looked up
type StatsResponse struct {
	profile.Profile
	LookupType  string `json:"lookupType"`
	LookupValue string `json:"lookupValue"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("address")
	id, err := profile.ParseIdentifier(raw)
	if err != nil {
		writeProfileError(w, err, http.StatusBadRequest)
		return
	}

	p, err := s.services.Profiles.Resolve(r.Context(), id)
	if err != nil {
		var perr *profile.Error
		if !errors.As(err, &perr) {
			s.log(r.Context()).Error("failed to resolve profile", zap.String("lookup", id.Value), zap.Error(err))
			apimiddleware.WriteError(w, http.StatusInternalServerError, "profile_error",
				"Unable to fetch Algoland profile at this time. Please try again shortly.")
			return
		}
		if perr.Status >= http.StatusInternalServerError {
			s.log(r.Context()).Warn("profile lookup failed", zap.String("lookup", id.Value), zap.Error(err))
		}
		writeProfileError(w, err, http.StatusBadRequest)
		return
	}

	apimiddleware.WriteJSON(w, http.StatusOK, StatsResponse{
		Profile:     p,
		LookupType:  id.Type,
		LookupValue: raw,
	})
}

func writeProfileError(w http.ResponseWriter, err error, fallback int) {
	var perr *profile.Error
	if !errors.As(err, &perr) {
		apimiddleware.WriteError(w, fallback, "profile_error", err.Error())
		return
	}
	status := perr.Status
	if status == 0 {
		switch perr.Code {
		case profile.CodeProfileUnavailable:
			status = http.StatusBadGateway
		case profile.CodeProfileNotFound:
			status = http.StatusNotFound
		default:
			status = fallback
		}
	}
	apimiddleware.WriteError(w, status, perr.Code, perr.Message)
}

// parseAssetID accepts a non-empty run of ASCII digits that fits in uint64
func parseAssetID(raw string) (uint64, bool) {
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
