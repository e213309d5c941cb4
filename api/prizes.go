package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimiddleware "github.com/0xmhha/algoland-api/api/middleware"
	"github.com/0xmhha/algoland-api/pkg/challenges"
	"github.com/0xmhha/algoland-api/pkg/draw"
	"github.com/0xmhha/algoland-api/pkg/holders"
	"github.com/0xmhha/algoland-api/pkg/prizes"
)

const (
	statusStale       = "stale"
	comingSoonMessage = "Prize details coming soon. Check back soon."
	prizeConfigError  = "Prize configuration is currently unavailable. Please retry shortly."
)

// PrizeSummary is one week of the prize catalogue
type PrizeSummary struct {
	Week          int           `json:"week"`
	Status        string        `json:"status"`
	ASA           string        `json:"asa"`
	AssetID       *uint64       `json:"assetId"`
	Image         *string       `json:"image"`
	MainAssetIDs  []uint64      `json:"mainAssetIds"`
	MainPrizes    []prizes.Item `json:"mainPrizes"`
	SpecialPrizes []prizes.Item `json:"specialPrizes"`
}

func summarise(p prizes.Prize) PrizeSummary {
	return PrizeSummary{
		Week:          p.Week,
		Status:        p.Status,
		ASA:           p.ASA,
		AssetID:       p.AssetID,
		Image:         p.Image,
		MainAssetIDs:  nonNil(p.MainAssetIDs),
		MainPrizes:    nonNil(p.MainPrizes),
		SpecialPrizes: nonNil(p.SpecialPrizes),
	}
}

func (s *Server) handlePrizes(w http.ResponseWriter, r *http.Request) {
	all, err := s.services.Prizes.All()
	if err != nil {
		s.log(r.Context()).Error("failed to load prize configuration", zap.Error(err))
		apimiddleware.WriteError(w, http.StatusInternalServerError, "prize_config_unavailable", prizeConfigError)
		return
	}
	weeks := make([]PrizeSummary, 0, len(all))
	for _, p := range all {
		weeks = append(weeks, summarise(p))
	}
	apimiddleware.WriteJSON(w, http.StatusOK, struct {
		Weeks []PrizeSummary `json:"weeks"`
	}{weeks})
}

// DrawError replaces the draw payload when the draw could not be read
type DrawError struct {
	Error string `json:"error"`
}

// PrizeWeekResponse is a week's prize merged with its draw
type PrizeWeekResponse struct {
	PrizeSummary
	Message         string            `json:"message,omitempty"`
	Winners         []string          `json:"winners"`
	WinnersCount    int               `json:"winnersCount"`
	PrizeAssets     []draw.PrizeAsset `json:"prizeAssets"`
	SelectedWinners []draw.Winner     `json:"selectedWinners"`
	Draw            interface{}       `json:"draw,omitempty"`
	Stale           bool              `json:"stale,omitempty"`
	UpdatedAt       *time.Time        `json:"updatedAt,omitempty"`
	Source          string            `json:"source,omitempty"`
	Meta            *holders.Meta     `json:"meta,omitempty"`
	WinnerError     string            `json:"winnerError,omitempty"`
}

func (s *Server) handlePrizeWeek(w http.ResponseWriter, r *http.Request) {
	total := s.services.Prizes.TotalWeeks()
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		week = 0
	}

	prize, ok, err := s.services.Prizes.Week(week)
	if err != nil {
		s.log(r.Context()).Error("failed to read prize configuration", zap.Int("week", week), zap.Error(err))
		apimiddleware.WriteError(w, http.StatusInternalServerError, "prize_config_unavailable", prizeConfigError)
		return
	}
	if !ok {
		apimiddleware.WriteError(w, http.StatusBadRequest, "invalid_week", fmt.Sprintf("Week must be between 1 and %d.", total))
		return
	}

	body := PrizeWeekResponse{
		PrizeSummary:    summarise(prize),
		Winners:         []string{},
		PrizeAssets:     []draw.PrizeAsset{},
		SelectedWinners: []draw.Winner{},
	}
	body.Status = prizes.StatusComingSoon
	if prize.AssetID != nil && (prize.Image != nil || len(prize.MainPrizes) > 0) {
		body.Status = prizes.StatusAvailable
	}
	if body.Status == prizes.StatusComingSoon {
		body.Message = comingSoonMessage
	}

	result, err := s.services.Draws.Week(r.Context(), prize.Week)
	if err != nil {
		s.log(r.Context()).Warn("weekly draw unavailable", zap.Int("week", prize.Week), zap.Error(err))
		body.Draw = DrawError{Error: draw.ErrorMessage(err)}
		apimiddleware.WriteJSON(w, http.StatusOK, body)
		return
	}

	body.Draw = result
	body.PrizeAssets = nonNil(result.PrizeAssets)
	body.SelectedWinners = nonNil(result.Winners)
	if result.Stale {
		body.Stale = true
		if body.Status == prizes.StatusAvailable {
			body.Status = statusStale
		}
	}
	if prize.AssetID != nil {
		for _, asset := range body.PrizeAssets {
			if asset.AssetID != *prize.AssetID {
				continue
			}
			body.Winners = nonNil(asset.Holders)
			body.WinnersCount = len(body.Winners)
			if asset.UpdatedAt != nil {
				body.UpdatedAt = asset.UpdatedAt
			} else {
				fetched := result.FetchedAt
				body.UpdatedAt = &fetched
			}
			body.Source = asset.Source
			body.Meta = asset.Meta
			body.WinnerError = asset.Error
			if asset.Stale {
				body.Stale = true
				body.Status = statusStale
			}
			break
		}
	}

	apimiddleware.WriteJSON(w, http.StatusOK, body)
}

// ChallengesResponse is the /api/algoland/prizes body
type ChallengesResponse struct {
	FetchedAt *time.Time        `json:"fetchedAt"`
	Source    string            `json:"source"`
	Stale     bool              `json:"stale"`
	Weeks     []challenges.Week `json:"weeks"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	snap, err := s.services.Challenges.Snapshot(r.Context())
	if err != nil {
		s.log(r.Context()).Error("failed to load challenge configuration", zap.Error(err))
		apimiddleware.WriteError(w, http.StatusBadGateway, "prize_config_unavailable",
			"Unable to load Algoland challenge configuration right now. Please try again shortly.")
		return
	}

	body := ChallengesResponse{
		Source: snap.Source,
		Stale:  snap.Stale,
		Weeks:  nonNil(snap.Weeks),
		Error:  snap.Error,
	}
	if !snap.FetchedAt.IsZero() {
		fetched := snap.FetchedAt
		body.FetchedAt = &fetched
	}
	if body.Source == "" {
		body.Source = challenges.SourceChain
	}
	apimiddleware.WriteJSON(w, http.StatusOK, body)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
