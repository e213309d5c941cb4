// Package profile builds participant profiles from registry records, and
// from loosely shaped inspector payloads.
package profile

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/registry"
)

// Source labels profiles built from registry records
const Source = "@algorandfoundation/algoland-sdk"

// Profile statuses
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// NoDataMessage is reported for wallets without any activity
const NoDataMessage = "We couldn't find any Algoland activity for that wallet yet."

// Error codes
const (
	CodeMissingIdentifier  = "missing_identifier"
	CodeInvalidIdentifier  = "invalid_identifier"
	CodeProfileNotFound    = "profile_not_found"
	CodeProfileUnavailable = "profile_unavailable"
)

// Error is a profile lookup failure with its HTTP status
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, status int, err error) *Error {
	return &Error{Code: code, Message: message, Status: status, Err: err}
}

// Identifier types
const (
	TypeID      = "id"
	TypeAddress = "address"
)

// Identifier is a parsed lookup key: a relative id or an address
type Identifier struct {
	Type  string
	Value string
	ID    uint64
}

// ParseIdentifier accepts a numeric relative id or a 58-character address
func ParseIdentifier(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, newError(CodeMissingIdentifier, "address query parameter is required.", http.StatusBadRequest, nil)
	}
	if isDigits(trimmed) {
		id, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return Identifier{}, newError(CodeInvalidIdentifier, "Algoland ID must be a positive integer.", http.StatusBadRequest, err)
		}
		return Identifier{Type: TypeID, Value: trimmed, ID: id}, nil
	}
	upper := strings.ToUpper(trimmed)
	if campaign.IsValidAddress(upper) {
		return Identifier{Type: TypeAddress, Value: upper}, nil
	}
	return Identifier{}, newError(CodeInvalidIdentifier, "address must be a numeric ID or 58-character Algorand address.", http.StatusBadRequest, nil)
}

// WeeklyDraws summarises draw participation
type WeeklyDraws struct {
	Eligible               bool     `json:"eligible"`
	Entries                int      `json:"entries"`
	Weeks                  []string `json:"weeks"`
	AvailablePrizeAssetIDs []string `json:"availablePrizeAssetIds"`
	ClaimedPrizeAssetIDs   []string `json:"claimedPrizeAssetIds"`
}

// Raw is the registry record a profile was built from
type Raw struct {
	*registry.User
	ReferralAddresses []string `json:"referralAddresses"`
}

// Profile is the canonical participant profile
type Profile struct {
	ResolvedAddress            string      `json:"resolvedAddress"`
	Address                    string      `json:"address,omitempty"`
	RelativeID                 *uint64     `json:"relativeId"`
	ReferrerID                 *uint64     `json:"referrerId"`
	Points                     *float64    `json:"points"`
	PointsRaw                  *float64    `json:"pointsRaw"`
	RedeemedPoints             *float64    `json:"redeemedPoints"`
	RedeemedPointsRaw          *float64    `json:"redeemedPointsRaw"`
	ReferralPoints             *float64    `json:"referralPoints"`
	ReferralPointsRaw          *float64    `json:"referralPointsRaw"`
	CompletedQuests            []string    `json:"completedQuests"`
	CompletedChallenges        []string    `json:"completedChallenges"`
	CompletableChallenges      []string    `json:"completableChallenges"`
	WeeklyDrawEligibility      []string    `json:"weeklyDrawEligibility"`
	WeeklyDraws                WeeklyDraws `json:"weeklyDraws"`
	AvailableDrawPrizeAssetIDs []string    `json:"availableDrawPrizeAssetIds"`
	ClaimedDrawPrizeAssetIDs   []string    `json:"claimedDrawPrizeAssetIds"`
	Referrals                  []string    `json:"referrals"`
	ReferralsCount             int         `json:"referralsCount"`
	ReferralsRelativeIDs       []uint64    `json:"referralsRelativeIds"`
	HasParticipation           bool        `json:"hasParticipation"`
	Status                     string      `json:"status"`
	StatusMessage              *string     `json:"statusMessage"`
	Source                     string      `json:"source"`
	UpdatedAt                  time.Time   `json:"updatedAt"`
	FetchedAt                  time.Time   `json:"fetchedAt"`
	Raw                        *Raw        `json:"raw"`
}

// Empty is the profile of a wallet without a registry record
func Empty(address string, now time.Time) Profile {
	zero := 0.0
	p := Profile{
		ResolvedAddress:            address,
		Points:                     &zero,
		PointsRaw:                  &zero,
		RedeemedPoints:             &zero,
		CompletedQuests:            []string{},
		CompletedChallenges:        []string{},
		CompletableChallenges:      []string{},
		WeeklyDrawEligibility:      []string{},
		AvailableDrawPrizeAssetIDs: []string{},
		ClaimedDrawPrizeAssetIDs:   []string{},
		Referrals:                  []string{},
		ReferralsRelativeIDs:       []uint64{},
		Source:                     Source,
		UpdatedAt:                  now,
		FetchedAt:                  now,
	}
	p.WeeklyDraws = WeeklyDraws{
		Weeks:                  []string{},
		AvailablePrizeAssetIDs: []string{},
		ClaimedPrizeAssetIDs:   []string{},
	}
	p.finish(nil)
	return p
}

// BuildProfile maps a registry record to a profile. Points are stored in
// hundreds, so display values are raw × 100. Referral addresses replace
// relative ids when any resolved.
func BuildProfile(address string, u *registry.User, referralAddresses []string, now time.Time) Profile {
	if u == nil {
		return Empty(address, now)
	}

	addresses := make([]string, 0, len(referralAddresses))
	for _, addr := range referralAddresses {
		if campaign.IsValidAddress(addr) {
			addresses = append(addresses, addr)
		}
	}

	weekly := labels("Challenge", u.WeeklyDrawEligibility)
	available := labels("Asset", u.AvailableDrawPrizeAssetIDs)
	claimed := labels("Asset", u.ClaimedDrawPrizeAssetIDs)

	p := Profile{
		ResolvedAddress:       address,
		Address:               address,
		RelativeID:            uintPtr(u.RelativeID),
		ReferrerID:            uintPtr(u.ReferrerID),
		Points:                floatPtr(float64(u.Points) * 100),
		PointsRaw:             floatPtr(float64(u.Points)),
		RedeemedPoints:        floatPtr(float64(u.RedeemedPoints) * 100),
		RedeemedPointsRaw:     floatPtr(float64(u.RedeemedPoints)),
		ReferralPoints:        floatPtr(float64(u.ReferralPoints) * 100),
		ReferralPointsRaw:     floatPtr(float64(u.ReferralPoints)),
		CompletedQuests:       labels("Quest", u.CompletedQuests),
		CompletedChallenges:   labels("Challenge", u.CompletedChallenges),
		CompletableChallenges: labels("Challenge", u.CompletableChallenges),
		WeeklyDrawEligibility: weekly,
		WeeklyDraws: WeeklyDraws{
			Eligible:               len(weekly) > 0,
			Entries:                len(weekly),
			Weeks:                  weekly,
			AvailablePrizeAssetIDs: available,
			ClaimedPrizeAssetIDs:   claimed,
		},
		AvailableDrawPrizeAssetIDs: available,
		ClaimedDrawPrizeAssetIDs:   claimed,
		ReferralsRelativeIDs:       append([]uint64{}, u.Referrals...),
		Source:                     Source,
		UpdatedAt:                  now,
		FetchedAt:                  now,
		Raw:                        &Raw{User: u, ReferralAddresses: addresses},
	}

	switch {
	case len(addresses) > 0:
		p.Referrals = addresses
		p.ReferralsCount = len(addresses)
	default:
		p.Referrals = labels("Relative ID", u.Referrals)
		p.ReferralsCount = int(u.NumReferrals)
	}

	p.finish(nil)
	return p
}

// finish derives hasParticipation, status and statusMessage. message is the
// source's own status text, used only for active wallets.
func (p *Profile) finish(message *string) {
	p.HasParticipation = positive(p.PointsRaw) ||
		positive(p.RedeemedPointsRaw) ||
		len(p.CompletedQuests) > 0 ||
		len(p.CompletedChallenges) > 0 ||
		len(p.Referrals) > 0 ||
		len(p.WeeklyDrawEligibility) > 0 ||
		p.WeeklyDraws.Entries > 0 ||
		len(p.AvailableDrawPrizeAssetIDs) > 0 ||
		len(p.ClaimedDrawPrizeAssetIDs) > 0

	if p.HasParticipation {
		p.Status = StatusOK
		p.StatusMessage = message
		return
	}
	p.Status = StatusNoData
	msg := NoDataMessage
	p.StatusMessage = &msg
}

func labels(prefix string, values []uint64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = prefix + " " + strconv.FormatUint(v, 10)
	}
	return out
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func floatPtr(v float64) *float64 {
	return &v
}

func uintPtr(v uint64) *uint64 {
	return &v
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
