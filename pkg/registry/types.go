package registry

import (
	"github.com/0xmhha/algoland-api/pkg/arc4"
)

// Struct names in the contract schemas
const (
	StructUser            = "User"
	StructChallenge       = "Challenge"
	StructWeeklyDrawState = "WeeklyDrawState"
)

// User is a registry participant record
type User struct {
	Address                    string   `json:"address"`
	RelativeID                 uint64   `json:"relativeId"`
	ReferrerID                 uint64   `json:"referrerId"`
	Points                     uint64   `json:"points"`
	RedeemedPoints             uint64   `json:"redeemedPoints"`
	ReferralPoints             uint64   `json:"referralPoints"`
	NumReferrals               uint64   `json:"numReferrals"`
	Referrals                  []uint64 `json:"referrals"`
	CompletedQuests            []uint64 `json:"completedQuests"`
	CompletedChallenges        []uint64 `json:"completedChallenges"`
	CompletableChallenges      []uint64 `json:"completableChallenges"`
	WeeklyDrawEligibility      []uint64 `json:"weeklyDrawEligibility"`
	AvailableDrawPrizeAssetIDs []uint64 `json:"availableDrawPrizeAssetIds"`
	ClaimedDrawPrizeAssetIDs   []uint64 `json:"claimedDrawPrizeAssetIds"`
}

// Challenge is the draw-app configuration of one week
type Challenge struct {
	QuestIDs                []uint64 `json:"questIds"`
	DrawPrizeAssetIDs       []uint64 `json:"drawPrizeAssetIds"`
	NumDrawEligibleAccounts uint64   `json:"numDrawEligibleAccounts"`
	NumDrawWinners          uint64   `json:"numDrawWinners"`
	CompletionBadgeAssetID  uint64   `json:"completionBadgeAssetId"`
	TimeStart               uint64   `json:"timeStart"`
	TimeEnd                 uint64   `json:"timeEnd"`
}

// PrizeAssetIDs returns the distinct positive prize assets in order
func (c *Challenge) PrizeAssetIDs() []uint64 {
	seen := make(map[uint64]struct{}, len(c.DrawPrizeAssetIDs))
	out := make([]uint64, 0, len(c.DrawPrizeAssetIDs))
	for _, id := range c.DrawPrizeAssetIDs {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// WeeklyDrawState is the draw progress of one week
type WeeklyDrawState struct {
	Status           uint64   `json:"status"`
	AccountsIngested uint64   `json:"accountsIngested"`
	LastRelativeID   uint64   `json:"lastRelativeId"`
	CommitBlocks     []uint64 `json:"commitBlocks"`
	Winners          []uint64 `json:"winners"`
	TxIDs            []string `json:"txIds"`
}

func userFromStruct(s *arc4.Struct) *User {
	u := &User{
		RelativeID:                 s.Uint("relativeId"),
		ReferrerID:                 s.Uint("referrerId"),
		Points:                     s.Uint("points"),
		RedeemedPoints:             s.Uint("redeemedPoints"),
		ReferralPoints:             s.Uint("referralPoints"),
		NumReferrals:               s.Uint("numReferrals"),
		Referrals:                  s.Uints("referrals"),
		CompletedQuests:            s.Uints("completedQuests"),
		CompletedChallenges:        s.Uints("completedChallenges"),
		CompletableChallenges:      s.Uints("completableChallenges"),
		WeeklyDrawEligibility:      s.Uints("weeklyDrawEligibility"),
		AvailableDrawPrizeAssetIDs: s.Uints("availableDrawPrizeAssetIds"),
		ClaimedDrawPrizeAssetIDs:   s.Uints("claimedDrawPrizeAssetIds"),
	}
	if addr := s.Address("address"); !isZero(addr[:]) {
		u.Address = addr.String()
	}
	return u
}

func challengeFromStruct(s *arc4.Struct) *Challenge {
	return &Challenge{
		QuestIDs:                s.Uints("questIds"),
		DrawPrizeAssetIDs:       s.Uints("drawPrizeAssetIds"),
		NumDrawEligibleAccounts: s.Uint("numDrawEligibleAccounts"),
		NumDrawWinners:          s.Uint("numDrawWinners"),
		CompletionBadgeAssetID:  s.Uint("completionBadgeAssetId"),
		TimeStart:               s.Uint("timeStart"),
		TimeEnd:                 s.Uint("timeEnd"),
	}
}

func weeklyStateFromStruct(s *arc4.Struct) *WeeklyDrawState {
	return &WeeklyDrawState{
		Status:           s.Uint("status"),
		AccountsIngested: s.Uint("accountsIngested"),
		LastRelativeID:   s.Uint("lastRelativeId"),
		CommitBlocks:     s.Uints("commitBlocks"),
		Winners:          s.Uints("winners"),
		TxIDs:            s.Strings("txIds"),
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
