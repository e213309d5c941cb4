package profile

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/algoland-api/internal/testutil"
	"github.com/0xmhha/algoland-api/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	addr := testutil.Address(5)

	tests := []struct {
		name   string
		raw    string
		want   Identifier
		code   string
		status int
	}{
		{name: "empty", raw: "  ", code: CodeMissingIdentifier, status: http.StatusBadRequest},
		{name: "id", raw: " 42 ", want: Identifier{Type: TypeID, Value: "42", ID: 42}},
		{name: "zero id", raw: "0", want: Identifier{Type: TypeID, Value: "0"}},
		{name: "id overflow", raw: "99999999999999999999999", code: CodeInvalidIdentifier, status: http.StatusBadRequest},
		{name: "address lower case", raw: strings.ToLower(addr), want: Identifier{Type: TypeAddress, Value: addr}},
		{name: "garbage", raw: "hello", code: CodeInvalidIdentifier, status: http.StatusBadRequest},
		{name: "negative", raw: "-5", code: CodeInvalidIdentifier, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifier(tt.raw)
			if tt.code != "" {
				var perr *Error
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, tt.code, perr.Code)
				assert.Equal(t, tt.status, perr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildProfile(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	addr := testutil.Address(1)
	u := &registry.User{
		Address:                    addr,
		RelativeID:                 12,
		ReferrerID:                 3,
		Points:                     78,
		RedeemedPoints:             2,
		NumReferrals:               2,
		Referrals:                  []uint64{20, 21},
		CompletedQuests:            []uint64{1, 4},
		CompletedChallenges:        []uint64{2},
		WeeklyDrawEligibility:      []uint64{1, 2},
		AvailableDrawPrizeAssetIDs: []uint64{3215542841},
	}

	p := BuildProfile(addr, u, nil, now)
	assert.Equal(t, 7800.0, *p.Points)
	assert.Equal(t, 78.0, *p.PointsRaw)
	assert.Equal(t, 200.0, *p.RedeemedPoints)
	assert.Equal(t, uint64(12), *p.RelativeID)
	assert.Equal(t, []string{"Quest 1", "Quest 4"}, p.CompletedQuests)
	assert.Equal(t, []string{"Challenge 2"}, p.CompletedChallenges)
	assert.Equal(t, []string{"Challenge 1", "Challenge 2"}, p.WeeklyDrawEligibility)
	assert.True(t, p.WeeklyDraws.Eligible)
	assert.Equal(t, 2, p.WeeklyDraws.Entries)
	assert.Equal(t, []string{"Asset 3215542841"}, p.AvailableDrawPrizeAssetIDs)
	assert.Equal(t, []string{"Relative ID 20", "Relative ID 21"}, p.Referrals)
	assert.Equal(t, 2, p.ReferralsCount)
	assert.Equal(t, []uint64{20, 21}, p.ReferralsRelativeIDs)
	assert.True(t, p.HasParticipation)
	assert.Equal(t, StatusOK, p.Status)
	assert.Nil(t, p.StatusMessage)
	assert.Equal(t, Source, p.Source)
	assert.Equal(t, now, p.FetchedAt)

	withAddresses := BuildProfile(addr, u, []string{testutil.Address(20), "bogus"}, now)
	assert.Equal(t, []string{testutil.Address(20)}, withAddresses.Referrals)
	assert.Equal(t, 1, withAddresses.ReferralsCount)
	assert.Equal(t, []string{testutil.Address(20)}, withAddresses.Raw.ReferralAddresses)
}

func TestBuildProfileWithoutActivity(t *testing.T) {
	addr := testutil.Address(1)
	p := BuildProfile(addr, &registry.User{Address: addr, RelativeID: 9}, nil, time.Now())
	assert.False(t, p.HasParticipation)
	assert.Equal(t, StatusNoData, p.Status)
	require.NotNil(t, p.StatusMessage)
	assert.Equal(t, NoDataMessage, *p.StatusMessage)
	assert.Equal(t, []string{}, p.Referrals)
}

func TestEmpty(t *testing.T) {
	p := Empty(testutil.Address(1), time.Now())
	assert.Equal(t, StatusNoData, p.Status)
	assert.False(t, p.HasParticipation)
	assert.Nil(t, p.RelativeID)
	assert.Equal(t, 0.0, *p.Points)
	assert.NotNil(t, p.CompletedQuests)
	assert.Nil(t, p.Raw)

	assert.Equal(t, p.Status, BuildProfile(testutil.Address(1), nil, nil, time.Now()).Status)
}
