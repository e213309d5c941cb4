package registry

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/algoland-api/internal/testutil"
	"github.com/0xmhha/algoland-api/pkg/arc4"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T, f *testutil.FakeIndexer) *Reader {
	t.Helper()
	client, err := indexer.NewClient(&indexer.Config{
		BaseURL:        f.URL(),
		Name:           "indexer",
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Logger:         testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	r, err := New(&Config{Indexer: client, AppID: testutil.RegistryAppID, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return r
}

func TestNewValidation(t *testing.T) {
	_, err := New(&Config{AppID: 1})
	assert.Error(t, err)

	client, err := indexer.NewClient(&indexer.Config{BaseURL: "http://localhost", Name: "indexer"})
	require.NoError(t, err)
	_, err = New(&Config{Indexer: client})
	assert.Error(t, err)

	schema, err := arc4.ParseSchema([]byte(`{"structs":{"Other":[{"name":"a","type":"uint8"}]}}`))
	require.NoError(t, err)
	_, err = New(&Config{Indexer: client, AppID: 1, Schema: schema})
	assert.Error(t, err, "schema without the contract structs")
}

func TestUserCounter(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *testutil.FakeIndexer)
		want  uint64
		err   bool
	}{
		{
			name:  "uint",
			setup: func(f *testutil.FakeIndexer) { f.SetGlobalUint(testutil.RegistryAppID, KeyUserCounter, 4213) },
			want:  4213,
		},
		{
			name: "big-endian bytes",
			setup: func(f *testutil.FakeIndexer) {
				f.SetGlobalBytes(testutil.RegistryAppID, KeyUserCounter, []byte{0x01, 0x00})
			},
			want: 256,
		},
		{
			name:  "missing",
			setup: func(f *testutil.FakeIndexer) { f.SetGlobalUint(testutil.RegistryAppID, "other", 1) },
			err:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFakeIndexer(t)
			tt.setup(f)
			got, err := newReader(t, f).UserCounter(context.Background())
			if tt.err {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDrawAppIDCachedOnce(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	f.SetDrawApp()
	r := newReader(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.DrawAppID(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, testutil.DrawAppID, id)
		}()
	}
	wg.Wait()

	before := f.RequestCount("/v2/applications/3215540125")
	_, err := r.DrawAppID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, f.RequestCount("/v2/applications/3215540125"))
	assert.LessOrEqual(t, before, 8)
}

func TestDrawAppIDZeroIsNotCached(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	f.SetGlobalUint(testutil.RegistryAppID, KeyDrawAppID, 0)
	r := newReader(t, f)

	_, err := r.DrawAppID(context.Background())
	require.Error(t, err)

	f.SetDrawApp()
	id, err := r.DrawAppID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.DrawAppID, id)
}

func TestChallengeAndWeeklyState(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	f.SetDrawApp()
	f.SetChallenge(t, 3, map[string]interface{}{
		"questIds":               []uint64{1, 2},
		"drawPrizeAssetIds":      []uint64{500, 0, 500, 600},
		"numDrawWinners":         uint8(2),
		"completionBadgeAssetId": uint64(777),
		"timeStart":              uint64(1700000000),
	})
	f.SetWeeklyState(t, 3, map[string]interface{}{
		"status":  uint8(2),
		"winners": []uint32{5, 9},
		"txIds":   []string{"TX1"},
	})
	r := newReader(t, f)
	ctx := context.Background()

	c, err := r.Challenge(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, c.QuestIDs)
	assert.Equal(t, uint64(777), c.CompletionBadgeAssetID)
	assert.Equal(t, uint64(2), c.NumDrawWinners)
	assert.Equal(t, []uint64{500, 600}, c.PrizeAssetIDs())

	s, err := r.WeeklyState(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.Status)
	assert.Equal(t, []uint64{5, 9}, s.Winners)
	assert.Equal(t, []string{"TX1"}, s.TxIDs)
	assert.Empty(t, s.CommitBlocks)

	_, err = r.Challenge(ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, indexer.IsNotFound(err))
}

func TestChallengeWeeks(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	f.SetDrawApp()
	f.SetChallenge(t, 2, map[string]interface{}{})
	f.SetChallenge(t, 1, map[string]interface{}{})
	f.SetWeeklyState(t, 1, map[string]interface{}{})

	weeks, err := newReader(t, f).ChallengeWeeks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2}, weeks)
}

func TestUserLookup(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	alice := testutil.PublicKey(1)
	bob := testutil.PublicKey(2)
	f.SetUser(t, alice, map[string]interface{}{
		"relativeId":      uint32(12),
		"points":          uint64(78),
		"referrals":       []uint32{13},
		"completedQuests": []uint16{1, 4},
	})
	f.SetUser(t, bob, map[string]interface{}{"relativeId": uint32(13), "referrerId": uint32(12)})
	r := newReader(t, f)
	ctx := context.Background()

	u, err := r.User(ctx, alice.String())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, alice.String(), u.Address)
	assert.Equal(t, uint64(12), u.RelativeID)
	assert.Equal(t, uint64(78), u.Points)
	assert.Equal(t, []uint64{1, 4}, u.CompletedQuests)

	refs, err := r.Referrals(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.String()}, refs)

	addr, winner, err := r.UserByRelativeID(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, bob.String(), addr)
	assert.Equal(t, uint64(12), winner.ReferrerID)

	missing, err := r.User(ctx, testutil.Address(3))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = r.RelativeAddress(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.User(ctx, "not-an-address")
	assert.Error(t, err)
}

func TestUpstreamFailureIsNotNotFound(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	f.SetDrawApp()
	f.FailNext("/v2/applications/3215541000/box", http.StatusServiceUnavailable, http.StatusServiceUnavailable)

	_, err := newReader(t, f).Challenge(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, indexer.ErrUpstreamUnavailable)
}

func TestUserMalformedBoxIsEmpty(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	pk := testutil.PublicKey(4)
	f.SetBox(testutil.RegistryAppID, arc4.UserKey(pk), []byte{0x01, 0x02, 0x03})
	r := newReader(t, f)

	u, err := r.User(context.Background(), pk.String())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, pk.String(), u.Address)
	assert.Zero(t, u.Points)
	assert.Empty(t, u.CompletedQuests)

	doc, err := r.UserPayload(context.Background(), pk.String())
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Empty(t, doc)
}

func TestUserPayload(t *testing.T) {
	f := testutil.NewFakeIndexer(t)
	alice := testutil.PublicKey(1)
	f.SetUser(t, alice, map[string]interface{}{
		"relativeId":            uint32(12),
		"points":                uint64(78),
		"completedQuests":       []uint16{1, 4},
		"weeklyDrawEligibility": []uint8{2},
	})
	r := newReader(t, f)
	ctx := context.Background()

	doc, err := r.UserPayload(ctx, alice.String())
	require.NoError(t, err)
	assert.Equal(t, alice.String(), doc["address"])
	assert.Equal(t, uint64(12), doc["relativeId"])
	assert.Equal(t, uint64(78), doc["points"])
	assert.Equal(t, []interface{}{uint64(1), uint64(4)}, doc["completedQuests"])
	assert.Equal(t, []interface{}{uint64(2)}, doc["weeklyDrawEligibility"])

	missing, err := r.UserPayload(ctx, testutil.Address(3))
	require.NoError(t, err)
	assert.Nil(t, missing)

	f.FailNext("/v2/applications/3215540125/box", http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	_, err = r.UserPayload(ctx, alice.String())
	assert.Error(t, err)
}
