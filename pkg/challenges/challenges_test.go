package challenges

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xmhha/algoland-api/internal/config"
	"github.com/0xmhha/algoland-api/internal/testutil"
	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/prizes"
	"github.com/0xmhha/algoland-api/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu         sync.Mutex
	challenges map[uint8]*registry.Challenge
	err        error
	lists      atomic.Int32
}

func (s *stubSource) ChallengeWeeks(context.Context) ([]uint8, error) {
	s.lists.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	weeks := make([]uint8, 0, len(s.challenges))
	for w := range s.challenges {
		weeks = append(weeks, w)
	}
	return weeks, nil
}

func (s *stubSource) Challenge(_ context.Context, week uint8) (*registry.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challenges[week], nil
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubCatalogue struct {
	prizes []prizes.Prize
	err    error
}

func (c stubCatalogue) All() ([]prizes.Prize, error) {
	return c.prizes, c.err
}

func weekTable(t *testing.T) *campaign.Campaign {
	t.Helper()
	c, err := campaign.New(config.NewConfig().Campaign)
	require.NoError(t, err)
	return c
}

func newService(t *testing.T, src Source, catalogue Catalogue, store cache.Store[Snapshot]) *Service {
	t.Helper()
	if store == nil {
		var err error
		store, err = cache.NewMemoryStore[Snapshot](4)
		require.NoError(t, err)
	}
	s, err := NewService(&Config{
		Source:          src,
		Weeks:           weekTable(t),
		Catalogue:       catalogue,
		Store:           store,
		RefreshInterval: time.Minute,
		Logger:          testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s
}

func liveSource() *stubSource {
	return &stubSource{challenges: map[uint8]*registry.Challenge{
		1:  {CompletionBadgeAssetID: 3215542832, DrawPrizeAssetIDs: []uint64{3215542841, 9}, TimeStart: 100, TimeEnd: 200},
		2:  {},
		0:  {CompletionBadgeAssetID: 1},
		40: {CompletionBadgeAssetID: 1},
	}}
}

func TestSnapshotFromChain(t *testing.T) {
	s := newService(t, liveSource(), stubCatalogue{}, nil)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceChain, snap.Source)
	assert.False(t, snap.Stale)
	assert.Empty(t, snap.Error)
	require.Len(t, snap.Weeks, 13, "out of range challenge ids are dropped and gaps filled")

	w1 := snap.Weeks[0]
	assert.Equal(t, StatusConfigured, w1.Status)
	require.NotNil(t, w1.BadgeAsa)
	assert.Equal(t, "3215542832", *w1.BadgeAsa)
	require.NotNil(t, w1.PrizeAsa)
	assert.Equal(t, "3215542841", *w1.PrizeAsa)
	assert.Equal(t, uint64(100), *w1.TimeStart)
	assert.Equal(t, uint64(200), *w1.TimeEnd)
	require.NotNil(t, w1.BadgeMetadata)
	assert.Equal(t, "Prize1.png", *w1.BadgeMetadata.Image)
	require.NotNil(t, w1.PrizeMetadata)
	assert.Equal(t, "Prize2.png", *w1.PrizeMetadata.Image)

	w2 := snap.Weeks[1]
	assert.Equal(t, StatusPending, w2.Status, "published challenge without assets")
	assert.Nil(t, w2.BadgeAsa)
	require.NotNil(t, w2.TimeStart)

	w3 := snap.Weeks[2]
	assert.Equal(t, StatusPending, w3.Status)
	assert.Nil(t, w3.TimeStart, "missing weeks carry no timing")
	assert.Nil(t, w3.BadgeAsa, "week 3 has no badge in the week table")
}

func TestMissingWeekUsesWeekTableBadge(t *testing.T) {
	s := newService(t, &stubSource{challenges: map[uint8]*registry.Challenge{}}, stubCatalogue{}, nil)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	w2 := snap.Weeks[1]
	assert.Equal(t, StatusPending, w2.Status)
	require.NotNil(t, w2.BadgeAsa)
	assert.Equal(t, "3215542840", *w2.BadgeAsa)
}

func TestSnapshotIsCached(t *testing.T) {
	src := liveSource()
	s := newService(t, src, stubCatalogue{}, nil)
	ctx := context.Background()

	first, err := s.Snapshot(ctx)
	require.NoError(t, err)
	second, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, int32(1), src.lists.Load())
}

func TestSnapshotServesLastGoodWhenStale(t *testing.T) {
	src := liveSource()
	s := newService(t, src, stubCatalogue{}, testutil.NewAgedStore[Snapshot](time.Hour))
	ctx := context.Background()

	good, err := s.Snapshot(ctx)
	require.NoError(t, err)

	src.fail(errors.New("indexer down"))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Equal(t, "list challenges: indexer down", snap.Error)
	assert.Equal(t, SourceChain, snap.Source)
	assert.Equal(t, good.FetchedAt, snap.FetchedAt)
}

func TestSnapshotFallsBackToLegacy(t *testing.T) {
	src := &stubSource{err: errors.New("indexer down")}
	prizeID := uint64(3257999518)
	catalogue := stubCatalogue{prizes: []prizes.Prize{{Week: 3, AssetID: &prizeID}, prizes.DefaultPrize(5)}}
	store, err := cache.NewMemoryStore[Snapshot](4)
	require.NoError(t, err)
	s := newService(t, src, catalogue, store)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLegacy, snap.Source)
	assert.True(t, snap.Stale)
	assert.Contains(t, snap.Error, "indexer down")
	require.Len(t, snap.Weeks, 13)

	assert.Equal(t, StatusLegacy, snap.Weeks[0].Status, "badge from the week table")
	assert.Nil(t, snap.Weeks[0].PrizeAsa)
	w3 := snap.Weeks[2]
	assert.Equal(t, StatusLegacy, w3.Status)
	require.NotNil(t, w3.PrizeAsa)
	assert.Equal(t, "3257999518", *w3.PrizeAsa)
	require.NotNil(t, w3.PrizeMetadata)
	assert.Equal(t, StatusPending, snap.Weeks[4].Status)

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.FetchedAt, again.FetchedAt, "legacy snapshot is cached")
	assert.Equal(t, int32(1), src.lists.Load())
}

func TestSnapshotFailsWithoutAnyFallback(t *testing.T) {
	src := &stubSource{err: errors.New("indexer down")}
	s := newService(t, src, stubCatalogue{err: prizes.ErrInvalidFile}, nil)

	_, err := s.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, prizes.ErrInvalidFile)
}

func TestLegacyLifetimeIsDoubled(t *testing.T) {
	src := &stubSource{err: errors.New("indexer down")}
	store, err := cache.NewMemoryStore[Snapshot](4)
	require.NoError(t, err)
	s := newService(t, src, stubCatalogue{}, store)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceLegacy, snap.Source)

	s.now = func() time.Time { return time.Now().Add(90 * time.Second) }
	_, ok := s.cached(ctx)
	assert.True(t, ok, "legacy snapshot lives for two intervals")

	s.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	_, ok = s.cached(ctx)
	assert.False(t, ok)
}

func TestRefresherStartStop(t *testing.T) {
	src := liveSource()
	s := newService(t, src, stubCatalogue{}, nil)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start is rejected")
	require.Eventually(t, func() bool {
		_, ok := s.last()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceChain, snap.Source)
	assert.Equal(t, int32(1), src.lists.Load(), "request served from the warmed cache")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestRefreshFailureIsLogged(t *testing.T) {
	src := &stubSource{err: errors.New("indexer down")}
	s := newService(t, src, stubCatalogue{}, nil)

	s.refresh(context.Background())
	_, ok := s.last()
	assert.False(t, ok, "failed refresh keeps no snapshot")
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(&Config{})
	assert.Error(t, err)

	store, err := cache.NewMemoryStore[Snapshot](1)
	require.NoError(t, err)
	_, err = NewService(&Config{Source: liveSource(), Weeks: weekTable(t), Catalogue: stubCatalogue{}, Store: store})
	assert.Error(t, err, "zero interval")
}
