package caching

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"resourcehive/internal/models"
)

type CacheServiceTestSuite struct {
	suite.Suite
	server *miniredis.Miniredis
	cache  CacheService
	ctx    context.Context
}

func (s *CacheServiceTestSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	s.cache = NewRedisCacheService(client)
	s.ctx = context.Background()
}

func (s *CacheServiceTestSuite) TestSnapshotsRoundTripAndMisses() {
	cached := models.Snapshot{ItemID: uuid.New(), OnHand: 10, Reserved: 4, Available: 6}
	missing := uuid.New()

	require.NoError(s.T(), s.cache.SetSnapshots(s.ctx, []models.Snapshot{cached}, time.Minute))

	got, err := s.cache.GetSnapshots(s.ctx, []uuid.UUID{cached.ItemID, missing})
	require.NoError(s.T(), err)
	assert.Len(s.T(), got, 1)
	assert.Equal(s.T(), cached, got[cached.ItemID])
	_, ok := got[missing]
	assert.False(s.T(), ok)
}

func (s *CacheServiceTestSuite) TestSnapshotsExpire() {
	snap := models.Snapshot{ItemID: uuid.New(), OnHand: 1, Available: 1}
	require.NoError(s.T(), s.cache.SetSnapshots(s.ctx, []models.Snapshot{snap}, time.Minute))

	s.server.FastForward(2 * time.Minute)

	got, err := s.cache.GetSnapshots(s.ctx, []uuid.UUID{snap.ItemID})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *CacheServiceTestSuite) TestInvalidateSnapshots() {
	a := models.Snapshot{ItemID: uuid.New(), OnHand: 3, Available: 3}
	b := models.Snapshot{ItemID: uuid.New(), OnHand: 5, Available: 5}
	require.NoError(s.T(), s.cache.SetSnapshots(s.ctx, []models.Snapshot{a, b}, time.Hour))

	require.NoError(s.T(), s.cache.InvalidateSnapshots(s.ctx, []uuid.UUID{a.ItemID}))

	got, err := s.cache.GetSnapshots(s.ctx, []uuid.UUID{a.ItemID, b.ItemID})
	require.NoError(s.T(), err)
	assert.Len(s.T(), got, 1)
	assert.Contains(s.T(), got, b.ItemID)
}

func (s *CacheServiceTestSuite) TestUnreadableSnapshotIsAMiss() {
	id := uuid.New()
	require.NoError(s.T(), s.server.Set(snapshotKey(id), "not json"))

	got, err := s.cache.GetSnapshots(s.ctx, []uuid.UUID{id})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *CacheServiceTestSuite) TestTemplateOverrides() {
	_, found, err := s.cache.Template(s.ctx, "near_overdue")
	require.NoError(s.T(), err)
	assert.False(s.T(), found)

	require.NoError(s.T(), s.cache.SetTemplate(s.ctx, "near_overdue", "Due soon\nHi {{.Name}}"))
	text, found, err := s.cache.Template(s.ctx, "near_overdue")
	require.NoError(s.T(), err)
	assert.True(s.T(), found)
	assert.Equal(s.T(), "Due soon\nHi {{.Name}}", text)

	require.NoError(s.T(), s.cache.DeleteTemplate(s.ctx, "near_overdue"))
	_, found, err = s.cache.Template(s.ctx, "near_overdue")
	require.NoError(s.T(), err)
	assert.False(s.T(), found)
}

func (s *CacheServiceTestSuite) TestTryAcquireHoldsUntilTTL() {
	ok, err := s.cache.TryAcquire(s.ctx, "sweep", time.Minute)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	ok, err = s.cache.TryAcquire(s.ctx, "sweep", time.Minute)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	s.server.FastForward(61 * time.Second)
	ok, err = s.cache.TryAcquire(s.ctx, "sweep", time.Minute)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *CacheServiceTestSuite) TestCacheErrorsSurface() {
	s.server.Close()

	_, err := s.cache.GetSnapshots(s.ctx, []uuid.UUID{uuid.New()})
	assert.Error(s.T(), err)
	_, _, err = s.cache.Template(s.ctx, "item_approved")
	assert.Error(s.T(), err)
}

func TestCacheServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CacheServiceTestSuite))
}

func TestNewRedisClientStripsScheme(t *testing.T) {
	client := NewRedisClient("redis://cache.internal:6380/", "", 2)
	defer client.Close()

	assert.Equal(t, "cache.internal:6380", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
}
