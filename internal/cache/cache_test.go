package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/config"
	"github.com/sermady/stockdata-core/internal/database"
)

func newTestService(t *testing.T, policies map[string]config.CachePolicy) *Service {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "cache"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return New(db, policies, zerolog.Nop())
}

func TestL1_PutThenGetRoundTrips(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{
		"stock_quotes": {Tier: "L1", TTLSeconds: 60, MaxEntries: 10},
	})
	require.NoError(t, s.Put(context.Background(), "stock_quotes", "600000", map[string]float64{"price": 10.5}))

	var out map[string]float64
	found, err := s.Get(context.Background(), "stock_quotes", "600000", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10.5, out["price"])

	hits, misses := s.Stats("stock_quotes")
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestL2_PutPersistsAcrossL1Eviction(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{
		"analysis_result": {Tier: "L2", TTLSeconds: 3600},
	})
	require.NoError(t, s.Put(context.Background(), "analysis_result", "task-1", map[string]string{"summary": "ok"}))

	var out map[string]string
	found, err := s.Get(context.Background(), "analysis_result", "task-1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ok", out["summary"])
}

func TestGet_L2HitPromotesIntoL1(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{
		"analysis_result": {Tier: "L2", TTLSeconds: 3600},
	})
	require.NoError(t, s.Put(context.Background(), "analysis_result", "task-2", "value"))

	l1 := s.l1["analysis_result"]
	_, hadIt := l1.Get("task-2")
	require.False(t, hadIt, "should not be in L1 before the first Get")

	var out string
	found, err := s.Get(context.Background(), "analysis_result", "task-2", &out)
	require.NoError(t, err)
	require.True(t, found)

	_, nowHasIt := l1.Get("task-2")
	assert.True(t, nowHasIt, "L2 hit should have promoted the entry into L1")
}

func TestGet_ExpiredL2EntryIsAMiss(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{
		"analysis_result": {Tier: "L2", TTLSeconds: 0},
	})
	require.NoError(t, s.Put(context.Background(), "analysis_result", "task-3", "value"))
	time.Sleep(1100 * time.Millisecond)

	var out string
	found, err := s.Get(context.Background(), "analysis_result", "task-3", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePrefix_ClearsBothTiers(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{
		"market_data": {Tier: "L1", TTLSeconds: 300, MaxEntries: 10},
	})
	require.NoError(t, s.Put(context.Background(), "market_data", "600000", "v1"))
	require.NoError(t, s.Put(context.Background(), "market_data", "600001", "v2"))

	require.NoError(t, s.InvalidatePrefix(context.Background(), "market_data"))

	var out string
	found, err := s.Get(context.Background(), "market_data", "600000", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPut_UnconfiguredPrefixIsNoOp(t *testing.T) {
	s := newTestService(t, map[string]config.CachePolicy{})
	require.NoError(t, s.Put(context.Background(), "unknown", "k", "v"))

	var out string
	found, err := s.Get(context.Background(), "unknown", "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
