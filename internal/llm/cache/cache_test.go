package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/aibroker/internal/kv"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kv.NewRedisStoreFromClient(client)

	t.Cleanup(func() { _ = store.Close() })
	return mr, New(store)
}

// backdateEntry rewrites a stored entry's CachedAt to age ago. Optimize
// measures age against the wall clock, which miniredis's FastForward
// does not move.
func backdateEntry(t *testing.T, c *Cache, hash string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	e, ok, err := c.getEntry(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
	e.CachedAt = time.Now().Add(-age)
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, c.store.SetEX(ctx, entryPrefix+hash, raw, e.TTLSeconds))
}

func sampleRequest() domain.Request {
	return domain.Request{
		TaskKind:   domain.TaskAnalysis,
		Complexity: 4,
		Content:    "Summarise last quarter's campaign performance",
		UserTier:   domain.TierCreator,
	}
}

func TestCache_StoreThenLookupIsExactHit(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()
	req := sampleRequest()
	resp := domain.Response{Content: "summary text", Cost: 0.01}

	require.NoError(t, c.Store(ctx, req, "user-1", resp))

	got, kind, err := c.Lookup(ctx, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, kind)
	require.NotNil(t, got)
	assert.Equal(t, "summary text", got.Content)
}

func TestCache_LookupMissWhenNeverStored(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	got, kind, err := c.Lookup(ctx, sampleRequest(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, kind)
	assert.Nil(t, got)
}

func TestCache_FuzzyMatchAboveThresholdForEnabledTaskKind(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	original := domain.Request{
		TaskKind: domain.TaskAnalysis,
		Content:  "Summarise last quarter's campaign performance for the team",
		UserTier: domain.TierCreator,
	}
	require.NoError(t, c.Store(ctx, original, "user-1", domain.Response{Content: "cached", Cost: 0.02}))

	similar := domain.Request{
		TaskKind: domain.TaskAnalysis,
		Content:  "Summarise last quarter's campaign performance for the team please",
		UserTier: domain.TierCreator,
	}
	got, kind, err := c.Lookup(ctx, similar, "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchFuzzy, kind)
	require.NotNil(t, got)
	assert.Equal(t, "cached", got.Content)
}

func TestCache_FuzzyMatchSkippedForTaskKindWithoutFuzzyEnabled(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	original := domain.Request{
		TaskKind: domain.TaskCodeGeneration,
		Content:  "Write a function to reverse a linked list in Go",
		UserTier: domain.TierCreator,
	}
	require.NoError(t, c.Store(ctx, original, "user-1", domain.Response{Content: "cached", Cost: 0.02}))

	similar := domain.Request{
		TaskKind: domain.TaskCodeGeneration,
		Content:  "Write a function to reverse a linked list in Golang",
		UserTier: domain.TierCreator,
	}
	_, kind, err := c.Lookup(ctx, similar, "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, kind)
}

func TestCache_RecordHitDoublesTTLCappedAtMax(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	req := sampleRequest()
	require.NoError(t, c.Store(ctx, req, "user-1", domain.Response{Content: "x", Cost: 0.01}))

	hash := Fingerprint(req, "user-1")
	initialTTL := mr.TTL(entryPrefix + hash)
	require.Greater(t, initialTTL, time.Duration(0))

	_, _, err := c.Lookup(ctx, req, "user-1")
	require.NoError(t, err)

	doubledTTL := mr.TTL(entryPrefix + hash)
	assert.Greater(t, doubledTTL, initialTTL)
}

func TestCache_CorruptedEntryIsDiscardedNotReturned(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	req := sampleRequest()
	hash := Fingerprint(req, "user-1")

	require.NoError(t, mr.Set(entryPrefix+hash, "not valid json"))

	got, kind, err := c.Lookup(ctx, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, kind)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(entryPrefix+hash), "corrupted entry must be deleted")
}

func TestCache_InvalidateByUserIDOnly(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	reqA := sampleRequest()
	reqA.Content = "report for user a"
	reqB := sampleRequest()
	reqB.Content = "report for user b"

	require.NoError(t, c.Store(ctx, reqA, "user-a", domain.Response{Content: "a", Cost: 0.01}))
	require.NoError(t, c.Store(ctx, reqB, "user-b", domain.Response{Content: "b", Cost: 0.01}))

	n, err := c.Invalidate(ctx, "user-a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, kind, err := c.Lookup(ctx, reqA, "user-a")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, kind)

	_, kind, err = c.Lookup(ctx, reqB, "user-b")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, kind)
}

func TestCache_InvalidateByTaskKindAcrossUsers(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	analysisReq := domain.Request{TaskKind: domain.TaskAnalysis, Content: "analysis content", UserTier: domain.TierCreator}
	contentReq := domain.Request{TaskKind: domain.TaskContent, Content: "content content", UserTier: domain.TierCreator}

	require.NoError(t, c.Store(ctx, analysisReq, "user-1", domain.Response{Content: "a", Cost: 0.01}))
	require.NoError(t, c.Store(ctx, contentReq, "user-2", domain.Response{Content: "b", Cost: 0.01}))

	taskKind := domain.TaskAnalysis
	n, err := c.Invalidate(ctx, "", &taskKind)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, kind, err := c.Lookup(ctx, analysisReq, "user-1")
	require.NoError(t, err)
	assert.Equal(t, MatchNone, kind)

	_, kind, err = c.Lookup(ctx, contentReq, "user-2")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, kind)
}

func TestCache_OptimizeRemovesStaleNeverHitEntries(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	req := sampleRequest()
	require.NoError(t, c.Store(ctx, req, "user-1", domain.Response{Content: "x", Cost: 0.01}))

	hash := Fingerprint(req, "user-1")
	mr.FastForward(25 * time.Hour)
	backdateEntry(t, c, hash, 25*time.Hour)

	report, err := c.Optimize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemovedStale)
	assert.False(t, mr.Exists(entryPrefix+hash))
}

func TestCache_OptimizeKeepsEntriesThatWereHit(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	req := sampleRequest()
	require.NoError(t, c.Store(ctx, req, "user-1", domain.Response{Content: "x", Cost: 0.01}))

	_, _, err := c.Lookup(ctx, req, "user-1")
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)
	backdateEntry(t, c, Fingerprint(req, "user-1"), 25*time.Hour)

	report, err := c.Optimize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RemovedStale)
}

func TestCache_StatisticsTracksGlobalAndPerUserScopes(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	reqA := sampleRequest()
	reqA.Content = "report for user a"
	require.NoError(t, c.Store(ctx, reqA, "user-a", domain.Response{Content: "a", Cost: 0.05}))

	_, _, err := c.Lookup(ctx, reqA, "user-a")
	require.NoError(t, err)
	_, _, err = c.Lookup(ctx, sampleRequest(), "user-b")
	require.NoError(t, err)

	userAStats, err := c.Statistics(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), userAStats.Hits)
	assert.Equal(t, int64(0), userAStats.Misses)
	assert.InDelta(t, 0.05, userAStats.CostSaved, 1e-9)
	assert.Zero(t, userAStats.AverageResponseTime)
	assert.Greater(t, userAStats.StorageBytes, int64(0))

	userBStats, err := c.Statistics(ctx, "user-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), userBStats.Hits)
	assert.Equal(t, int64(1), userBStats.Misses)

	global, err := c.Statistics(ctx, GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), global.Hits)
	assert.Equal(t, int64(1), global.Misses)
}

func TestFingerprint_IsStableForIdenticalRequests(t *testing.T) {
	req := sampleRequest()
	assert.Equal(t, Fingerprint(req, "user-1"), Fingerprint(req, "user-1"))
}

func TestFingerprint_DiffersOnUserID(t *testing.T) {
	req := sampleRequest()
	assert.NotEqual(t, Fingerprint(req, "user-1"), Fingerprint(req, "user-2"))
}

func TestFingerprint_IgnoresContentCaseAndSurroundingWhitespace(t *testing.T) {
	a := sampleRequest()
	a.Content = "  Summarise Last Quarter's Campaign Performance  "
	b := sampleRequest()
	b.Content = "summarise last quarter's campaign performance"

	assert.Equal(t, Fingerprint(a, "user-1"), Fingerprint(b, "user-1"))
}
