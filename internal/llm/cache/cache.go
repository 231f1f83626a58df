// Package cache is the fingerprint-keyed response cache sitting in
// front of provider calls: an exact SHA-256 match first, then an
// optional fuzzy Jaccard-similarity match over recent requests of the
// same task kind.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aixgo-dev/aibroker/internal/kv"
	"github.com/aixgo-dev/aibroker/internal/llm/domain"
	"github.com/aixgo-dev/aibroker/internal/observability"
)

const (
	entryPrefix = "ai_cache:"
	metaPrefix  = "ai_cache:meta:"
	statsPrefix = "ai_cache_stats:"

	// statsExpirySeconds matches spec.md §6.2's 30-day expiry for the
	// ai_cache_stats:<scope> counters.
	statsExpirySeconds = 30 * 24 * 60 * 60
)

// MatchKind reports how (or whether) a Lookup was satisfied.
type MatchKind string

const (
	MatchNone  MatchKind = "miss"
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// entry is the full cached record stored at entryPrefix+hash.
type entry struct {
	Response   domain.Response `json:"response"`
	TaskKind   domain.TaskKind `json:"task_kind"`
	Complexity int             `json:"complexity"`
	UserTier   domain.Tier     `json:"user_tier"`
	UserID     string          `json:"user_id"`
	CachedAt   time.Time       `json:"cached_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
	HitCount   int             `json:"hit_count"`
	CostSaved  float64         `json:"cost_saved"`
	Compressed bool            `json:"compressed,omitempty"`
}

// meta is the sidecar stored at metaPrefix+hash, carrying only what
// fuzzy matching needs: the original request's own content. Comparing
// against the stored request (not the cached response) is what makes
// fuzzy matching measure request similarity rather than response noise.
type meta struct {
	TaskKind domain.TaskKind `json:"task_kind"`
	UserID   string          `json:"user_id"`
	Content  string          `json:"content"`
}

// Cache is the fingerprint cache. Safe for concurrent use; all mutable
// state lives in the backing kv.Store.
type Cache struct {
	store kv.Store
}

func New(store kv.Store) *Cache {
	return &Cache{store: store}
}

// Lookup returns a cached response for req/userID, trying an exact hash
// match first and, when the task kind allows it, a fuzzy match against
// other entries of the same task kind.
func (c *Cache) Lookup(ctx context.Context, req domain.Request, userID string) (*domain.Response, MatchKind, error) {
	_, span := observability.StartSpan(ctx, "cache.Lookup")
	defer span.End()

	hash := Fingerprint(req, userID)
	if e, ok, err := c.getEntry(ctx, hash); err != nil {
		return nil, MatchNone, err
	} else if ok {
		c.recordHit(ctx, hash, e, userID)
		observability.RecordCacheResult(string(MatchExact))
		return &e.Response, MatchExact, nil
	}

	cfg := configFor(req.TaskKind)
	if !cfg.FuzzyEnabled {
		c.recordMiss(ctx, userID)
		return nil, MatchNone, nil
	}

	match, matchedEntry, err := c.fuzzyMatch(ctx, req, cfg)
	if err != nil {
		return nil, MatchNone, err
	}
	if match == "" {
		c.recordMiss(ctx, userID)
		return nil, MatchNone, nil
	}

	c.recordHit(ctx, match, matchedEntry, userID)
	observability.RecordCacheResult(string(MatchFuzzy))
	return &matchedEntry.Response, MatchFuzzy, nil
}

func (c *Cache) getEntry(ctx context.Context, hash string) (entry, bool, error) {
	raw, ok, err := c.store.Get(ctx, entryPrefix+hash)
	if err != nil {
		return entry{}, false, err
	}
	if !ok {
		return entry{}, false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Printf("cache: corrupted entry %s, discarding: %v", hash, err)
		_ = c.store.Delete(ctx, entryPrefix+hash)
		_ = c.store.Delete(ctx, metaPrefix+hash)
		return entry{}, false, nil
	}
	return e, true, nil
}

func (c *Cache) fuzzyMatch(ctx context.Context, req domain.Request, cfg taskConfig) (string, entry, error) {
	keys, err := c.store.ScanPrefix(ctx, metaPrefix)
	if err != nil {
		return "", entry{}, err
	}

	normalisedReq := normaliseContent(req.Content)
	var best string
	var bestScore float64

	for _, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.TaskKind != req.TaskKind {
			continue
		}
		score := jaccardSimilarity(normalisedReq, m.Content)
		if score >= cfg.SimilarityThreshold && score > bestScore {
			best, bestScore = key[len(metaPrefix):], score
		}
	}
	if best == "" {
		return "", entry{}, nil
	}

	e, ok, err := c.getEntry(ctx, best)
	if err != nil || !ok {
		return "", entry{}, err
	}
	return best, e, nil
}

// recordHit bumps the entry's hit counter and cost-saved running total,
// and doubles the entry's stored TTL (capped at 30 days), restarting its
// expiry from now, so frequently reused responses stick around longer. Stats are bumped both globally
// and per-user, per spec.md §4.D/§6.2.
func (c *Cache) recordHit(ctx context.Context, hash string, e entry, userID string) {
	e.HitCount++
	e.CostSaved += e.Response.Cost

	newTTL := e.TTLSeconds * 2
	if newTTL > maxTTLSeconds {
		newTTL = maxTTLSeconds
	}
	e.TTLSeconds = newTTL

	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("cache: marshal hit update for %s: %v", hash, err)
		return
	}
	if err := c.store.SetEX(ctx, entryPrefix+hash, raw, newTTL); err != nil {
		log.Printf("cache: persist hit update for %s: %v", hash, err)
	}

	c.bumpStats(ctx, "hits", 1, e.Response.Cost, userID)
}

func (c *Cache) recordMiss(ctx context.Context, userID string) {
	observability.RecordCacheResult(string(MatchNone))
	c.bumpStats(ctx, "misses", 1, 0, userID)
}

// bumpStats increments the named counter under both the global scope and,
// when userID is known, the per-user scope. Each counter key gets a 30-day
// expiry when it has none yet; later increments do not extend it.
func (c *Cache) bumpStats(ctx context.Context, counter string, n int64, costSaved float64, userID string) {
	scopes := []string{"global"}
	if userID != "" {
		scopes = append(scopes, userID)
	}
	for _, scope := range scopes {
		key := statsPrefix + scope
		_, _ = c.store.IncrBy(ctx, key+":"+counter, n, statsExpirySeconds)
		if costSaved > 0 {
			_, _ = c.store.IncrByFloat(ctx, key+":cost_saved", costSaved, statsExpirySeconds)
		}
	}
}

// Store writes resp into the cache under req/userID's fingerprint, with
// the TTL dictated by the task kind's config.
func (c *Cache) Store(ctx context.Context, req domain.Request, userID string, resp domain.Response) error {
	cfg := configFor(req.TaskKind)
	hash := Fingerprint(req, userID)

	e := entry{
		Response:   resp,
		TaskKind:   req.TaskKind,
		Complexity: req.Complexity,
		UserTier:   req.UserTier,
		UserID:     userID,
		CachedAt:   time.Now(),
		TTLSeconds: cfg.TTLSeconds,
	}
	rawEntry, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	if err := c.store.SetEX(ctx, entryPrefix+hash, rawEntry, cfg.TTLSeconds); err != nil {
		return fmt.Errorf("cache: store entry: %w", err)
	}

	m := meta{TaskKind: req.TaskKind, UserID: userID, Content: normaliseContent(req.Content)}
	rawMeta, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("cache: marshal metadata: %w", err)
	}
	if err := c.store.SetEX(ctx, metaPrefix+hash, rawMeta, cfg.TTLSeconds); err != nil {
		return fmt.Errorf("cache: store metadata: %w", err)
	}

	c.bumpResponseTime(ctx, resp.ProcessingTime, userID)
	return nil
}

// bumpResponseTime folds the processing time of a freshly-generated
// response into the running average spec.md §4.D's "average response
// time" statistic reports, under both the global and per-user scopes.
// Recorded at Store time, since that is when the broker knows how long
// the underlying provider call actually took; cache hits skip the
// provider entirely and have no comparable latency of their own.
func (c *Cache) bumpResponseTime(ctx context.Context, d time.Duration, userID string) {
	ms := float64(d.Milliseconds())
	scopes := []string{"global"}
	if userID != "" {
		scopes = append(scopes, userID)
	}
	for _, scope := range scopes {
		key := statsPrefix + scope
		_, _ = c.store.IncrByFloat(ctx, key+":response_time_sum_ms", ms, statsExpirySeconds)
		_, _ = c.store.IncrByFloat(ctx, key+":response_time_count", 1, statsExpirySeconds)
	}
}
