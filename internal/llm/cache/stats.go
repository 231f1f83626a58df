package cache

import (
	"context"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness, either
// global or scoped to one user (spec.md §4.D's "global and per-user").
type Stats struct {
	Hits                int64
	Misses              int64
	TotalEntries        int
	HitRate             float64
	CostSaved           float64
	AverageResponseTime time.Duration
	StorageBytes        int64
}

// GlobalScope names the counters that aggregate across every user.
const GlobalScope = "global"

// Statistics reports cumulative hit/miss counters and storage size for
// scope, which is either GlobalScope or a user id. Entry/storage counts
// are always computed over the whole keyspace: the cache has no
// per-user key partition to scan, only per-scope hit/miss/cost-saved
// counters.
func (c *Cache) Statistics(ctx context.Context, scope string) (Stats, error) {
	if scope == "" {
		scope = GlobalScope
	}
	key := statsPrefix + scope

	hits, err := c.store.GetFloat(ctx, key+":hits")
	if err != nil {
		return Stats{}, err
	}
	misses, err := c.store.GetFloat(ctx, key+":misses")
	if err != nil {
		return Stats{}, err
	}
	costSaved, err := c.store.GetFloat(ctx, key+":cost_saved")
	if err != nil {
		return Stats{}, err
	}
	responseTimeSumMs, err := c.store.GetFloat(ctx, key+":response_time_sum_ms")
	if err != nil {
		return Stats{}, err
	}
	responseTimeCount, err := c.store.GetFloat(ctx, key+":response_time_count")
	if err != nil {
		return Stats{}, err
	}

	keys, err := c.store.ScanPrefix(ctx, entryPrefix)
	if err != nil {
		return Stats{}, err
	}
	total := 0
	var storageBytes int64
	for _, k := range keys {
		if len(k) >= len(metaPrefix) && k[:len(metaPrefix)] == metaPrefix {
			continue
		}
		total++
		size, err := c.store.ApproxSize(ctx, k)
		if err != nil {
			return Stats{}, err
		}
		storageBytes += size
	}

	stats := Stats{
		Hits:         int64(hits),
		Misses:       int64(misses),
		TotalEntries: total,
		CostSaved:    costSaved,
		StorageBytes: storageBytes,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if responseTimeCount > 0 {
		stats.AverageResponseTime = time.Duration(responseTimeSumMs/responseTimeCount) * time.Millisecond
	}
	return stats, nil
}
