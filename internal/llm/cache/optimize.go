package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

const (
	staleAfter        = 24 * time.Hour
	compressionFlagAt = 10 * 1024 // bytes
)

// OptimizeReport summarises one sweep.
type OptimizeReport struct {
	Scanned             int
	RemovedStale        int // hit_count == 0 and older than staleAfter
	FlaggedForCompression int // oversized entries marked, never actually shrunk
}

// Optimize runs the periodic sweep cron.Cron drives: entries nobody has
// ever hit and that are now stale are dropped outright, and entries
// over compressionFlagAt are flagged (not compressed — this broker
// never shrinks payloads, it only marks them so an operator can see
// where the bloat is).
func (c *Cache) Optimize(ctx context.Context) (OptimizeReport, error) {
	var report OptimizeReport

	keys, err := c.store.ScanPrefix(ctx, entryPrefix)
	if err != nil {
		return report, err
	}

	for _, key := range keys {
		if len(key) >= len(metaPrefix) && key[:len(metaPrefix)] == metaPrefix {
			continue
		}
		report.Scanned++

		raw, ok, err := c.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.Printf("cache: optimize found corrupted entry %s, deleting: %v", key, err)
			hash := key[len(entryPrefix):]
			c.deletePair(ctx, hash)
			continue
		}

		hash := key[len(entryPrefix):]

		if e.HitCount == 0 && time.Since(e.CachedAt) > staleAfter {
			c.deletePair(ctx, hash)
			report.RemovedStale++
			continue
		}

		if !e.Compressed && len(raw) > compressionFlagAt {
			e.Compressed = true
			updated, err := json.Marshal(e)
			if err == nil {
				_ = c.store.SetEX(ctx, key, updated, e.TTLSeconds)
				report.FlaggedForCompression++
			}
		}
	}

	log.Printf("cache: optimize scanned=%d removed_stale=%d flagged=%d", report.Scanned, report.RemovedStale, report.FlaggedForCompression)
	return report, nil
}
