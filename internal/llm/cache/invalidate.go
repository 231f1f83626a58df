package cache

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aixgo-dev/aibroker/internal/llm/domain"
)

// Invalidate deletes cache entries matching the given filters. When
// userID is non-empty it is a required filter: only entries whose
// metadata sidecar names that exact user are removed. Leaving userID
// empty invalidates across all users for the given task kind (or
// everything, if taskKind is also nil). Corrupted entries are always
// deleted regardless of filters, since they can never be read back.
func (c *Cache) Invalidate(ctx context.Context, userID string, taskKind *domain.TaskKind) (int, error) {
	keys, err := c.store.ScanPrefix(ctx, metaPrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		hash := key[len(metaPrefix):]
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return deleted, err
		}
		if !ok {
			continue
		}

		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("cache: corrupted metadata %s, deleting unconditionally: %v", hash, err)
			c.deletePair(ctx, hash)
			deleted++
			continue
		}

		if userID != "" && m.UserID != userID {
			continue
		}
		if taskKind != nil && m.TaskKind != *taskKind {
			continue
		}

		c.deletePair(ctx, hash)
		deleted++
	}
	return deleted, nil
}

func (c *Cache) deletePair(ctx context.Context, hash string) {
	_ = c.store.Delete(ctx, entryPrefix+hash)
	_ = c.store.Delete(ctx, metaPrefix+hash)
}
