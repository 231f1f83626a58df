package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over go-redis/v9, the same client the
// teacher's session package uses for distributed state.
type RedisStore struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
}

// RedisConfig mirrors the connection knobs the teacher's session
// package exposes for its own Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("kv: redis address is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client, letting tests point
// it at a miniredis instance the way redis_backend_test.go does.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("kv: store is closed")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.guard(); err != nil {
		return nil, false, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) SetEX(ctx context.Context, key string, value []byte, ttl int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	var expiry time.Duration
	if ttl > 0 {
		expiry = time.Duration(ttl) * time.Second
	}
	if err := s.client.Set(ctx, key, value, expiry).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kv: scan %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttlSeconds int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.client.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("kv: expire %s: %w", key, err)
	}
	return nil
}

// IncrByFloat adds delta atomically, pipelined with an ExpireNX so the
// TTL is set only the first time the counter is created — a repeated
// increment within the window never resets the clock.
func (s *RedisStore) IncrByFloat(ctx context.Context, key string, delta float64, ttlSeconds int64) (float64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	pipe := s.client.Pipeline()
	incr := pipe.IncrByFloat(ctx, key, delta)
	if ttlSeconds > 0 {
		pipe.ExpireNX(ctx, key, time.Duration(ttlSeconds)*time.Second)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kv: incrbyfloat %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64, ttlSeconds int64) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	pipe := s.client.Pipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	if ttlSeconds > 0 {
		pipe.ExpireNX(ctx, key, time.Duration(ttlSeconds)*time.Second)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kv: incrby %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) GetFloat(ctx context.Context, key string) (float64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	v, err := s.client.Get(ctx, key).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("kv: getfloat %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) ApproxSize(ctx context.Context, key string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	n, err := s.client.StrLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("kv: strlen %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
