package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by Get when neither tier holds the key
var ErrCacheMiss = errors.New("key not found")

// CacheService is a two-tier cache: an in-process LRU in front of Redis.
// A nil Redis client runs the LRU alone.
type CacheService struct {
	client  *redis.Client
	local   *lru.Cache
	breaker *CircuitBreakerService
	metrics *Metrics
	logger  *logrus.Entry
	now     func() time.Time
}

type localEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// redisValue is a Redis hit with its remaining time to live
type redisValue struct {
	data []byte
	ttl  time.Duration
}

func NewCacheService(client *redis.Client, localSize int, breaker *CircuitBreakerService) (*CacheService, error) {
	if localSize <= 0 {
		localSize = 128
	}
	local, err := lru.New(localSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	return &CacheService{
		client:  client,
		local:   local,
		breaker: breaker,
		logger:  logrus.WithField("component", "cache"),
		now:     time.Now,
	}, nil
}

// SetMetrics records cache hits and misses on m
func (s *CacheService) SetMetrics(m *Metrics) {
	s.metrics = m
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	s.storeLocal(key, data, expiration)

	if s.client == nil {
		return nil
	}

	_, err = s.guard(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Redis write failed, value kept in process")
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := s.getLocal(key); ok {
		s.metrics.cacheHit("local")
		return s.decode(data, dest)
	}

	if s.client == nil {
		s.metrics.cacheMiss()
		return ErrCacheMiss
	}

	result, err := s.guard(func() (interface{}, error) {
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// a miss is not a Redis failure
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		ttl, err := s.client.PTTL(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		return redisValue{data: data, ttl: ttl}, nil
	})
	if err != nil {
		s.metrics.cacheMiss()
		s.logger.WithError(err).WithField("key", key).Warn("Redis read failed")
		return fmt.Errorf("failed to get cache: %w", err)
	}

	value, ok := result.(redisValue)
	if !ok {
		s.metrics.cacheMiss()
		return ErrCacheMiss
	}

	s.metrics.cacheHit("redis")
	s.storeLocal(key, value.data, value.ttl)
	return s.decode(value.data, dest)
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.local.Remove(key)
	}
	if s.client == nil || len(keys) == 0 {
		return nil
	}

	_, err := s.guard(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Ping checks the Redis tier. A local-only cache is always healthy.
func (s *CacheService) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	_, err := s.guard(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// LocalLen returns the number of entries held in process
func (s *CacheService) LocalLen() int {
	return s.local.Len()
}

// AllocationCacheKey namespaces a request hash
func AllocationCacheKey(requestHash string) string {
	return fmt.Sprintf("allocation:%s", requestHash)
}

// storeLocal adds data to the in-process tier. A non-positive ttl keeps the
// entry until it is evicted.
func (s *CacheService) storeLocal(key string, data []byte, ttl time.Duration) {
	entry := localEntry{data: data}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.local.Add(key, entry)
}

func (s *CacheService) getLocal(key string) ([]byte, bool) {
	value, ok := s.local.Get(key)
	if !ok {
		return nil, false
	}
	entry := value.(localEntry)
	if !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		s.local.Remove(key)
		return nil, false
	}
	return entry.data, true
}

func (s *CacheService) guard(fn func() (interface{}, error)) (interface{}, error) {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Execute(BreakerRedis, fn)
}

func (s *CacheService) decode(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

