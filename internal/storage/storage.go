// Package storage provides the persistence boundaries of the
// pipeline: a TTL key-value store for finished assessments, a
// Postgres archive for long-term history and similarity search, and
// an object-store video source.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cruxview/cruxview/internal/cache"
)

// KV persists JSON blobs under string keys with a time-to-live.
type KV interface {
	// GetJSON unmarshals the value at key into out, reporting whether
	// the key was present.
	GetJSON(ctx context.Context, key string, out any) (bool, error)

	// SetJSON marshals v and stores it under key for ttl. Zero ttl
	// means no expiry.
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// AnalysisKey builds the cache key for a finished analysis.
func AnalysisKey(analysisID string) string {
	return "analysis:" + analysisID
}

// CacheKV is the in-process KV backed by the TTL+LRU cache.
type CacheKV struct {
	cache *cache.Cache
}

// NewCacheKV wraps an owned cache instance.
func NewCacheKV(c *cache.Cache) *CacheKV {
	return &CacheKV{cache: c}
}

func (s *CacheKV) GetJSON(_ context.Context, key string, out any) (bool, error) {
	data, ok := s.cache.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("storage: corrupt entry at %q: %w", key, err)
	}
	return true, nil
}

func (s *CacheKV) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal %q: %w", key, err)
	}
	s.cache.Set(key, data, ttl)
	return nil
}
