package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rulesift/rulesift/internal/report"
)

const keyPrefix = "rulesift:result:"

// Cache stores analysis results in Redis keyed by input fingerprint.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: client, ttl: ttl}
}

func (c *Cache) IsEnabled() bool {
	return c != nil && c.redis != nil
}

// Get returns the cached result for fingerprint. The boolean is false on a
// cache miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (report.AnalysisResult, bool, error) {
	if !c.IsEnabled() {
		return report.AnalysisResult{}, false, nil
	}

	data, err := c.redis.Get(ctx, keyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return report.AnalysisResult{}, false, nil
	}
	if err != nil {
		return report.AnalysisResult{}, false, fmt.Errorf("failed to get cached result: %w", err)
	}

	var result report.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return report.AnalysisResult{}, false, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return result, true, nil
}

func (c *Cache) Put(ctx context.Context, fingerprint string, result report.AnalysisResult) error {
	if !c.IsEnabled() {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.redis.Set(ctx, keyPrefix+fingerprint, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}
