// Package cache provides a TTL-bounded verdict cache for the
// verification pipeline.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/certificate/service"
)

// Redis caches positive verification verdicts in Redis, keyed by anchor
// reference. The TTL bounds how long a revoked issuer's certificates
// can keep verifying as valid from cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(anchorRef string) string {
	return "certledger:verdict:" + anchorRef
}

func (c *Redis) Get(ctx context.Context, anchorRef string) (*service.Verdict, bool) {
	payload, err := c.client.Get(ctx, key(anchorRef)).Bytes()
	if err != nil {
		return nil, false
	}
	var verdict service.Verdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, false
	}
	return &verdict, true
}

func (c *Redis) Save(ctx context.Context, anchorRef string, verdict *service.Verdict) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := c.client.Set(ctx, key(anchorRef), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache verdict: %w", err)
	}
	return nil
}
