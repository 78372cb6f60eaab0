// Package ratelimit provides a Redis-backed fixed-window limiter shared across
// process instances, used by the performance-tester adapter (§4.2's
// 15-25s-per-call rate limit) where a local in-memory limiter would not
// coordinate across overlapping scan invocations. Grounded on
// Sergey-Bar-Alfred's redis/go-redis/v9 usage.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bucket is a simple fixed-window limiter: at most one acquisition per
// interval per key, implemented with Redis SET NX PX so it works across
// multiple sitewatch processes without a distributed lock.
type Bucket struct {
	client   *redis.Client
	interval time.Duration
}

// New builds a Bucket against an already-connected Redis client.
func New(client *redis.Client, interval time.Duration) *Bucket {
	return &Bucket{client: client, interval: interval}
}

// Wait blocks until a slot for key is available, polling at a tenth of
// the interval. An acquired slot stays taken for the full interval, however
// long the caller's remote call runs, so interval should match the
// provider's published rate limit, not the caller's desired throughput.
func (b *Bucket) Wait(ctx context.Context, key string) error {
	ticker := time.NewTicker(b.interval / 10)
	defer ticker.Stop()

	for {
		ok, err := b.client.SetNX(ctx, bucketKey(key), 1, b.interval).Result()
		if err != nil {
			return fmt.Errorf("ratelimit acquire %q: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func bucketKey(key string) string {
	return "sitewatch:ratelimit:" + key
}
