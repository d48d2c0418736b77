// Package analytics tracks funnel page views and submissions in Redis and
// periodically folds the deltas into the Postgres rollup columns. Serving a
// landing page never waits on Postgres this way.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	viewsHash       = "funnel:views"
	submissionsHash = "funnel:submissions"

	dedupeTTL = 30 * 24 * time.Hour
)

// Counter accumulates per-funnel deltas in Redis.
type Counter struct {
	rdb *redis.Client
}

// NewCounter wraps a Redis client.
func NewCounter(rdb *redis.Client) *Counter { return &Counter{rdb: rdb} }

// RecordView bumps the pending view count for a funnel.
func (c *Counter) RecordView(ctx context.Context, funnelID int64) error {
	return c.rdb.HIncrBy(ctx, viewsHash, strconv.FormatInt(funnelID, 10), 1).Err()
}

// RecordSubmission bumps the pending submission count for a funnel.
func (c *Counter) RecordSubmission(ctx context.Context, funnelID int64) error {
	return c.rdb.HIncrBy(ctx, submissionsHash, strconv.FormatInt(funnelID, 10), 1).Err()
}

// Delta is the pending counter state for one funnel.
type Delta struct {
	Views       int64
	Submissions int64
}

// Drain atomically reads and clears all pending deltas.
func (c *Counter) Drain(ctx context.Context) (map[int64]Delta, error) {
	pipe := c.rdb.TxPipeline()
	views := pipe.HGetAll(ctx, viewsHash)
	submissions := pipe.HGetAll(ctx, submissionsHash)
	pipe.Del(ctx, viewsHash, submissionsHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain counters: %w", err)
	}

	deltas := map[int64]Delta{}
	for field, raw := range views.Val() {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		d := deltas[id]
		d.Views = n
		deltas[id] = d
	}
	for field, raw := range submissions.Val() {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		d := deltas[id]
		d.Submissions = n
		deltas[id] = d
	}
	return deltas, nil
}

// FirstRegistration reports whether this is the first registration attempt
// for the funnel/email pair, claiming the slot as a side effect. It is a fast
// guard in front of the authoritative Postgres duplicate check.
func (c *Counter) FirstRegistration(ctx context.Context, funnelID int64, email string) (bool, error) {
	key := fmt.Sprintf("funnel:%d:registered:%s", funnelID, email)
	ok, err := c.rdb.SetNX(ctx, key, 1, dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}
	return ok, nil
}
