package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIndexTTL bounds how long an abandoned open batch keeps its set.
const DefaultIndexTTL = 72 * time.Hour

// BatchIndex keeps one Redis set per open batch holding its tracking numbers.
// SADD is atomic, so concurrent claims from different replicas agree on who
// added a number first.
//
// Key format: intake:batch:<batch_id>:numbers
type BatchIndex struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewBatchIndex wraps client. ttl <= 0 selects DefaultIndexTTL.
func NewBatchIndex(client redis.Cmdable, ttl time.Duration) *BatchIndex {
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	return &BatchIndex{client: client, ttl: ttl}
}

// Claim adds every number to the batch set in one round trip.
func (x *BatchIndex) Claim(ctx context.Context, batchID string, numbers []string) ([]bool, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	key := x.key(batchID)

	pipe := x.client.TxPipeline()
	cmds := make([]*redis.IntCmd, len(numbers))
	for i, n := range numbers {
		cmds[i] = pipe.SAdd(ctx, key, n)
	}
	pipe.Expire(ctx, key, x.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("batch index claim: %w", err)
	}

	claimed := make([]bool, len(numbers))
	for i, cmd := range cmds {
		claimed[i] = cmd.Val() == 1
	}
	return claimed, nil
}

// Release removes numbers from the batch set so they can be claimed again.
func (x *BatchIndex) Release(ctx context.Context, batchID string, numbers ...string) error {
	if len(numbers) == 0 {
		return nil
	}
	members := make([]interface{}, len(numbers))
	for i, n := range numbers {
		members[i] = n
	}
	if err := x.client.SRem(ctx, x.key(batchID), members...).Err(); err != nil {
		return fmt.Errorf("batch index release: %w", err)
	}
	return nil
}

// Drop deletes the whole set once a batch is submitted.
func (x *BatchIndex) Drop(ctx context.Context, batchID string) error {
	if err := x.client.Del(ctx, x.key(batchID)).Err(); err != nil {
		return fmt.Errorf("batch index drop: %w", err)
	}
	return nil
}

func (x *BatchIndex) key(batchID string) string {
	return fmt.Sprintf("intake:batch:%s:numbers", batchID)
}
