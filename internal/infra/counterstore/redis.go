// Package counterstore implements the write-buffered delivery counters and the
// shared fixed-window rate limiter on Redis. Workers increment hash fields per
// request instead of writing the durable rollup on every message outcome; a
// periodic flush drains the buffered deltas.
package counterstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "request_counters:"
	dirtySetKey = "request_counters:dirty"
)

// readAndClear atomically reads both delta fields and deletes the hash, so an
// increment arriving between read and clear can never be lost.
var readAndClear = redis.NewScript(`
local key = KEYS[1]
local sent = redis.call('HGET', key, 'sent')
local failed = redis.call('HGET', key, 'failed')
if sent == false then sent = '0' end
if failed == false then failed = '0' end
redis.call('DEL', key)
return {sent, failed}
`)

// RedisCounterStore buffers per-request sent/failed increments in Redis
// hashes and tracks requests awaiting reconciliation in a dirty set.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

// IncrementSent buffers one successful delivery for the request and marks it
// dirty. Safe under unlimited concurrent callers across worker processes.
func (s *RedisCounterStore) IncrementSent(ctx context.Context, requestID string) error {
	return s.increment(ctx, requestID, "sent")
}

// IncrementFailed buffers one terminal delivery failure for the request.
func (s *RedisCounterStore) IncrementFailed(ctx context.Context, requestID string) error {
	return s.increment(ctx, requestID, "failed")
}

func (s *RedisCounterStore) increment(ctx context.Context, requestID, field string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HIncrBy(ctx, keyPrefix+requestID, field, 1)
	pipe.SAdd(ctx, dirtySetKey, requestID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	return nil
}

// DirtyRequests returns the request ids with unflushed deltas.
func (s *RedisCounterStore) DirtyRequests(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, dirtySetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("DirtyRequests: %w", err)
	}
	return ids, nil
}

// ReadAndClear atomically drains the buffered deltas for one request.
func (s *RedisCounterStore) ReadAndClear(ctx context.Context, requestID string) (sent, failed int64, err error) {
	res, err := readAndClear.Run(ctx, s.rdb, []string{keyPrefix + requestID}).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("ReadAndClear: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("ReadAndClear: unexpected script result length %d", len(res))
	}
	return res[0], res[1], nil
}

// ClearDirty removes the dirty marker. Called only after the durable rollup
// write succeeded, so a failed flush retries on the next cycle.
func (s *RedisCounterStore) ClearDirty(ctx context.Context, requestID string) error {
	if err := s.rdb.SRem(ctx, dirtySetKey, requestID).Err(); err != nil {
		return fmt.Errorf("ClearDirty: %w", err)
	}
	return nil
}
