package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces queue keys when no prefix is given.
const DefaultRedisPrefix = "taskflow:"

// RedisQueue implements the Queue interface using Redis.
//
// It uses a single Redis list with key:
//
//	<prefix>requests
//
// Values are gob-encoded Request structs. Like InMemoryQueue it is FIFO and
// leaves NotBefore to the consumer.
type RedisQueue struct {
	client *redis.Client
	key    string

	// blockFor bounds each BRPOP so cancellation is noticed.
	blockFor time.Duration
}

// NewRedisQueue constructs a Redis-backed Queue.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisQueue{
		client:   client,
		key:      prefix + "requests",
		blockFor: time.Second,
	}
}

var _ Queue = (*RedisQueue)(nil)

// Enqueue pushes a request onto the Redis list (LPUSH).
func (q *RedisQueue) Enqueue(ctx context.Context, r Request) error {
	data, err := EncodeRequest(r)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue blocks on BRPOP until a request is available or ctx is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Request, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// BRPop returns [key, value]
		res, err := q.client.BRPop(ctx, q.blockFor, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if len(res) != 2 {
			return nil, fmt.Errorf("redis queue: unexpected BRPOP reply of %d elements", len(res))
		}
		return DecodeRequest([]byte(res[1]))
	}
}

// Len returns the approximate number of requests queued (LLEN).
func (q *RedisQueue) Len() int {
	n, err := q.client.LLen(context.Background(), q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
