// ABOUTME: Redis list queue so several worker processes can share ingestion work
// ABOUTME: Producers LPUSH JSON messages, workers BRPOP them
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// pollInterval bounds each BRPOP so Dequeue notices Close promptly
const pollInterval = time.Second

// Redis is a Queue stored in a Redis list
type Redis struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

// NewRedisFromURL connects using a redis:// URL
func NewRedisFromURL(url, key string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), key), nil
}

// NewRedis wraps an existing client; key names the list
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Ping checks connectivity
func (q *Redis) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue pushes a message onto the list
func (q *Redis) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if q.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", msg.JobID, err)
	}
	return nil
}

// Dequeue pops the oldest message, blocking until one is available
func (q *Redis) Dequeue(ctx context.Context) (Message, error) {
	for {
		if q.closed.Load() {
			return Message{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		res, err := q.client.BRPop(ctx, pollInterval, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			return Message{}, fmt.Errorf("failed to dequeue: %w", err)
		}

		// BRPOP returns [key, value]
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, fmt.Errorf("failed to decode message: %w", err)
		}
		return msg, nil
	}
}

// Len returns the number of queued messages
func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops the queue and releases the connection pool
func (q *Redis) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}
