package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vodworks/internal/model"
)

// Queue is the redis list carrying pending job descriptors. Producers
// push to the tail; workers pop from the head, so descriptors are
// delivered in submission order.
type Queue struct {
	rdb *redis.Client
	key string
}

func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

// Enqueue appends the descriptor to the queue.
func (q *Queue) Enqueue(ctx context.Context, req model.JobRequest) error {
	req.EnqueuedAt = time.Now().UTC()
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal job descriptor: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next descriptor. It returns
// (zero, false, nil) when the timeout elapses with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (model.JobRequest, bool, error) {
	vals, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.JobRequest{}, false, nil
		}
		return model.JobRequest{}, false, err
	}
	// BLPOP returns [key, value].
	var req model.JobRequest
	if err := json.Unmarshal([]byte(vals[1]), &req); err != nil {
		return model.JobRequest{}, false, fmt.Errorf("unmarshal job descriptor: %w", err)
	}
	return req, true, nil
}

// Len reports the number of descriptors waiting in the queue.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
