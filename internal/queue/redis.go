package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKey         = "aj:queue"
	defaultPopInterval = time.Second
)

type redisQueue struct {
	cl          *redis.Client
	key         string
	popInterval time.Duration
	log         *slog.Logger
}

// NewRedisQueue returns a queue backed by a single Redis list: RPUSH to
// publish, BLPOP to consume. Workers on any process share the list, which is
// what gives the pipeline its fan-out. The pop interval bounds how long a
// worker blocks before rechecking its context.
func NewRedisQueue(cl *redis.Client, popInterval time.Duration, log *slog.Logger) *redisQueue {
	if popInterval <= 0 {
		popInterval = defaultPopInterval
	}

	return &redisQueue{
		cl:          cl,
		key:         defaultKey,
		popInterval: popInterval,
		log:         log.With(slog.String("item", "RedisQueue")),
	}
}

func (q *redisQueue) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cannot marshal message: %w", err)
	}

	if err := q.cl.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("cannot publish %s message: %w", msg.Kind, err)
	}

	q.log.Debug("Published message",
		slog.String("kind", string(msg.Kind)),
		slog.String("job_id", msg.JobID),
		slog.String("target", msg.Target),
	)

	return nil
}

func (q *redisQueue) Next(ctx context.Context) (Message, error) {
	for {
		res, err := q.cl.BLPop(ctx, q.popInterval, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				select {
				case <-ctx.Done():
					return Message{}, ctx.Err()
				default:
					continue
				}
			}

			return Message{}, fmt.Errorf("cannot pop message: %w", err)
		}

		// BLPOP returns [key, value].
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.Error("Cannot unmarshal message, dropping", slog.Any("error", err))

			continue
		}

		return msg, nil
	}
}
