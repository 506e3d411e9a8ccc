// Package job persists ArchiveJob records and the small amount of shared
// pipeline state that goes with them: the stat fan-in barrier and the stash
// of stat results handed from the stat stage to the size gate.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

const (
	KeyJob     = "aj:job"
	KeyBarrier = "aj:barrier"
	KeyStats   = "aj:stats"
	KeySent    = "aj:sent"

	KeySeparator = ":"
)

type redisRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewRedisRepository(cl *redis.Client, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:  cl,
		log: log.With(slog.String("item", "JobRepository")),
	}
}

func (r *redisRepository) Save(ctx context.Context, j *entity.ArchiveJob) error {
	j.UpdatedAt = time.Now()

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("cannot marshal job: %w", err)
	}

	if err := r.cl.Set(ctx, getKey(KeyJob, j.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("cannot save job %s: %w", j.ID, err)
	}

	return nil
}

func (r *redisRepository) Get(ctx context.Context, id string) (*entity.ArchiveJob, error) {
	data, err := r.cl.Get(ctx, getKey(KeyJob, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrJobNotFoundError
		}

		return nil, fmt.Errorf("cannot get job %s: %w", id, err)
	}

	var j entity.ArchiveJob
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("cannot unmarshal job %s: %w", id, err)
	}

	return &j, nil
}

// UpdateTarget moves one target to a terminal status. Transitions are
// monotonic: a target that already reached a terminal status is left as is
// and ErrStatusNotPendingError is returned.
func (r *redisRepository) UpdateTarget(ctx context.Context, jobID, target string, status entity.TargetStatus, errs []string) (*entity.ArchiveJob, error) {
	key := getKey(KeyJob, jobID)

	var updated *entity.ArchiveJob
	err := r.cl.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrJobNotFoundError
			}

			return err
		}

		var j entity.ArchiveJob
		if err := json.Unmarshal([]byte(data), &j); err != nil {
			return fmt.Errorf("cannot unmarshal job %s: %w", jobID, err)
		}

		t := j.Target(target)
		if t == nil {
			return common.ErrTargetNotFoundError
		}
		if t.Status.Terminal() {
			return common.ErrStatusNotPendingError
		}

		t.Status = status
		t.Errors = errs
		j.UpdatedAt = time.Now()

		out, err := json.Marshal(&j)
		if err != nil {
			return fmt.Errorf("cannot marshal job %s: %w", jobID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)

			return nil
		})
		if err != nil {
			return err
		}

		updated = &j

		return nil
	}, key)
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MarkDone records that a job with no remaining work completed.
func (r *redisRepository) MarkDone(ctx context.Context, jobID string) error {
	j, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}

	j.Done = true

	return r.Save(ctx, j)
}

// MarkSent claims the finalization of a job. It returns false when another
// invocation already claimed it, which is what keeps duplicate completion
// signals from re-notifying the approval subsystem.
func (r *redisRepository) MarkSent(ctx context.Context, jobID string) (bool, error) {
	ok, err := r.cl.SetNX(ctx, getKey(KeySent, jobID), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("cannot mark job %s sent: %w", jobID, err)
	}
	if !ok {
		return false, nil
	}

	j, err := r.Get(ctx, jobID)
	if err != nil {
		return false, err
	}

	j.Sent = true
	if err := r.Save(ctx, j); err != nil {
		return false, err
	}

	return true, nil
}

// InitBarrier arms the stat fan-in barrier with the number of stat tasks the
// orchestrator fanned out.
func (r *redisRepository) InitBarrier(ctx context.Context, jobID string, n int) error {
	if err := r.cl.Set(ctx, getKey(KeyBarrier, jobID), n, 0).Err(); err != nil {
		return fmt.Errorf("cannot init barrier for job %s: %w", jobID, err)
	}

	return nil
}

// LowerBarrier is called once per finished stat task, successful or not, and
// returns the number of stat tasks still outstanding. The caller that
// observes zero schedules the next stage.
func (r *redisRepository) LowerBarrier(ctx context.Context, jobID string) (int64, error) {
	left, err := r.cl.Decr(ctx, getKey(KeyBarrier, jobID)).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot lower barrier for job %s: %w", jobID, err)
	}

	return left, nil
}

func (r *redisRepository) PushStatResult(ctx context.Context, jobID string, res *entity.AggregateStatResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cannot marshal stat result: %w", err)
	}

	if err := r.cl.RPush(ctx, getKey(KeyStats, jobID), data).Err(); err != nil {
		return fmt.Errorf("cannot push stat result for job %s: %w", jobID, err)
	}

	return nil
}

func (r *redisRepository) StatResults(ctx context.Context, jobID string) ([]*entity.AggregateStatResult, error) {
	items, err := r.cl.LRange(ctx, getKey(KeyStats, jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get stat results for job %s: %w", jobID, err)
	}

	results := make([]*entity.AggregateStatResult, 0, len(items))
	for _, item := range items {
		var res entity.AggregateStatResult
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			return nil, fmt.Errorf("cannot unmarshal stat result: %w", err)
		}

		results = append(results, &res)
	}

	return results, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
