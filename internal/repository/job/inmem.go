package job

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

// InmemRepository keeps jobs in process memory. It backs the test suite and
// single-process deployments that do not need a durable store.
type InmemRepository struct {
	mu       sync.Mutex
	jobs     map[string]*entity.ArchiveJob
	barriers map[string]int64
	stats    map[string][]*entity.AggregateStatResult
	sent     map[string]struct{}
}

func NewInmemRepository() *InmemRepository {
	return &InmemRepository{
		jobs:     make(map[string]*entity.ArchiveJob),
		barriers: make(map[string]int64),
		stats:    make(map[string][]*entity.AggregateStatResult),
		sent:     make(map[string]struct{}),
	}
}

func (r *InmemRepository) Save(_ context.Context, j *entity.ArchiveJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j.UpdatedAt = time.Now()
	r.jobs[j.ID] = clone(j)

	return nil
}

func (r *InmemRepository) Get(_ context.Context, id string) (*entity.ArchiveJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrJobNotFoundError
	}

	return clone(j), nil
}

func (r *InmemRepository) UpdateTarget(_ context.Context, jobID, target string, status entity.TargetStatus, errs []string) (*entity.ArchiveJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, common.ErrJobNotFoundError
	}

	t := j.Target(target)
	if t == nil {
		return nil, common.ErrTargetNotFoundError
	}
	if t.Status.Terminal() {
		return nil, common.ErrStatusNotPendingError
	}

	t.Status = status
	t.Errors = errs
	j.UpdatedAt = time.Now()

	return clone(j), nil
}

func (r *InmemRepository) MarkDone(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return common.ErrJobNotFoundError
	}

	j.Done = true
	j.UpdatedAt = time.Now()

	return nil
}

func (r *InmemRepository) MarkSent(_ context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return false, common.ErrJobNotFoundError
	}

	if _, claimed := r.sent[jobID]; claimed {
		return false, nil
	}

	r.sent[jobID] = struct{}{}
	j.Sent = true
	j.UpdatedAt = time.Now()

	return true, nil
}

func (r *InmemRepository) InitBarrier(_ context.Context, jobID string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.barriers[jobID] = int64(n)

	return nil
}

func (r *InmemRepository) LowerBarrier(_ context.Context, jobID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.barriers[jobID]--

	return r.barriers[jobID], nil
}

func (r *InmemRepository) PushStatResult(_ context.Context, jobID string, res *entity.AggregateStatResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats[jobID] = append(r.stats[jobID], res)

	return nil
}

func (r *InmemRepository) StatResults(_ context.Context, jobID string) ([]*entity.AggregateStatResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]*entity.AggregateStatResult, len(r.stats[jobID]))
	copy(results, r.stats[jobID])

	return results, nil
}

func clone(j *entity.ArchiveJob) *entity.ArchiveJob {
	data, _ := json.Marshal(j)

	var out entity.ArchiveJob
	_ = json.Unmarshal(data, &out)

	return &out
}
