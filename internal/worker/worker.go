// Package worker runs the archiver's stage messages on a pool of
// goroutines. Each worker owns no state of its own; everything it needs is
// in the handler it is given once at startup, so the execution context is
// acquired per process, not per task.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/regarchive/internal/queue"
)

const retryDelay = time.Second

// Handler is the set of pipeline stages a worker can dispatch to.
type Handler interface {
	StatAddon(ctx context.Context, jobID, target string) error
	ArchiveNode(ctx context.Context, jobID string) error
	ArchiveAddon(ctx context.Context, jobID, target string) error
	ArchiveSuccess(ctx context.Context, jobID string) error
	HandleFailure(ctx context.Context, jobID string, cause error)
}

type Pool struct {
	consumer queue.Consumer
	handler  Handler
	workers  int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewPool(consumer queue.Consumer, handler Handler, workers int, log *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}

	return &Pool{
		consumer: consumer,
		handler:  handler,
		workers:  workers,
		log:      log.With(slog.String("item", "WorkerPool")),
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(p.workers)
	for n := 0; n < p.workers; n++ {
		go p.worker(ctx, n)
	}
}

func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, n int) {
	defer p.wg.Done()

	log := p.log.With(slog.Int("worker_id", n))
	log.Info("Started")

	for {
		msg, err := p.consumer.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("Done")

				return
			}

			log.Error("Cannot get next message", slog.Any("error", err))
			time.Sleep(retryDelay)

			continue
		}

		p.dispatch(ctx, msg, log)
	}
}

// dispatch runs one stage. A stage error is routed to the failure handler,
// never retried: the message is already consumed, and the failure handler is
// the only error path the pipeline has.
func (p *Pool) dispatch(ctx context.Context, msg queue.Message, log *slog.Logger) {
	log.Debug("Dispatching message",
		slog.String("kind", string(msg.Kind)),
		slog.String("job_id", msg.JobID),
		slog.String("target", msg.Target),
	)

	var err error
	switch msg.Kind {
	case queue.KindStatAddon:
		err = p.handler.StatAddon(ctx, msg.JobID, msg.Target)
	case queue.KindArchiveNode:
		err = p.handler.ArchiveNode(ctx, msg.JobID)
	case queue.KindArchiveAddon:
		err = p.handler.ArchiveAddon(ctx, msg.JobID, msg.Target)
	case queue.KindArchiveSuccess:
		err = p.handler.ArchiveSuccess(ctx, msg.JobID)
	default:
		err = fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	if err != nil {
		p.handler.HandleFailure(ctx, msg.JobID, err)
	}
}
