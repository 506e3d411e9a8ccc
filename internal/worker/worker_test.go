package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jgivc/regarchive/internal/queue"
)

type fakeConsumer struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (c *fakeConsumer) Next(ctx context.Context) (queue.Message, error) {
	c.mu.Lock()
	if len(c.msgs) > 0 {
		msg := c.msgs[0]
		c.msgs = c.msgs[1:]
		c.mu.Unlock()

		return msg, nil
	}
	c.mu.Unlock()

	<-ctx.Done()

	return queue.Message{}, ctx.Err()
}

type call struct {
	kind   queue.Kind
	jobID  string
	target string
}

type fakeHandler struct {
	mu       sync.Mutex
	calls    []call
	failures []string
	statErr  error
}

func (h *fakeHandler) record(c call) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, c)
}

func (h *fakeHandler) StatAddon(_ context.Context, jobID, target string) error {
	h.record(call{queue.KindStatAddon, jobID, target})

	return h.statErr
}

func (h *fakeHandler) ArchiveNode(_ context.Context, jobID string) error {
	h.record(call{queue.KindArchiveNode, jobID, ""})

	return nil
}

func (h *fakeHandler) ArchiveAddon(_ context.Context, jobID, target string) error {
	h.record(call{queue.KindArchiveAddon, jobID, target})

	return nil
}

func (h *fakeHandler) ArchiveSuccess(_ context.Context, jobID string) error {
	h.record(call{queue.KindArchiveSuccess, jobID, ""})

	return nil
}

func (h *fakeHandler) HandleFailure(_ context.Context, jobID string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures = append(h.failures, jobID)
}

func runPool(t *testing.T, consumer *fakeConsumer, handler *fakeHandler, workers int) {
	t.Helper()

	pool := NewPool(consumer, handler, workers, slog.New(slog.DiscardHandler))
	pool.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		consumer.mu.Lock()
		empty := len(consumer.msgs) == 0
		consumer.mu.Unlock()
		if empty {
			break
		}

		select {
		case <-deadline:
			t.Fatal("queue not drained")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Give in-flight handlers a moment to return before stopping.
	time.Sleep(50 * time.Millisecond)
	pool.Stop()
}

func TestPoolDispatch(t *testing.T) {
	consumer := &fakeConsumer{msgs: []queue.Message{
		{Kind: queue.KindStatAddon, JobID: "j1", Target: "github"},
		{Kind: queue.KindArchiveNode, JobID: "j1"},
		{Kind: queue.KindArchiveAddon, JobID: "j1", Target: "github"},
		{Kind: queue.KindArchiveSuccess, JobID: "j1"},
	}}
	handler := &fakeHandler{}

	runPool(t, consumer, handler, 1)

	assert.Equal(t, []call{
		{queue.KindStatAddon, "j1", "github"},
		{queue.KindArchiveNode, "j1", ""},
		{queue.KindArchiveAddon, "j1", "github"},
		{queue.KindArchiveSuccess, "j1", ""},
	}, handler.calls)
	assert.Empty(t, handler.failures)
}

func TestPoolRoutesErrorsToFailureHandler(t *testing.T) {
	consumer := &fakeConsumer{msgs: []queue.Message{
		{Kind: queue.KindStatAddon, JobID: "j1", Target: "github"},
		{Kind: "bogus", JobID: "j2"},
	}}
	handler := &fakeHandler{statErr: errors.New("boom")}

	runPool(t, consumer, handler, 2)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.ElementsMatch(t, []string{"j1", "j2"}, handler.failures)
}
