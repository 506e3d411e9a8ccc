// Package queue carries the archiver's stage messages. Every pipeline stage
// is an independently schedulable unit of work: a worker consumes one
// message, runs the stage, and publishes follow-on messages. Messages are
// delivered at most once and never retried; a stage failure is routed to the
// failure handler instead.
package queue

import "context"

type Kind string

const (
	KindStatAddon      Kind = "stat_addon"
	KindArchiveNode    Kind = "archive_node"
	KindArchiveAddon   Kind = "archive_addon"
	KindArchiveSuccess Kind = "archive_success"
)

// Message is one unit of pipeline work. Target is set for the per-addon
// stages (stat_addon, archive_addon) and empty for the job-wide ones.
type Message struct {
	Kind   Kind   `json:"kind"`
	JobID  string `json:"job_id"`
	Target string `json:"target,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Consumer interface {
	// Next blocks until a message is available or the context is done.
	Next(ctx context.Context) (Message, error)
}
