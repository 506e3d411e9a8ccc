package entity

import "time"

type TargetStatus string

const (
	StatusPending       TargetStatus = "pending"
	StatusSuccess       TargetStatus = "success"
	StatusSizeExceeded  TargetStatus = "size-exceeded"
	StatusNetworkError  TargetStatus = "network-error"
	StatusFileNotFound  TargetStatus = "file-not-found"
	StatusUncaughtError TargetStatus = "uncaught-error"
)

// Terminal reports whether a target in this status will never change again.
func (s TargetStatus) Terminal() bool {
	return s != StatusPending
}

// Failed reports whether the status is one of the failure kinds.
func (s TargetStatus) Failed() bool {
	return s.Terminal() && s != StatusSuccess
}

// ArchiveTarget is the archival state of a single addon (or of one revision
// of a dual-revision addon) attached to the source node.
type ArchiveTarget struct {
	Name   string       `json:"name"`
	Status TargetStatus `json:"status"`
	Errors []string     `json:"errors,omitempty"`
}

// ArchiveJob tracks one source -> destination archival operation. The target
// set is snapshotted at creation; later addon changes on the source node do
// not affect a job in flight.
type ArchiveJob struct {
	ID          string          `json:"id"`
	SrcNodeID   string          `json:"src_node_id"`
	DstNodeID   string          `json:"dst_node_id"`
	InitiatorID string          `json:"initiator_id"`
	Targets     []ArchiveTarget `json:"targets"`
	Done        bool            `json:"done"`
	Sent        bool            `json:"sent"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Target returns the target with the given name, or nil.
func (j *ArchiveJob) Target(name string) *ArchiveTarget {
	for i := range j.Targets {
		if j.Targets[i].Name == name {
			return &j.Targets[i]
		}
	}

	return nil
}

// Status derives the aggregate job status from per-target statuses: the first
// failure kind wins, then pending while any target is unresolved, success
// once every target has succeeded. A job whose Done flag is set but carries
// no targets is an empty registration that succeeded trivially.
func (j *ArchiveJob) Status() TargetStatus {
	if len(j.Targets) == 0 {
		if j.Done {
			return StatusSuccess
		}

		return StatusPending
	}

	for _, t := range j.Targets {
		if t.Status.Failed() {
			return t.Status
		}
	}

	for _, t := range j.Targets {
		if !t.Status.Terminal() {
			return StatusPending
		}
	}

	return StatusSuccess
}

// TargetInfo is the per-target error summary attached to failure
// notifications.
type TargetInfo struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

func (j *ArchiveJob) TargetInfo() []TargetInfo {
	infos := make([]TargetInfo, 0, len(j.Targets))
	for _, t := range j.Targets {
		infos = append(infos, TargetInfo{
			Name:   t.Name,
			Status: string(t.Status),
			Errors: t.Errors,
		})
	}

	return infos
}
