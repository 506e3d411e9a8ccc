package common

import (
	"fmt"

	"github.com/jgivc/regarchive/internal/entity"
)

var (
	ErrJobNotFoundError      = fmt.Errorf("archive job not found")
	ErrNodeNotFoundError     = fmt.Errorf("node not found")
	ErrUserNotFoundError     = fmt.Errorf("user not found")
	ErrTargetNotFoundError   = fmt.Errorf("archive target not found")
	ErrStatusNotPendingError = fmt.Errorf("target status is already terminal")
)

// SizeExceededError aborts a job whose aggregate disk usage is over the
// configured ceiling. Result keeps the full stat tree so the user can be
// told which folders are large.
type SizeExceededError struct {
	Usage  int64
	Limit  int64
	Result *entity.AggregateStatResult
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("archive size %d exceeds limit %d", e.Usage, e.Limit)
}

// NetworkError marks a remote addon or the file-copy service as unreachable
// or answering with an error status.
type NetworkError struct {
	Target     string
	StatusCode int
	Errs       []string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote service error for target %s (status %d)", e.Target, e.StatusCode)
}

// FileNotFoundError marks a registration file reference that could not be
// matched against the archived copy during finalization.
type FileNotFoundError struct {
	FileName string
	NodeID   string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("archived file %q from node %s not found", e.FileName, e.NodeID)
}

// StateError reports an unrecoverable inconsistency, such as a stage message
// referencing a job that no longer exists.
type StateError struct {
	Info string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("archiver state error: %s: %v", e.Info, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}
