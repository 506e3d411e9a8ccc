package archiver

import (
	"sync"

	"github.com/jgivc/regarchive/internal/entity"
)

type SuccessFunc func(jobID string)

type FailureFunc func(jobID string, kind entity.TargetStatus, payload any)

// Signals is the in-process registry the surrounding application subscribes
// to for archive outcomes.
type Signals struct {
	mu      sync.RWMutex
	success []SuccessFunc
	failure []FailureFunc
}

func NewSignals() *Signals {
	return &Signals{}
}

func (s *Signals) OnSuccess(f SuccessFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.success = append(s.success, f)
}

func (s *Signals) OnFailure(f FailureFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failure = append(s.failure, f)
}

func (s *Signals) emitSuccess(jobID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.success {
		f(jobID)
	}
}

func (s *Signals) emitFailure(jobID string, kind entity.TargetStatus, payload any) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.failure {
		f(jobID, kind, payload)
	}
}
