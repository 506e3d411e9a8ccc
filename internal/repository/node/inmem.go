// Package node holds the archiver's view of the surrounding platform's node
// graph. The real document store lives in the web application; this package
// provides the in-memory implementation used by tests and single-process
// deployments, seeded over the HTTP surface.
package node

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

type SanctionState string

const (
	SanctionStatePending  SanctionState = "pending"
	SanctionStateAsked    SanctionState = "asked"
	SanctionStateRejected SanctionState = "rejected"
)

// SanctionRecord is the approval workflow object gating one registration.
type SanctionRecord struct {
	State    SanctionState
	Audience []entity.Contributor
	AskCount int
}

type InmemStore struct {
	mu        sync.RWMutex
	nodes     map[string]*entity.Node
	users     map[string]*entity.User
	sanctions map[string]*SanctionRecord
	log       *slog.Logger
}

func NewInmemStore(log *slog.Logger) *InmemStore {
	return &InmemStore{
		nodes:     make(map[string]*entity.Node),
		users:     make(map[string]*entity.User),
		sanctions: make(map[string]*SanctionRecord),
		log:       log.With(slog.String("item", "NodeStore")),
	}
}

func (s *InmemStore) Node(_ context.Context, id string) (*entity.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, common.ErrNodeNotFoundError
	}

	return cloneNode(n), nil
}

func (s *InmemStore) Save(_ context.Context, n *entity.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[n.ID] = cloneNode(n)
	if _, ok := s.sanctions[n.ID]; !ok {
		s.sanctions[n.ID] = &SanctionRecord{State: SanctionStatePending}
	}

	return nil
}

func (s *InmemStore) Children(_ context.Context, id string) ([]*entity.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*entity.Node
	for _, n := range s.nodes {
		if n.ParentID == id {
			children = append(children, cloneNode(n))
		}
	}

	return children, nil
}

func (s *InmemStore) User(_ context.Context, id string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrUserNotFoundError
	}

	cp := *u

	return &cp, nil
}

func (s *InmemStore) SaveUser(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.ID] = &cp

	return nil
}

// LinkAddon attaches an addon to a node if it is not attached yet.
func (s *InmemStore) LinkAddon(_ context.Context, nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return common.ErrNodeNotFoundError
	}

	if !n.HasAddon(name) {
		n.Addons = append(n.Addons, name)
	}

	return nil
}

// DeleteRegistrationTree removes a registration node and all of its
// descendants. This is the failure-path rollback: a failed archive must
// leave no partially populated registration behind.
func (s *InmemStore) DeleteRegistrationTree(_ context.Context, rootID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[rootID]; !ok {
		return common.ErrNodeNotFoundError
	}

	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, n := range s.nodes {
			if n.ParentID == id {
				stack = append(stack, n.ID)
			}
		}

		delete(s.nodes, id)
		delete(s.sanctions, id)

		s.log.Info("Deleted registration node", slog.String("node_id", id))
	}

	return nil
}

func (s *InmemStore) Sanction(_ context.Context, nodeID string) (*SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sanctions[nodeID]
	if !ok {
		return nil, common.ErrNodeNotFoundError
	}

	cp := *rec

	return &cp, nil
}

// AskSanction notifies the approval workflow, recording its audience.
func (s *InmemStore) AskSanction(_ context.Context, nodeID string, audience []entity.Contributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sanctions[nodeID]
	if !ok {
		return common.ErrNodeNotFoundError
	}

	rec.State = SanctionStateAsked
	rec.Audience = audience
	rec.AskCount++

	s.log.Info("Sanction asked", slog.String("node_id", nodeID), slog.Int("audience", len(audience)))

	return nil
}

// RejectSanction forcibly rejects the pending approval on the failure path.
func (s *InmemStore) RejectSanction(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sanctions[nodeID]
	if !ok {
		return common.ErrNodeNotFoundError
	}

	rec.State = SanctionStateRejected

	return nil
}

func cloneNode(n *entity.Node) *entity.Node {
	data, _ := json.Marshal(n)

	var out entity.Node
	_ = json.Unmarshal(data, &out)

	return &out
}
