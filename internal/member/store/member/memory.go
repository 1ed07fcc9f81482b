package member

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	"policardmed/pkg/platform/sentinel"
)

// InMemory is a process-local member store. cpf is unique per store, which
// mirrors the unique index of the database-backed stores.
type InMemory struct {
	mu      sync.RWMutex
	members map[id.MemberID]*models.Member
	order   []id.MemberID
	byCPF   map[string]id.MemberID
	hub     *broadcaster
}

func NewInMemory() *InMemory {
	return &InMemory{
		members: make(map[id.MemberID]*models.Member),
		byCPF:   make(map[string]id.MemberID),
		hub:     newBroadcaster(),
	}
}

func (s *InMemory) Insert(_ context.Context, m *models.Member) (id.MemberID, error) {
	if m == nil {
		return "", sentinel.ErrInvalidState
	}
	s.mu.Lock()
	if _, taken := s.byCPF[m.CPF]; taken {
		s.mu.Unlock()
		return "", sentinel.ErrConflict
	}
	memberID := id.MemberID(uuid.NewString())
	stored := m.Clone()
	stored.ID = memberID
	s.members[memberID] = stored
	s.order = append(s.order, memberID)
	s.byCPF[stored.CPF] = memberID
	s.hub.publish(s.snapshotLocked())
	s.mu.Unlock()
	return memberID, nil
}

func (s *InMemory) FindByID(_ context.Context, memberID id.MemberID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemory) FindByCPF(_ context.Context, cpf string) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Member, 0, 1)
	if memberID, ok := s.byCPF[cpf]; ok {
		out = append(out, s.members[memberID].Clone())
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *InMemory) Patch(_ context.Context, memberID id.MemberID, patch models.Patch) error {
	s.mu.Lock()
	m, ok := s.members[memberID]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	m.Apply(patch)
	s.hub.publish(s.snapshotLocked())
	s.mu.Unlock()
	return nil
}

// Subscribe delivers the current collection immediately and again after every
// write. A slow subscriber only ever sees the latest snapshot.
func (s *InMemory) Subscribe(ctx context.Context) (<-chan models.Snapshot, error) {
	s.mu.RLock()
	initial := s.snapshotLocked()
	ch := s.hub.add(ctx, initial)
	s.mu.RUnlock()
	return ch, nil
}

func (s *InMemory) snapshotLocked() []*models.Member {
	out := make([]*models.Member, 0, len(s.order))
	for _, memberID := range s.order {
		out = append(out, s.members[memberID].Clone())
	}
	return out
}
