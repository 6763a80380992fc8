// Package memory provides an in-memory implementation of the repository
// interfaces with the same atomicity semantics as the Postgres
// implementation. It backs the service tests and is not used in production.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

type storedMessage struct {
	domain.Message
	seq uint64
}

// Store holds every table behind one mutex, so each operation is atomic the
// same way a single database transaction is.
type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]domain.User
	clients     map[uuid.UUID]domain.Client
	keyPackages map[uuid.UUID]domain.KeyPackage
	groups      map[uuid.UUID]domain.Group
	memberships map[uuid.UUID]domain.Membership
	messages    map[uuid.UUID]storedMessage
	reads       map[uuid.UUID]map[uuid.UUID]time.Time

	seq uint64
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]domain.User),
		clients:     make(map[uuid.UUID]domain.Client),
		keyPackages: make(map[uuid.UUID]domain.KeyPackage),
		groups:      make(map[uuid.UUID]domain.Group),
		memberships: make(map[uuid.UUID]domain.Membership),
		messages:    make(map[uuid.UUID]storedMessage),
		reads:       make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return mls_errors.ErrConflict
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, mls_errors.ErrNotFound
	}
	return u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return mls_errors.ErrNotFound
	}
	u.IsActive = false
	s.users[id] = u
	return nil
}

// Clients

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[c.UserID]; !ok {
		return mls_errors.ErrNotFound
	}
	if _, ok := s.clients[c.ID]; ok {
		return mls_errors.ErrConflict
	}
	s.clients[c.ID] = *c
	return nil
}

func (s *Store) GetClientByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return domain.Client{}, mls_errors.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListClientsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var clients []domain.Client
	for _, c := range s.clients {
		if c.UserID == userID {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return mls_errors.ErrNotFound
	}
	c.LastSeen = time.Now().UTC()
	s.clients[id] = c
	return nil
}

// Key packages

func (s *Store) CreateKeyPackage(ctx context.Context, kp *domain.KeyPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[kp.ClientID]; !ok {
		return mls_errors.ErrNotFound
	}
	s.keyPackages[kp.ID] = *kp
	return nil
}

func (s *Store) GetKeyPackageByID(ctx context.Context, id uuid.UUID) (domain.KeyPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kp, ok := s.keyPackages[id]
	if !ok {
		return domain.KeyPackage{}, mls_errors.ErrNotFound
	}
	return kp, nil
}

func (s *Store) ListKeyPackagesByClient(ctx context.Context, clientID uuid.UUID) ([]domain.KeyPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kps []domain.KeyPackage
	for _, kp := range s.keyPackages {
		if kp.ClientID == clientID {
			kps = append(kps, kp)
		}
	}
	sort.Slice(kps, func(i, j int) bool {
		return kps[i].CreatedAt.After(kps[j].CreatedAt)
	})
	return kps, nil
}

func (s *Store) Reserve(ctx context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserveLocked(id)
}

func (s *Store) reserveLocked(id uuid.UUID) ([]byte, error) {
	kp, ok := s.keyPackages[id]
	if !ok {
		return nil, mls_errors.ErrNotFound
	}
	if kp.Used {
		return nil, mls_errors.ErrConflict
	}
	kp.Used = true
	s.keyPackages[id] = kp
	return kp.Data, nil
}

// Groups

func (s *Store) CreateWithAdmin(ctx context.Context, g *domain.Group, creator *domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[g.CreatorID]; !ok {
		return mls_errors.ErrNotFound
	}
	if _, ok := s.groups[g.ID]; ok {
		return mls_errors.ErrConflict
	}
	s.groups[g.ID] = *g
	s.memberships[creator.ID] = *creator
	return nil
}

func (s *Store) GetGroupByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.Group{}, mls_errors.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListByMember(ctx context.Context, clientID uuid.UUID) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []domain.Group
	for _, m := range s.memberships {
		if m.ClientID != clientID || m.RemovedAt != nil {
			continue
		}
		if g, ok := s.groups[m.GroupID]; ok && g.IsActive {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
	})
	return groups, nil
}

func (s *Store) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []domain.Group
	for _, g := range s.groups {
		if g.CreatorID == creatorID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
	})
	return groups, nil
}

func (s *Store) AdvanceEpoch(ctx context.Context, groupID uuid.UUID, expectedEpoch uint64, newState []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return 0, mls_errors.ErrNotFound
	}
	if !g.IsActive {
		return 0, mls_errors.ErrInvalidState
	}
	if g.Epoch != expectedEpoch {
		return 0, mls_errors.ErrConflict
	}
	g.Epoch++
	g.State = newState
	g.UpdatedAt = time.Now().UTC()
	s.groups[groupID] = g
	return g.Epoch, nil
}

func (s *Store) DeactivateGroup(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return mls_errors.ErrNotFound
	}
	g.IsActive = false
	g.UpdatedAt = time.Now().UTC()
	s.groups[id] = g
	return nil
}

// Memberships

func (s *Store) AddWithEpoch(ctx context.Context, m *domain.Membership, keyPackageID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every leg before mutating anything, mirroring the rollback
	// behavior of the transactional implementation.
	g, ok := s.groups[m.GroupID]
	if !ok {
		return mls_errors.ErrNotFound
	}
	if !g.IsActive {
		return mls_errors.ErrInvalidState
	}
	if _, ok := s.clients[m.ClientID]; !ok {
		return mls_errors.ErrNotFound
	}
	for _, existing := range s.memberships {
		if existing.GroupID == m.GroupID && existing.ClientID == m.ClientID && existing.RemovedAt == nil {
			return mls_errors.ErrConflict
		}
	}
	if keyPackageID != nil {
		kp, ok := s.keyPackages[*keyPackageID]
		if !ok {
			return mls_errors.ErrNotFound
		}
		if kp.Used {
			return mls_errors.ErrConflict
		}
	}

	if keyPackageID != nil {
		if _, err := s.reserveLocked(*keyPackageID); err != nil {
			return err
		}
	}
	g.Epoch++
	g.UpdatedAt = time.Now().UTC()
	s.groups[m.GroupID] = g
	m.AddedEpoch = g.Epoch
	s.memberships[m.ID] = *m
	return nil
}

func (s *Store) RemoveWithEpoch(ctx context.Context, membershipID uuid.UUID) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	if !ok {
		return domain.Membership{}, mls_errors.ErrNotFound
	}
	if m.RemovedAt != nil {
		return domain.Membership{}, mls_errors.ErrConflict
	}
	g, ok := s.groups[m.GroupID]
	if !ok {
		return domain.Membership{}, mls_errors.ErrNotFound
	}
	if !g.IsActive {
		return domain.Membership{}, mls_errors.ErrInvalidState
	}

	g.Epoch++
	g.UpdatedAt = time.Now().UTC()
	s.groups[m.GroupID] = g

	now := time.Now().UTC()
	epoch := g.Epoch
	m.RemovedAt = &now
	m.RemovedEpoch = &epoch
	s.memberships[membershipID] = m
	return m, nil
}

func (s *Store) GetMembershipByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return domain.Membership{}, mls_errors.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var memberships []domain.Membership
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			memberships = append(memberships, m)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].AddedAt.Before(memberships[j].AddedAt)
	})
	return memberships, nil
}

func (s *Store) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var memberships []domain.Membership
	for _, m := range s.memberships {
		if m.ClientID == clientID && m.RemovedAt == nil {
			memberships = append(memberships, m)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].AddedAt.Before(memberships[j].AddedAt)
	})
	return memberships, nil
}

func (s *Store) ActiveRecipients(ctx context.Context, groupID uuid.UUID, asOfEpoch uint64) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recipients []uuid.UUID
	for _, m := range s.memberships {
		if m.GroupID == groupID && m.RemovedAt == nil && m.AddedEpoch <= asOfEpoch {
			recipients = append(recipients, m.ClientID)
		}
	}
	return recipients, nil
}

func (s *Store) HasActive(ctx context.Context, groupID, clientID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasActiveLocked(groupID, clientID), nil
}

func (s *Store) hasActiveLocked(groupID, clientID uuid.UUID) bool {
	for _, m := range s.memberships {
		if m.GroupID == groupID && m.ClientID == clientID && m.RemovedAt == nil {
			return true
		}
	}
	return false
}

// Messages

func (s *Store) StoreMessage(ctx context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[m.GroupID]
	if !ok {
		return mls_errors.ErrNotFound
	}
	if m.Type == domain.MessageTypeCommit && m.Epoch != nil {
		// Re-check the epoch window under the lock: the group may have
		// moved since the caller took its snapshot.
		if !g.IsActive {
			return mls_errors.ErrInvalidState
		}
		if *m.Epoch <= g.Epoch {
			return mls_errors.ErrConflict
		}
		if *m.Epoch > g.Epoch+1 {
			return mls_errors.ErrInvalidState
		}
		for _, existing := range s.messages {
			if existing.Type == domain.MessageTypeCommit &&
				existing.GroupID == m.GroupID &&
				existing.Epoch != nil && *existing.Epoch == *m.Epoch {
				return mls_errors.ErrConflict
			}
		}
	}
	s.seq++
	s.messages[m.ID] = storedMessage{Message: *m, seq: s.seq}
	return nil
}

func (s *Store) FetchForClient(ctx context.Context, clientID uuid.UUID, groupID *uuid.UUID, includeRead bool) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []storedMessage
	for _, m := range s.messages {
		if groupID != nil && m.GroupID != *groupID {
			continue
		}
		if !s.visibleToLocked(m, clientID) {
			continue
		}
		_, read := s.reads[m.ID][clientID]
		if read && !includeRead {
			continue
		}
		m.Read = read
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq < matched[j].seq
	})

	messages := make([]domain.Message, 0, len(matched))
	for _, m := range matched {
		messages = append(messages, m.Message)
	}
	return messages, nil
}

func (s *Store) visibleToLocked(m storedMessage, clientID uuid.UUID) bool {
	if m.SenderID == clientID {
		return true
	}
	switch m.Type {
	case domain.MessageTypeProposal, domain.MessageTypeCommit:
		return s.hasActiveLocked(m.GroupID, clientID)
	case domain.MessageTypeWelcome:
		for _, recipient := range m.Recipients {
			if recipient == clientID {
				return true
			}
		}
	}
	return false
}

func (s *Store) MarkRead(ctx context.Context, clientID uuid.UUID, messageIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range messageIDs {
		if _, ok := s.messages[id]; !ok {
			return mls_errors.ErrNotFound
		}
		if s.reads[id] == nil {
			s.reads[id] = make(map[uuid.UUID]time.Time)
		}
		if _, ok := s.reads[id][clientID]; !ok {
			s.reads[id][clientID] = now
		}
	}
	return nil
}
