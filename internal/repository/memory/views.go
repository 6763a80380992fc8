package memory

import (
	"context"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
)

// Typed views over the shared store, one per repository interface.

func (s *Store) Users() repository.UserRepository             { return userStore{s} }
func (s *Store) Clients() repository.ClientRepository         { return clientStore{s} }
func (s *Store) KeyPackages() repository.KeyPackageRepository { return keyPackageStore{s} }
func (s *Store) Groups() repository.GroupRepository           { return groupStore{s} }
func (s *Store) Memberships() repository.MembershipRepository { return membershipStore{s} }
func (s *Store) Messages() repository.MessageRepository       { return messageStore{s} }

type userStore struct{ s *Store }

func (v userStore) Create(ctx context.Context, u *domain.User) error { return v.s.CreateUser(ctx, u) }
func (v userStore) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return v.s.GetUserByID(ctx, id)
}
func (v userStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return v.s.DeactivateUser(ctx, id)
}

type clientStore struct{ s *Store }

func (v clientStore) Create(ctx context.Context, c *domain.Client) error {
	return v.s.CreateClient(ctx, c)
}
func (v clientStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	return v.s.GetClientByID(ctx, id)
}
func (v clientStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	return v.s.ListClientsByUser(ctx, userID)
}
func (v clientStore) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	return v.s.TouchLastSeen(ctx, id)
}

type keyPackageStore struct{ s *Store }

func (v keyPackageStore) Create(ctx context.Context, kp *domain.KeyPackage) error {
	return v.s.CreateKeyPackage(ctx, kp)
}
func (v keyPackageStore) GetByID(ctx context.Context, id uuid.UUID) (domain.KeyPackage, error) {
	return v.s.GetKeyPackageByID(ctx, id)
}
func (v keyPackageStore) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.KeyPackage, error) {
	return v.s.ListKeyPackagesByClient(ctx, clientID)
}
func (v keyPackageStore) Reserve(ctx context.Context, id uuid.UUID) ([]byte, error) {
	return v.s.Reserve(ctx, id)
}

type groupStore struct{ s *Store }

func (v groupStore) CreateWithAdmin(ctx context.Context, g *domain.Group, creator *domain.Membership) error {
	return v.s.CreateWithAdmin(ctx, g, creator)
}
func (v groupStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return v.s.GetGroupByID(ctx, id)
}
func (v groupStore) ListByMember(ctx context.Context, clientID uuid.UUID) ([]domain.Group, error) {
	return v.s.ListByMember(ctx, clientID)
}
func (v groupStore) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	return v.s.ListByCreator(ctx, creatorID)
}
func (v groupStore) AdvanceEpoch(ctx context.Context, groupID uuid.UUID, expectedEpoch uint64, newState []byte) (uint64, error) {
	return v.s.AdvanceEpoch(ctx, groupID, expectedEpoch, newState)
}
func (v groupStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return v.s.DeactivateGroup(ctx, id)
}

type membershipStore struct{ s *Store }

func (v membershipStore) AddWithEpoch(ctx context.Context, m *domain.Membership, keyPackageID *uuid.UUID) error {
	return v.s.AddWithEpoch(ctx, m, keyPackageID)
}
func (v membershipStore) RemoveWithEpoch(ctx context.Context, membershipID uuid.UUID) (domain.Membership, error) {
	return v.s.RemoveWithEpoch(ctx, membershipID)
}
func (v membershipStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	return v.s.GetMembershipByID(ctx, id)
}
func (v membershipStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	return v.s.ListByGroup(ctx, groupID)
}
func (v membershipStore) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Membership, error) {
	return v.s.ListByClient(ctx, clientID)
}
func (v membershipStore) ActiveRecipients(ctx context.Context, groupID uuid.UUID, asOfEpoch uint64) ([]uuid.UUID, error) {
	return v.s.ActiveRecipients(ctx, groupID, asOfEpoch)
}
func (v membershipStore) HasActive(ctx context.Context, groupID, clientID uuid.UUID) (bool, error) {
	return v.s.HasActive(ctx, groupID, clientID)
}

type messageStore struct{ s *Store }

func (v messageStore) Store(ctx context.Context, m *domain.Message) error {
	return v.s.StoreMessage(ctx, m)
}
func (v messageStore) FetchForClient(ctx context.Context, clientID uuid.UUID, groupID *uuid.UUID, includeRead bool) ([]domain.Message, error) {
	return v.s.FetchForClient(ctx, clientID, groupID, includeRead)
}
func (v messageStore) MarkRead(ctx context.Context, clientID uuid.UUID, messageIDs []uuid.UUID) error {
	return v.s.MarkRead(ctx, clientID, messageIDs)
}
