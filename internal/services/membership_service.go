package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
)

type MembershipService struct {
	repo    repository.MembershipRepository
	groups  repository.GroupRepository
	clients repository.ClientRepository
}

func NewMembershipService(repo repository.MembershipRepository, groups repository.GroupRepository, clients repository.ClientRepository) *MembershipService {
	return &MembershipService{repo: repo, groups: groups, clients: clients}
}

// AddMember enrolls a client in a group and advances the group epoch by one,
// as a single unit. When keyPackageID is given the referenced key package is
// reserved in the same unit, so a join never half-happens: either the
// membership exists, the epoch moved, and the key package is spent, or none
// of it did.
func (s *MembershipService) AddMember(ctx context.Context, groupID, clientID uuid.UUID, role string, keyPackageID *uuid.UUID) (domain.Membership, error) {
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return domain.Membership{}, mls_errors.ErrInvalidInput
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !group.IsActive {
		return domain.Membership{}, mls_errors.ErrInvalidState
	}
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return domain.Membership{}, err
	}

	m := domain.Membership{
		ID:       uuid.New(),
		ClientID: clientID,
		GroupID:  groupID,
		Role:     role,
		AddedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddWithEpoch(ctx, &m, keyPackageID); err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

// RemoveMember closes the membership interval and advances the group epoch,
// atomically. Removing an already-removed membership is a conflict.
func (s *MembershipService) RemoveMember(ctx context.Context, membershipID uuid.UUID) (domain.Membership, error) {
	return s.repo.RemoveWithEpoch(ctx, membershipID)
}

func (s *MembershipService) Get(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MembershipService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID)
}

func (s *MembershipService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Membership, error) {
	return s.repo.ListByClient(ctx, clientID)
}

// ActiveRecipients is the delivery set for a message stored while the group
// was at asOfEpoch: clients with an open membership whose join epoch is not
// in the future relative to that point.
func (s *MembershipService) ActiveRecipients(ctx context.Context, groupID uuid.UUID, asOfEpoch uint64) ([]uuid.UUID, error) {
	return s.repo.ActiveRecipients(ctx, groupID, asOfEpoch)
}
