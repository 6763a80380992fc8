package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
)

type GroupService struct {
	repo    repository.GroupRepository
	clients repository.ClientRepository
}

func NewGroupService(repo repository.GroupRepository, clients repository.ClientRepository) *GroupService {
	return &GroupService{repo: repo, clients: clients}
}

// Create makes a new group at epoch 0 with the creator enrolled as its
// admin member. The initial state blob is the creator's genesis group state.
func (s *GroupService) Create(ctx context.Context, creatorID uuid.UUID, initialState []byte) (domain.Group, error) {
	if len(initialState) == 0 {
		return domain.Group{}, mls_errors.ErrInvalidInput
	}
	if _, err := s.clients.GetByID(ctx, creatorID); err != nil {
		return domain.Group{}, err
	}

	now := time.Now().UTC()
	g := domain.Group{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Epoch:     0,
		State:     initialState,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	creator := domain.Membership{
		ID:         uuid.New(),
		ClientID:   creatorID,
		GroupID:    g.ID,
		Role:       domain.RoleAdmin,
		AddedAt:    now,
		AddedEpoch: 0,
	}
	if err := s.repo.CreateWithAdmin(ctx, &g, &creator); err != nil {
		return domain.Group{}, err
	}
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *GroupService) ListByMember(ctx context.Context, clientID uuid.UUID) ([]domain.Group, error) {
	return s.repo.ListByMember(ctx, clientID)
}

func (s *GroupService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

// AdvanceEpoch applies a compare-and-set transition from expectedEpoch to
// expectedEpoch+1, replacing the group state. A stale expectation fails with
// a conflict and the caller is expected to re-read and retry.
func (s *GroupService) AdvanceEpoch(ctx context.Context, groupID uuid.UUID, expectedEpoch uint64, newState []byte) (uint64, error) {
	if len(newState) == 0 {
		return 0, mls_errors.ErrInvalidInput
	}
	return s.repo.AdvanceEpoch(ctx, groupID, expectedEpoch, newState)
}

// Deactivate retires the group. It is terminal and idempotent.
func (s *GroupService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
