package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
)

type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Create(ctx context.Context, displayName string) (domain.User, error) {
	if strings.TrimSpace(displayName) == "" {
		return domain.User{}, mls_errors.ErrInvalidInput
	}
	u := domain.User{
		ID:          uuid.New(),
		DisplayName: displayName,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Deactivate is idempotent: deactivating an already-inactive user succeeds.
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
