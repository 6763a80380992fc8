package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
)

type KeyPackageService struct {
	repo    repository.KeyPackageRepository
	clients repository.ClientRepository
}

func NewKeyPackageService(repo repository.KeyPackageRepository, clients repository.ClientRepository) *KeyPackageService {
	return &KeyPackageService{repo: repo, clients: clients}
}

func (s *KeyPackageService) Publish(ctx context.Context, clientID uuid.UUID, data []byte) (domain.KeyPackage, error) {
	if len(data) == 0 {
		return domain.KeyPackage{}, mls_errors.ErrInvalidInput
	}
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return domain.KeyPackage{}, err
	}
	kp := domain.KeyPackage{
		ID:        uuid.New(),
		ClientID:  clientID,
		Data:      data,
		Used:      false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, &kp); err != nil {
		return domain.KeyPackage{}, err
	}
	return kp, nil
}

// Reserve consumes the key package: of any number of concurrent calls on
// the same id, exactly one gets the data and the rest fail with a conflict.
func (s *KeyPackageService) Reserve(ctx context.Context, id uuid.UUID) ([]byte, error) {
	return s.repo.Reserve(ctx, id)
}

func (s *KeyPackageService) Get(ctx context.Context, id uuid.UUID) (domain.KeyPackage, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *KeyPackageService) List(ctx context.Context, clientID uuid.UUID) ([]domain.KeyPackage, error) {
	return s.repo.ListByClient(ctx, clientID)
}
