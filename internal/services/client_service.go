package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
)

type ClientService struct {
	repo  repository.ClientRepository
	users repository.UserRepository
}

func NewClientService(repo repository.ClientRepository, users repository.UserRepository) *ClientService {
	return &ClientService{repo: repo, users: users}
}

// Register creates a device identity under an existing active user. The
// identity bytes are stored as an opaque credential under the "basic"
// scheme; verification happened upstream.
func (s *ClientService) Register(ctx context.Context, userID uuid.UUID, identity, deviceName string) (domain.Client, error) {
	if identity == "" {
		return domain.Client{}, mls_errors.ErrInvalidInput
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Client{}, err
	}
	if !user.IsActive {
		return domain.Client{}, mls_errors.ErrInvalidState
	}

	now := time.Now().UTC()
	c := domain.Client{
		ID:         uuid.New(),
		UserID:     userID,
		Credential: []byte(identity),
		Scheme:     domain.CredentialSchemeBasic,
		DeviceName: deviceName,
		LastSeen:   now,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	// Fetching a client doubles as a liveness signal; failure to record it
	// is not an error the caller cares about.
	_ = s.repo.TouchLastSeen(ctx, id)
	return c, nil
}

func (s *ClientService) List(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	return s.repo.ListByUser(ctx, userID)
}
