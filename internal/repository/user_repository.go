package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

type userRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, display_name, is_active, created_at)
		 VALUES ($1, $2, $3, $4)`,
		u.ID, u.DisplayName, u.IsActive, u.CreatedAt)
	return translateErr(err)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, display_name, is_active, created_at FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.DisplayName, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return domain.User{}, translateErr(err)
	}
	return u, nil
}

func (r *userRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mls_errors.ErrNotFound
	}
	return nil
}
