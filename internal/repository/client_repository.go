package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

type clientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, c *domain.Client) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO clients (id, user_id, credential, scheme, device_name, last_seen, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Credential, c.Scheme, c.DeviceName, c.LastSeen, c.CreatedAt)
	return translateErr(err)
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, credential, scheme, device_name, last_seen, created_at
		 FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *clientRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Client, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, credential, scheme, device_name, last_seen, created_at
		 FROM clients WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, translateErr(rows.Err())
}

func (r *clientRepository) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clients SET last_seen = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mls_errors.ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Credential, &c.Scheme, &c.DeviceName, &c.LastSeen, &c.CreatedAt)
	if err != nil {
		return domain.Client{}, translateErr(err)
	}
	return c, nil
}
