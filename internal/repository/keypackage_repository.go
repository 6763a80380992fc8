package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

type keyPackageRepository struct {
	db *pgxpool.Pool
}

func NewKeyPackageRepository(db *pgxpool.Pool) KeyPackageRepository {
	return &keyPackageRepository{db: db}
}

func (r *keyPackageRepository) Create(ctx context.Context, kp *domain.KeyPackage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO key_packages (id, client_id, data, used, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		kp.ID, kp.ClientID, kp.Data, kp.Used, kp.CreatedAt)
	return translateErr(err)
}

func (r *keyPackageRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.KeyPackage, error) {
	var kp domain.KeyPackage
	err := r.db.QueryRow(ctx,
		`SELECT id, client_id, data, used, created_at FROM key_packages WHERE id = $1`,
		id).Scan(&kp.ID, &kp.ClientID, &kp.Data, &kp.Used, &kp.CreatedAt)
	if err != nil {
		return domain.KeyPackage{}, translateErr(err)
	}
	return kp, nil
}

func (r *keyPackageRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.KeyPackage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, data, used, created_at
		 FROM key_packages WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var kps []domain.KeyPackage
	for rows.Next() {
		var kp domain.KeyPackage
		if err := rows.Scan(&kp.ID, &kp.ClientID, &kp.Data, &kp.Used, &kp.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		kps = append(kps, kp)
	}
	return kps, translateErr(rows.Err())
}

// Reserve is a single check-and-set statement: the WHERE used = false clause
// is what guarantees at most one consumer per key package, even under
// concurrent calls across service instances.
func (r *keyPackageRepository) Reserve(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`UPDATE key_packages SET used = true
		 WHERE id = $1 AND used = false
		 RETURNING data`, id).Scan(&data)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translateErr(err)
	}

	// No row matched: distinguish already-used from absent.
	var used bool
	checkErr := r.db.QueryRow(ctx,
		`SELECT used FROM key_packages WHERE id = $1`, id).Scan(&used)
	if checkErr != nil {
		return nil, translateErr(checkErr)
	}
	return nil, mls_errors.ErrConflict
}
