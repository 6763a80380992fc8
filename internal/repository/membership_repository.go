package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

type membershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) AddWithEpoch(ctx context.Context, m *domain.Membership, keyPackageID *uuid.UUID) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if keyPackageID != nil {
			if err := reserveKeyPackageTx(ctx, tx, *keyPackageID); err != nil {
				return err
			}
		}

		// Advancing first takes the group row lock, which serializes
		// concurrent adds to the same group within the transaction.
		epoch, err := advanceEpochTx(ctx, tx, m.GroupID)
		if err != nil {
			return err
		}
		m.AddedEpoch = epoch

		_, err = tx.Exec(ctx,
			`INSERT INTO memberships (id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch)
			 VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL)`,
			m.ID, m.ClientID, m.GroupID, m.Role, m.AddedAt, int64(m.AddedEpoch))
		return translateErr(err)
	})
}

func (r *membershipRepository) RemoveWithEpoch(ctx context.Context, membershipID uuid.UUID) (domain.Membership, error) {
	var removed domain.Membership
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch
			 FROM memberships WHERE id = $1 FOR UPDATE`, membershipID)
		m, err := scanMembership(row)
		if err != nil {
			return err
		}
		if m.RemovedAt != nil {
			return mls_errors.ErrConflict
		}

		epoch, err := advanceEpochTx(ctx, tx, m.GroupID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx,
			`UPDATE memberships SET removed_at = $1, removed_epoch = $2
			 WHERE id = $3 AND removed_at IS NULL`,
			now, int64(epoch), m.ID)
		if err != nil {
			return translateErr(err)
		}
		m.RemovedAt = &now
		m.RemovedEpoch = &epoch
		removed = m
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return removed, nil
}

func (r *membershipRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Membership, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch
		 FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

func (r *membershipRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch
		 FROM memberships WHERE group_id = $1 ORDER BY added_at ASC`, groupID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (r *membershipRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch
		 FROM memberships WHERE client_id = $1 AND removed_at IS NULL ORDER BY added_at ASC`, clientID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (r *membershipRepository) ActiveRecipients(ctx context.Context, groupID uuid.UUID, asOfEpoch uint64) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT client_id FROM memberships
		 WHERE group_id = $1 AND removed_at IS NULL AND added_epoch <= $2`,
		groupID, int64(asOfEpoch))
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var recipients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, translateErr(err)
		}
		recipients = append(recipients, id)
	}
	return recipients, translateErr(rows.Err())
}

func (r *membershipRepository) HasActive(ctx context.Context, groupID, clientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE group_id = $1 AND client_id = $2 AND removed_at IS NULL
		 )`, groupID, clientID).Scan(&exists)
	if err != nil {
		return false, translateErr(err)
	}
	return exists, nil
}

// reserveKeyPackageTx is the in-transaction variant of KeyPackageRepository
// Reserve, so a failed membership write also rolls the reservation back.
func reserveKeyPackageTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var data []byte
	err := tx.QueryRow(ctx,
		`UPDATE key_packages SET used = true
		 WHERE id = $1 AND used = false
		 RETURNING data`, id).Scan(&data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return translateErr(err)
	}
	var used bool
	if checkErr := tx.QueryRow(ctx,
		`SELECT used FROM key_packages WHERE id = $1`, id).Scan(&used); checkErr != nil {
		return translateErr(checkErr)
	}
	return mls_errors.ErrConflict
}

// advanceEpochTx bumps the group epoch under the transaction's row lock.
// The membership change and the epoch transition land or fail together.
func advanceEpochTx(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) (uint64, error) {
	var epoch int64
	err := tx.QueryRow(ctx,
		`UPDATE groups SET epoch = epoch + 1, updated_at = $1
		 WHERE id = $2 AND is_active = true
		 RETURNING epoch`,
		time.Now().UTC(), groupID).Scan(&epoch)
	if err == nil {
		return uint64(epoch), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, translateErr(err)
	}

	var isActive bool
	if checkErr := tx.QueryRow(ctx,
		`SELECT is_active FROM groups WHERE id = $1`, groupID).Scan(&isActive); checkErr != nil {
		return 0, translateErr(checkErr)
	}
	if !isActive {
		return 0, mls_errors.ErrInvalidState
	}
	return 0, mls_errors.ErrConflict
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var m domain.Membership
	var addedEpoch int64
	var removedEpoch *int64
	err := row.Scan(&m.ID, &m.ClientID, &m.GroupID, &m.Role, &m.AddedAt, &addedEpoch, &m.RemovedAt, &removedEpoch)
	if err != nil {
		return domain.Membership{}, translateErr(err)
	}
	m.AddedEpoch = uint64(addedEpoch)
	if removedEpoch != nil {
		e := uint64(*removedEpoch)
		m.RemovedEpoch = &e
	}
	return m, nil
}

func collectMemberships(rows pgx.Rows) ([]domain.Membership, error) {
	var memberships []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, translateErr(rows.Err())
}
