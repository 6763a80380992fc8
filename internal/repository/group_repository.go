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

type groupRepository struct {
	db *pgxpool.Pool
}

func NewGroupRepository(db *pgxpool.Pool) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) CreateWithAdmin(ctx context.Context, g *domain.Group, creator *domain.Membership) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (id, creator_id, epoch, state, is_active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			g.ID, g.CreatorID, int64(g.Epoch), g.State, g.IsActive, g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return translateErr(err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO memberships (id, client_id, group_id, role, added_at, added_epoch, removed_at, removed_epoch)
			 VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL)`,
			creator.ID, creator.ClientID, creator.GroupID, creator.Role, creator.AddedAt, int64(creator.AddedEpoch))
		return translateErr(err)
	})
}

func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, creator_id, epoch, state, is_active, created_at, updated_at
		 FROM groups WHERE id = $1`, id)
	return scanGroup(row)
}

func (r *groupRepository) ListByMember(ctx context.Context, clientID uuid.UUID) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx,
		`SELECT g.id, g.creator_id, g.epoch, g.state, g.is_active, g.created_at, g.updated_at
		 FROM groups g
		 JOIN memberships m ON g.id = m.group_id
		 WHERE m.client_id = $1 AND m.removed_at IS NULL AND g.is_active = true
		 ORDER BY g.updated_at DESC`, clientID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

func (r *groupRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, creator_id, epoch, state, is_active, created_at, updated_at
		 FROM groups WHERE creator_id = $1 ORDER BY updated_at DESC`, creatorID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

// AdvanceEpoch is optimistic concurrency control over (id, epoch): of N
// concurrent callers presenting the same expected epoch, exactly one update
// matches; the rest fall through to the classification read.
func (r *groupRepository) AdvanceEpoch(ctx context.Context, groupID uuid.UUID, expectedEpoch uint64, newState []byte) (uint64, error) {
	var epoch int64
	err := r.db.QueryRow(ctx,
		`UPDATE groups SET epoch = epoch + 1, state = $1, updated_at = $2
		 WHERE id = $3 AND epoch = $4 AND is_active = true
		 RETURNING epoch`,
		newState, time.Now().UTC(), groupID, int64(expectedEpoch)).Scan(&epoch)
	if err == nil {
		return uint64(epoch), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, translateErr(err)
	}
	return 0, r.classifyAdvanceFailure(ctx, groupID)
}

func (r *groupRepository) classifyAdvanceFailure(ctx context.Context, groupID uuid.UUID) error {
	var isActive bool
	err := r.db.QueryRow(ctx,
		`SELECT is_active FROM groups WHERE id = $1`, groupID).Scan(&isActive)
	if err != nil {
		return translateErr(err)
	}
	if !isActive {
		return mls_errors.ErrInvalidState
	}
	return mls_errors.ErrConflict
}

func (r *groupRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE groups SET is_active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mls_errors.ErrNotFound
	}
	return nil
}

func scanGroup(row pgx.Row) (domain.Group, error) {
	var g domain.Group
	var epoch int64
	err := row.Scan(&g.ID, &g.CreatorID, &epoch, &g.State, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return domain.Group{}, translateErr(err)
	}
	g.Epoch = uint64(epoch)
	return g, nil
}

func collectGroups(rows pgx.Rows) ([]domain.Group, error) {
	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, translateErr(rows.Err())
}
