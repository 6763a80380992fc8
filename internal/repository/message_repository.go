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

type messageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Store(ctx context.Context, m *domain.Message) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if m.Type == domain.MessageTypeCommit && m.Epoch != nil {
			if err := checkCommitEpochTx(ctx, tx, m.GroupID, *m.Epoch); err != nil {
				return err
			}
		}
		var epoch *int64
		if m.Epoch != nil {
			e := int64(*m.Epoch)
			epoch = &e
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO messages (id, group_id, sender_id, message_type, payload, proposal_type, epoch, created_at)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
			m.ID, m.GroupID, m.SenderID, string(m.Type), m.Payload, m.ProposalType, epoch, m.CreatedAt)
		if err != nil {
			return translateErr(err)
		}
		for _, recipient := range m.Recipients {
			if _, err := tx.Exec(ctx,
				`INSERT INTO message_recipients (message_id, client_id)
				 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				m.ID, recipient); err != nil {
				return translateErr(err)
			}
		}
		return nil
	})
}

// checkCommitEpochTx validates the commit's declared epoch against the group
// row under its lock, so an AddMember/RemoveMember/AdvanceEpoch that consumes
// the epoch between the caller's snapshot and this insert makes the commit
// lose instead of landing out of sequence.
func checkCommitEpochTx(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, declared uint64) error {
	var current int64
	var isActive bool
	err := tx.QueryRow(ctx,
		`SELECT epoch, is_active FROM groups WHERE id = $1 FOR UPDATE`,
		groupID).Scan(&current, &isActive)
	if err != nil {
		return translateErr(err)
	}
	if !isActive {
		return mls_errors.ErrInvalidState
	}
	switch {
	case declared <= uint64(current):
		return mls_errors.ErrConflict
	case declared > uint64(current)+1:
		return mls_errors.ErrInvalidState
	}
	return nil
}

func (r *messageRepository) FetchForClient(ctx context.Context, clientID uuid.UUID, groupID *uuid.UUID, includeRead bool) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.group_id, m.sender_id, m.message_type, m.payload,
		       COALESCE(m.proposal_type, ''), m.epoch, (r.client_id IS NOT NULL), m.created_at
		FROM messages m
		LEFT JOIN message_reads r ON r.message_id = m.id AND r.client_id = $1
		WHERE (
			m.sender_id = $1
			OR (m.message_type IN ('proposal', 'commit') AND EXISTS (
				SELECT 1 FROM memberships mem
				WHERE mem.group_id = m.group_id
				  AND mem.client_id = $1
				  AND mem.removed_at IS NULL
			))
			OR (m.message_type = 'welcome' AND EXISTS (
				SELECT 1 FROM message_recipients mr
				WHERE mr.message_id = m.id AND mr.client_id = $1
			))
		)`
	args := []any{clientID}
	if groupID != nil {
		args = append(args, *groupID)
		query += ` AND m.group_id = $2`
	}
	if !includeRead {
		query += ` AND r.client_id IS NULL`
	}
	query += ` ORDER BY m.created_at ASC, m.id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var msgType string
		var epoch *int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &msgType, &m.Payload,
			&m.ProposalType, &epoch, &m.Read, &m.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		m.Type = domain.MessageType(msgType)
		if epoch != nil {
			e := uint64(*epoch)
			m.Epoch = &e
		}
		messages = append(messages, m)
	}
	return messages, translateErr(rows.Err())
}

func (r *messageRepository) MarkRead(ctx context.Context, clientID uuid.UUID, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, id := range messageIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO message_reads (message_id, client_id, read_at)
				 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				id, clientID, now); err != nil {
				return translateErr(err)
			}
		}
		return nil
	})
}
