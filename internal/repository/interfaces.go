package repository

import (
	"context"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Client, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Client, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
}

type KeyPackageRepository interface {
	Create(ctx context.Context, kp *domain.KeyPackage) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.KeyPackage, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.KeyPackage, error)

	// Reserve atomically flips used false -> true and returns the opaque
	// data. Exactly one caller ever succeeds per key package; later callers
	// get ErrConflict.
	Reserve(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type GroupRepository interface {
	// CreateWithAdmin persists the group and the creator's membership as a
	// single transaction; neither row exists without the other.
	CreateWithAdmin(ctx context.Context, g *domain.Group, creator *domain.Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error)
	ListByMember(ctx context.Context, clientID uuid.UUID) ([]domain.Group, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Group, error)

	// AdvanceEpoch is a compare-and-set on (id, epoch): it succeeds only if
	// the stored epoch equals expectedEpoch, replacing the state blob and
	// returning expectedEpoch+1. Losers get ErrConflict; a deactivated group
	// gets ErrInvalidState.
	AdvanceEpoch(ctx context.Context, groupID uuid.UUID, expectedEpoch uint64, newState []byte) (uint64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type MembershipRepository interface {
	// AddWithEpoch inserts the membership and advances the group epoch in
	// one transaction, optionally consuming a key package in the same unit.
	// m.AddedEpoch is set to the epoch the group moved to. Duplicate active
	// membership, a lost epoch race and a used key package all roll the
	// whole unit back with ErrConflict.
	AddWithEpoch(ctx context.Context, m *domain.Membership, keyPackageID *uuid.UUID) error

	// RemoveWithEpoch marks the membership removed and advances the group
	// epoch in one transaction. Double removal is ErrConflict.
	RemoveWithEpoch(ctx context.Context, membershipID uuid.UUID) (domain.Membership, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.Membership, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Membership, error)

	// ActiveRecipients is the authoritative fan-out list: clients holding an
	// active membership whose added epoch does not exceed asOfEpoch.
	ActiveRecipients(ctx context.Context, groupID uuid.UUID, asOfEpoch uint64) ([]uuid.UUID, error)
	HasActive(ctx context.Context, groupID, clientID uuid.UUID) (bool, error)
}

type MessageRepository interface {
	// Store persists the message and, for welcomes, its recipient allow-list
	// rows in one transaction. For commits the declared epoch is re-checked
	// against the group row inside the same transaction: it must be exactly
	// current+1 (at or below current is ErrConflict, further ahead is
	// ErrInvalidState), and a second commit for the same (group, epoch) is
	// ErrConflict.
	Store(ctx context.Context, m *domain.Message) error

	// FetchForClient returns messages visible to the client, oldest first:
	// own sends, proposals/commits of groups the client is currently an
	// active member of, and welcomes addressed to it. Messages the client
	// has marked read are excluded unless includeRead is set; the Read field
	// reflects the calling client's marker.
	FetchForClient(ctx context.Context, clientID uuid.UUID, groupID *uuid.UUID, includeRead bool) ([]domain.Message, error)

	// MarkRead records per-client read markers. Idempotent; an id that
	// matches no stored message fails the batch with ErrNotFound.
	MarkRead(ctx context.Context, clientID uuid.UUID, messageIDs []uuid.UUID) error
}
