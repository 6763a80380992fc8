package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Membership is a client's participation interval in a group. RemovedAt nil
// means currently active; for a (client, group) pair at most one membership
// is active at a time. AddedEpoch and RemovedEpoch record the epoch the
// triggering commit moved the group to, which is what recipient-set
// computation keys on.
type Membership struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	GroupID      uuid.UUID
	Role         string
	AddedAt      time.Time
	AddedEpoch   uint64
	RemovedAt    *time.Time
	RemovedEpoch *uint64
}

func (m Membership) Active() bool {
	return m.RemovedAt == nil
}
