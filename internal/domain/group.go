package domain

import (
	"time"

	"github.com/google/uuid"
)

// Group is an MLS group. Epoch starts at 0 and advances by exactly 1 per
// accepted commit. The state blob is replaced wholesale on each transition.
// A deactivated group is terminal: no further epoch advances are accepted.
type Group struct {
	ID        uuid.UUID
	CreatorID uuid.UUID
	Epoch     uint64
	State     []byte
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
