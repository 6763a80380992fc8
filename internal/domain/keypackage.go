package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeyPackage is a single-use offer published by a client. Used transitions
// false -> true exactly once and never reverts.
type KeyPackage struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Data      []byte
	Used      bool
	CreatedAt time.Time
}
