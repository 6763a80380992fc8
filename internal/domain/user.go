package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity anchor a client registers under. Users are never
// deleted, only deactivated.
type User struct {
	ID          uuid.UUID
	DisplayName string
	IsActive    bool
	CreatedAt   time.Time
}
