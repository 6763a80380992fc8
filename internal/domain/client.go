package domain

import (
	"time"

	"github.com/google/uuid"
)

// CredentialSchemeBasic is the only scheme the service currently stores.
// The credential bytes are opaque; verification happens upstream.
const CredentialSchemeBasic = "basic"

// Client is a device identity under a User.
type Client struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Credential []byte
	Scheme     string
	DeviceName string
	LastSeen   time.Time
	CreatedAt  time.Time
}
