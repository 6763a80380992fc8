package httpdto

import (
	"encoding/base64"
	"time"

	"mls-delivery/internal/domain"
)

// RegisterClientRequest is used for POST /v1/clients
type RegisterClientRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Identity   string `json:"identity" binding:"required"`
	DeviceName string `json:"device_name"`
}

// ClientDTO represents a device identity in API responses
type ClientDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Credential string `json:"credential,omitempty"`
	Scheme     string `json:"scheme"`
	DeviceName string `json:"device_name,omitempty"`
	LastSeen   string `json:"last_seen"`
	CreatedAt  string `json:"created_at"`
}

// FromClient converts a domain client to ClientDTO
func FromClient(c domain.Client) ClientDTO {
	return ClientDTO{
		ID:         c.ID.String(),
		UserID:     c.UserID.String(),
		Credential: base64.StdEncoding.EncodeToString(c.Credential),
		Scheme:     c.Scheme,
		DeviceName: c.DeviceName,
		LastSeen:   c.LastSeen.Format(time.RFC3339),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// FromClients converts a list of domain clients
func FromClients(clients []domain.Client) []ClientDTO {
	out := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		out = append(out, FromClient(c))
	}
	return out
}
