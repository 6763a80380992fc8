package httpdto

import (
	"encoding/base64"
	"time"

	"mls-delivery/internal/domain"
)

// PublishKeyPackageRequest is used for POST /v1/key-packages
type PublishKeyPackageRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Data     string `json:"data" binding:"required"` // base64
}

// KeyPackageDTO represents a key package in API responses
type KeyPackageDTO struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Data      string `json:"data,omitempty"`
	Used      bool   `json:"used"`
	CreatedAt string `json:"created_at"`
}

// ReservedKeyPackageResponse is returned by POST /v1/key-packages/:id/reserve
type ReservedKeyPackageResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// FromKeyPackage converts a domain key package to KeyPackageDTO
func FromKeyPackage(kp domain.KeyPackage) KeyPackageDTO {
	return KeyPackageDTO{
		ID:        kp.ID.String(),
		ClientID:  kp.ClientID.String(),
		Data:      base64.StdEncoding.EncodeToString(kp.Data),
		Used:      kp.Used,
		CreatedAt: kp.CreatedAt.Format(time.RFC3339),
	}
}

// FromKeyPackages converts a list of domain key packages
func FromKeyPackages(kps []domain.KeyPackage) []KeyPackageDTO {
	out := make([]KeyPackageDTO, 0, len(kps))
	for _, kp := range kps {
		out = append(out, FromKeyPackage(kp))
	}
	return out
}
