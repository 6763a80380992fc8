package httpdto

import (
	"time"

	"mls-delivery/internal/domain"
)

// CreateUserRequest is used for POST /v1/users
type CreateUserRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// UserDTO represents a user account in API responses
type UserDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// FromUser converts a domain user to UserDTO
func FromUser(u domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}
