package httpdto

import (
	"encoding/base64"
	"time"

	"mls-delivery/internal/domain"
)

// CreateGroupRequest is used for POST /v1/groups
type CreateGroupRequest struct {
	CreatorID    string `json:"creator_id" binding:"required"`
	InitialState string `json:"initial_state" binding:"required"` // base64
}

// AdvanceEpochRequest is used for POST /v1/groups/:id/epoch
type AdvanceEpochRequest struct {
	ExpectedEpoch uint64 `json:"expected_epoch"`
	NewState      string `json:"new_state" binding:"required"` // base64
}

// AdvanceEpochResponse is returned after an accepted epoch transition
type AdvanceEpochResponse struct {
	GroupID string `json:"group_id"`
	Epoch   uint64 `json:"epoch"`
}

// GroupDTO represents a group in API responses
type GroupDTO struct {
	ID        string `json:"id"`
	CreatorID string `json:"creator_id"`
	Epoch     uint64 `json:"epoch"`
	State     string `json:"state,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// FromGroup converts a domain group to GroupDTO
func FromGroup(g domain.Group) GroupDTO {
	return GroupDTO{
		ID:        g.ID.String(),
		CreatorID: g.CreatorID.String(),
		Epoch:     g.Epoch,
		State:     base64.StdEncoding.EncodeToString(g.State),
		IsActive:  g.IsActive,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
		UpdatedAt: g.UpdatedAt.Format(time.RFC3339),
	}
}

// FromGroups converts a list of domain groups
func FromGroups(groups []domain.Group) []GroupDTO {
	out := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, FromGroup(g))
	}
	return out
}
