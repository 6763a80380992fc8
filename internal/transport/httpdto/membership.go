package httpdto

import (
	"time"

	"mls-delivery/internal/domain"
)

// AddMemberRequest is used for POST /v1/groups/:id/members
type AddMemberRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	Role         string `json:"role"`
	KeyPackageID string `json:"key_package_id"`
}

// MembershipDTO represents a membership interval in API responses
type MembershipDTO struct {
	ID           string  `json:"id"`
	ClientID     string  `json:"client_id"`
	GroupID      string  `json:"group_id"`
	Role         string  `json:"role"`
	AddedAt      string  `json:"added_at"`
	AddedEpoch   uint64  `json:"added_epoch"`
	RemovedAt    string  `json:"removed_at,omitempty"`
	RemovedEpoch *uint64 `json:"removed_epoch,omitempty"`
	Active       bool    `json:"active"`
}

// ActiveRecipientsResponse is returned by GET /v1/groups/:id/recipients
type ActiveRecipientsResponse struct {
	GroupID    string   `json:"group_id"`
	AsOfEpoch  uint64   `json:"as_of_epoch"`
	Recipients []string `json:"recipients"`
}

// FromMembership converts a domain membership to MembershipDTO
func FromMembership(m domain.Membership) MembershipDTO {
	dto := MembershipDTO{
		ID:           m.ID.String(),
		ClientID:     m.ClientID.String(),
		GroupID:      m.GroupID.String(),
		Role:         m.Role,
		AddedAt:      m.AddedAt.Format(time.RFC3339),
		AddedEpoch:   m.AddedEpoch,
		RemovedEpoch: m.RemovedEpoch,
		Active:       m.Active(),
	}
	if m.RemovedAt != nil {
		dto.RemovedAt = m.RemovedAt.Format(time.RFC3339)
	}
	return dto
}

// FromMemberships converts a list of domain memberships
func FromMemberships(ms []domain.Membership) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMembership(m))
	}
	return out
}
