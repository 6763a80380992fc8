package httpdto

import (
	"encoding/base64"
	"time"

	"mls-delivery/internal/domain"
)

// StoreProposalRequest is used for POST /v1/messages/proposal
type StoreProposalRequest struct {
	GroupID      string `json:"group_id" binding:"required"`
	SenderID     string `json:"sender_id" binding:"required"`
	Payload      string `json:"payload" binding:"required"` // base64
	ProposalType string `json:"proposal_type"`
}

// StoreCommitRequest is used for POST /v1/messages/commit
type StoreCommitRequest struct {
	GroupID  string `json:"group_id" binding:"required"`
	SenderID string `json:"sender_id" binding:"required"`
	Payload  string `json:"payload" binding:"required"` // base64
	Epoch    uint64 `json:"epoch" binding:"required"`
}

// StoreWelcomeRequest is used for POST /v1/messages/welcome
type StoreWelcomeRequest struct {
	GroupID    string   `json:"group_id" binding:"required"`
	SenderID   string   `json:"sender_id" binding:"required"`
	Payload    string   `json:"payload" binding:"required"` // base64
	Recipients []string `json:"recipients" binding:"required"`
}

// FetchMessagesRequest holds query parameters for GET /v1/messages
type FetchMessagesRequest struct {
	ClientID    string `form:"client_id" binding:"required"`
	GroupID     string `form:"group_id"`
	IncludeRead bool   `form:"include_read"`
}

// MarkReadRequest is used for POST /v1/messages/read
type MarkReadRequest struct {
	ClientID   string   `json:"client_id" binding:"required"`
	MessageIDs []string `json:"message_ids" binding:"required"`
}

// MarkReadResponse is returned after recording read markers
type MarkReadResponse struct {
	Marked int `json:"marked"`
}

// MessageDTO represents a stored message in API responses
type MessageDTO struct {
	ID           string   `json:"id"`
	GroupID      string   `json:"group_id"`
	SenderID     string   `json:"sender_id"`
	Type         string   `json:"type"`
	Payload      string   `json:"payload"`
	ProposalType string   `json:"proposal_type,omitempty"`
	Epoch        *uint64  `json:"epoch,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
	Read         bool     `json:"read"`
	CreatedAt    string   `json:"created_at"`
}

// FromMessage converts a domain message to MessageDTO
func FromMessage(m domain.Message) MessageDTO {
	dto := MessageDTO{
		ID:           m.ID.String(),
		GroupID:      m.GroupID.String(),
		SenderID:     m.SenderID.String(),
		Type:         string(m.Type),
		Payload:      base64.StdEncoding.EncodeToString(m.Payload),
		ProposalType: m.ProposalType,
		Epoch:        m.Epoch,
		Read:         m.Read,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
	for _, r := range m.Recipients {
		dto.Recipients = append(dto.Recipients, r.String())
	}
	return dto
}

// FromMessages converts a list of domain messages
func FromMessages(ms []domain.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMessage(m))
	}
	return out
}
