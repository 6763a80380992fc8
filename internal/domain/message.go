package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeProposal MessageType = "proposal"
	MessageTypeCommit   MessageType = "commit"
	MessageTypeWelcome  MessageType = "welcome"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeProposal, MessageTypeCommit, MessageTypeWelcome:
		return true
	}
	return false
}

// Message is an immutable opaque MLS artifact plus routing metadata. Type
// tags the single Payload arm: ProposalType is set only for proposals, Epoch
// only for commits, Recipients (the explicit allow-list supplied at store
// time) only for welcomes.
//
// Read is a per-fetch projection: whether the fetching client has marked
// this message read. It is not a property of the message itself.
type Message struct {
	ID           uuid.UUID
	GroupID      uuid.UUID
	SenderID     uuid.UUID
	Type         MessageType
	Payload      []byte
	ProposalType string
	Epoch        *uint64
	Recipients   []uuid.UUID
	Read         bool
	CreatedAt    time.Time
}
