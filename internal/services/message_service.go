package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	mls_errors "mls-delivery/pkg/errors"
	"mls-delivery/pkg/logger"
)

// Notifier nudges recipients that a new message is waiting for them.
// Delivery of the nudge is best-effort; clients poll regardless.
type Notifier interface {
	MessageStored(ctx context.Context, groupID, messageID uuid.UUID, recipients []uuid.UUID)
}

type MessageService struct {
	repo        repository.MessageRepository
	groups      repository.GroupRepository
	memberships repository.MembershipRepository
	clients     repository.ClientRepository
	notifier    Notifier
	logger      *logger.Logger
}

func NewMessageService(
	repo repository.MessageRepository,
	groups repository.GroupRepository,
	memberships repository.MembershipRepository,
	clients repository.ClientRepository,
	notifier Notifier,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		repo:        repo,
		groups:      groups,
		memberships: memberships,
		clients:     clients,
		notifier:    notifier,
		logger:      log,
	}
}

// StoreProposal stores a proposal for fan-out to the group's current active
// members. The payload is opaque; proposalType is an informational label
// (e.g. "add", "remove", "update") carried through to readers.
func (s *MessageService) StoreProposal(ctx context.Context, groupID, senderID uuid.UUID, payload []byte, proposalType string) (domain.Message, error) {
	group, err := s.validateStore(ctx, groupID, senderID, payload)
	if err != nil {
		return domain.Message{}, err
	}

	m := domain.Message{
		ID:           uuid.New(),
		GroupID:      groupID,
		SenderID:     senderID,
		Type:         domain.MessageTypeProposal,
		Payload:      payload,
		ProposalType: proposalType,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Store(ctx, &m); err != nil {
		return domain.Message{}, err
	}
	s.notifyGroup(ctx, m, group.Epoch)
	return m, nil
}

// StoreCommit stores a commit that proposes the transition to epoch. The
// group must currently sit exactly one epoch behind: a commit at or below
// the current epoch lost the race (conflict), a commit more than one ahead
// skipped a transition (invalid state). Storing does not advance the epoch;
// the sender confirms the transition with a separate AdvanceEpoch call once
// members have applied the commit.
//
// The checks here fail fast against a snapshot; the store re-validates the
// epoch window against the group row inside its own transaction, so a
// membership change that consumes the epoch in between still rejects the
// commit.
func (s *MessageService) StoreCommit(ctx context.Context, groupID, senderID uuid.UUID, payload []byte, epoch uint64) (domain.Message, error) {
	group, err := s.validateStore(ctx, groupID, senderID, payload)
	if err != nil {
		return domain.Message{}, err
	}
	if epoch <= group.Epoch {
		return domain.Message{}, mls_errors.ErrConflict
	}
	if epoch > group.Epoch+1 {
		return domain.Message{}, mls_errors.ErrInvalidState
	}

	m := domain.Message{
		ID:        uuid.New(),
		GroupID:   groupID,
		SenderID:  senderID,
		Type:      domain.MessageTypeCommit,
		Payload:   payload,
		Epoch:     &epoch,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Store(ctx, &m); err != nil {
		return domain.Message{}, err
	}
	s.notifyGroup(ctx, m, group.Epoch)
	return m, nil
}

// StoreWelcome stores a welcome addressed to an explicit recipient list, the
// clients joining via the corresponding commit. Unlike proposals and commits
// it is visible only to those recipients, who need not (yet) be members.
func (s *MessageService) StoreWelcome(ctx context.Context, groupID, senderID uuid.UUID, payload []byte, recipients []uuid.UUID) (domain.Message, error) {
	if len(recipients) == 0 {
		return domain.Message{}, mls_errors.ErrInvalidInput
	}
	if _, err := s.validateStore(ctx, groupID, senderID, payload); err != nil {
		return domain.Message{}, err
	}

	m := domain.Message{
		ID:         uuid.New(),
		GroupID:    groupID,
		SenderID:   senderID,
		Type:       domain.MessageTypeWelcome,
		Payload:    payload,
		Recipients: dedupe(recipients),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Store(ctx, &m); err != nil {
		return domain.Message{}, err
	}
	if s.notifier != nil {
		s.notifier.MessageStored(ctx, m.GroupID, m.ID, m.Recipients)
	}
	return m, nil
}

// Fetch returns the messages visible to the client, oldest first, optionally
// restricted to one group. With includeRead false, messages the client has
// already marked read are omitted.
func (s *MessageService) Fetch(ctx context.Context, clientID uuid.UUID, groupID *uuid.UUID, includeRead bool) ([]domain.Message, error) {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.FetchForClient(ctx, clientID, groupID, includeRead)
}

// MarkRead records per-client read markers. Marking an already-read message
// again is a no-op; an id that matches no stored message fails the whole
// call with not-found. Visibility is not re-checked: a marker on a message
// the client cannot fetch is inert.
func (s *MessageService) MarkRead(ctx context.Context, clientID uuid.UUID, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, clientID, messageIDs)
}

// validateStore runs the checks common to all three store paths and returns
// the group so callers can consult its current epoch.
func (s *MessageService) validateStore(ctx context.Context, groupID, senderID uuid.UUID, payload []byte) (domain.Group, error) {
	if len(payload) == 0 {
		return domain.Group{}, mls_errors.ErrInvalidInput
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if !group.IsActive {
		return domain.Group{}, mls_errors.ErrInvalidState
	}
	if _, err := s.clients.GetByID(ctx, senderID); err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (s *MessageService) notifyGroup(ctx context.Context, m domain.Message, epoch uint64) {
	if s.notifier == nil {
		return
	}
	recipients, err := s.memberships.ActiveRecipients(ctx, m.GroupID, epoch)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("resolving notify recipients for group %s: %v", m.GroupID, err)
		}
		return
	}
	s.notifier.MessageStored(ctx, m.GroupID, m.ID, recipients)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
