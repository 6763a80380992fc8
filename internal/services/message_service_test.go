package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository"
	"mls-delivery/internal/services"
	mls_errors "mls-delivery/pkg/errors"
)

type capturedEvent struct {
	groupID    uuid.UUID
	messageID  uuid.UUID
	recipients []uuid.UUID
}

type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (n *captureNotifier) MessageStored(_ context.Context, groupID, messageID uuid.UUID, recipients []uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{groupID: groupID, messageID: messageID, recipients: recipients})
}

// staleGroupReader hands out a group snapshot and then runs a hook once,
// modeling a writer that slips in right after the read.
type staleGroupReader struct {
	repository.GroupRepository
	once  sync.Once
	after func()
}

func (r *staleGroupReader) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	g, err := r.GroupRepository.GetByID(ctx, id)
	r.once.Do(r.after)
	return g, err
}

func TestStoreProposalEmptyPayload(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	group := f.mustGroup(t, alice)

	_, err := f.messages.StoreProposal(context.Background(), group.ID, alice.ID, nil, "add")
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestStoreProposalOnInactiveGroup(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	group := f.mustGroup(t, alice)
	require.NoError(t, f.groups.Deactivate(context.Background(), group.ID))

	_, err := f.messages.StoreProposal(context.Background(), group.ID, alice.ID, []byte("p"), "add")
	assert.ErrorIs(t, err, mls_errors.ErrInvalidState)
}

func TestStoreCommitEpochDiscipline(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	// Move the group to epoch 3.
	for epoch := uint64(0); epoch < 3; epoch++ {
		_, err := f.groups.AdvanceEpoch(ctx, group.ID, epoch, []byte("state"))
		require.NoError(t, err)
	}

	// A commit at or below the current epoch lost the race.
	_, err := f.messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c"), 3)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	// A commit that skips epochs can never be applied.
	_, err = f.messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c"), 5)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidState)

	m, err := f.messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c"), 4)
	require.NoError(t, err)
	require.NotNil(t, m.Epoch)
	assert.Equal(t, uint64(4), *m.Epoch)

	// A second commit proposing the same transition is a duplicate.
	_, err = f.messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c2"), 4)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)
}

func TestStoreCommitRejectsEpochConsumedAfterSnapshot(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	// A membership change lands between the service reading the group and
	// the commit insert, consuming epoch 1.
	groups := &staleGroupReader{GroupRepository: f.store.Groups()}
	groups.after = func() {
		_, err := f.memberships.AddMember(ctx, group.ID, bob.ID, domain.RoleMember, nil)
		require.NoError(t, err)
	}
	messages := services.NewMessageService(
		f.store.Messages(), groups, f.store.Memberships(), f.store.Clients(), nil, nil)

	_, err := messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c"), 1)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	// The group moved to epoch 1 and no out-of-sequence commit was kept.
	g, err := f.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g.Epoch)

	msgs, err := f.messages.Fetch(ctx, alice.ID, &group.ID, true)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCommitThenAdvanceRoundTrip(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	_, err := f.messages.StoreCommit(ctx, group.ID, alice.ID, []byte("c"), 1)
	require.NoError(t, err)

	epoch, err := f.groups.AdvanceEpoch(ctx, group.ID, 0, []byte("state-1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)

	// The transition is applied exactly once.
	_, err = f.groups.AdvanceEpoch(ctx, group.ID, 0, []byte("state-1"))
	assert.ErrorIs(t, err, mls_errors.ErrConflict)
}

func TestStoreWelcomeRequiresRecipients(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	group := f.mustGroup(t, alice)

	_, err := f.messages.StoreWelcome(context.Background(), group.ID, alice.ID, []byte("w"), nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestWelcomeVisibleOnlyToRecipients(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	dora := f.mustClient(t, "dora")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	_, err := f.memberships.AddMember(ctx, group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	// Dora is not a member yet; the welcome is addressed to her alone.
	w, err := f.messages.StoreWelcome(ctx, group.ID, alice.ID, []byte("w"), []uuid.UUID{dora.ID})
	require.NoError(t, err)

	doraMsgs, err := f.messages.Fetch(ctx, dora.ID, nil, false)
	require.NoError(t, err)
	require.Len(t, doraMsgs, 1)
	assert.Equal(t, w.ID, doraMsgs[0].ID)

	// An active member who is not on the allow-list does not see it.
	bobMsgs, err := f.messages.Fetch(ctx, bob.ID, nil, false)
	require.NoError(t, err)
	assert.Empty(t, bobMsgs)

	// The sender always sees their own messages.
	aliceMsgs, err := f.messages.Fetch(ctx, alice.ID, nil, false)
	require.NoError(t, err)
	require.Len(t, aliceMsgs, 1)
}

func TestFetchOrderingAndReadMarkers(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	_, err := f.memberships.AddMember(ctx, group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	p1, err := f.messages.StoreProposal(ctx, group.ID, alice.ID, []byte("p1"), "update")
	require.NoError(t, err)
	p2, err := f.messages.StoreProposal(ctx, group.ID, alice.ID, []byte("p2"), "update")
	require.NoError(t, err)

	msgs, err := f.messages.Fetch(ctx, bob.ID, &group.ID, false)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, p1.ID, msgs[0].ID)
	assert.Equal(t, p2.ID, msgs[1].ID)

	require.NoError(t, f.messages.MarkRead(ctx, bob.ID, []uuid.UUID{p1.ID}))

	unread, err := f.messages.Fetch(ctx, bob.ID, &group.ID, false)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, p2.ID, unread[0].ID)

	all, err := f.messages.Fetch(ctx, bob.ID, &group.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Read)
	assert.False(t, all[1].Read)

	// Read markers are per client: alice still sees both as unread.
	aliceMsgs, err := f.messages.Fetch(ctx, alice.ID, &group.ID, false)
	require.NoError(t, err)
	require.Len(t, aliceMsgs, 2)
	assert.False(t, aliceMsgs[0].Read)

	// Marking again is a no-op.
	require.NoError(t, f.messages.MarkRead(ctx, bob.ID, []uuid.UUID{p1.ID}))
}

func TestNotifierReceivesDeliverySet(t *testing.T) {
	f := newFixture()
	notifier := &captureNotifier{}
	messages := services.NewMessageService(
		f.store.Messages(), f.store.Groups(), f.store.Memberships(), f.store.Clients(), notifier, nil)

	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	dora := f.mustClient(t, "dora")
	group := f.mustGroup(t, alice)
	ctx := context.Background()

	_, err := f.memberships.AddMember(ctx, group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	p, err := messages.StoreProposal(ctx, group.ID, alice.ID, []byte("p"), "update")
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, p.ID, notifier.events[0].messageID)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, notifier.events[0].recipients)

	// Welcomes nudge the explicit allow-list, not the membership set.
	w, err := messages.StoreWelcome(ctx, group.ID, alice.ID, []byte("w"), []uuid.UUID{dora.ID, dora.ID})
	require.NoError(t, err)
	require.Len(t, notifier.events, 2)
	assert.Equal(t, w.ID, notifier.events[1].messageID)
	assert.Equal(t, []uuid.UUID{dora.ID}, notifier.events[1].recipients)
}
