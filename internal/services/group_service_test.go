package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

func TestCreateGroupStartsAtEpochZeroWithAdmin(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")

	group := f.mustGroup(t, creator)
	assert.Equal(t, uint64(0), group.Epoch)
	assert.True(t, group.IsActive)
	assert.Equal(t, creator.ID, group.CreatorID)

	members, err := f.memberships.ListByGroup(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, creator.ID, members[0].ClientID)
	assert.Equal(t, domain.RoleAdmin, members[0].Role)
	assert.Equal(t, uint64(0), members[0].AddedEpoch)
	assert.True(t, members[0].Active())
}

func TestCreateGroupEmptyState(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")

	_, err := f.groups.Create(context.Background(), creator.ID, nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestCreateGroupUnknownCreator(t *testing.T) {
	f := newFixture()

	_, err := f.groups.Create(context.Background(), uuid.New(), []byte("genesis-state"))
	assert.ErrorIs(t, err, mls_errors.ErrNotFound)
}

func TestAdvanceEpochSequence(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")
	group := f.mustGroup(t, creator)

	epoch, err := f.groups.AdvanceEpoch(context.Background(), group.ID, 0, []byte("state-1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch)

	epoch, err = f.groups.AdvanceEpoch(context.Background(), group.ID, 1, []byte("state-2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), epoch)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Epoch)
	assert.Equal(t, []byte("state-2"), got.State)
}

func TestAdvanceEpochStaleExpectation(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")
	group := f.mustGroup(t, creator)

	_, err := f.groups.AdvanceEpoch(context.Background(), group.ID, 0, []byte("state-1"))
	require.NoError(t, err)

	// A second transition based on the same snapshot lost the race.
	_, err = f.groups.AdvanceEpoch(context.Background(), group.ID, 0, []byte("state-1b"))
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Epoch)
	assert.Equal(t, []byte("state-1"), got.State)
}

func TestConcurrentAdvanceEpochExactlyOneWins(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")
	group := f.mustGroup(t, creator)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.groups.AdvanceEpoch(context.Background(), group.ID, 0, []byte("state-1"))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, mls_errors.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Epoch)
}

func TestAdvanceEpochEmptyState(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")
	group := f.mustGroup(t, creator)

	_, err := f.groups.AdvanceEpoch(context.Background(), group.ID, 0, nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestDeactivateGroupIsTerminal(t *testing.T) {
	f := newFixture()
	creator := f.mustClient(t, "alice")
	group := f.mustGroup(t, creator)

	require.NoError(t, f.groups.Deactivate(context.Background(), group.ID))

	_, err := f.groups.AdvanceEpoch(context.Background(), group.ID, 0, []byte("state-1"))
	assert.ErrorIs(t, err, mls_errors.ErrInvalidState)

	// Deactivation is idempotent.
	assert.NoError(t, f.groups.Deactivate(context.Background(), group.ID))
}

func TestListGroupsByMember(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	_, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	groups, err := f.groups.ListByMember(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)

	groups, err = f.groups.ListByCreator(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}
