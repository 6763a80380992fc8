package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mls-delivery/internal/domain"
	mls_errors "mls-delivery/pkg/errors"
)

func TestAddMemberAdvancesEpoch(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	m, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, m.Role)
	assert.Equal(t, uint64(1), m.AddedEpoch)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Epoch)
}

func TestAddMemberInvalidRole(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	_, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, "owner", nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestAddDuplicateActiveMember(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	_, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	_, err = f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	// The failed add must not have advanced the epoch.
	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Epoch)
}

func TestAddMemberConsumesKeyPackage(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	kp, err := f.keyPackages.Publish(context.Background(), bob.ID, []byte("kp-data"))
	require.NoError(t, err)

	_, err = f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, &kp.ID)
	require.NoError(t, err)

	got, err := f.keyPackages.Get(context.Background(), kp.ID)
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestAddMemberWithSpentKeyPackageChangesNothing(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	kp, err := f.keyPackages.Publish(context.Background(), bob.ID, []byte("kp-data"))
	require.NoError(t, err)
	_, err = f.keyPackages.Reserve(context.Background(), kp.ID)
	require.NoError(t, err)

	_, err = f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, &kp.ID)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Epoch)

	members, err := f.memberships.ListByClient(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAddMemberToInactiveGroup(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)
	require.NoError(t, f.groups.Deactivate(context.Background(), group.ID))

	_, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidState)
}

func TestRemoveMemberClosesIntervalAndAdvancesEpoch(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	m, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	removed, err := f.memberships.RemoveMember(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, removed.Active())
	require.NotNil(t, removed.RemovedEpoch)
	assert.Equal(t, uint64(2), *removed.RemovedEpoch)

	got, err := f.groups.Get(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Epoch)

	// Removing a closed interval again is a conflict.
	_, err = f.memberships.RemoveMember(context.Background(), m.ID)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)
}

func TestReAddAfterRemove(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	m, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)
	_, err = f.memberships.RemoveMember(context.Background(), m.ID)
	require.NoError(t, err)

	again, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)
	assert.NotEqual(t, m.ID, again.ID)
	assert.Equal(t, uint64(3), again.AddedEpoch)

	// Both intervals remain in the ledger.
	members, err := f.memberships.ListByGroup(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestActiveRecipientsEpochFilter(t *testing.T) {
	f := newFixture()
	alice := f.mustClient(t, "alice")
	bob := f.mustClient(t, "bob")
	group := f.mustGroup(t, alice)

	m, err := f.memberships.AddMember(context.Background(), group.ID, bob.ID, domain.RoleMember, nil)
	require.NoError(t, err)

	// As of genesis only the creator was present.
	recipients, err := f.memberships.ActiveRecipients(context.Background(), group.ID, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID}, recipients)

	recipients, err = f.memberships.ActiveRecipients(context.Background(), group.ID, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, recipients)

	_, err = f.memberships.RemoveMember(context.Background(), m.ID)
	require.NoError(t, err)

	recipients, err = f.memberships.ActiveRecipients(context.Background(), group.ID, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID}, recipients)
}
