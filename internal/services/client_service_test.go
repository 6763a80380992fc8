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

func TestCreateUserRequiresDisplayName(t *testing.T) {
	f := newFixture()

	_, err := f.users.Create(context.Background(), "   ")
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestRegisterClient(t *testing.T) {
	f := newFixture()
	user, err := f.users.Create(context.Background(), "alice")
	require.NoError(t, err)

	client, err := f.clients.Register(context.Background(), user.ID, "alice-identity", "laptop")
	require.NoError(t, err)
	assert.Equal(t, user.ID, client.UserID)
	assert.Equal(t, domain.CredentialSchemeBasic, client.Scheme)
	assert.Equal(t, []byte("alice-identity"), client.Credential)

	listed, err := f.clients.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestRegisterClientEmptyIdentity(t *testing.T) {
	f := newFixture()
	user, err := f.users.Create(context.Background(), "alice")
	require.NoError(t, err)

	_, err = f.clients.Register(context.Background(), user.ID, "", "laptop")
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestRegisterClientUnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.clients.Register(context.Background(), uuid.New(), "identity", "laptop")
	assert.ErrorIs(t, err, mls_errors.ErrNotFound)
}

func TestRegisterClientForDeactivatedUser(t *testing.T) {
	f := newFixture()
	user, err := f.users.Create(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, f.users.Deactivate(context.Background(), user.ID))

	_, err = f.clients.Register(context.Background(), user.ID, "identity", "laptop")
	assert.ErrorIs(t, err, mls_errors.ErrInvalidState)
}

func TestGetClientTouchesLastSeen(t *testing.T) {
	f := newFixture()
	client := f.mustClient(t, "alice")

	got, err := f.clients.Get(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)

	// The liveness timestamp moves on subsequent reads.
	again, err := f.clients.Get(context.Background(), client.ID)
	require.NoError(t, err)
	assert.False(t, again.LastSeen.Before(got.LastSeen))
}
