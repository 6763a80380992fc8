package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mls-delivery/internal/domain"
	"mls-delivery/internal/repository/memory"
	"mls-delivery/internal/services"
)

// fixture wires every service against a shared in-memory store, the same
// shape as the wiring in cmd/api.
type fixture struct {
	store       *memory.Store
	users       *services.UserService
	clients     *services.ClientService
	keyPackages *services.KeyPackageService
	groups      *services.GroupService
	memberships *services.MembershipService
	messages    *services.MessageService
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store:       store,
		users:       services.NewUserService(store.Users()),
		clients:     services.NewClientService(store.Clients(), store.Users()),
		keyPackages: services.NewKeyPackageService(store.KeyPackages(), store.Clients()),
		groups:      services.NewGroupService(store.Groups(), store.Clients()),
		memberships: services.NewMembershipService(store.Memberships(), store.Groups(), store.Clients()),
		messages:    services.NewMessageService(store.Messages(), store.Groups(), store.Memberships(), store.Clients(), nil, nil),
	}
}

func (f *fixture) mustClient(t *testing.T, name string) domain.Client {
	t.Helper()
	user, err := f.users.Create(context.Background(), name)
	require.NoError(t, err)
	client, err := f.clients.Register(context.Background(), user.ID, name+"-identity", name+"-device")
	require.NoError(t, err)
	return client
}

func (f *fixture) mustGroup(t *testing.T, creator domain.Client) domain.Group {
	t.Helper()
	group, err := f.groups.Create(context.Background(), creator.ID, []byte("genesis-state"))
	require.NoError(t, err)
	return group
}
