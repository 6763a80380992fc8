package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mls_errors "mls-delivery/pkg/errors"
)

func TestPublishKeyPackage(t *testing.T) {
	f := newFixture()
	client := f.mustClient(t, "alice")

	kp, err := f.keyPackages.Publish(context.Background(), client.ID, []byte("kp-data"))
	require.NoError(t, err)
	assert.Equal(t, client.ID, kp.ClientID)
	assert.False(t, kp.Used)

	listed, err := f.keyPackages.List(context.Background(), client.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kp.ID, listed[0].ID)
}

func TestPublishKeyPackageEmptyData(t *testing.T) {
	f := newFixture()
	client := f.mustClient(t, "alice")

	_, err := f.keyPackages.Publish(context.Background(), client.ID, nil)
	assert.ErrorIs(t, err, mls_errors.ErrInvalidInput)
}

func TestPublishKeyPackageUnknownClient(t *testing.T) {
	f := newFixture()

	_, err := f.keyPackages.Publish(context.Background(), uuid.New(), []byte("kp-data"))
	assert.ErrorIs(t, err, mls_errors.ErrNotFound)
}

func TestReserveKeyPackageIsSingleUse(t *testing.T) {
	f := newFixture()
	client := f.mustClient(t, "alice")
	kp, err := f.keyPackages.Publish(context.Background(), client.ID, []byte("kp-data"))
	require.NoError(t, err)

	data, err := f.keyPackages.Reserve(context.Background(), kp.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("kp-data"), data)

	_, err = f.keyPackages.Reserve(context.Background(), kp.ID)
	assert.ErrorIs(t, err, mls_errors.ErrConflict)

	got, err := f.keyPackages.Get(context.Background(), kp.ID)
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestReserveKeyPackageUnknown(t *testing.T) {
	f := newFixture()

	_, err := f.keyPackages.Reserve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, mls_errors.ErrNotFound)
}

func TestConcurrentReserveExactlyOneWins(t *testing.T) {
	f := newFixture()
	client := f.mustClient(t, "alice")
	kp, err := f.keyPackages.Publish(context.Background(), client.ID, []byte("kp-data"))
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.keyPackages.Reserve(context.Background(), kp.ID)
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
}
