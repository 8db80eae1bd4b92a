package cartsync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
	"github.com/reformshop/backend/internal/infrastructure/cache"
)

func newServiceFixture() (*cache.InMemoryCartStore, *fakeRemote, *SyncService) {
	store := cache.NewInMemoryCartStore()
	remote := newFakeRemote()
	return store, remote, NewSyncService(store, remote, zap.NewNop())
}

func TestSyncService_AnonymousUpdateStaysLocal(t *testing.T) {
	store, remote, svc := newServiceFixture()
	ctx := context.Background()
	line := productLine(t, uuid.New(), nil, 1)

	require.NoError(t, svc.UpdateItems(ctx, testDevice, cart.Anonymous(), []cart.Item{line}))

	anon, err := store.AnonymousItems(ctx, testDevice)
	require.NoError(t, err)
	assert.Len(t, anon, 1)
	assert.Zero(t, remote.replaceCalls, "anonymous mutations never reach the remote store")
}

func TestSyncService_AuthenticatedUpdateWritesCacheThenRemote(t *testing.T) {
	store, remote, svc := newServiceFixture()
	ctx := context.Background()
	user := cart.Authenticated(uuid.New())
	line := productLine(t, uuid.New(), nil, 2)

	require.NoError(t, svc.UpdateItems(ctx, testDevice, user, []cart.Item{line}))

	cached, err := store.CachedItems(ctx, testDevice, user)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Len(t, remote.snapshot(user), 1)
}

func TestSyncService_RemotePushFailurePropagatesButCacheStands(t *testing.T) {
	store, remote, svc := newServiceFixture()
	ctx := context.Background()
	user := cart.Authenticated(uuid.New())
	remote.replaceErr = shared.NewNetworkError("replace cart", assert.AnError)
	line := productLine(t, uuid.New(), nil, 2)

	err := svc.UpdateItems(ctx, testDevice, user, []cart.Item{line})

	require.Error(t, err)
	assert.True(t, shared.IsNetworkError(err))
	cached, cacheErr := store.CachedItems(ctx, testDevice, user)
	require.NoError(t, cacheErr)
	assert.Len(t, cached, 1, "the cache write precedes the remote push and survives its failure")
}

func TestSyncService_UpdateRejectsDuplicateItemIDs(t *testing.T) {
	_, _, svc := newServiceFixture()
	line := productLine(t, uuid.New(), nil, 1)

	err := svc.UpdateItems(context.Background(), testDevice, cart.Anonymous(), []cart.Item{line, line})

	require.Error(t, err)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
}

func TestSyncService_ClearSwallowsRemoteFailure(t *testing.T) {
	store, remote, svc := newServiceFixture()
	ctx := context.Background()
	user := cart.Authenticated(uuid.New())
	line := productLine(t, uuid.New(), nil, 1)
	require.NoError(t, store.SetCachedItems(ctx, testDevice, user, []cart.Item{line}))
	remote.clearErr = shared.NewNetworkError("clear cart", assert.AnError)

	err := svc.Clear(ctx, testDevice, user)

	require.NoError(t, err, "remote clear is best-effort")
	cached, cacheErr := store.CachedItems(ctx, testDevice, user)
	require.NoError(t, cacheErr)
	assert.Empty(t, cached)
}

func TestSyncService_ClearAnonymous(t *testing.T) {
	store, remote, svc := newServiceFixture()
	ctx := context.Background()
	require.NoError(t, store.SetAnonymousItems(ctx, testDevice, []cart.Item{productLine(t, uuid.New(), nil, 1)}))

	require.NoError(t, svc.Clear(ctx, testDevice, cart.Anonymous()))

	anon, err := store.AnonymousItems(ctx, testDevice)
	require.NoError(t, err)
	assert.Empty(t, anon)
	assert.Zero(t, remote.replaceCalls)
}

func TestSyncService_FetchRemoteRequiresAuthentication(t *testing.T) {
	_, _, svc := newServiceFixture()

	_, err := svc.FetchRemote(context.Background(), cart.Anonymous())

	require.Error(t, err)
	assert.True(t, shared.IsSessionError(err))
}
