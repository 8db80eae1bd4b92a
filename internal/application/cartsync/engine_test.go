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

func newEngineFixture() (*fakeRemote, *Engine) {
	remote := newFakeRemote()
	engine := NewEngine(testDevice, cache.NewInMemoryCartStore(), remote, zap.NewNop())
	engine.Bridge().SetReady()
	return remote, engine
}

func TestEngine_UpdatePublishesSnapshot(t *testing.T) {
	_, engine := newEngineFixture()
	line := productLine(t, uuid.New(), nil, 2)

	require.NoError(t, engine.UpdateItems(context.Background(), cart.Anonymous(), []cart.Item{line}))

	published := engine.Items()
	require.Len(t, published, 1)
	assert.Equal(t, line.ID, published[0].ID)
}

func TestEngine_UpdateStillPublishesOnRemoteFailure(t *testing.T) {
	remote, engine := newEngineFixture()
	remote.replaceErr = shared.NewNetworkError("replace cart", assert.AnError)
	line := productLine(t, uuid.New(), nil, 2)

	err := engine.UpdateItems(context.Background(), cart.Authenticated(uuid.New()), []cart.Item{line})

	require.Error(t, err)
	assert.Len(t, engine.Items(), 1, "the user's change stays visible on their own device")
}

func TestEngine_ClearPublishesEmptyCart(t *testing.T) {
	_, engine := newEngineFixture()
	ctx := context.Background()
	line := productLine(t, uuid.New(), nil, 1)
	require.NoError(t, engine.UpdateItems(ctx, cart.Anonymous(), []cart.Item{line}))

	require.NoError(t, engine.Clear(ctx, cart.Anonymous()))

	assert.Empty(t, engine.Items())
}

func TestManager_OneEnginePerDevice(t *testing.T) {
	m := NewManager(cache.NewInMemoryCartStore(), newFakeRemote(), zap.NewNop())

	a := m.Engine("device-a")
	b := m.Engine("device-b")

	assert.Same(t, a, m.Engine("device-a"))
	assert.NotSame(t, a, b)
}

func TestManager_ReadinessPropagates(t *testing.T) {
	m := NewManager(cache.NewInMemoryCartStore(), newFakeRemote(), zap.NewNop())
	existing := m.Engine("device-a")
	assert.False(t, existing.Bridge().Ready())

	m.SetReady()

	assert.True(t, existing.Bridge().Ready())
	assert.True(t, m.Engine("device-b").Bridge().Ready(), "engines created after readiness start ready")
}

func TestCartState_SubscribeAndCancel(t *testing.T) {
	state := NewCartState()
	var calls int
	cancel := state.Subscribe(func([]cart.Item) { calls++ })

	line := productLine(t, uuid.New(), nil, 1)
	state.Replace([]cart.Item{line})
	cancel()
	state.Replace(nil)

	assert.Equal(t, 1, calls)
}

func TestCartState_ItemsReturnsIsolatedCopy(t *testing.T) {
	state := NewCartState()
	line := productLine(t, uuid.New(), nil, 1)
	state.Replace([]cart.Item{line})

	got := state.Items()
	got[0].Quantity = 99

	assert.Equal(t, int64(1), state.Items()[0].Quantity)
}
