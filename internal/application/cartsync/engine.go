package cartsync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
)

// Engine bundles the per-device pieces of the sync engine: the observable
// cart state, the identity bridge that maintains it, and the shared sync
// service that routes mutations.
type Engine struct {
	device cart.DeviceID
	state  *CartState
	bridge *IdentityBridge
	sync   *SyncService
}

// NewEngine wires an engine for one device
func NewEngine(device cart.DeviceID, cache cart.CacheStore, remote cart.RemoteRepository, logger *zap.Logger) *Engine {
	state := NewCartState()
	return &Engine{
		device: device,
		state:  state,
		bridge: NewIdentityBridge(device, cache, remote, state, logger),
		sync:   NewSyncService(cache, remote, logger),
	}
}

// Device returns the device this engine serves
func (e *Engine) Device() cart.DeviceID {
	return e.device
}

// State returns the device's observable cart state
func (e *Engine) State() *CartState {
	return e.state
}

// Bridge returns the device's identity bridge
func (e *Engine) Bridge() *IdentityBridge {
	return e.bridge
}

// Items returns the currently published snapshot
func (e *Engine) Items() []cart.Item {
	return e.state.Items()
}

// Sync brings the published snapshot in line with the given identity,
// running the anonymous-to-authenticated merge when one is due.
func (e *Engine) Sync(ctx context.Context, identity cart.Identity) error {
	return e.bridge.OnIdentityChange(ctx, identity)
}

// UpdateItems persists a full snapshot and publishes it. A remote push
// failure is returned to the caller but still publishes, because the local
// cache write already succeeded and the user's change must stay visible on
// their own device.
func (e *Engine) UpdateItems(ctx context.Context, identity cart.Identity, items []cart.Item) error {
	err := e.sync.UpdateItems(ctx, e.device, identity, items)
	if err == nil || shared.IsNetworkError(err) {
		e.state.Replace(items)
	}
	return err
}

// Clear empties the identity's stores and publishes an empty cart
func (e *Engine) Clear(ctx context.Context, identity cart.Identity) error {
	err := e.sync.Clear(ctx, e.device, identity)
	if err == nil {
		e.state.Replace(nil)
	}
	return err
}

// Manager hands out one Engine per device and propagates readiness to all
// of them. Engines are created lazily on first use of a device id.
type Manager struct {
	cache  cart.CacheStore
	remote cart.RemoteRepository
	logger *zap.Logger

	mu      sync.Mutex
	ready   bool
	engines map[cart.DeviceID]*Engine
}

// NewManager creates an engine manager
func NewManager(cache cart.CacheStore, remote cart.RemoteRepository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cache:   cache,
		remote:  remote,
		logger:  logger,
		engines: make(map[cart.DeviceID]*Engine),
	}
}

// SetReady marks every engine, present and future, ready to act on identity
// changes. Called once startup wiring is complete.
func (m *Manager) SetReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	for _, engine := range m.engines {
		engine.bridge.SetReady()
	}
}

// Ready reports whether startup wiring has completed
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Engine returns the engine for a device, creating it on first use
func (m *Manager) Engine(device cart.DeviceID) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.engines[device]
	if !ok {
		engine = NewEngine(device, m.cache, m.remote, m.logger)
		if m.ready {
			engine.bridge.SetReady()
		}
		m.engines[device] = engine
	}
	return engine
}
