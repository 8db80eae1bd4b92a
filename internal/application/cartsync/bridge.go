package cartsync

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
)

// IdentityBridge reacts to identity changes for one device. It drives
// teardown of the previous identity, initialization of the new one
// (including the anonymous-to-authenticated merge), and publishes the final
// snapshot to the device's CartState.
//
// Concurrent transitions to the same identity are deduplicated: the second
// caller awaits the first caller's in-flight operation instead of starting a
// second one. A transition to a different identity supersedes any in-flight
// work; the stale operation still runs to completion but its result is
// discarded rather than published for the now-wrong identity.
type IdentityBridge struct {
	device cart.DeviceID
	cache  cart.CacheStore
	remote cart.RemoteRepository
	state  *CartState
	logger *zap.Logger
	tracer trace.Tracer

	mu          sync.Mutex
	ready       bool
	initialized bool
	current     cart.Identity
	generation  uint64
	inflight    map[string]*transition
}

// transition is one in-flight identity initialization, tagged with the
// generation it was started for so superseded results can be discarded.
type transition struct {
	generation uint64
	done       chan struct{}
	err        error
}

// NewIdentityBridge creates a bridge for one device
func NewIdentityBridge(device cart.DeviceID, cache cart.CacheStore, remote cart.RemoteRepository, state *CartState, logger *zap.Logger) *IdentityBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityBridge{
		device:   device,
		cache:    cache,
		remote:   remote,
		state:    state,
		logger:   logger,
		tracer:   otel.Tracer("cartsync"),
		inflight: make(map[string]*transition),
	}
}

// SetReady allows the bridge to act on identity changes. Changes observed
// before readiness are ignored, so a transient startup value never triggers
// a merge.
func (b *IdentityBridge) SetReady() {
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
}

// Ready reports whether the bridge acts on identity changes
func (b *IdentityBridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Current returns the identity the bridge last initialized for
func (b *IdentityBridge) Current() cart.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// OnIdentityChange brings the device's cart state in line with the given
// identity. It is a no-op when the identity has not changed and no
// initialization is in flight. The only error it surfaces is a failed
// forced replace after a merge; every other failure degrades to a cached,
// anonymous, or empty snapshot.
func (b *IdentityBridge) OnIdentityChange(ctx context.Context, identity cart.Identity) error {
	b.mu.Lock()
	if !b.ready {
		b.mu.Unlock()
		b.logger.Debug("identity change before readiness, ignoring",
			zap.String("device_id", string(b.device)),
			zap.String("identity", identity.Key()))
		return nil
	}

	if b.initialized && identity.Equal(b.current) {
		op := b.inflight[identity.Key()]
		b.mu.Unlock()
		if op != nil {
			return b.await(ctx, op)
		}
		return nil
	}

	prev := b.current
	b.initialized = true
	b.current = identity
	b.generation++

	// Superseded transitions lose their dedup entries immediately so a later
	// transition back to the same identity starts fresh instead of awaiting
	// a stale operation.
	for key := range b.inflight {
		delete(b.inflight, key)
	}

	op := &transition{generation: b.generation, done: make(chan struct{})}
	b.inflight[identity.Key()] = op
	b.mu.Unlock()

	b.teardown(ctx, prev)
	b.run(ctx, op, identity)
	return b.await(ctx, op)
}

func (b *IdentityBridge) await(ctx context.Context, op *transition) error {
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// teardown removes state scoped to the identity being left: its cached
// snapshot and any merge lock. Anonymous needs no teardown.
func (b *IdentityBridge) teardown(ctx context.Context, prev cart.Identity) {
	if !prev.IsAuthenticated() {
		return
	}
	if err := b.cache.ClearCached(ctx, b.device, prev); err != nil {
		b.logger.Warn("cached snapshot cleanup failed during identity teardown",
			zap.String("device_id", string(b.device)),
			zap.String("identity", prev.Key()),
			zap.Error(err))
	}
	if err := b.cache.ReleaseMergeLock(ctx, b.device, prev); err != nil {
		b.logger.Warn("merge lock release failed during identity teardown",
			zap.String("device_id", string(b.device)),
			zap.String("identity", prev.Key()),
			zap.Error(err))
	}
}

// run executes one initialization and publishes its result unless a newer
// transition has superseded it in the meantime.
func (b *IdentityBridge) run(ctx context.Context, op *transition, identity cart.Identity) {
	ctx, span := b.tracer.Start(ctx, "cart.identity_transition",
		trace.WithAttributes(
			attribute.String("cart.device_id", string(b.device)),
			attribute.String("cart.identity", identity.Key()),
			attribute.Bool("cart.authenticated", identity.IsAuthenticated()),
		))
	defer span.End()

	var (
		items []cart.Item
		err   error
	)
	if identity.IsAuthenticated() {
		items, err = b.initializeAuthenticated(ctx, identity)
	} else {
		items = b.loadAnonymous(ctx)
	}

	b.mu.Lock()
	current := b.generation == op.generation
	if current {
		delete(b.inflight, identity.Key())
	}
	b.mu.Unlock()

	if current {
		b.state.Replace(items)
	} else {
		b.logger.Debug("discarding superseded identity transition result",
			zap.String("device_id", string(b.device)),
			zap.String("identity", identity.Key()))
		err = nil
	}

	op.err = err
	close(op.done)
}

// initializeAuthenticated fetches the remote snapshot, merges the anonymous
// cart into it when no valid merge lock exists, pushes the result back via a
// forced replace, and returns the items to publish.
//
// A failed fetch degrades to the identity's cached snapshot. A failed forced
// replace rolls the visible state back to the pre-merge remote snapshot and
// is the only error returned. Anything else unexpected degrades to the
// anonymous snapshot, or empty.
func (b *IdentityBridge) initializeAuthenticated(ctx context.Context, identity cart.Identity) ([]cart.Item, error) {
	remote, err := b.remote.Fetch(ctx, identity)
	if err != nil {
		if shared.IsSessionError(err) || shared.IsNetworkError(err) {
			b.logger.Warn("remote cart fetch failed, serving cached snapshot",
				zap.String("device_id", string(b.device)),
				zap.String("identity", identity.Key()),
				zap.Error(err))
			cached, cacheErr := b.cache.CachedItems(ctx, b.device, identity)
			if cacheErr != nil {
				return []cart.Item{}, nil
			}
			return cached, nil
		}
		b.logger.Error("unexpected failure fetching remote cart",
			zap.String("identity", identity.Key()),
			zap.Error(err))
		return b.loadAnonymous(ctx), nil
	}

	preMerge := cart.CloneItems(remote)
	final := remote

	locked, lockErr := b.cache.HasValidMergeLock(ctx, b.device, identity)
	if lockErr != nil {
		// lock reads degrade to absent, the same as any other cache read
		b.logger.Warn("merge lock check failed, treating lock as absent",
			zap.String("identity", identity.Key()),
			zap.Error(lockErr))
		locked = false
	}

	if locked {
		b.logger.Info("valid merge lock present, skipping merge",
			zap.String("device_id", string(b.device)),
			zap.String("identity", identity.Key()))
	} else {
		merged, mergeErr := b.mergeAnonymous(ctx, identity, remote)
		if mergeErr != nil {
			b.logger.Error("anonymous cart merge failed, falling back",
				zap.String("identity", identity.Key()),
				zap.Error(mergeErr))
			return b.loadAnonymous(ctx), nil
		}
		final = merged
	}

	if err := b.remote.ReplaceAll(ctx, identity, final); err != nil {
		b.logger.Error("forced cart replace failed, restoring pre-merge snapshot",
			zap.String("device_id", string(b.device)),
			zap.String("identity", identity.Key()),
			zap.Error(err))
		return preMerge, err
	}
	return final, nil
}

// mergeAnonymous folds the device's anonymous cart into the remote snapshot
// under the merge lock, empties the anonymous store, and caches the merged
// result. The lock is always released, success or failure.
func (b *IdentityBridge) mergeAnonymous(ctx context.Context, identity cart.Identity, remote []cart.Item) ([]cart.Item, error) {
	if err := b.cache.AcquireMergeLock(ctx, b.device, identity); err != nil {
		return nil, err
	}
	defer func() {
		if err := b.cache.ReleaseMergeLock(ctx, b.device, identity); err != nil {
			b.logger.Warn("merge lock release failed",
				zap.String("identity", identity.Key()),
				zap.Error(err))
		}
	}()

	anonymous, err := b.cache.AnonymousItems(ctx, b.device)
	if err != nil {
		b.logger.Warn("anonymous cart read failed, merging empty",
			zap.String("device_id", string(b.device)),
			zap.Error(err))
		anonymous = nil
	}

	merged, mergeErr := safeMerge(anonymous, remote)
	if mergeErr != nil {
		// a broken merge must never corrupt the visible cart, so the remote
		// snapshot stands and the anonymous cart is left untouched
		b.logger.Error("cart merge failed, keeping remote snapshot",
			zap.String("identity", identity.Key()),
			zap.Error(mergeErr))
		return cart.CloneItems(remote), nil
	}

	if err := b.cache.ClearAnonymous(ctx, b.device); err != nil {
		return nil, err
	}
	if err := b.cache.SetCachedItems(ctx, b.device, identity, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadAnonymous reads the device's anonymous snapshot, degrading to empty
func (b *IdentityBridge) loadAnonymous(ctx context.Context) []cart.Item {
	items, err := b.cache.AnonymousItems(ctx, b.device)
	if err != nil {
		b.logger.Warn("anonymous cart read failed, publishing empty cart",
			zap.String("device_id", string(b.device)),
			zap.Error(err))
		return []cart.Item{}
	}
	return items
}

// safeMerge shields callers from a panicking merge
func safeMerge(local, remote []cart.Item) (merged []cart.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			merged = nil
			err = shared.NewMergeError(fmt.Errorf("merge panicked: %v", r))
		}
	}()
	return cart.Merge(local, remote), nil
}
