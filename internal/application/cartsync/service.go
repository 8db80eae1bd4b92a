package cartsync

import (
	"context"

	"go.uber.org/zap"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
)

// SyncService routes cart mutations to the stores that own them. Anonymous
// mutations stay in the device-scoped anonymous store; authenticated
// mutations are written to the per-user cache first and then pushed to the
// remote repository as a whole snapshot.
type SyncService struct {
	cache  cart.CacheStore
	remote cart.RemoteRepository
	logger *zap.Logger
}

// NewSyncService creates a sync service
func NewSyncService(cache cart.CacheStore, remote cart.RemoteRepository, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		cache:  cache,
		remote: remote,
		logger: logger,
	}
}

// UpdateItems persists a full cart snapshot for the given identity.
//
// For authenticated identities the cache write happens before the remote
// push, so a remote failure never loses the change from the user's own
// device: the error is returned to the caller, but the cached snapshot
// stands.
func (s *SyncService) UpdateItems(ctx context.Context, device cart.DeviceID, identity cart.Identity, items []cart.Item) error {
	if err := cart.ValidateItems(items); err != nil {
		return err
	}

	if !identity.IsAuthenticated() {
		return s.cache.SetAnonymousItems(ctx, device, items)
	}

	if err := s.cache.SetCachedItems(ctx, device, identity, items); err != nil {
		return err
	}
	if err := s.remote.ReplaceAll(ctx, identity, items); err != nil {
		s.logger.Warn("remote cart push failed, cached snapshot retained",
			zap.String("device_id", string(device)),
			zap.String("identity", identity.Key()),
			zap.Error(err))
		return err
	}
	return nil
}

// Clear empties every store the identity owns. The remote clear is
// best-effort: a failure is logged and swallowed, because the local stores
// are already empty and the next sign-in reconciles against the server.
func (s *SyncService) Clear(ctx context.Context, device cart.DeviceID, identity cart.Identity) error {
	if !identity.IsAuthenticated() {
		return s.cache.ClearAnonymous(ctx, device)
	}

	if err := s.cache.ClearCached(ctx, device, identity); err != nil {
		return err
	}
	if err := s.remote.Clear(ctx, identity); err != nil {
		s.logger.Warn("remote cart clear failed, will reconcile on next sign-in",
			zap.String("device_id", string(device)),
			zap.String("identity", identity.Key()),
			zap.Error(err))
	}
	return nil
}

// FetchRemote loads the authoritative remote snapshot for an authenticated
// identity.
func (s *SyncService) FetchRemote(ctx context.Context, identity cart.Identity) ([]cart.Item, error) {
	if !identity.IsAuthenticated() {
		return nil, shared.NewSessionError("anonymous identity has no remote cart")
	}
	return s.remote.Fetch(ctx, identity)
}
