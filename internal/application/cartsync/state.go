package cartsync

import (
	"sync"

	"github.com/reformshop/backend/internal/domain/cart"
)

// CartState is the single in-memory cart snapshot a device's UI reads.
// Every other component treats it as a write target only: decisions are made
// from the cache store and the remote repository, never from this
// cache-of-a-cache.
type CartState struct {
	mu        sync.RWMutex
	items     []cart.Item
	listeners map[int]func([]cart.Item)
	nextID    int
}

// NewCartState creates an empty cart state
func NewCartState() *CartState {
	return &CartState{
		items:     []cart.Item{},
		listeners: make(map[int]func([]cart.Item)),
	}
}

// Items returns a copy of the current snapshot
func (s *CartState) Items() []cart.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cart.CloneItems(s.items)
}

// Replace atomically swaps the snapshot and notifies subscribers. Readers
// never observe a partially applied snapshot.
func (s *CartState) Replace(items []cart.Item) {
	snapshot := cart.CloneItems(items)

	s.mu.Lock()
	s.items = snapshot
	listeners := make([]func([]cart.Item), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cart.CloneItems(snapshot))
	}
}

// Subscribe registers a listener called on every Replace. The returned
// cancel function removes the listener.
func (s *CartState) Subscribe(fn func([]cart.Item)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
