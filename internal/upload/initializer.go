package upload

import (
	"context"
	"sync"

	"screen-recorder/internal/logging"
)

// Initializer prepares a Store once and hands out the ready handle.
// A failed preparation is not remembered, so the next call tries again.
type Initializer struct {
	store Store

	mu    sync.Mutex
	ready bool
}

// NewInitializer wraps store.
func NewInitializer(store Store) *Initializer {
	return &Initializer{store: store}
}

// Store returns the wrapped store whether or not it is ready.
func (i *Initializer) Store() Store { return i.store }

// EnsureReady prepares the store on first use and returns it.
func (i *Initializer) EnsureReady(ctx context.Context, token string) (Store, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.ready {
		return i.store, nil
	}
	if err := i.store.Prepare(ctx, token); err != nil {
		return nil, err
	}
	i.ready = true
	logging.Info("Storage backend %s ready", i.store.Name())
	return i.store, nil
}

// Ready reports whether preparation has succeeded.
func (i *Initializer) Ready() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ready
}
