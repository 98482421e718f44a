package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"screen-recorder/internal/logging"
)

// ErrAuthTimeout means no token arrived before the re-authentication
// request expired.
var ErrAuthTimeout = errors.New("re-authentication timed out")

// DefaultTimeout bounds how long Reauthenticate waits for the callback.
const DefaultTimeout = 2 * time.Minute

// Observer records re-authentication outcomes.
type Observer interface {
	ObserveReauth(result string)
}

var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

// future resolves exactly once.
type future struct {
	done  chan struct{}
	once  sync.Once
	token string
	err   error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(token string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.token, f.err = token, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Broker holds the current token and brokers re-authentication.
type Broker struct {
	vault   *Vault
	timeout time.Duration

	mu      sync.Mutex
	token   string
	loaded  bool
	pending *future
}

// NewBroker creates a broker. vault may be nil to keep tokens in memory only.
func NewBroker(vault *Vault, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Broker{vault: vault, timeout: timeout}
}

// Token returns the current token, loading it from the vault on first use.
// It returns an empty string when the user is not signed in.
func (b *Broker) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded && b.vault != nil {
		token, _, err := b.vault.Load(ctx)
		switch {
		case err == nil:
			b.token = token
		case errors.Is(err, ErrNoCredential):
		default:
			logging.Warn("Failed to load stored credential: %v", err)
		}
	}
	b.loaded = true
	return b.token, nil
}

// Invalidate forgets the cached token, for example after the store
// rejected it.
func (b *Broker) Invalidate() {
	b.mu.Lock()
	b.token = ""
	b.loaded = true
	b.mu.Unlock()
}

// Pending reports whether a re-authentication request is waiting for its
// callback.
func (b *Broker) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// Reauthenticate opens a request and waits for Deliver, the timeout or ctx.
// Concurrent callers share the same request.
func (b *Broker) Reauthenticate(ctx context.Context) (string, error) {
	b.mu.Lock()
	f := b.pending
	if f == nil {
		f = newFuture()
		b.pending = f
		logging.Info("Waiting for re-authentication callback (timeout %v)", b.timeout)
	}
	b.mu.Unlock()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-f.done:
	case <-timer.C:
		f.resolve("", ErrAuthTimeout)
	case <-ctx.Done():
		f.resolve("", ctx.Err())
	}

	b.mu.Lock()
	if b.pending == f {
		b.pending = nil
	}
	b.mu.Unlock()

	result := "success"
	if f.err != nil {
		result = "timeout"
		if !errors.Is(f.err, ErrAuthTimeout) {
			result = "canceled"
		}
	}
	if o := defaultObserver; o != nil {
		o.ObserveReauth(result)
	}
	return f.token, f.err
}

// Deliver sets a new token, persists it and resolves any pending request.
// It reports whether a request was waiting.
func (b *Broker) Deliver(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, errors.New("empty token")
	}

	b.mu.Lock()
	b.token = token
	b.loaded = true
	f := b.pending
	b.mu.Unlock()

	var saveErr error
	if b.vault != nil {
		if err := b.vault.Save(ctx, token); err != nil {
			saveErr = fmt.Errorf("failed to persist credential: %w", err)
			logging.Warn("%v", saveErr)
		}
	}

	if f != nil && f.resolve(token, nil) {
		logging.Info("Re-authentication completed")
		return true, saveErr
	}
	return false, saveErr
}

// SignOut clears the token from memory and the vault.
func (b *Broker) SignOut(ctx context.Context) error {
	b.Invalidate()
	if b.vault == nil {
		return nil
	}
	if err := b.vault.Clear(ctx); err != nil && !errors.Is(err, ErrNoCredential) {
		return err
	}
	return nil
}
