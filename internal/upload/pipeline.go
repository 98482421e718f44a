package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"screen-recorder/internal/logging"
)

// TokenSource supplies the current bearer token. An empty token with a nil
// error means the user is not signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Result is the outcome of a successful upload.
type Result struct {
	RemoteID string `json:"remoteId"`
	Link     string `json:"link"`
	Name     string `json:"name"`
}

// Job is the one upload a Pipeline may run at a time.
type Job struct {
	ID       string
	Filename string
	Size     int64
	Started  time.Time

	cancel context.CancelFunc
}

// Pipeline uploads recordings through a prepared store.
type Pipeline struct {
	init   *Initializer
	tokens TokenSource

	mu     sync.Mutex
	active *Job
}

// NewPipeline creates a pipeline. tokens may be nil for stores that do not
// need a credential.
func NewPipeline(init *Initializer, tokens TokenSource) *Pipeline {
	return &Pipeline{init: init, tokens: tokens}
}

// Store returns the underlying store for downloads and deletes.
func (p *Pipeline) Store() Store { return p.init.Store() }

// Active returns the in-flight job, or nil.
func (p *Pipeline) Active() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Cancel aborts the in-flight upload. It reports whether one was running.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return false
	}
	p.active.cancel()
	logging.Info("Canceling upload %s", p.active.ID)
	return true
}

// Token resolves a credential for the store. It returns ErrUnauthorized
// when the store needs one and none is available.
func (p *Pipeline) Token(ctx context.Context) (string, error) {
	if !p.init.Store().NeedsToken() {
		return "", nil
	}
	if p.tokens == nil {
		return "", fmt.Errorf("%w: no credential provider", ErrUnauthorized)
	}
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: not signed in", ErrUnauthorized)
	}
	return token, nil
}

// Upload transfers blob as filename and makes it shareable. Only one upload
// runs at a time; a concurrent call fails with ErrUploadInProgress.
func (p *Pipeline) Upload(ctx context.Context, blob []byte, filename string, duration float64, onProgress ProgressFunc) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	job := &Job{
		ID:       uuid.NewString(),
		Filename: filename,
		Size:     int64(len(blob)),
		Started:  time.Now(),
		cancel:   cancel,
	}

	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	p.active = job
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()
	}()

	store := p.init.Store()
	result, err := p.run(ctx, job, blob, duration, onProgress)
	if o := defaultObserver; o != nil {
		o.ObserveUpload(store.Name(), resultLabel(err), job.Size, time.Since(job.Started).Seconds())
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, job *Job, blob []byte, duration float64, onProgress ProgressFunc) (*Result, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}

	store, err := p.init.EnsureReady(ctx, token)
	if err != nil {
		return nil, err
	}

	logging.Info("Uploading %s (%d bytes) to %s", job.Filename, job.Size, store.Name())

	body := newProgressReader(bytes.NewReader(blob), job.Size, onProgress)
	obj, err := store.Upload(ctx, token, body, job.Size, Metadata{
		Title:       job.Filename,
		ContentType: ContentType,
		Duration:    duration,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		logging.Warn("Upload of %s failed: %v", job.Filename, err)
		return nil, err
	}
	body.complete()

	result := &Result{RemoteID: obj.ID, Link: obj.Link, Name: obj.Name}

	// The object is stored; sharing is best effort.
	link, err := store.MakeShareable(ctx, token, obj.ID)
	if err != nil {
		logging.Warn("Failed to make %s shareable: %v", obj.ID, err)
		if o := defaultObserver; o != nil {
			o.ObserveShareFailure(store.Name())
		}
	} else if link != "" {
		result.Link = link
	}

	logging.Info("Upload of %s complete: %s", job.Filename, result.RemoteID)
	return result, nil
}

func resultLabel(err error) string {
	var disabled *ServiceDisabledError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &disabled):
		return "service_disabled"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	default:
		return "network"
	}
}
