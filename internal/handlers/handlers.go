package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"screen-recorder/internal/auth"
	"screen-recorder/internal/capture"
	"screen-recorder/internal/database"
	"screen-recorder/internal/edit"
	"screen-recorder/internal/media"
	"screen-recorder/internal/recorder"
	"screen-recorder/internal/streaming"
	"screen-recorder/internal/upload"
)

// Recorder is the session surface driven by the UI. *recorder.Machine
// implements it.
type Recorder interface {
	Snapshot() recorder.Snapshot
	Subscribe() (<-chan recorder.Snapshot, func())
	Start(ctx context.Context, opts capture.Options) error
	SkipCountdown() error
	Pause() error
	Resume() error
	Stop() error
	Delete() error
	Discard() error
	SetTitle(title string) error
	Upload(title string) error
	CancelUpload() error
	Reauthenticate() error
	Retry() error
	StartOver() error
	Preview() ([]byte, error)
}

// Remote resolves the object store and its credential for playback and
// deletes. *upload.Pipeline implements it.
type Remote interface {
	Store() upload.Store
	Token(ctx context.Context) (string, error)
}

// MemoryGuard reports heap pressure. *memory.Guard implements it.
type MemoryGuard interface {
	UnderPressure() bool
	Usage() float64
}

// Deps wires the handlers to the rest of the daemon.
type Deps struct {
	DB       *database.Database
	Recorder Recorder
	Broker   *auth.Broker
	Remote   Remote
	Posters  *media.PosterStore
	Renderer *edit.Renderer
	Memory   MemoryGuard
	UserID   string
}

type Handlers struct {
	db       *database.Database
	rec      Recorder
	broker   *auth.Broker
	remote   Remote
	posters  *media.PosterStore
	renderer *edit.Renderer
	memory   MemoryGuard
	userID   string
	stream   streaming.Config
	started  time.Time

	editMu sync.Mutex
}

var validate = validator.New()

func New(d Deps) *Handlers {
	return &Handlers{
		db:       d.DB,
		rec:      d.Recorder,
		broker:   d.Broker,
		remote:   d.Remote,
		posters:  d.Posters,
		renderer: d.Renderer,
		memory:   d.Memory,
		userID:   d.UserID,
		stream:   streaming.DefaultConfig(),
		started:  time.Now(),
	}
}
