package upload

import (
	"context"
	"io"
	"time"
)

// ContentType is the MIME type of uploaded recordings.
const ContentType = "video/webm"

// Metadata is the envelope sent with an upload.
type Metadata struct {
	Title       string
	ContentType string
	Duration    float64
}

// Object is a stored recording.
type Object struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

// Download is an open, possibly partial, object body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	// ContentRange is set when a range was requested and honoured.
	ContentRange string
}

// Store is a remote object store. token is the bearer credential for
// stores that need one and is ignored by the others.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// NeedsToken reports whether calls require a credential.
	NeedsToken() bool
	// Prepare performs one-time setup such as locating the target folder.
	Prepare(ctx context.Context, token string) error
	// Upload stores size bytes read from body.
	Upload(ctx context.Context, token string, body io.Reader, size int64, meta Metadata) (*Object, error)
	// MakeShareable grants link access and returns the shareable link.
	MakeShareable(ctx context.Context, token, id string) (string, error)
	// Download opens the object. rangeHeader is an HTTP Range value or empty.
	Download(ctx context.Context, token, id, rangeHeader string) (*Download, error)
	Delete(ctx context.Context, token, id string) error
	List(ctx context.Context, token string) ([]Object, error)
}
