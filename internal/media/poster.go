package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"screen-recorder/internal/filesystem"
	"screen-recorder/internal/logging"
)

const (
	// PosterWidth and PosterHeight bound a stored poster.
	PosterWidth  = 640
	PosterHeight = 360

	posterQuality = 80
)

var (
	// ErrPosterNotFound means no poster was stored for the recording.
	ErrPosterNotFound = errors.New("poster not found")
	// ErrPostersDisabled means the store has no usable cache directory.
	ErrPostersDisabled = errors.New("posters disabled")
	errInvalidID       = errors.New("invalid recording id")
)

// PosterStore keeps one JPEG poster per recording in a cache directory.
type PosterStore struct {
	cacheDir string
	enabled  bool
	retry    filesystem.RetryConfig
	mu       sync.Mutex
}

// NewPosterStore creates a store under cacheDir. A disabled store accepts
// and discards posters.
func NewPosterStore(cacheDir string, enabled bool) *PosterStore {
	if enabled {
		logging.Debug("PosterStore: enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logging.Warn("PosterStore: failed to create cache dir: %v", err)
			enabled = false
		}
	} else {
		logging.Debug("PosterStore: disabled")
	}
	return &PosterStore{cacheDir: cacheDir, enabled: enabled, retry: filesystem.DefaultRetryConfig()}
}

// IsEnabled reports whether posters are written to disk.
func (p *PosterStore) IsEnabled() bool {
	return p.enabled
}

// SavePoster fits img into the poster box and stores it for recordingID.
func (p *PosterStore) SavePoster(recordingID string, img image.Image) error {
	if !p.enabled {
		return nil
	}
	if img == nil {
		return errors.New("poster image is nil")
	}
	path, err := p.path(recordingID)
	if err != nil {
		return err
	}

	thumb := imaging.Fit(img, PosterWidth, PosterHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: posterQuality}); err != nil {
		return fmt.Errorf("failed to encode poster: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := filesystem.WriteFileAtomic(path, buf.Bytes(), 0o644, p.retry); err != nil {
		return fmt.Errorf("failed to store poster: %w", err)
	}

	logging.Debug("Poster cached: %s (%dx%d)", path, thumb.Bounds().Dx(), thumb.Bounds().Dy())
	return nil
}

// Poster returns the stored JPEG bytes.
func (p *PosterStore) Poster(recordingID string) ([]byte, error) {
	if !p.enabled {
		return nil, ErrPostersDisabled
	}
	path, err := p.path(recordingID)
	if err != nil {
		return nil, err
	}
	data, err := filesystem.ReadFile(path, p.retry)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrPosterNotFound
	}
	return data, err
}

// PosterImage returns the stored poster decoded, or a black frame of the
// poster size when none exists.
func (p *PosterStore) PosterImage(recordingID string) (image.Image, error) {
	data, err := p.Poster(recordingID)
	if errors.Is(err, ErrPosterNotFound) || errors.Is(err, ErrPostersDisabled) {
		return Blank(), nil
	}
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster: %w", err)
	}
	return img, nil
}

// DeletePoster removes a stored poster. A missing poster is not an error.
func (p *PosterStore) DeletePoster(recordingID string) error {
	if !p.enabled {
		return nil
	}
	path, err := p.path(recordingID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return filesystem.Remove(path, p.retry)
}

// Blank returns a black frame of the poster size.
func Blank() *image.NRGBA {
	return imaging.New(PosterWidth, PosterHeight, color.Black)
}

func (p *PosterStore) path(recordingID string) (string, error) {
	if recordingID == "" || strings.ContainsAny(recordingID, `/\.`) {
		return "", errInvalidID
	}
	return filepath.Join(p.cacheDir, recordingID+".jpg"), nil
}
