package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"screen-recorder/internal/logging"
	"screen-recorder/internal/upload"
)

// Proxy copies a remote download to the client, preserving range
// semantics. The body is closed before Proxy returns. Errors caused by the
// client leaving are reported as ErrClientGone so callers can ignore them.
func Proxy(ctx context.Context, w http.ResponseWriter, dl *upload.Download, cfg Config) (int64, error) {
	defer func() {
		if err := dl.Body.Close(); err != nil {
			logging.Debug("Failed to close upstream body: %v", err)
		}
	}()

	h := w.Header()
	contentType := dl.ContentType
	if contentType == "" {
		contentType = upload.ContentType
	}
	h.Set("Content-Type", contentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "private, max-age=300")
	if dl.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}

	status := http.StatusOK
	if dl.ContentRange != "" {
		h.Set("Content-Range", dl.ContentRange)
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	sw := NewWriter(ctx, w, cfg)
	defer sw.Close()

	_, err := io.Copy(sw, dl.Body)
	written, elapsed := sw.Stats()
	logging.Debug("Proxied %d bytes in %v (status %d)", written, elapsed, status)

	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrWriteTimeout) {
		return written, ErrClientGone
	}
	return written, err
}
