package handlers

import (
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"screen-recorder/internal/database"
	"screen-recorder/internal/edit"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/media"
	"screen-recorder/internal/metrics"
	"screen-recorder/internal/streaming"
	"screen-recorder/internal/upload"
)

// ListRecordings returns the user's recordings, newest first.
func (h *Handlers) ListRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.db.ListRecordings(r.Context(), h.userID)
	if err != nil {
		logging.Error("List recordings failed: %v", err)
		writeJSONError(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}
	writeJSONValue(w, recordings)
}

// GetStats summarises the user's library.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.RecordingStats(r.Context(), h.userID)
	if err != nil {
		logging.Error("Recording stats failed: %v", err)
		writeJSONError(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSONValue(w, stats)
}

// ListRemote lists the recordings held by the remote store, including
// ones without local metadata.
func (h *Handlers) ListRemote(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		writeJSONError(w, "No remote store configured", http.StatusServiceUnavailable)
		return
	}
	token, err := h.remote.Token(r.Context())
	if err != nil {
		h.writeRemoteError(w, "list", err)
		return
	}
	objects, err := h.remote.Store().List(r.Context(), token)
	if err != nil {
		h.writeRemoteError(w, "list", err)
		return
	}
	if objects == nil {
		objects = []upload.Object{}
	}
	writeJSONValue(w, objects)
}

// GetRecording returns one recording.
func (h *Handlers) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSONValue(w, rec)
}

// UpdateRecording applies a partial metadata update.
func (h *Handlers) UpdateRecording(w http.ResponseWriter, r *http.Request) {
	var req database.RecordingUpdate
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeJSONError(w, "Title cannot be empty", http.StatusBadRequest)
		return
	}

	rec, err := h.db.UpdateRecordingMetadata(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		h.writeRecordingError(w, "update", err)
		return
	}
	writeJSONValue(w, rec)
}

// SaveEdit persists the editor state: title, trim window, mute and
// overlays. The document is normalised before it is stored.
func (h *Handlers) SaveEdit(w http.ResponseWriter, r *http.Request) {
	var doc edit.Document
	if err := decodeJSON(r, &doc, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	rec, err := h.db.SaveEdit(r.Context(), mux.Vars(r)["id"], doc)
	if err != nil {
		h.writeRecordingError(w, "edit", err)
		return
	}
	logging.Info("Recording %s edited: trim [%.1f, %.1f], %d overlays", rec.ID, rec.StartTime, rec.EndTime, len(rec.Overlays))
	writeJSONValue(w, rec)
}

// DeleteRecording removes the remote object, the metadata and the poster.
// A remote delete failure is logged and does not block the local delete.
func (h *Handlers) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if h.remote != nil && rec.StoragePath != "" {
		if err := h.deleteRemote(r, rec.StoragePath); err != nil {
			logging.Warn("Remote delete of %s failed: %v", rec.StoragePath, err)
		}
	}

	if err := h.db.DeleteRecording(r.Context(), rec.ID); err != nil {
		h.writeRecordingError(w, "delete", err)
		return
	}
	if h.posters != nil {
		if err := h.posters.DeletePoster(rec.ID); err != nil {
			logging.Warn("Poster delete for %s failed: %v", rec.ID, err)
		}
	}

	logging.Info("Recording %s deleted", rec.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteRemote(r *http.Request, remoteID string) error {
	token, err := h.remote.Token(r.Context())
	if err != nil {
		return err
	}
	err = h.remote.Store().Delete(r.Context(), token, remoteID)
	if errors.Is(err, upload.ErrNotFound) {
		return nil
	}
	return err
}

// StreamVideo proxies a (possibly ranged) download of the recording from
// the remote store to the client.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.remote == nil || rec.StoragePath == "" {
		writeJSONError(w, "Recording has no stored video", http.StatusNotFound)
		return
	}

	ctx := r.Context()
	token, err := h.remote.Token(ctx)
	if err != nil {
		h.writeRemoteError(w, rec.ID, err)
		return
	}
	dl, err := h.remote.Store().Download(ctx, token, rec.StoragePath, r.Header.Get("Range"))
	if err != nil {
		h.writeRemoteError(w, rec.ID, err)
		return
	}

	cfg := h.stream
	cfg.OnProgress = func(written int64, elapsed time.Duration) {
		logging.Debug("Playback %s: %d bytes in %v", rec.ID, written, elapsed.Round(time.Millisecond))
	}

	n, err := streaming.Proxy(ctx, w, dl, cfg)
	metrics.PlaybackBytesTotal.Add(float64(n))
	switch {
	case err == nil:
		logging.Debug("Playback %s complete: %d bytes", rec.ID, n)
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("Playback %s aborted by client after %d bytes", rec.ID, n)
	default:
		logging.Warn("Playback %s stopped after %d bytes: %v", rec.ID, n, err)
	}
}

// GetThumbnail serves the poster frame of a recording, or a black frame
// when none was kept.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if h.posters != nil {
		data, err := h.posters.Poster(rec.ID)
		if err == nil {
			if _, err := w.Write(data); err != nil {
				logging.Debug("Thumbnail write for %s failed: %v", rec.ID, err)
			}
			return
		}
		if !errors.Is(err, media.ErrPosterNotFound) && !errors.Is(err, media.ErrPostersDisabled) {
			logging.Warn("Thumbnail for %s unavailable: %v", rec.ID, err)
		}
	}

	if err := imaging.Encode(w, media.Blank(), imaging.JPEG); err != nil {
		logging.Debug("Blank thumbnail write failed: %v", err)
	}
}

// RenderOverlays draws the persisted overlays over the poster frame as a
// PNG preview.
func (h *Handlers) RenderOverlays(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.renderer == nil {
		writeJSONError(w, "Overlay rendering unavailable", http.StatusServiceUnavailable)
		return
	}

	var poster image.Image = media.Blank()
	if h.posters != nil {
		img, err := h.posters.PosterImage(rec.ID)
		if err != nil {
			logging.Warn("Poster for %s unavailable, rendering on blank: %v", rec.ID, err)
		} else {
			poster = img
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := h.renderer.EncodePNG(w, poster, rec.Overlays); err != nil {
		logging.Error("Overlay render for %s failed: %v", rec.ID, err)
	}
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*database.Recording, bool) {
	rec, err := h.db.GetRecording(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeRecordingError(w, "lookup", err)
		return nil, false
	}
	return rec, true
}

func (h *Handlers) writeRecordingError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, database.ErrRecordingNotFound) {
		writeJSONError(w, "Recording not found", http.StatusNotFound)
		return
	}
	logging.Error("Recording %s failed: %v", action, err)
	writeJSONError(w, "Failed to "+action+" recording", http.StatusInternalServerError)
}

func (h *Handlers) writeRemoteError(w http.ResponseWriter, id string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, upload.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, upload.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, upload.ErrNotFound):
		status = http.StatusNotFound
	}
	logging.Warn("Remote store request for %s failed: %v", id, err)
	writeJSONError(w, err.Error(), status)
}
