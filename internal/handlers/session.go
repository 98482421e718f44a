package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/metrics"
	"screen-recorder/internal/recorder"
	"screen-recorder/internal/upload"
)

// sseHeartbeat keeps idle event streams open through proxies.
const sseHeartbeat = 15 * time.Second

// StartRequest selects the optional sources of a new session.
type StartRequest struct {
	Mic    bool `json:"mic"`
	Camera bool `json:"camera"`
}

// TitleRequest carries a recording title.
type TitleRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// GetSession returns the current session snapshot.
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONValue(w, h.rec.Snapshot())
}

// SessionEvents streams a snapshot on every session change as server-sent
// events until the client goes away or the recorder shuts down.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := h.rec.Subscribe()
	defer unsubscribe()

	metrics.SSEClientsConnected.Inc()
	defer metrics.SSEClientsConnected.Dec()
	logging.Debug("Session event stream opened for %s", r.RemoteAddr)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logging.Debug("Session event stream closed by %s", r.RemoteAddr)
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				logging.Debug("Session event stream write failed: %v", err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, snap recorder.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("event: session\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	_, err = w.Write(buf.Bytes())
	return err
}

// StartSession acquires the sources and begins the countdown.
func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}
	if h.memory != nil && h.memory.UnderPressure() {
		logging.Warn("Refusing to start a recording: memory usage at %.0f%% of limit", h.memory.Usage()*100)
		writeJSONError(w, "not enough memory to start a recording", http.StatusServiceUnavailable)
		return
	}
	opts := capture.Options{Mic: req.Mic, Camera: req.Camera}
	if err := h.rec.Start(r.Context(), opts); err != nil {
		h.writeSessionError(w, "start", err)
		return
	}
	writeJSONValue(w, h.rec.Snapshot())
}

// UploadSession uploads the recording under preview.
func (h *Handlers) UploadSession(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.rec.Upload(req.Title); err != nil {
		h.writeSessionError(w, "upload", err)
		return
	}
	writeJSONValue(w, h.rec.Snapshot())
}

// SetSessionTitle renames the recording under preview.
func (h *Handlers) SetSessionTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.rec.SetTitle(req.Title); err != nil {
		h.writeSessionError(w, "set title", err)
		return
	}
	writeJSONValue(w, h.rec.Snapshot())
}

// SessionAction adapts a parameterless recorder transition into a handler
// answering with the resulting snapshot.
func (h *Handlers) SessionAction(name string, fn func(Recorder) error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := fn(h.rec); err != nil {
			h.writeSessionError(w, name, err)
			return
		}
		writeJSONValue(w, h.rec.Snapshot())
	}
}

// PreviewSession serves the assembled recording while in preview. Range
// requests are honoured so the player can seek.
func (h *Handlers) PreviewSession(w http.ResponseWriter, r *http.Request) {
	blob, err := h.rec.Preview()
	if err != nil {
		h.writeSessionError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", upload.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "recording.webm", time.Time{}, bytes.NewReader(blob))
}

func (h *Handlers) writeSessionError(w http.ResponseWriter, action string, err error) {
	status := sessionErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error("Session %s failed: %v", action, err)
	} else {
		logging.Debug("Session %s rejected: %v", action, err)
	}
	writeJSONError(w, err.Error(), status)
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, recorder.ErrInvalidTransition),
		errors.Is(err, recorder.ErrSessionActive),
		errors.Is(err, upload.ErrUploadInProgress):
		return http.StatusConflict
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
