package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"screen-recorder/internal/database"
	"screen-recorder/internal/media"
	"screen-recorder/internal/upload"
)

func TestListRecordings(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, "user-1", "First", nil)
	env.seed(t, "user-1", "Second", nil)
	env.seed(t, "someone-else", "Other", nil)

	w := do(env.h.ListRecordings, http.MethodGet, "/api/recordings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var recs []database.Recording
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatalf("Failed to decode recordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recordings for user-1, got %d", len(recs))
	}
	if recs[0].Title != "Second" {
		t.Errorf("Expected newest first, got %q", recs[0].Title)
	}
}

func TestListRecordingsEmpty(t *testing.T) {
	env := newTestEnv(t, false)

	w := do(env.h.ListRecordings, http.MethodGet, "/api/recordings", "", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty JSON list, got %q", w.Body.String())
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, "user-1", "One", nil)

	w := do(env.h.GetStats, http.MethodGet, "/api/stats", "", nil)
	var stats database.RecordingStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Total != 1 || stats.TotalDuration != 10 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetRecording(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"existing", rec.ID, http.StatusOK},
		{"missing", "does-not-exist", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(env.h.GetRecording, http.MethodGet, "/api/recordings/"+tt.id, "", map[string]string{"id": tt.id})
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestUpdateRecording(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	vars := map[string]string{"id": rec.ID}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"rename", `{"title":"Renamed"}`, http.StatusOK},
		{"star", `{"isStarred":true}`, http.StatusOK},
		{"blank title", `{"title":"   "}`, http.StatusBadRequest},
		{"empty title", `{"title":""}`, http.StatusBadRequest},
		{"title too long", `{"title":"` + strings.Repeat("a", 201) + `"}`, http.StatusBadRequest},
		{"malformed", `{"title":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(env.h.UpdateRecording, http.MethodPatch, "/api/recordings/"+rec.ID, tt.body, vars)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	got, err := env.db.GetRecording(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	if got.Title != "Renamed" || !got.IsStarred {
		t.Errorf("recording after updates = %+v", got)
	}

	w := do(env.h.UpdateRecording, http.MethodPatch, "/api/recordings/nope", `{"isStarred":true}`, map[string]string{"id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing recording, got %d", w.Code)
	}
}

func TestSaveEdit(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	vars := map[string]string{"id": rec.ID}

	body := `{
		"title": "Edited",
		"startTime": 2,
		"endTime": 25,
		"isMuted": true,
		"overlays": [
			{"id": "a1", "type": "emoji", "content": "arrow", "x": 150, "y": 40, "scale": 9, "rotation": -90, "color": "#8b5cf6", "width": 5},
			{"id": "t1", "type": "text", "content": "Look here", "x": 10, "y": 10, "scale": 1, "rotation": 0, "color": "#f59e0b"}
		]
	}`

	w := do(env.h.SaveEdit, http.MethodPut, "/api/recordings/"+rec.ID+"/edit", body, vars)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got database.Recording
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode recording: %v", err)
	}
	if got.Title != "Edited" || !got.IsMuted {
		t.Errorf("title/mute not saved: %+v", got)
	}
	if got.StartTime != 2 || got.EndTime != 10 {
		t.Errorf("trim = [%v, %v], want [2, 10]", got.StartTime, got.EndTime)
	}
	if len(got.Overlays) != 2 {
		t.Fatalf("Expected 2 overlays, got %d", len(got.Overlays))
	}
	arrow := got.Overlays[0]
	if arrow.X != 100 || arrow.Scale != 5 || arrow.Rotation != 270 || arrow.Width != 20 {
		t.Errorf("arrow not normalised: %+v", arrow)
	}
}

func TestSaveEditValidation(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	vars := map[string]string{"id": rec.ID}

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"startTime":0,"endTime":1,"overlays":[]}`},
		{"negative start", `{"title":"x","startTime":-1,"endTime":1}`},
		{"unknown overlay type", `{"title":"x","overlays":[{"id":"o","type":"sticker"}]}`},
		{"overlay without id", `{"title":"x","overlays":[{"type":"text"}]}`},
		{"bad color", `{"title":"x","overlays":[{"id":"o","type":"text","color":"purple"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(env.h.SaveEdit, http.MethodPut, "/api/recordings/"+rec.ID+"/edit", tt.body, vars)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteRecording(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", []byte("video"))
	if err := env.posters.SavePoster(rec.ID, image.NewRGBA(image.Rect(0, 0, 64, 36))); err != nil {
		t.Fatalf("SavePoster() error = %v", err)
	}

	w := do(env.h.DeleteRecording, http.MethodDelete, "/api/recordings/"+rec.ID, "", map[string]string{"id": rec.ID})
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}

	if _, err := env.db.GetRecording(context.Background(), rec.ID); !errors.Is(err, database.ErrRecordingNotFound) {
		t.Errorf("Expected recording to be gone, got %v", err)
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != rec.StoragePath {
		t.Errorf("remote deletes = %v, want [%s]", env.store.deleted, rec.StoragePath)
	}
	if _, err := env.posters.Poster(rec.ID); !errors.Is(err, media.ErrPosterNotFound) {
		t.Errorf("Expected poster to be removed, got %v", err)
	}

	w = do(env.h.DeleteRecording, http.MethodDelete, "/api/recordings/"+rec.ID, "", map[string]string{"id": rec.ID})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", w.Code)
	}
}

func TestDeleteRecordingRemoteFailureStillDeletesLocal(t *testing.T) {
	// The token-requiring store has no credential, so the remote delete fails.
	env := newTestEnv(t, true)
	rec := env.seed(t, "user-1", "Demo", []byte("video"))

	w := do(env.h.DeleteRecording, http.MethodDelete, "/api/recordings/"+rec.ID, "", map[string]string{"id": rec.ID})
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if len(env.store.deleted) != 0 {
		t.Errorf("remote deletes = %v, want none", env.store.deleted)
	}
}

func TestStreamVideo(t *testing.T) {
	video := []byte("0123456789abcdef")

	t.Run("full body", func(t *testing.T) {
		env := newTestEnv(t, false)
		rec := env.seed(t, "user-1", "Demo", video)

		w := do(env.h.StreamVideo, http.MethodGet, "/api/recordings/"+rec.ID+"/video", "", map[string]string{"id": rec.ID})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if !bytes.Equal(w.Body.Bytes(), video) {
			t.Errorf("body = %q, want %q", w.Body.Bytes(), video)
		}
		if ct := w.Header().Get("Content-Type"); ct != upload.ContentType {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("range", func(t *testing.T) {
		env := newTestEnv(t, false)
		rec := env.seed(t, "user-1", "Demo", video)

		req := httptest.NewRequest(http.MethodGet, "/api/recordings/"+rec.ID+"/video", http.NoBody)
		req.Header.Set("Range", "bytes=4-7")
		req = mux.SetURLVars(req, map[string]string{"id": rec.ID})
		w := httptest.NewRecorder()
		env.h.StreamVideo(w, req)

		if w.Code != http.StatusPartialContent {
			t.Fatalf("Expected status 206, got %d", w.Code)
		}
		if w.Body.String() != "4567" {
			t.Errorf("body = %q, want 4567", w.Body.String())
		}
		if cr := w.Header().Get("Content-Range"); cr != "bytes 4-7/16" {
			t.Errorf("Content-Range = %q", cr)
		}
	})

	t.Run("not signed in", func(t *testing.T) {
		env := newTestEnv(t, true)
		rec := env.seed(t, "user-1", "Demo", video)

		w := do(env.h.StreamVideo, http.MethodGet, "/api/recordings/"+rec.ID+"/video", "", map[string]string{"id": rec.ID})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401, got %d", w.Code)
		}

		if _, err := env.broker.Deliver(context.Background(), "tok"); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
		w = do(env.h.StreamVideo, http.MethodGet, "/api/recordings/"+rec.ID+"/video", "", map[string]string{"id": rec.ID})
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200 after sign-in, got %d", w.Code)
		}
	})

	t.Run("remote object missing", func(t *testing.T) {
		env := newTestEnv(t, false)
		rec := env.seed(t, "user-1", "Demo", video)
		env.store.mu.Lock()
		delete(env.store.objects, rec.StoragePath)
		env.store.mu.Unlock()

		w := do(env.h.StreamVideo, http.MethodGet, "/api/recordings/"+rec.ID+"/video", "", map[string]string{"id": rec.ID})
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestGetThumbnail(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	vars := map[string]string{"id": rec.ID}

	w := do(env.h.GetThumbnail, http.MethodGet, "/api/recordings/"+rec.ID+"/thumbnail", "", vars)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	blank, err := jpeg.Decode(w.Body)
	if err != nil {
		t.Fatalf("blank thumbnail is not a JPEG: %v", err)
	}
	if b := blank.Bounds(); b.Dx() != media.PosterWidth || b.Dy() != media.PosterHeight {
		t.Errorf("blank thumbnail = %dx%d", b.Dx(), b.Dy())
	}

	frame := imaging.New(1280, 720, color.White)
	if err := env.posters.SavePoster(rec.ID, frame); err != nil {
		t.Fatalf("SavePoster() error = %v", err)
	}
	stored, err := env.posters.Poster(rec.ID)
	if err != nil {
		t.Fatalf("Poster() error = %v", err)
	}

	w = do(env.h.GetThumbnail, http.MethodGet, "/api/recordings/"+rec.ID+"/thumbnail", "", vars)
	if !bytes.Equal(w.Body.Bytes(), stored) {
		t.Error("Expected the stored poster bytes")
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}

	w = do(env.h.GetThumbnail, http.MethodGet, "/api/recordings/nope/thumbnail", "", map[string]string{"id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestRenderOverlays(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	vars := map[string]string{"id": rec.ID}

	body := `{"title":"Demo","startTime":0,"endTime":10,"overlays":[
		{"id":"a1","type":"emoji","content":"arrow","x":50,"y":50,"scale":1,"rotation":45,"color":"#8b5cf6","width":100}
	]}`
	if w := do(env.h.SaveEdit, http.MethodPut, "/", body, vars); w.Code != http.StatusOK {
		t.Fatalf("SaveEdit status = %d: %s", w.Code, w.Body.String())
	}

	w := do(env.h.RenderOverlays, http.MethodGet, "/api/recordings/"+rec.ID+"/overlays.png", "", vars)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != media.PosterWidth || b.Dy() != media.PosterHeight {
		t.Errorf("render size = %dx%d", b.Dx(), b.Dy())
	}

	// The arrow sits at the centre of an otherwise black frame.
	r, g, bl, _ := img.At(media.PosterWidth/2, media.PosterHeight/2).RGBA()
	if r == 0 && g == 0 && bl == 0 {
		t.Error("Expected the arrow to be drawn at the frame centre")
	}
}

func TestRenderOverlaysWithoutRenderer(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.seed(t, "user-1", "Demo", nil)
	env.h.renderer = nil

	w := do(env.h.RenderOverlays, http.MethodGet, "/", "", map[string]string{"id": rec.ID})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestListRemote(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, "user-1", "A", []byte("a"))
	env.seed(t, "user-1", "B", []byte("b"))

	w := do(env.h.ListRemote, http.MethodGet, "/api/remote", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var objects []upload.Object
	if err := json.NewDecoder(w.Body).Decode(&objects); err != nil {
		t.Fatalf("Failed to decode objects: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("Expected 2 remote objects, got %d", len(objects))
	}

	env.store.listErr = upload.ErrUnauthorized
	w = do(env.h.ListRemote, http.MethodGet, "/api/remote", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}
