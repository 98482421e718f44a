package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"screen-recorder/internal/auth"
	"screen-recorder/internal/capture"
	"screen-recorder/internal/database"
	"screen-recorder/internal/edit"
	"screen-recorder/internal/media"
	"screen-recorder/internal/recorder"
	"screen-recorder/internal/upload"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRecorder struct {
	mu      sync.Mutex
	snap    recorder.Snapshot
	calls   []string
	err     error
	opts    capture.Options
	title   string
	blob    []byte
	updates chan recorder.Snapshot
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{snap: recorder.Snapshot{ID: "session-1", Phase: recorder.PhaseSetup}}
}

func (f *fakeRecorder) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeRecorder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRecorder) Snapshot() recorder.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeRecorder) Subscribe() (<-chan recorder.Snapshot, func()) {
	if f.updates == nil {
		ch := make(chan recorder.Snapshot)
		close(ch)
		return ch, func() {}
	}
	return f.updates, func() {}
}

func (f *fakeRecorder) Start(_ context.Context, opts capture.Options) error {
	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()
	return f.record("start")
}

func (f *fakeRecorder) SkipCountdown() error { return f.record("skip-countdown") }
func (f *fakeRecorder) Pause() error         { return f.record("pause") }
func (f *fakeRecorder) Resume() error        { return f.record("resume") }
func (f *fakeRecorder) Stop() error          { return f.record("stop") }
func (f *fakeRecorder) Delete() error        { return f.record("delete") }
func (f *fakeRecorder) Discard() error       { return f.record("discard") }
func (f *fakeRecorder) CancelUpload() error  { return f.record("cancel-upload") }
func (f *fakeRecorder) Reauthenticate() error {
	return f.record("reauthenticate")
}
func (f *fakeRecorder) Retry() error     { return f.record("retry") }
func (f *fakeRecorder) StartOver() error { return f.record("start-over") }

func (f *fakeRecorder) SetTitle(title string) error {
	f.mu.Lock()
	f.title = title
	f.mu.Unlock()
	return f.record("title")
}

func (f *fakeRecorder) Upload(title string) error {
	f.mu.Lock()
	f.title = title
	f.mu.Unlock()
	return f.record("upload")
}

func (f *fakeRecorder) Preview() ([]byte, error) {
	if err := f.record("preview"); err != nil {
		return nil, err
	}
	return f.blob, nil
}

// fakeStore is an in-memory remote store.
type fakeStore struct {
	mu         sync.Mutex
	needsToken bool
	objects    map[string][]byte
	deleted    []string
	listErr    error
}

func newFakeStore(needsToken bool) *fakeStore {
	return &fakeStore{needsToken: needsToken, objects: make(map[string][]byte)}
}

func (s *fakeStore) Name() string                          { return "fake" }
func (s *fakeStore) NeedsToken() bool                      { return s.needsToken }
func (s *fakeStore) Prepare(context.Context, string) error { return nil }
func (s *fakeStore) MakeShareable(_ context.Context, _, id string) (string, error) {
	return "https://example.test/" + id, nil
}

func (s *fakeStore) Upload(_ context.Context, _ string, body io.Reader, _ int64, meta upload.Metadata) (*upload.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("obj-%d", len(s.objects)+1)
	s.objects[id] = data
	return &upload.Object{ID: id, Name: meta.Title}, nil
}

func (s *fakeStore) Download(_ context.Context, _, id, rangeHeader string) (*upload.Download, error) {
	s.mu.Lock()
	data, ok := s.objects[id]
	s.mu.Unlock()
	if !ok {
		return nil, upload.ErrNotFound
	}
	dl := &upload.Download{ContentType: upload.ContentType, ContentLength: int64(len(data))}
	var start, end int
	if rangeHeader != "" {
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err == nil && end < len(data) {
			dl.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, len(data))
			data = data[start : end+1]
			dl.ContentLength = int64(len(data))
		}
	}
	dl.Body = io.NopCloser(bytes.NewReader(data))
	return dl, nil
}

func (s *fakeStore) Delete(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return upload.ErrNotFound
	}
	delete(s.objects, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) List(context.Context, string) ([]upload.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []upload.Object
	for id := range s.objects {
		out = append(out, upload.Object{ID: id})
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

type testEnv struct {
	h       *Handlers
	db      *database.Database
	rec     *fakeRecorder
	store   *fakeStore
	broker  *auth.Broker
	posters *media.PosterStore
}

func newTestEnv(t *testing.T, needsToken bool) *testEnv {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	renderer, err := edit.NewRenderer("")
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	env := &testEnv{
		db:      db,
		rec:     newFakeRecorder(),
		store:   newFakeStore(needsToken),
		broker:  auth.NewBroker(nil, time.Second),
		posters: media.NewPosterStore(filepath.Join(t.TempDir(), "posters"), true),
	}
	env.h = New(Deps{
		DB:       db,
		Recorder: env.rec,
		Broker:   env.broker,
		Remote:   upload.NewPipeline(upload.NewInitializer(env.store), env.broker),
		Posters:  env.posters,
		Renderer: renderer,
		UserID:   "user-1",
	})
	return env
}

// seed stores a recording for userID with a remote object behind it.
func (e *testEnv) seed(t *testing.T, userID, title string, video []byte) *database.Recording {
	t.Helper()
	remoteID := fmt.Sprintf("remote-%d", time.Now().UnixNano())
	e.store.mu.Lock()
	e.store.objects[remoteID] = video
	e.store.mu.Unlock()

	id, err := e.db.SaveRecordingMetadata(context.Background(), userID, title, "https://example.test/"+remoteID, remoteID, 10)
	if err != nil {
		t.Fatalf("SaveRecordingMetadata() error = %v", err)
	}
	rec, err := e.db.GetRecording(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRecording() error = %v", err)
	}
	return rec
}

// do calls handler with an optional JSON body and mux route variables.
func do(handler http.HandlerFunc, method, target, body string, vars map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}
