package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"screen-recorder/internal/capture"
	"screen-recorder/internal/handlers"
	"screen-recorder/internal/startup"
)

func TestBuildStore(t *testing.T) {
	tests := []struct {
		name       string
		config     startup.Config
		wantName   string
		needsToken bool
		wantErr    bool
	}{
		{
			name:       "drive",
			config:     startup.Config{StorageBackend: startup.StorageDrive},
			wantName:   "drive",
			needsToken: true,
		},
		{
			name: "s3",
			config: startup.Config{
				StorageBackend: startup.StorageS3,
				S3: startup.S3Config{
					Bucket:    "recordings",
					Region:    "us-east-1",
					AccessKey: "AKIAEXAMPLE",
					SecretKey: "secret",
				},
			},
			wantName: "s3",
		},
		{
			name:    "s3 without bucket",
			config:  startup.Config{StorageBackend: startup.StorageS3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := buildStore(&tt.config)
			if tt.wantErr {
				if err == nil || store != nil {
					t.Errorf("buildStore() = %v, %v, want nil store and error", store, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildStore() error = %v", err)
			}
			if store.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", store.Name(), tt.wantName)
			}
			if store.NeedsToken() != tt.needsToken {
				t.Errorf("NeedsToken() = %v, want %v", store.NeedsToken(), tt.needsToken)
			}
		})
	}
}

func TestBuildProvider(t *testing.T) {
	p, cleanup := buildProvider(startup.CaptureConfig{Backend: startup.BackendSynthetic})
	if _, ok := p.(*capture.SyntheticProvider); !ok {
		t.Errorf("synthetic backend built %T", p)
	}
	cleanup()

	p, cleanup = buildProvider(startup.CaptureConfig{Backend: capture.BackendX11, Display: ":0", FFmpegPath: "ffmpeg"})
	if _, ok := p.(*capture.FFmpegProvider); !ok {
		t.Errorf("x11 backend built %T", p)
	}
	cleanup()
}

func TestSetupRouter(t *testing.T) {
	r := setupRouter(handlers.New(handlers.Deps{}))

	routes := []struct {
		method   string
		path     string
		template string
	}{
		{"GET", "/api/session", "/api/session"},
		{"GET", "/api/session/events", "/api/session/events"},
		{"GET", "/api/session/preview", "/api/session/preview"},
		{"POST", "/api/session/start", "/api/session/start"},
		{"POST", "/api/session/skip-countdown", "/api/session/skip-countdown"},
		{"POST", "/api/session/pause", "/api/session/pause"},
		{"POST", "/api/session/resume", "/api/session/resume"},
		{"POST", "/api/session/stop", "/api/session/stop"},
		{"POST", "/api/session/delete", "/api/session/delete"},
		{"POST", "/api/session/discard", "/api/session/discard"},
		{"POST", "/api/session/upload", "/api/session/upload"},
		{"POST", "/api/session/cancel-upload", "/api/session/cancel-upload"},
		{"POST", "/api/session/reauthenticate", "/api/session/reauthenticate"},
		{"POST", "/api/session/retry", "/api/session/retry"},
		{"POST", "/api/session/start-over", "/api/session/start-over"},
		{"PUT", "/api/session/title", "/api/session/title"},
		{"POST", "/api/auth/callback", "/api/auth/callback"},
		{"GET", "/api/auth/status", "/api/auth/status"},
		{"POST", "/api/auth/signout", "/api/auth/signout"},
		{"GET", "/api/stats", "/api/stats"},
		{"GET", "/api/remote", "/api/remote"},
		{"GET", "/api/recordings", "/api/recordings"},
		{"GET", "/api/recordings/abc", "/api/recordings/{id}"},
		{"PATCH", "/api/recordings/abc", "/api/recordings/{id}"},
		{"DELETE", "/api/recordings/abc", "/api/recordings/{id}"},
		{"PUT", "/api/recordings/abc/edit", "/api/recordings/{id}/edit"},
		{"POST", "/api/recordings/abc/overlays", "/api/recordings/{id}/overlays"},
		{"PATCH", "/api/recordings/abc/overlays/o1", "/api/recordings/{id}/overlays/{overlayId}"},
		{"DELETE", "/api/recordings/abc/overlays/o1", "/api/recordings/{id}/overlays/{overlayId}"},
		{"POST", "/api/recordings/abc/playback", "/api/recordings/{id}/playback"},
		{"GET", "/api/recordings/abc/video", "/api/recordings/{id}/video"},
		{"GET", "/api/recordings/abc/thumbnail", "/api/recordings/{id}/thumbnail"},
		{"GET", "/api/recordings/abc/overlays.png", "/api/recordings/{id}/overlays.png"},
		{"GET", "/health", "/health"},
		{"GET", "/healthz", "/healthz"},
		{"HEAD", "/livez", "/livez"},
		{"GET", "/readyz", "/readyz"},
		{"GET", "/version", "/version"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, http.NoBody)
			var match mux.RouteMatch
			if !r.Match(req, &match) || match.MatchErr != nil {
				t.Fatalf("no route for %s %s (err %v)", rt.method, rt.path, match.MatchErr)
			}
			tmpl, err := match.Route.GetPathTemplate()
			if err != nil {
				t.Fatalf("GetPathTemplate() error = %v", err)
			}
			if tmpl != rt.template {
				t.Errorf("matched %q, want %q", tmpl, rt.template)
			}
		})
	}
}

func TestSetupRouterRejectsWrongMethod(t *testing.T) {
	r := setupRouter(handlers.New(handlers.Deps{}))

	req := httptest.NewRequest(http.MethodGet, "/api/session/stop", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/session/stop status = %d, want 405", w.Code)
	}
}

func TestSetupRouterUnknownPath(t *testing.T) {
	r := setupRouter(handlers.New(handlers.Deps{}))

	for _, path := range []string{"/", "/index.html", "/api/unknown"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}
}

func TestLivenessEndpoint(t *testing.T) {
	r := setupRouter(handlers.New(handlers.Deps{}))

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/livez", http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s /livez status = %d, want 200", method, w.Code)
		}
		if method == http.MethodHead && w.Body.Len() != 0 {
			t.Errorf("HEAD /livez returned a body: %q", w.Body.String())
		}
	}
}
