package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/session", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodGet).Name("session")
	r.HandleFunc("/api/session/start", func(http.ResponseWriter, *http.Request) {}).Methods(http.MethodPost)
	r.HandleFunc("/health", func(http.ResponseWriter, *http.Request) {})

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("len(routes) = %d, want 3", len(routes))
	}
	if routes[0].Name != "session" || routes[0].Method != http.MethodGet {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[2].Method != "*" {
		t.Errorf("route without methods = %q, want *", routes[2].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/session/start", "api/session"},
		{"/api/recordings/{id}/video", "api/recordings"},
		{"/health", "health"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSetupOptionalDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "posters")
	if !setupOptionalDir(dir, "posters") {
		t.Fatal("setupOptionalDir() = false for writable temp dir")
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file left behind")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if setupOptionalDir(filepath.Join(file, "sub"), "posters") {
		t.Error("setupOptionalDir() = true beneath a regular file")
	}
}

func TestEnsureDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	if err := ensureDirectory(dir, "database"); err != nil {
		t.Fatalf("ensureDirectory() create error = %v", err)
	}
	if err := ensureDirectory(dir, "database"); err != nil {
		t.Errorf("ensureDirectory() existing error = %v", err)
	}

	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "database"); err == nil {
		t.Error("ensureDirectory() on a file should fail")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "(unset)"},
		{"abc", "****"},
		{"AKIAEXAMPLE1234", "****1234"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
