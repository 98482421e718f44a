package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// bucketServer is a minimal path-style S3 endpoint for one bucket.
type bucketServer struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]http.Header
	acls    int
	denyAll bool
}

func (b *bucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.denyAll {
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/bucket")
	key = strings.TrimPrefix(key, "/")

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Query().Has("acl"):
		b.acls++
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		b.meta[key] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && key == "":
		w.Header().Set("Content-Type", "application/xml")
		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>bucket</Name><IsTruncated>false</IsTruncated>`)
		for k := range b.objects {
			sb.WriteString(`<Contents><Key>` + k + `</Key><LastModified>2026-05-01T00:00:00.000Z</LastModified><Size>1</Size></Contents>`)
		}
		sb.WriteString(`</ListBucketResult>`)
		_, _ = w.Write([]byte(sb.String()))
	case r.Method == http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		w.Header().Set("Content-Type", "video/webm")
		if r.Header.Get("Range") != "" {
			w.Header().Set("Content-Range", "bytes 0-1/"+strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[:2])
			return
		}
		_, _ = w.Write(data)
	case r.Method == http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + message + `</Message></Error>`))
}

func newS3Fixture(t *testing.T) (*bucketServer, *S3Store) {
	t.Helper()
	bs := &bucketServer{objects: map[string][]byte{}, meta: map[string]http.Header{}}
	srv := httptest.NewServer(bs)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(S3Config{
		Bucket:    "bucket",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	return bs, store
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(S3Config{Region: "us-east-1"}); err == nil {
		t.Error("NewS3Store() without a bucket succeeded")
	}
}

func TestS3UploadDownloadDelete(t *testing.T) {
	bs, store := newS3Fixture(t)
	p := NewPipeline(NewInitializer(store), nil)

	blob := bytes.Repeat([]byte{1, 2, 3, 4}, 256)
	res, err := p.Upload(context.Background(), blob, "My Recording", 3.5, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasSuffix(res.RemoteID, ".webm") || res.Link == "" {
		t.Errorf("result = %+v", res)
	}

	key := "recordings/" + res.RemoteID
	if !bytes.Equal(bs.objects[key], blob) {
		t.Error("stored object differs from blob")
	}
	if got := bs.meta[key].Get("X-Amz-Meta-Duration"); got != "3.5" {
		t.Errorf("duration metadata = %q, want 3.5", got)
	}
	if got := bs.meta[key].Get("X-Amz-Meta-Title"); got != "My Recording" {
		t.Errorf("title metadata = %q", got)
	}
	if bs.acls != 1 {
		t.Errorf("ACL calls = %d, want 1", bs.acls)
	}

	ctx := context.Background()
	dl, err := store.Download(ctx, "", res.RemoteID, "bytes=0-1")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(dl.Body)
	_ = dl.Body.Close()
	if !bytes.Equal(data, []byte{1, 2}) || dl.ContentRange == "" {
		t.Errorf("range download = %v (%q)", data, dl.ContentRange)
	}

	objects, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 1 || objects[0].ID != res.RemoteID {
		t.Errorf("List() = %+v", objects)
	}

	if err := store.Delete(ctx, "", res.RemoteID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Download(ctx, "", res.RemoteID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() after delete error = %v, want ErrNotFound", err)
	}
}

func TestS3AccessDeniedIsNotUnauthorized(t *testing.T) {
	bs, store := newS3Fixture(t)
	bs.denyAll = true

	p := NewPipeline(NewInitializer(store), nil)
	_, err := p.Upload(context.Background(), []byte("x"), "t", 1, nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Upload() error = %v, want ErrAccessDenied", err)
	}
	// The store takes no token, so a new sign-in cannot help.
	if errors.Is(err, ErrUnauthorized) {
		t.Errorf("Upload() error = %v, must not be ErrUnauthorized", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Upload() error = %v, want a network-class error", err)
	}
}
