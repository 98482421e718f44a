package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"screen-recorder/internal/logging"
)

// Drive API defaults.
const (
	DefaultDriveAPIURL = "https://www.googleapis.com"
	DefaultFolderName  = "Screen Recordings"

	folderMimeType = "application/vnd.google-apps.folder"
	uploadFields   = "id,name,webViewLink,appProperties,createdTime"
	listFields     = "files(id,name,webViewLink,appProperties,createdTime)"
	recordingQuery = "appProperties has { key='type' and value='recording' } and trashed=false"
)

// DriveConfig configures DriveStore. APIURL is the service root; uploads
// go to its /upload path.
type DriveConfig struct {
	APIURL     string
	FolderName string
	Client     *http.Client
}

// DriveStore stores recordings in a Drive-compatible file API.
type DriveStore struct {
	endpoint   string
	folderName string
	client     *http.Client

	mu       sync.RWMutex
	folderID string
}

// NewDriveStore creates a DriveStore. Empty fields use the defaults.
func NewDriveStore(cfg DriveConfig) *DriveStore {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultDriveAPIURL
	}
	if cfg.FolderName == "" {
		cfg.FolderName = DefaultFolderName
	}
	if cfg.Client == nil {
		// No overall timeout: uploads are bounded by their context.
		cfg.Client = &http.Client{}
	}
	return &DriveStore{
		endpoint:   strings.TrimRight(cfg.APIURL, "/") + "/drive/v3/",
		folderName: cfg.FolderName,
		client:     cfg.Client,
	}
}

// Name implements Store.
func (d *DriveStore) Name() string { return "drive" }

// NeedsToken implements Store.
func (d *DriveStore) NeedsToken() bool { return true }

// FolderID returns the prepared folder id, empty before Prepare.
func (d *DriveStore) FolderID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.folderID
}

// service returns a client that sends token as the bearer credential.
func (d *DriveStore) service(ctx context.Context, token string) (*drive.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, d.client)
	client := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(d.endpoint))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return srv, nil
}

func fileObject(f *drive.File) Object {
	obj := Object{ID: f.Id, Name: f.Name, Link: f.WebViewLink}
	if v, ok := f.AppProperties["duration"]; ok {
		obj.Duration, _ = strconv.ParseFloat(v, 64)
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		obj.CreatedAt = t
	}
	return obj
}

// Prepare finds the recordings folder, creating it when missing.
func (d *DriveStore) Prepare(ctx context.Context, token string) error {
	if d.FolderID() != "" {
		return nil
	}
	srv, err := d.service(ctx, token)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		strings.ReplaceAll(d.folderName, "'", `\'`), folderMimeType)
	listed, err := srv.Files.List().Q(q).Fields("files(id,name)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to look up folder: %w", driveError(ctx, err))
	}

	var id string
	if len(listed.Files) > 0 {
		id = listed.Files[0].Id
	} else {
		folder := &drive.File{Name: d.folderName, MimeType: folderMimeType}
		created, err := srv.Files.Create(folder).Fields("id").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create folder: %w", driveError(ctx, err))
		}
		id = created.Id
		logging.Info("Created Drive folder %q (%s)", d.folderName, id)
	}

	d.mu.Lock()
	d.folderID = id
	d.mu.Unlock()
	return nil
}

// Upload implements Store with a single multipart request. The body is
// streamed as it is read, so progress follows the bytes sent.
func (d *DriveStore) Upload(ctx context.Context, token string, body io.Reader, size int64, meta Metadata) (*Object, error) {
	if meta.ContentType == "" {
		meta.ContentType = ContentType
	}
	srv, err := d.service(ctx, token)
	if err != nil {
		return nil, err
	}

	file := &drive.File{
		Name:     meta.Title,
		MimeType: meta.ContentType,
		AppProperties: map[string]string{
			"duration": strconv.FormatFloat(meta.Duration, 'f', -1, 64),
			"type":     "recording",
		},
	}
	if folder := d.FolderID(); folder != "" {
		file.Parents = []string{folder}
	}

	logging.Debug("Drive upload of %q: %d bytes", meta.Title, size)
	created, err := srv.Files.Create(file).
		Media(body, googleapi.ContentType(meta.ContentType), googleapi.ChunkSize(0)).
		Fields(uploadFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, driveError(ctx, err)
	}

	obj := fileObject(created)
	return &obj, nil
}

// MakeShareable grants reader access to anyone with the link.
func (d *DriveStore) MakeShareable(ctx context.Context, token, id string) (string, error) {
	srv, err := d.service(ctx, token)
	if err != nil {
		return "", err
	}
	perm := &drive.Permission{Role: "reader", Type: "anyone"}
	if _, err := srv.Permissions.Create(id, perm).Context(ctx).Do(); err != nil {
		return "", driveError(ctx, err)
	}

	file, err := srv.Files.Get(id).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", driveError(ctx, err)
	}
	return file.WebViewLink, nil
}

// Download implements Store.
func (d *DriveStore) Download(ctx context.Context, token, id, rangeHeader string) (*Download, error) {
	srv, err := d.service(ctx, token)
	if err != nil {
		return nil, err
	}
	call := srv.Files.Get(id).Context(ctx)
	if rangeHeader != "" {
		call.Header().Set("Range", rangeHeader)
	}

	resp, err := call.Download()
	if err != nil {
		return nil, driveError(ctx, err)
	}
	return &Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
	}, nil
}

// Delete implements Store.
func (d *DriveStore) Delete(ctx context.Context, token, id string) error {
	srv, err := d.service(ctx, token)
	if err != nil {
		return err
	}
	if err := srv.Files.Delete(id).Context(ctx).Do(); err != nil {
		return driveError(ctx, err)
	}
	return nil
}

// List returns recordings tagged by this application, newest first.
func (d *DriveStore) List(ctx context.Context, token string) ([]Object, error) {
	srv, err := d.service(ctx, token)
	if err != nil {
		return nil, err
	}
	listed, err := srv.Files.List().
		Q(recordingQuery).
		Fields(listFields).
		OrderBy("createdTime desc").
		Context(ctx).
		Do()
	if err != nil {
		return nil, driveError(ctx, err)
	}

	objects := make([]Object, 0, len(listed.Files))
	for _, f := range listed.Files {
		objects = append(objects, fileObject(f))
	}
	return objects, nil
}

// driveError classifies a failed API call. Error responses keep their raw
// body, which carries the structured reason.
func driveError(ctx context.Context, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := []byte(gerr.Body)
		if len(body) == 0 && gerr.Message != "" {
			body, _ = json.Marshal(map[string]any{"error": map[string]string{"message": gerr.Message}})
		}
		return classifyResponse(gerr.Code, body)
	}
	return transportError(ctx, err)
}

// transportError maps a failed round trip to ErrCanceled or ErrNetwork.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
