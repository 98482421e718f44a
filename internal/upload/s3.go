package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"screen-recorder/internal/logging"
)

// DefaultLinkTTL is how long presigned links stay valid.
const DefaultLinkTTL = 7 * 24 * time.Hour

// S3Config configures S3Store.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	LinkTTL   time.Duration
}

// S3Store stores recordings in an S3-compatible bucket.
type S3Store struct {
	api     s3iface.S3API
	bucket  string
	prefix  string
	linkTTL time.Duration
}

// NewS3Store creates an S3Store with static credentials, or the default
// credential chain when no keys are given.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.Endpoint != ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}
	return newS3Store(s3.New(sess), cfg), nil
}

func newS3Store(api s3iface.S3API, cfg S3Config) *S3Store {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "recordings/"
	}
	return &S3Store{api: api, bucket: cfg.Bucket, prefix: cfg.Prefix, linkTTL: cfg.LinkTTL}
}

// Name implements Store.
func (s *S3Store) Name() string { return "s3" }

// NeedsToken implements Store. Credentials come from the session.
func (s *S3Store) NeedsToken() bool { return false }

// Prepare checks that the bucket is reachable.
func (s *S3Store) Prepare(ctx context.Context, _ string) error {
	_, err := s.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return s.classify(ctx, err)
	}
	return nil
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

// Upload implements Store. body must also be an io.ReadSeeker so the SDK
// can sign and retry the request.
func (s *S3Store) Upload(ctx context.Context, _ string, body io.Reader, size int64, meta Metadata) (*Object, error) {
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		return nil, errors.New("s3 upload requires a seekable body")
	}
	if meta.ContentType == "" {
		meta.ContentType = ContentType
	}

	id := uuid.NewString() + ".webm"
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          rs,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(meta.ContentType),
		Metadata: map[string]*string{
			"title":    aws.String(meta.Title),
			"duration": aws.String(strconv.FormatFloat(meta.Duration, 'f', -1, 64)),
			"type":     aws.String("recording"),
		},
	})
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	link, err := s.presign(id)
	if err != nil {
		logging.Warn("failed to presign %s: %v", id, err)
	}
	return &Object{
		ID:        id,
		Name:      meta.Title,
		Link:      link,
		Duration:  meta.Duration,
		CreatedAt: time.Now(),
	}, nil
}

func (s *S3Store) presign(id string) (string, error) {
	req, _ := s.api.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	return req.Presign(s.linkTTL)
}

// MakeShareable applies a public-read ACL. Buckets with ACLs disabled
// reject this, in which case the presigned link still works.
func (s *S3Store) MakeShareable(ctx context.Context, _ string, id string) (string, error) {
	_, err := s.api.PutObjectAclWithContext(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		ACL:    aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return "", s.classify(ctx, err)
	}
	return s.presign(id)
}

// Download implements Store.
func (s *S3Store) Download(ctx context.Context, _ string, id, rangeHeader string) (*Download, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	}
	if rangeHeader != "" {
		input.Range = aws.String(rangeHeader)
	}
	out, err := s.api.GetObjectWithContext(ctx, input)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return &Download{
		Body:          out.Body,
		ContentType:   aws.StringValue(out.ContentType),
		ContentLength: aws.Int64Value(out.ContentLength),
		ContentRange:  aws.StringValue(out.ContentRange),
	}, nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, _ string, id string) error {
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return s.classify(ctx, err)
	}
	return nil
}

// List implements Store, newest first.
func (s *S3Store) List(ctx context.Context, _ string) ([]Object, error) {
	var objects []Object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	err := s.api.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			key := aws.StringValue(item.Key)
			if !strings.HasSuffix(key, ".webm") {
				continue
			}
			objects = append(objects, Object{
				ID:        path.Base(key),
				Name:      strings.TrimSuffix(path.Base(key), ".webm"),
				CreatedAt: aws.TimeValue(item.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

// classify maps SDK errors onto the package's error classes.
func (s *S3Store) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch aerr.Code() {
	case request.CanceledErrorCode:
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	case "ExpiredToken", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied", "InvalidToken":
		return fmt.Errorf("%w: %s", ErrAccessDenied, aerr.Message())
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return fmt.Errorf("%w: %s", ErrNotFound, aerr.Message())
	}

	status := 0
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode()
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrAccessDenied, aerr.Message())
	}
	if status == 0 {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return &APIError{Status: status, Message: aerr.Code() + ": " + aerr.Message()}
}
