package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/rentchain-properties/pkg/config"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const (
	pingTimeout    = 5 * time.Second
	defaultTimeout = 15 * time.Second
)

// Client uploads and deletes room images in a single bucket through the GCS JSON API.
type Client struct {
	svc           *storage.Service
	bucket        string
	publicBaseURL string
	timeout       time.Duration
	logg          *logger.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds the storage service from the configured credentials. Without explicit
// credentials it falls back to application default credentials (metadata server on GCP).
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	switch {
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	opts = append(opts, extra...)

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs service: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}

	client := &Client{
		svc:           svc,
		bucket:        cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout:       timeout,
		logg:          logg,
	}
	logg.Info(logg.WithField(ctx, "bucket", client.bucket), "gcs client initialized")
	return client, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Ping lists at most one object, which requires storage.objects.list on the bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.svc.Objects.List(c.bucket).MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// Upload stores data at path and returns its public URL.
func (c *Client) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = c.logg.WithField(ctx, "object", path)

	_, err := c.svc.Objects.
		Insert(c.bucket, &storage.Object{Name: path, ContentType: contentType}).
		Name(path).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		c.logg.Error(ctx, "gcs upload failed", err)
		return "", classify("upload", err)
	}
	c.logg.Info(ctx, "gcs object uploaded")
	return c.PublicURL(path), nil
}

// Delete removes the object at path. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.svc.Objects.Delete(c.bucket, path).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return classify("delete", err)
	}
	return nil
}

// PublicURL is where a public-read object at path is served.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, strings.TrimLeft(path, "/"))
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageTimeout, err, "gcs "+op+" timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "gcs "+op+" failed")
}
