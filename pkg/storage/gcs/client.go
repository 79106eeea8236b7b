package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const pingTimeout = 5 * time.Second

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// ObjectStore is the surface the order service uses for payment slips.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Client talks to the Cloud Storage JSON API for a single bucket.
type Client struct {
	svc    *storage.Service
	bucket string
	prefix string
}

// NewClient builds a storage client from config credentials and verifies bucket access.
// Extra options are appended after the credential options.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := credentialOptions(gcp)
	opts = append(opts, option.WithScopes(storage.DevstorageReadWriteScope))
	opts = append(opts, extra...)

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}

	client := &Client{svc: svc, bucket: cfg.BucketName, prefix: strings.Trim(cfg.SlipPrefix, "/")}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case gcp.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case gcp.ApplicationCredentials != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Prefix is the folder payment slips are stored under.
func (c *Client) Prefix() string {
	if c == nil {
		return ""
	}
	return c.prefix
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Buckets.Get(c.bucket).Context(ctx).Do(); err != nil {
		return fmt.Errorf("get bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader) (*Object, error) {
	if c == nil || c.svc == nil {
		return nil, errors.New("gcs client not initialized")
	}
	obj, err := c.svc.Objects.Insert(c.bucket, &storage.Object{Name: key, ContentType: contentType}).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", key, err)
	}
	return &Object{Key: obj.Name, ContentType: obj.ContentType, Size: int64(obj.Size)}, nil
}

// Open streams an object. The caller closes the returned reader.
func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	if c == nil || c.svc == nil {
		return nil, nil, errors.New("gcs client not initialized")
	}
	resp, err := c.svc.Objects.Get(c.bucket, key).Context(ctx).Download()
	if err != nil {
		return nil, nil, fmt.Errorf("download %q: %w", key, err)
	}
	return resp.Body, &Object{
		Key:         key,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	if err := c.svc.Objects.Delete(c.bucket, key).Context(ctx).Do(); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the storage API.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// SlipKey builds <prefix>/<order_id>/<slip_id><ext>.
func SlipKey(prefix string, orderID, slipID uuid.UUID, ext string) string {
	prefix = strings.Trim(prefix, "/")
	name := slipID.String() + ext
	if prefix == "" {
		return path.Join(orderID.String(), name)
	}
	return path.Join(prefix, orderID.String(), name)
}
