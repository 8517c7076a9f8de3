package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"homestay/internal/app/policies"
)

const defaultContentType = "application/octet-stream"

type Options struct {
	Endpoint      string
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// Client keeps listing photo originals in an S3-compatible bucket.
type Client struct {
	api    *minio.Client
	bucket string
	public string
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewClient builds a client. An https endpoint implies TLS even when
// UseSSL is false.
func NewClient(o Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(o.Endpoint)
	bucket := strings.TrimSpace(o.Bucket)
	switch {
	case endpoint == "":
		return nil, errors.New("s3: endpoint is required")
	case bucket == "":
		return nil, errors.New("s3: bucket is required")
	}
	host, secure := splitEndpoint(endpoint)
	api, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(o.AccessKey), strings.TrimSpace(o.SecretKey), ""),
		Secure: secure || o.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	public := strings.TrimSpace(o.PublicBaseURL)
	if public == "" {
		public = endpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		bucket: bucket,
		public: strings.TrimRight(public, "/"),
		logger: logger.With("component", "s3", "bucket", bucket),
	}, nil
}

func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := c.prepare(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	info, err := c.api.PutObject(ctx, c.bucket, key, reader, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	c.logger.InfoContext(ctx, "photo stored", "key", key, "size", info.Size)
	return c.objectURL(key), nil
}

func (c *Client) Remove(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = c.api.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("s3: remove %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.BucketExists(ctx, c.bucket)
	return err
}

// prepare creates the bucket with an anonymous read policy on first use.
// A failed attempt is retried by the next upload.
func (c *Client) prepare(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3: create bucket: %w", err)
		}
		if err := c.api.SetBucketPolicy(ctx, c.bucket, readOnlyPolicy(c.bucket)); err != nil {
			return fmt.Errorf("s3: set bucket policy: %w", err)
		}
		c.logger.InfoContext(ctx, "bucket created")
	}
	c.ready = true
	return nil
}

func (c *Client) objectURL(key string) string {
	return c.public + "/" + c.bucket + "/" + strings.TrimLeft(key, "/")
}

func readOnlyPolicy(bucket string) string {
	return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},` +
		`"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::` + bucket + `/*"]}]}`
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	return key, nil
}

// splitEndpoint accepts either host:port or a URL and reports whether the
// URL asked for TLS.
func splitEndpoint(endpoint string) (host string, secure bool) {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host, u.Scheme == "https"
	}
	return endpoint, false
}

var _ policies.PhotoStorage = (*Client)(nil)
