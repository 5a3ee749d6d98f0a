package gcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/seramic/shop-backend/pkg/logger"
)

const (
	pingTimeout   = 5 * time.Second
	publicBaseURL = "https://storage.googleapis.com"
	cacheControl  = "public, max-age=31536000"
)

type Options struct {
	Bucket          string
	PublicBaseURL   string
	CredentialsJSON string
}

// Client stores objects in a single Google Cloud Storage bucket.
type Client struct {
	client  *storage.Client
	bucket  string
	baseURL string
	logg    *logger.Logger
}

func NewClient(ctx context.Context, opts Options, logg *logger.Logger) (*Client, error) {
	if opts.Bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	}

	sc, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	c := &Client{
		client:  sc,
		bucket:  opts.Bucket,
		baseURL: ObjectBaseURL(opts.PublicBaseURL, opts.Bucket),
		logg:    logg,
	}

	if err := c.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return c, nil
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return c.baseURL + "/" + key, nil
}

// Delete is idempotent; a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.Bucket(c.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	// object listing only needs storage.objects.list, unlike bucket attrs
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ObjectBaseURL returns the URL prefix objects in bucket are served from.
func ObjectBaseURL(override, bucket string) string {
	if override = strings.TrimRight(strings.TrimSpace(override), "/"); override != "" {
		return override
	}
	return publicBaseURL + "/" + bucket
}
