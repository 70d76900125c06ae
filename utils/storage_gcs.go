package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/princinho/jobportal/config"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSClient stores listing images in a Google Cloud Storage bucket.
type GCSClient struct {
	Client *storage.Client
	Bucket string
}

// NewGCSClient authenticates with the service account file when one is set,
// otherwise with application default credentials.
func NewGCSClient(ctx context.Context, cfg appconfig.StorageConfig) (*GCSClient, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSClient{Client: client, Bucket: cfg.GCSBucket}, nil
}

func (g *GCSClient) Put(ctx context.Context, key, contentType string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	// keys are unique, so never overwrite
	o := g.Client.Bucket(g.Bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := o.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}
	return g.publicURL(key), nil
}

func (g *GCSClient) Delete(ctx context.Context, key string) error {
	err := g.Client.Bucket(g.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (g *GCSClient) KeyFromURL(raw string) (string, bool) {
	prefix := g.publicURL("")
	if raw == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, prefix), true
}

func (g *GCSClient) Close() error {
	return g.Client.Close()
}

func (g *GCSClient) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", gcsPublicHost, g.Bucket, key)
}

// NewObjectStorage returns the configured image bucket, or nil when uploads
// are not configured. The returned func releases the client.
func NewObjectStorage(ctx context.Context, cfg *appconfig.Config) (ObjectStorage, func(), error) {
	if !cfg.StorageConfigured() {
		return nil, func() {}, nil
	}
	if cfg.Storage.Provider == appconfig.StorageGCS {
		gcs, err := NewGCSClient(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	}
	r2, err := NewR2Client(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return r2, func() {}, nil
}
