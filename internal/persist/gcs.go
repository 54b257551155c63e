package persist

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS is the remote blob persistence tier. One object per key, under an
// optional prefix, overwritten wholesale on every save.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a remote tier against the given bucket. credentialsFile may
// be empty to use ambient application-default credentials.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCS) objectName(key string) string {
	if g.prefix == "" {
		return key
	}
	return g.prefix + "/" + key
}

func (g *GCS) Save(ctx context.Context, key string, value []byte) error {
	obj := g.client.Bucket(g.bucket).Object(g.objectName(key))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %q: %w", key, err)
	}
	return nil
}

func (g *GCS) Load(ctx context.Context, key string) ([]byte, bool, error) {
	obj := g.client.Bucket(g.bucket).Object(g.objectName(key))
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gcs open %q: %w", key, err)
	}
	defer r.Close()

	value, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("gcs read %q: %w", key, err)
	}
	return value, true, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
