package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS is a Store backed by a Google Cloud Storage bucket. Object generations
// map directly onto PutOptions.IfGeneration preconditions.
type GCS struct {
	client *storage.Client
	bucket string
}

// OpenGCS creates a storage client with default credentials. When
// STORAGE_EMULATOR_HOST is set the client library targets the emulator.
func OpenGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs blob store: bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) url(path string) string {
	return "gs://" + g.bucket + "/" + path
}

func (g *GCS) Put(ctx context.Context, path string, data []byte, opts PutOptions) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := g.client.Bucket(g.bucket).Object(path)
	if opts.IfGeneration != nil {
		if *opts.IfGeneration == 0 {
			obj = obj.If(storage.Conditions{DoesNotExist: true})
		} else {
			obj = obj.If(storage.Conditions{GenerationMatch: *opts.IfGeneration})
		}
	}

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to write data to GCS: %w", mapGCSError(err))
	}
	if err := w.Close(); err != nil {
		if errors.Is(mapGCSError(err), ErrPreconditionFailed) {
			return Object{}, ErrPreconditionFailed
		}
		return Object{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return g.describe(w.Attrs()), nil
}

func (g *GCS) Head(ctx context.Context, path string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attrs, err := g.client.Bucket(g.bucket).Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Object{Path: path}, nil
	}
	if err != nil {
		return Object{}, fmt.Errorf("head %s: %w", path, err)
	}
	return g.describe(attrs), nil
}

func (g *GCS) Get(ctx context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, "gs://"+g.bucket+"/")
	if !ok {
		return nil, ErrForeignURL
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := g.client.Bucket(g.bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", path, g.bucket, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out []Object
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		out = append(out, g.describe(attrs))
	}
	return out, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) describe(attrs *storage.ObjectAttrs) Object {
	if attrs == nil {
		return Object{}
	}
	return Object{
		Path:       attrs.Name,
		URL:        g.url(attrs.Name),
		Exists:     true,
		Generation: attrs.Generation,
		Size:       attrs.Size,
		Updated:    attrs.Updated,
	}
}

// mapGCSError turns a failed precondition (HTTP 412) into ErrPreconditionFailed.
func mapGCSError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		return ErrPreconditionFailed
	}
	return err
}
