// Package blob is a path-addressed object store capability with optional
// generation preconditions on writes.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the addressed object does not exist.
	ErrNotFound = errors.New("blob: object not found")

	// ErrPreconditionFailed is returned by Put when PutOptions.IfGeneration
	// does not match the object's current generation.
	ErrPreconditionFailed = errors.New("blob: generation precondition failed")

	// ErrForeignURL is returned by Get for URLs the store did not issue.
	ErrForeignURL = errors.New("blob: url was not issued by this store")
)

// Object describes a stored object. A missing object is reported by Head as
// an Object with Exists == false.
type Object struct {
	Path       string
	URL        string
	Exists     bool
	Generation int64
	Size       int64
	Updated    time.Time
}

// PutOptions tunes a single Put.
type PutOptions struct {
	// ContentType is recorded alongside the data where the backend supports it.
	ContentType string

	// IfGeneration makes the write conditional. Zero means the object must
	// not exist yet; a positive value must equal the current generation.
	// Nil writes unconditionally.
	IfGeneration *int64
}

// IfGeneration returns a pointer suitable for PutOptions.IfGeneration.
func IfGeneration(gen int64) *int64 {
	return &gen
}

// Store is the capability every backend implements.
type Store interface {
	// Put writes data at path and returns the new object's metadata.
	Put(ctx context.Context, path string, data []byte, opts PutOptions) (Object, error)

	// Head returns metadata for path. A missing object is not an error.
	Head(ctx context.Context, path string) (Object, error)

	// Get reads the object at a URL previously returned by Head or Put.
	Get(ctx context.Context, url string) ([]byte, error)

	// Delete removes the object at path, returning ErrNotFound if absent.
	Delete(ctx context.Context, path string) error

	// List returns every object whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendGCS    = "gcs"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
	GCSBucket   string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case BackendGCS:
		return OpenGCS(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", cfg.Backend)
	}
}

// checkGeneration applies PutOptions.IfGeneration against the current state.
func checkGeneration(opts PutOptions, exists bool, current int64) error {
	if opts.IfGeneration == nil {
		return nil
	}
	want := *opts.IfGeneration
	if want == 0 && !exists {
		return nil
	}
	if exists && want == current {
		return nil
	}
	return ErrPreconditionFailed
}
