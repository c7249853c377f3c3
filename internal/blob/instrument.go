package blob

import (
	"context"
	"errors"
	"time"
)

// Observer receives one call per store operation.
type Observer interface {
	ObserveBlobOp(backend, op, result string, elapsed time.Duration)
}

type instrumented struct {
	inner   Store
	backend string
	obs     Observer
}

// Instrument wraps s so every operation is reported to obs.
func Instrument(s Store, backend string, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &instrumented{inner: s, backend: backend, obs: obs}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.obs.ObserveBlobOp(i.backend, op, resultLabel(err), time.Since(start))
}

func (i *instrumented) Put(ctx context.Context, path string, data []byte, opts PutOptions) (Object, error) {
	start := time.Now()
	obj, err := i.inner.Put(ctx, path, data, opts)
	i.observe("put", start, err)
	return obj, err
}

func (i *instrumented) Head(ctx context.Context, path string) (Object, error) {
	start := time.Now()
	obj, err := i.inner.Head(ctx, path)
	if err == nil && !obj.Exists {
		i.obs.ObserveBlobOp(i.backend, "head", "not_found", time.Since(start))
		return obj, nil
	}
	i.observe("head", start, err)
	return obj, err
}

func (i *instrumented) Get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	data, err := i.inner.Get(ctx, url)
	i.observe("get", start, err)
	return data, err
}

func (i *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.inner.Delete(ctx, path)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) List(ctx context.Context, prefix string) ([]Object, error) {
	start := time.Now()
	objs, err := i.inner.List(ctx, prefix)
	i.observe("list", start, err)
	return objs, err
}

func (i *instrumented) Close() error {
	return i.inner.Close()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	default:
		return "error"
	}
}
