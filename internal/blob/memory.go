package blob

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

const memoryScheme = "mem://"

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	nextGen int64
	now     func() time.Time
}

type memObject struct {
	data        []byte
	contentType string
	generation  int64
	updated     time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memObject),
		now:     time.Now,
	}
}

func (m *Memory) Put(_ context.Context, path string, data []byte, opts PutOptions) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.objects[path]
	if err := checkGeneration(opts, exists, cur.generation); err != nil {
		return Object{}, err
	}

	// Generations are store-wide so a delete followed by a re-create never
	// reuses a value a writer may still be holding.
	m.nextGen++
	obj := memObject{
		data:        slices.Clone(data),
		contentType: opts.ContentType,
		generation:  m.nextGen,
		updated:     m.now(),
	}
	m.objects[path] = obj
	return m.describe(path, obj), nil
}

func (m *Memory) Head(_ context.Context, path string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return Object{Path: path}, nil
	}
	return m.describe(path, obj), nil
}

func (m *Memory) Get(_ context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, memoryScheme)
	if !ok {
		return nil, ErrForeignURL
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(obj.data), nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[path]; !ok {
		return ErrNotFound
	}
	delete(m.objects, path)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Object
	for path, obj := range m.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, m.describe(path, obj))
		}
	}
	sortObjects(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func sortObjects(objs []Object) {
	slices.SortFunc(objs, func(a, b Object) int { return strings.Compare(a.Path, b.Path) })
}

// SetClock overrides the time source used for Updated timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) describe(path string, obj memObject) Object {
	return Object{
		Path:       path,
		URL:        memoryScheme + path,
		Exists:     true,
		Generation: obj.generation,
		Size:       int64(len(obj.data)),
		Updated:    obj.updated,
	}
}
