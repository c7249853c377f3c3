package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("head missing", func(t *testing.T) {
		s := newStore(t)
		obj, err := s.Head(context.Background(), "sets/missing.json")
		require.NoError(t, err)
		assert.False(t, obj.Exists)
	})

	t.Run("put head get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		put, err := s.Put(ctx, "sets/a.json", []byte(`{"a":1}`), PutOptions{ContentType: "application/json"})
		require.NoError(t, err)
		assert.True(t, put.Exists)
		assert.Positive(t, put.Generation)

		head, err := s.Head(ctx, "sets/a.json")
		require.NoError(t, err)
		assert.True(t, head.Exists)
		assert.Equal(t, put.Generation, head.Generation)
		assert.Equal(t, put.URL, head.URL)
		assert.EqualValues(t, 7, head.Size)

		data, err := s.Get(ctx, head.URL)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(data))
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		put, err := s.Put(ctx, "x", []byte("1"), PutOptions{})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "x"))

		_, err = s.Get(ctx, put.URL)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get foreign url", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "ftp://elsewhere/x")
		assert.ErrorIs(t, err, ErrForeignURL)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Put(ctx, "d", []byte("1"), PutOptions{})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "d"))
		obj, err := s.Head(ctx, "d")
		require.NoError(t, err)
		assert.False(t, obj.Exists)

		assert.ErrorIs(t, s.Delete(ctx, "d"), ErrNotFound)
	})

	t.Run("if generation zero creates only", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Put(ctx, "once", []byte("first"), PutOptions{IfGeneration: IfGeneration(0)})
		require.NoError(t, err)

		_, err = s.Put(ctx, "once", []byte("second"), PutOptions{IfGeneration: IfGeneration(0)})
		assert.True(t, errors.Is(err, ErrPreconditionFailed), "got %v", err)

		head, err := s.Head(ctx, "once")
		require.NoError(t, err)
		data, err := s.Get(ctx, head.URL)
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("if generation match", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v1, err := s.Put(ctx, "index.json", []byte("v1"), PutOptions{})
		require.NoError(t, err)

		v2, err := s.Put(ctx, "index.json", []byte("v2"), PutOptions{IfGeneration: IfGeneration(v1.Generation)})
		require.NoError(t, err)
		assert.NotEqual(t, v1.Generation, v2.Generation)

		// A writer still holding v1 loses.
		_, err = s.Put(ctx, "index.json", []byte("stale"), PutOptions{IfGeneration: IfGeneration(v1.Generation)})
		assert.ErrorIs(t, err, ErrPreconditionFailed)

		// Positive generation on a missing object fails too.
		_, err = s.Put(ctx, "absent.json", []byte("x"), PutOptions{IfGeneration: IfGeneration(v2.Generation)})
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})

	t.Run("generation not reused after delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v1, err := s.Put(ctx, "g", []byte("1"), PutOptions{})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "g"))
		v2, err := s.Put(ctx, "g", []byte("2"), PutOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, v1.Generation, v2.Generation)
	})

	t.Run("list prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, p := range []string{"qs/sets/b.json", "qs/sets/a.json", "qs/index.json", "other/sets/c.json"} {
			_, err := s.Put(ctx, p, []byte("{}"), PutOptions{})
			require.NoError(t, err)
		}

		objs, err := s.List(ctx, "qs/sets/")
		require.NoError(t, err)
		var paths []string
		for _, o := range objs {
			paths = append(paths, o.Path)
			assert.True(t, o.Exists)
			assert.False(t, o.Updated.IsZero())
		}
		assert.ElementsMatch(t, []string{"qs/sets/a.json", "qs/sets/b.json"}, paths)
	})
}
