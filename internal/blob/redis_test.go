package blob

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewRedis(rdb, "test:")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedis_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, _ := newTestRedis(t)
		return s
	})
}

func TestRedis_KeysAreNamespaced(t *testing.T) {
	s, mr := newTestRedis(t)
	_, err := s.Put(context.Background(), "qs/index.json", []byte("{}"), PutOptions{})
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:obj:qs/index.json"))
	assert.Equal(t, "{}", mr.HGet("test:obj:qs/index.json", "data"))
}

func TestRedis_ListEscapesGlob(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "a*/x", []byte("1"), PutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "ab/y", []byte("1"), PutOptions{})
	require.NoError(t, err)

	objs, err := s.List(ctx, "a*/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "a*/x", objs[0].Path)
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), "", "")
	assert.Error(t, err)
}

func TestOpenRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, defaultRedisPrefix, s.prefix)
}
