package blob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	redisScheme        = "redis://"
	defaultRedisPrefix = "conjugar:blob:"
)

// Redis is a Store that keeps each object in a hash with fields data,
// content_type, gen and updated. Conditional puts use WATCH/MULTI.
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis blob store: address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, prefix), nil
}

// NewRedis wraps an existing client. An empty prefix uses "conjugar:blob:".
func NewRedis(rdb goredis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(path string) string { return r.prefix + "obj:" + path }
func (r *Redis) genKey() string         { return r.prefix + "generation" }

func (r *Redis) Put(ctx context.Context, path string, data []byte, opts PutOptions) (Object, error) {
	key := r.key(path)
	now := time.Now().UTC()
	var gen int64

	write := func(ctx context.Context, c goredis.Cmdable) error {
		return c.HSet(ctx, key,
			"data", data,
			"content_type", opts.ContentType,
			"gen", gen,
			"updated", now.UnixNano(),
		).Err()
	}

	if opts.IfGeneration == nil {
		var err error
		if gen, err = r.rdb.Incr(ctx, r.genKey()).Result(); err != nil {
			return Object{}, fmt.Errorf("next generation: %w", err)
		}
		if err := write(ctx, r.rdb); err != nil {
			return Object{}, fmt.Errorf("write %s: %w", path, err)
		}
	} else {
		err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			cur, err := tx.HGet(ctx, key, "gen").Int64()
			exists := true
			if errors.Is(err, goredis.Nil) {
				exists = false
			} else if err != nil {
				return err
			}
			if err := checkGeneration(opts, exists, cur); err != nil {
				return err
			}
			if gen, err = tx.Incr(ctx, r.genKey()).Result(); err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				return write(ctx, pipe)
			})
			return err
		}, key)
		switch {
		case errors.Is(err, goredis.TxFailedErr), errors.Is(err, ErrPreconditionFailed):
			return Object{}, ErrPreconditionFailed
		case err != nil:
			return Object{}, fmt.Errorf("write %s: %w", path, err)
		}
	}

	return Object{
		Path:       path,
		URL:        redisScheme + path,
		Exists:     true,
		Generation: gen,
		Size:       int64(len(data)),
		Updated:    time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

func (r *Redis) Head(ctx context.Context, path string) (Object, error) {
	obj, err := r.head(ctx, r.key(path), path)
	if err != nil {
		return Object{}, fmt.Errorf("head %s: %w", path, err)
	}
	return obj, nil
}

func (r *Redis) head(ctx context.Context, key, path string) (Object, error) {
	vals, err := r.rdb.HMGet(ctx, key, "gen", "updated").Result()
	if err != nil {
		return Object{}, err
	}
	if len(vals) != 2 || vals[0] == nil {
		return Object{Path: path}, nil
	}
	size, err := r.rdb.HStrLen(ctx, key, "data").Result()
	if err != nil {
		return Object{}, err
	}
	gen, _ := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	updated, _ := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	return Object{
		Path:       path,
		URL:        redisScheme + path,
		Exists:     true,
		Generation: gen,
		Size:       size,
		Updated:    time.Unix(0, updated).UTC(),
	}, nil
}

func (r *Redis) Get(ctx context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, redisScheme)
	if !ok {
		return nil, ErrForeignURL
	}
	data, err := r.rdb.HGet(ctx, r.key(path), "data").Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return data, nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	n, err := r.rdb.Del(ctx, r.key(path)).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) List(ctx context.Context, prefix string) ([]Object, error) {
	base := r.key("")
	var out []Object
	iter := r.rdb.Scan(ctx, 0, r.key(escapeGlob(prefix))+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		obj, err := r.head(ctx, key, strings.TrimPrefix(key, base))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		// Deleted between SCAN and HMGET.
		if !obj.Exists {
			continue
		}
		out = append(out, obj)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sortObjects(out)
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
