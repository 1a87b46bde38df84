package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KV is the subset of Redis used by the read API caches and the worker lock.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, val string) (bool, error)
}

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool { return errors.Is(err, redis.Nil) }

type Client struct{ Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Client{Rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
	return c.Rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.Rdb.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.Rdb.Exists(ctx, key).Result()
	return n == 1, err
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.Rdb.TTL(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error) {
	return c.Rdb.SetNX(ctx, key, val, ttl).Result()
}

var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// CompareAndDelete removes key only while it still holds val.
func (c *Client) CompareAndDelete(ctx context.Context, key, val string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, c.Rdb, []string{key}, val).Int()
	return n == 1, err
}

// GetJSON decodes the value at key into dst. ok is false on a miss.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	val, err := kv.Get(ctx, key)
	if IsMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, string(b), ttl)
}

// Lock is a single-holder lease on a key.
type Lock struct {
	kv    KV
	key   string
	token string
}

// TryLock takes key for ttl. It returns nil, nil when someone else holds it.
func TryLock(ctx context.Context, kv KV, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := kv.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, err
	}
	return &Lock{kv: kv, key: key, token: token}, nil
}

// Release frees the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.kv.CompareAndDelete(ctx, l.key, l.token)
	return err
}
