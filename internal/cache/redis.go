package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidTTL = errors.New("cache: ttl must be > 0")
)

type Cacher interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	// SetIfNewer stores val under key unless the key already holds a value
	// written with a higher version. Get returns such values framed as
	// "<version>|<val>"; see SplitVersioned.
	SetIfNewer(ctx context.Context, key, val string, version int64, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// setIfNewer compares the version prefix of the stored value and writes only
// when the incoming version is not lower.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local sep = string.find(cur, '|', 1, true)
	if sep and tonumber(string.sub(cur, 1, sep - 1)) > tonumber(ARGV[1]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// Versioned frames val the way SetIfNewer stores it.
func Versioned(version int64, val string) string {
	return strconv.FormatInt(version, 10) + "|" + val
}

// SplitVersioned undoes Versioned.
func SplitVersioned(raw string) (int64, string, bool) {
	head, val, ok := strings.Cut(raw, "|")
	if !ok {
		return 0, "", false
	}
	version, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return version, val, true
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Client exposes the underlying connection pool, shared with the Pub/Sub
// backbone.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// cache miss - not an error
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisCache) SetIfNewer(ctx context.Context, key, val string, version int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ms := max(ttl.Milliseconds(), 1)
	n, err := setIfNewer.Run(ctx, r.client, []string{key}, version, val, ms).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
