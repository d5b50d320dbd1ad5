// Package redis serves the access token denylist from Redis, letting several
// auth replicas share it without a shared database.
package redis

import (
	"context"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/store"
	"github.com/go-redis/redis/v8"
)

const defaultPrefix = "quill:denied:"

var _ store.Denylist = (*Denylist)(nil)

// Denylist keeps one key per denied jti. Keys expire with the token, so
// there is nothing to sweep.
type Denylist struct {
	client *redis.Client
	prefix string
}

type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces keys; defaults to "quill:denied:".
	Prefix string
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options) (*Denylist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Denylist {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Denylist{client: client, prefix: prefix}
}

func (d *Denylist) key(jti string) string { return d.prefix + jti }

func (d *Denylist) DenyAccessToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already unusable
	}
	return d.client.Set(ctx, d.key(jti), userID, ttl).Err()
}

func (d *Denylist) IsAccessTokenDenied(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpiredDeniedTokens is a no-op; Redis expires the keys itself.
func (d *Denylist) DeleteExpiredDeniedTokens(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// Ping checks the Redis connection.
func (d *Denylist) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Denylist) Close() error {
	return d.client.Close()
}
