// Package redisq implements ports.QueueProber for the ops stack's Redis
// job queue.
package redisq

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Prober wraps a go-redis client.
type Prober struct {
	client *redis.Client
}

// New connects lazily to addr (host:port).
func New(addr, password string, db int) *Prober {
	return &Prober{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewFromURL parses a redis:// URL as used by the ops stack's REDIS_URL.
func NewFromURL(url string) (*Prober, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Prober{client: redis.NewClient(opts)}, nil
}

// Ping checks the server answers PONG.
func (p *Prober) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// QueueLength returns LLEN key; a missing key is an empty queue.
func (p *Prober) QueueLength(ctx context.Context, key string) (int64, error) {
	return p.client.LLen(ctx, key).Result()
}

// Close releases the connection pool.
func (p *Prober) Close() error {
	return p.client.Close()
}

var _ ports.QueueProber = (*Prober)(nil)
