// Package redis provides Redis-based implementations of the store
// interfaces.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"notemesh/internal/config"
)

// prefixLikes is the key prefix for per-note like counts.
const prefixLikes = "likes:"

// LikeCountCache implements store.LikeCountCache using Redis.
type LikeCountCache struct {
	client *redis.Client
}

// NewLikeCountCache creates a new Redis-backed like-count cache.
func NewLikeCountCache(cfg *config.RedisConfig) (*LikeCountCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &LikeCountCache{client: client}, nil
}

// likeKey generates the Redis key for a note's like count.
func likeKey(noteID string) string {
	return prefixLikes + noteID
}

// Get returns the cached count and whether it was present.
func (c *LikeCountCache) Get(ctx context.Context, noteID string) (int, bool, error) {
	val, err := c.client.Get(ctx, likeKey(noteID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get like count: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse like count: %w", err)
	}

	return count, true, nil
}

// Set stores the count with the given TTL.
func (c *LikeCountCache) Set(ctx context.Context, noteID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, likeKey(noteID), count, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set like count: %w", err)
	}
	return nil
}

// Invalidate drops the cached count for a note.
func (c *LikeCountCache) Invalidate(ctx context.Context, noteID string) error {
	if err := c.client.Del(ctx, likeKey(noteID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate like count: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (c *LikeCountCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
