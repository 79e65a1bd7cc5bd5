// Package cache keeps recently read movies in Redis so catalog reads can skip
// the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/dsmovie/internal/domain"
)

const (
	keyPrefix = "dsmovie:movie:"
	// setAttempts bounds the optimistic retries of Set under contention.
	setAttempts = 5
)

// RedisMovies caches movies as JSON values keyed by id.
type RedisMovies struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedMovie struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	Score     float64   `json:"score"`
	Count     int       `json:"count"`
	ScoreSum  float64   `json:"scoreSum"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRedis connects to the Redis instance at url (redis://host:port/db) and
// verifies it answers PING.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*RedisMovies, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *RedisMovies {
	return &RedisMovies{client: client, ttl: ttl}
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Get returns the cached movie and true, or false on a miss.
func (c *RedisMovies) Get(ctx context.Context, id int64) (domain.Movie, bool, error) {
	payload, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Movie{}, false, nil
		}
		return domain.Movie{}, false, err
	}
	var cm cachedMovie
	if err := json.Unmarshal(payload, &cm); err != nil {
		return domain.Movie{}, false, fmt.Errorf("decode cached movie %d: %w", id, err)
	}
	return domain.Movie(cm), true, nil
}

// Set stores movie until the configured TTL expires, unless the cached copy
// carries a later UpdatedAt.
func (c *RedisMovies) Set(ctx context.Context, movie domain.Movie) error {
	payload, err := json.Marshal(cachedMovie(movie))
	if err != nil {
		return err
	}
	k := key(movie.ID)

	store := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cm cachedMovie
			if json.Unmarshal(current, &cm) == nil && !supersedes(movie, domain.Movie(cm)) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, payload, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < setAttempts; i++ {
		err = c.client.Watch(ctx, store, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cache movie %d: %w", movie.ID, err)
}

// supersedes reports whether next may replace cached. Equal versions carry the
// same row, so either copy is fine.
func supersedes(next, cached domain.Movie) bool {
	return !next.UpdatedAt.Before(cached.UpdatedAt)
}

// Delete evicts the movie with id.
func (c *RedisMovies) Delete(ctx context.Context, id int64) error {
	return c.client.Del(ctx, key(id)).Err()
}

// Close releases the underlying connections.
func (c *RedisMovies) Close() error {
	return c.client.Close()
}

// Nop is a cache that never holds anything. It is used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, int64) (domain.Movie, bool, error) { return domain.Movie{}, false, nil }
func (Nop) Set(context.Context, domain.Movie) error                { return nil }
func (Nop) Delete(context.Context, int64) error                    { return nil }
