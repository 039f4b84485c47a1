package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PostKeyPrefix     = "post:%d"
	FeedGenerationKey = "feed:gen"
	FeedPagePrefix    = "feed:%d:page:%d:%d"
)

const (
	PostTTL = 30 * time.Minute
	FeedTTL = 30 * time.Second
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// FeedPageKey returns the key for one feed page under the current generation.
// Bumping the generation retires every cached page at once.
func FeedPageKey(ctx context.Context, limit, offset int) string {
	var gen int64
	if client != nil {
		if v, err := client.Get(ctx, FeedGenerationKey).Int64(); err == nil {
			gen = v
		}
	}
	return fmt.Sprintf(FeedPagePrefix, gen, limit, offset)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateFeed retires all cached feed pages.
func InvalidateFeed(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, FeedGenerationKey)
	}
}

// InvalidatePost drops a post and every feed page that may embed it.
func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	InvalidateFeed(ctx)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result in Redis with ttl. Cache read failures fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	// best-effort
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}
