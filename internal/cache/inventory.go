package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	FeedKeyPrefix    = "feed:%s:v%d"
	FeedVersionKey   = "feed:version"
	PostKeyPrefix    = "post:%s"
	RevokedKeyPrefix = "blacklist:%s"
	WebhookKeyPrefix = "webhook:event:%s"
)

const (
	FeedTTL    = 30 * time.Second
	PostTTL    = 5 * time.Minute
	WebhookTTL = 24 * time.Hour
)

// feedVersion reads the shared feed generation. Bumping it retires every
// cached feed page at once without scanning keys.
func feedVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, FeedVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// FeedKey returns the cache key for the current generation of feed.
func FeedKey(ctx context.Context, feed string) string {
	return fmt.Sprintf(FeedKeyPrefix, feed, feedVersion(ctx))
}

func PostKey(postID string) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// Aside implements cache-aside for JSON values: a hit is decoded into dest,
// a miss calls fetch (which fills dest) and stores the result with ttl.
// Redis failures fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		slog.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateFeeds retires every cached feed page.
func InvalidateFeeds(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, FeedVersionKey)
	}
}

func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID))
	InvalidateFeeds(ctx)
}
