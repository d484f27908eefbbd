package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoClient is returned by operations that cannot degrade without Redis.
var ErrNoClient = errors.New("redis client is not configured")

// RevokeToken denylists a token id until its natural expiry.
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil {
		return ErrNoClient
	}
	if ttl <= 0 {
		return nil
	}
	return client.Set(ctx, fmt.Sprintf(RevokedKeyPrefix, jti), "1", ttl).Err()
}

// IsTokenRevoked reports whether jti was denylisted. Without Redis nothing
// is revoked.
func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if client == nil {
		return false, nil
	}
	n, err := client.Exists(ctx, fmt.Sprintf(RevokedKeyPrefix, jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkWebhookEvent records eventID and reports whether this is the first
// delivery seen within WebhookTTL.
func MarkWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	if client == nil {
		return true, nil
	}
	return client.SetNX(ctx, fmt.Sprintf(WebhookKeyPrefix, eventID), "1", WebhookTTL).Result()
}

// ForgetWebhookEvent releases a dedup marker so the provider's retry is
// processed after a failed delivery.
func ForgetWebhookEvent(ctx context.Context, eventID string) {
	Invalidate(ctx, fmt.Sprintf(WebhookKeyPrefix, eventID))
}
