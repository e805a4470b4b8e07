package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL covers the provider's retry window for undelivered events.
const DefaultDedupTTL = 72 * time.Hour

// EventDedup remembers handled billing event ids in Redis.
// Key format: billing:event:<event_id>
type EventDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDedup wraps the client; a non-positive ttl falls back to DefaultDedupTTL.
func NewEventDedup(client *redis.Client, ttl time.Duration) *EventDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &EventDedup{client: client, ttl: ttl}
}

// Claim sets the event key only if absent, so concurrent redeliveries of one
// event resolve to a single winner.
func (d *EventDedup) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, key(eventID), time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

func key(eventID string) string {
	return "billing:event:" + eventID
}
