package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGate implements Gate with a single SET key value NX EX ttl command:
// Redis guarantees that command is atomic, so the first caller to reach it
// for a given key is the only one that gets to set it.
type RedisGate struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// NewRedisGate constructs a gate against an existing client. ttl defaults
// to 24h when zero.
func NewRedisGate(client *redis.Client, ttl time.Duration) *RedisGate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGate{client: client, ttl: ttl, keyPrefix: "idempotency:"}
}

func (g *RedisGate) CheckAndMark(ctx context.Context, fingerprint string) (Outcome, error) {
	key := g.keyPrefix + fingerprint
	set, err := g.client.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("idempotency gate: %w", err)
	}
	if set {
		return FirstSeen, nil
	}
	return Duplicate, nil
}
