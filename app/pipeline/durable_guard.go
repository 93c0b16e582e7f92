package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/rss-scout/app/feed"
)

const linkKeyPrefix = "scout:link:"

// LinkStore is the subset of the Redis client the guard needs.
type LinkStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// DurableGuard keeps a per-link marker in Redis so a link forwarded before
// a restart is still skipped afterwards.
type DurableGuard struct {
	next   Pipeline
	client LinkStore
	ttl    time.Duration
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}

func NewDurableGuard(next Pipeline, client LinkStore, ttl time.Duration) *DurableGuard {
	return &DurableGuard{next: next, client: client, ttl: ttl}
}

// Process claims the link before delegating. The claim is kept even when
// the delegate fails, so forwarding stays at-most-once.
func (g *DurableGuard) Process(ctx context.Context, item feed.Item) (Outcome, error) {
	claimed, err := g.client.SetNX(ctx, LinkKey(item.Link), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim link: %w", err)
	}
	if !claimed {
		slog.Debug("Link already forwarded before", "link", item.Link)
		return OutcomeSkipped, nil
	}

	return g.next.Process(ctx, item)
}

// LinkKey returns the Redis key for a canonical link.
func LinkKey(link string) string {
	hash := sha256.Sum256([]byte(link))
	return linkKeyPrefix + hex.EncodeToString(hash[:])
}
