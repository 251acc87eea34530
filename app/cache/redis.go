package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ImportLimiter rate-limits feed imports with one expiring Redis key per
// feed URL. The key is claimed with SET NX, so concurrent processes agree.
type ImportLimiter struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewImportLimiter connects to Redis at addr
func NewImportLimiter(addr string, cooldown time.Duration) (*ImportLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &ImportLimiter{
		client:   client,
		cooldown: cooldown,
	}, nil
}

// Allow claims the cooldown window for feedURL. It returns false while
// another import of the same feed holds the window.
func (l *ImportLimiter) Allow(ctx context.Context, sourceID, feedURL string) (bool, error) {
	key := GenerateImportKey(feedURL)
	if feedURL == "" {
		key = GenerateImportKey("source:" + sourceID)
	}

	ok, err := l.client.SetNX(ctx, key, sourceID, l.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim import window for %s: %w", key, err)
	}
	if !ok {
		slog.Debug("Import window held", "key", key, "source_id", sourceID)
	}
	return ok, nil
}

// Health reports whether Redis answers a ping
func (l *ImportLimiter) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}
	return health
}

func (l *ImportLimiter) Close() error {
	return l.client.Close()
}

// GenerateImportKey generates a consistent key for a feed URL
func GenerateImportKey(feedURL string) string {
	hash := sha256.Sum256([]byte(feedURL))
	return fmt.Sprintf("import:%x", hash[:8])
}
