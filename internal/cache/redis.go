package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 6 * time.Hour

// RedisCache holds the Redis connection and the latest known snapshot of
// every tracked game, keyed by sport and game id. The stream publisher and
// the WebSocket hub share its client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetGameSnapshot stores the latest raw document of a game. Snapshots expire
// on their own once a game has been untouched longer than the tracker keeps
// it in memory.
func (rc *RedisCache) SetGameSnapshot(ctx context.Context, sportCode string, gameID int, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, snapshotKey(sportCode, gameID), data, snapshotTTL).Err()
}

// GetGameSnapshot returns the latest stored raw document of a game, or
// redis.Nil if none is cached.
func (rc *RedisCache) GetGameSnapshot(ctx context.Context, sportCode string, gameID int) (map[string]any, error) {
	data, err := rc.client.Get(ctx, snapshotKey(sportCode, gameID)).Bytes()
	if err != nil {
		return nil, err
	}

	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// DeleteGameSnapshot drops the cached snapshot of a game
func (rc *RedisCache) DeleteGameSnapshot(ctx context.Context, sportCode string, gameID int) error {
	return rc.client.Del(ctx, snapshotKey(sportCode, gameID)).Err()
}

func snapshotKey(sportCode string, gameID int) string {
	return fmt.Sprintf("games:snapshot:%s:%d", sportCode, gameID)
}
