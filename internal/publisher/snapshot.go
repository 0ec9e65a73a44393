package publisher

import (
	"context"

	"github.com/fortuna/argus/internal/cache"
	"github.com/fortuna/argus/internal/livetrack"
)

// SnapshotPublisher keeps the Redis snapshot cache current with the latest
// raw document of every changed game, so API reads never have to wait for
// the next poll.
type SnapshotPublisher struct {
	cache *cache.RedisCache
}

// NewSnapshotPublisher creates a snapshot publisher over the given cache
func NewSnapshotPublisher(c *cache.RedisCache) *SnapshotPublisher {
	return &SnapshotPublisher{cache: c}
}

// PublishDelta caches the raw document the delta was computed from
func (sp *SnapshotPublisher) PublishDelta(ctx context.Context, delta livetrack.Delta) error {
	if delta.Raw == nil {
		return nil
	}
	return sp.cache.SetGameSnapshot(ctx, delta.Key.SportCode, delta.Key.GameID, delta.Raw)
}

// PublishFinal caches the final raw document of a finished game
func (sp *SnapshotPublisher) PublishFinal(ctx context.Context, delta livetrack.Delta) error {
	return sp.PublishDelta(ctx, delta)
}
