package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/argus/internal/livetrack"
)

// RedisStreamPublisher forwards applied game deltas to Redis streams, one
// live stream and one final stream per sport.
type RedisStreamPublisher struct {
	client *redis.Client
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
	}
}

// deltaMessage is the wire form of a delta. Absent fields stay absent in the
// JSON so consumers can tell "unchanged" from "changed to zero".
type deltaMessage struct {
	GameID        int        `json:"game_id"`
	SportCode     string     `json:"sport_code"`
	Status        *string    `json:"status,omitempty"`
	ScheduledAt   *time.Time `json:"gamedatetime,omitempty"`
	ScoreVisitor  *int       `json:"score_visitor,omitempty"`
	ScoreHome     *int       `json:"score_home,omitempty"`
	ScoreOvertime *string    `json:"score_overtime,omitempty"`
	NewEventCount int        `json:"new_event_count"`
}

// PublishDelta publishes an in-progress game change to the live stream
func (rsp *RedisStreamPublisher) PublishDelta(ctx context.Context, delta livetrack.Delta) error {
	return rsp.publish(ctx, fmt.Sprintf("games.live.%s", delta.Key.SportCode), delta)
}

// PublishFinal publishes a finished game to the final stream
func (rsp *RedisStreamPublisher) PublishFinal(ctx context.Context, delta livetrack.Delta) error {
	return rsp.publish(ctx, fmt.Sprintf("games.final.%s", delta.Key.SportCode), delta)
}

func (rsp *RedisStreamPublisher) publish(ctx context.Context, streamName string, delta livetrack.Delta) error {
	msg := deltaMessage{
		GameID:        delta.Key.GameID,
		SportCode:     delta.Key.SportCode,
		Status:        delta.Status,
		ScheduledAt:   delta.ScheduledAt,
		ScoreVisitor:  delta.ScoreVisitor,
		ScoreHome:     delta.ScoreHome,
		ScoreOvertime: delta.ScoreOvertime,
		NewEventCount: len(delta.NewEvents),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
