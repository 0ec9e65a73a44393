package livetrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/argus/internal/payload"
)

var testNow = time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)

func newTestStore() *StateStore {
	s := NewStateStore(nil)
	s.now = func() time.Time { return testNow }
	return s
}

func seed(gameID int, scheduledAt time.Time, status string) SeedGame {
	return SeedGame{
		Key:         GameKey{SportCode: "NBA", GameID: gameID},
		ScheduledAt: scheduledAt,
		Status:      status,
	}
}

func TestFillIsIdempotentAndMergeOnly(t *testing.T) {
	s := newTestStore()

	s.Fill([]SeedGame{seed(1, testNow, "Scheduled")})
	require.Equal(t, 1, s.Size())

	// Accumulate live state, then refill with the stale database view.
	status := "In Progress"
	visitor := 55
	s.Apply([]Delta{{
		Key:          GameKey{SportCode: "NBA", GameID: 1},
		Status:       &status,
		ScoreVisitor: &visitor,
	}})

	s.Fill([]SeedGame{seed(1, testNow, "Scheduled"), seed(2, testNow.Add(time.Hour), "Scheduled")})

	assert.Equal(t, 2, s.Size())
	state := s.LastInfo(GameKey{SportCode: "NBA", GameID: 1})
	require.NotNil(t, state)
	assert.Equal(t, "In Progress", state.Status, "refill must not clobber live state")
	require.NotNil(t, state.ScoreVisitor)
	assert.Equal(t, 55, *state.ScoreVisitor)
}

func TestLiveBucketBoundaries(t *testing.T) {
	s := newTestStore()

	s.Fill([]SeedGame{
		seed(1, testNow, "Scheduled"),                                 // starting right now
		seed(2, testNow.Add(2*time.Hour+59*time.Minute), "Scheduled"), // inside the 3h lookahead
		seed(3, testNow.Add(3*time.Hour), "Scheduled"),                // exactly at the bound: out
		seed(4, testNow.Add(-2*time.Hour), "In Progress"),             // underway
		seed(5, testNow.Add(-2*time.Hour), "Scheduled"),               // past start but never updated
		seed(6, testNow.Add(-3*time.Hour-time.Minute), "In Progress"), // too far past
	})

	live := map[int]bool{}
	for _, k := range s.GamesByBucket(BucketLive) {
		live[k.GameID] = true
	}

	assert.True(t, live[1])
	assert.True(t, live[2])
	assert.False(t, live[3])
	assert.True(t, live[4])
	assert.False(t, live[5], "a game still marked Scheduled after tip-off is not live")
	assert.False(t, live[6])
}

func TestEarlyBucketIsAlwaysEmpty(t *testing.T) {
	s := newTestStore()
	s.Fill([]SeedGame{
		seed(1, testNow.Add(30*time.Minute), "Scheduled"),
		seed(2, testNow.Add(-30*time.Minute), "Scheduled"),
		seed(3, testNow.Add(12*time.Hour), "Scheduled"),
	})

	assert.Empty(t, s.GamesByBucket(BucketEarly))
}

func TestEarlyFinalBucketMatchesFinalVariants(t *testing.T) {
	s := newTestStore()
	s.Fill([]SeedGame{
		seed(1, testNow.Add(-time.Hour), "Final"),
		seed(2, testNow.Add(-time.Hour), "Final - Forfeit Home"),
		seed(3, testNow.Add(-time.Hour), "In Progress"),
	})

	final := s.GamesByBucket(BucketEarlyFinal)
	assert.Len(t, final, 2)
}

func TestTodayBucketComparesUTCDate(t *testing.T) {
	s := newTestStore()
	s.Fill([]SeedGame{
		seed(1, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), "Scheduled"),
		seed(2, time.Date(2026, time.March, 14, 23, 59, 0, 0, time.UTC), "Final"),
		seed(3, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), "Scheduled"),
	})

	today := s.GamesByBucket(BucketToday)
	assert.Len(t, today, 2)
}

func TestEvictStaleUsesRetentionHorizon(t *testing.T) {
	s := newTestStore()
	s.Fill([]SeedGame{
		seed(1, testNow.Add(-6*time.Hour), "Final"),
		seed(2, testNow.Add(-4*time.Hour), "Final"),
		seed(3, testNow.Add(time.Hour), "Scheduled"),
	})

	removed := s.EvictStale()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, s.Size())
	assert.Nil(t, s.LastInfo(GameKey{SportCode: "NBA", GameID: 1}))
}

func TestApplyBootstrapsUnknownGames(t *testing.T) {
	s := newTestStore()

	status := "In Progress"
	scheduledAt := testNow.Add(-time.Hour)
	s.Apply([]Delta{{
		Key:         GameKey{SportCode: "NBA", GameID: 9},
		Status:      &status,
		ScheduledAt: &scheduledAt,
	}})

	state := s.LastInfo(GameKey{SportCode: "NBA", GameID: 9})
	require.NotNil(t, state)
	assert.Equal(t, "In Progress", state.Status)
	assert.True(t, state.ScheduledAt.Equal(scheduledAt))
}

func TestApplyDropsUnderspecifiedBootstrap(t *testing.T) {
	s := newTestStore()

	visitor := 10
	s.Apply([]Delta{{
		Key:          GameKey{SportCode: "NBA", GameID: 9},
		ScoreVisitor: &visitor,
	}})

	assert.Equal(t, 0, s.Size())
}

func TestKnownEventIDsOnlyGrow(t *testing.T) {
	s := newTestStore()
	key := GameKey{SportCode: "NBA", GameID: 1}
	s.Fill([]SeedGame{seed(1, testNow, "In Progress")})

	event := func(id int) payload.Document {
		return payload.Document{"id": float64(id)}
	}

	s.Apply([]Delta{{Key: key, NewEvents: []payload.Document{event(1), event(2)}}})
	s.Apply([]Delta{{Key: key, NewEvents: []payload.Document{event(3)}}})
	// An empty batch must not reset anything.
	s.Apply([]Delta{{Key: key}})

	state := s.LastInfo(key)
	require.NotNil(t, state)
	assert.Len(t, state.KnownEventIDs, 3)
	for _, id := range []int{1, 2, 3} {
		_, ok := state.KnownEventIDs[id]
		assert.True(t, ok, "id %d", id)
	}
}

func TestLastInfoReturnsCopy(t *testing.T) {
	s := newTestStore()
	key := GameKey{SportCode: "NBA", GameID: 1}
	s.Fill([]SeedGame{seed(1, testNow, "Scheduled")})

	first := s.LastInfo(key)
	first.Status = "mutated"
	first.KnownEventIDs = map[int]struct{}{99: {}}

	second := s.LastInfo(key)
	assert.Equal(t, "Scheduled", second.Status)
	assert.Nil(t, second.KnownEventIDs)
}

func TestFillWarmsKnownEventIDs(t *testing.T) {
	s := newTestStore()
	key := GameKey{SportCode: "NBA", GameID: 1}

	warmed := seed(1, testNow.Add(-time.Hour), "In Progress")
	warmed.KnownEventIDs = map[int]struct{}{1: {}, 2: {}}
	s.Fill([]SeedGame{warmed})

	// The seeded ids suppress re-reporting the persisted backlog: a payload
	// replaying events 1 and 2 alongside a new event 3 diffs to just 3.
	state := s.LastInfo(key)
	require.NotNil(t, state)

	var detector Detector
	delta := detector.Diff(key, state, payload.Document{
		"id":     float64(1),
		"status": "In Progress",
		"stats": map[string]any{
			"playbyplay": map[string]any{
				"1": map[string]any{"id": float64(1)},
				"2": map[string]any{"id": float64(2)},
				"3": map[string]any{"id": float64(3)},
			},
		},
	})

	require.Len(t, delta.NewEvents, 1)
	id, _ := delta.NewEvents[0].Int("id")
	assert.Equal(t, 3, id)

	// The store holds its own copy of the seeded set.
	warmed.KnownEventIDs[99] = struct{}{}
	assert.Len(t, s.LastInfo(key).KnownEventIDs, 2)
}
