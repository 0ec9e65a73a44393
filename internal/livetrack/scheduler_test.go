package livetrack

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/argus/internal/payload"
)

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]payload.Document
	errs      map[string]error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		responses: make(map[string]payload.Document),
		errs:      make(map[string]error),
	}
}

func (f *stubFetcher) set(key GameKey, raw string) {
	var doc payload.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.responses[key.String()] = doc
	f.mu.Unlock()
}

func (f *stubFetcher) FetchGame(ctx context.Context, sportCode string, gameID int) (payload.Document, error) {
	key := GameKey{SportCode: sportCode, GameID: gameID}.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.responses[key], nil
}

type stubDatastore struct {
	mu      sync.Mutex
	live    [][]Delta
	final   [][]Delta
	liveErr error
}

func (d *stubDatastore) UpsertLiveDeltas(ctx context.Context, deltas []Delta) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.liveErr != nil {
		return d.liveErr
	}
	d.live = append(d.live, deltas)
	return nil
}

func (d *stubDatastore) SaveFinalGames(ctx context.Context, deltas []Delta) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.final = append(d.final, deltas)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	deltas []Delta
	finals []Delta
}

func (p *stubPublisher) PublishDelta(ctx context.Context, delta Delta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deltas = append(p.deltas, delta)
	return nil
}

func (p *stubPublisher) PublishFinal(ctx context.Context, delta Delta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, delta)
	return nil
}

func envelope(gameID int, game string) string {
	return fmt.Sprintf(`{"success": "1", "games": {"%d": %s}}`, gameID, game)
}

func newTestScheduler(fetcher *stubFetcher, datastore *stubDatastore, pub *stubPublisher) (*Scheduler, *StateStore) {
	s := NewStateStore(nil)
	s.now = func() time.Time { return testNow }

	var publishers []Publisher
	if pub != nil {
		publishers = []Publisher{pub}
	}
	sched := NewScheduler(s, fetcher, datastore, publishers, nil, DefaultConfig())
	return sched, s
}

func TestCycleAppliesPersistsAndPublishes(t *testing.T) {
	fetcher := newStubFetcher()
	datastore := &stubDatastore{}
	pub := &stubPublisher{}
	sched, store := newTestScheduler(fetcher, datastore, pub)

	key := GameKey{SportCode: "NBA", GameID: 1}
	store.Fill([]SeedGame{{Key: key, ScheduledAt: testNow.Add(-time.Hour), Status: "In Progress"}})
	fetcher.set(key, envelope(1, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "14:00",
		"score": {"visitor": 12, "home": 15}
	}`))

	require.NoError(t, sched.runCycle(context.Background(), BucketLive))

	state := store.LastInfo(key)
	require.NotNil(t, state)
	require.NotNil(t, state.ScoreVisitor)
	assert.Equal(t, 12, *state.ScoreVisitor)

	require.Len(t, datastore.live, 1)
	require.Len(t, datastore.live[0], 1)
	assert.Empty(t, datastore.final)

	require.Len(t, pub.deltas, 1)
	assert.Empty(t, pub.finals)
}

func TestCycleSkipsNoopDeltas(t *testing.T) {
	fetcher := newStubFetcher()
	datastore := &stubDatastore{}
	sched, store := newTestScheduler(fetcher, datastore, nil)

	key := GameKey{SportCode: "NBA", GameID: 1}
	scheduledAt := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC) // 14:00 EDT
	store.Fill([]SeedGame{{Key: key, ScheduledAt: scheduledAt, Status: "In Progress"}})
	fetcher.set(key, envelope(1, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "14:00"
	}`))

	require.NoError(t, sched.runCycle(context.Background(), BucketLive))

	assert.Empty(t, datastore.live, "an unchanged game must not be persisted")
}

func TestCycleRoutesFinalsToSaveFinalGames(t *testing.T) {
	fetcher := newStubFetcher()
	datastore := &stubDatastore{}
	pub := &stubPublisher{}
	sched, store := newTestScheduler(fetcher, datastore, pub)

	key := GameKey{SportCode: "NBA", GameID: 7}
	store.Fill([]SeedGame{{Key: key, ScheduledAt: testNow.Add(-2 * time.Hour), Status: "Final"}})
	fetcher.set(key, envelope(7, `{
		"status": "Final",
		"gameday": "2026-03-14", "starttime": "13:00",
		"score": {"visitor": 101, "home": 99}
	}`))

	require.NoError(t, sched.runCycle(context.Background(), BucketEarlyFinal))

	require.Len(t, datastore.final, 1)
	assert.Empty(t, datastore.live)
	require.Len(t, pub.finals, 1)
	assert.Empty(t, pub.deltas)
}

func TestCycleSurvivesPerGameFetchFailures(t *testing.T) {
	fetcher := newStubFetcher()
	datastore := &stubDatastore{}
	sched, store := newTestScheduler(fetcher, datastore, nil)

	good := GameKey{SportCode: "NBA", GameID: 1}
	bad := GameKey{SportCode: "NBA", GameID: 2}
	store.Fill([]SeedGame{
		{Key: good, ScheduledAt: testNow.Add(-time.Hour), Status: "In Progress"},
		{Key: bad, ScheduledAt: testNow.Add(-time.Hour), Status: "In Progress"},
	})
	fetcher.set(good, envelope(1, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "14:00",
		"score": {"visitor": 30, "home": 28}
	}`))
	fetcher.errs[bad.String()] = fmt.Errorf("connection reset")

	require.NoError(t, sched.runCycle(context.Background(), BucketLive))

	require.Len(t, datastore.live, 1)
	require.Len(t, datastore.live[0], 1)
	assert.Equal(t, good, datastore.live[0][0].Key)
}

func TestCycleReturnsPersistError(t *testing.T) {
	fetcher := newStubFetcher()
	datastore := &stubDatastore{liveErr: fmt.Errorf("connection refused")}
	sched, store := newTestScheduler(fetcher, datastore, nil)

	key := GameKey{SportCode: "NBA", GameID: 1}
	store.Fill([]SeedGame{{Key: key, ScheduledAt: testNow.Add(-time.Hour), Status: "In Progress"}})
	fetcher.set(key, envelope(1, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "14:00",
		"score": {"visitor": 1, "home": 0}
	}`))

	assert.Error(t, sched.runCycle(context.Background(), BucketLive))
}

func TestGameFromResponseEnvelopeValidation(t *testing.T) {
	parse := func(raw string) payload.Document {
		var doc payload.Document
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))
		return doc
	}

	_, ok := gameFromResponse(nil)
	assert.False(t, ok, "nil response")

	_, ok = gameFromResponse(parse(`{"success": "0", "games": {"1": {"id": 1}}}`))
	assert.False(t, ok, "failure envelope")

	_, ok = gameFromResponse(parse(`{"success": "1", "games": {}}`))
	assert.False(t, ok, "empty games map")

	_, ok = gameFromResponse(parse(`{"success": "1", "games": {"1": {"id": 1}, "2": {"id": 2}}}`))
	assert.False(t, ok, "more than one game for a single-game query")

	game, ok := gameFromResponse(parse(`{"success": "1", "games": {"1": {"id": 1, "status": "Final"}}}`))
	require.True(t, ok)
	status, _ := game.String("status")
	assert.Equal(t, "Final", status)
}
