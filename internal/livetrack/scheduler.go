package livetrack

import (
	"context"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/fortuna/argus/internal/metrics"
	"github.com/fortuna/argus/internal/payload"
)

// FetchClient fetches raw provider data for one game. Implementations retry
// transient errors internally; a nil document with a nil error means the
// provider had no usable data this time and the game should be retried on the
// next cycle.
type FetchClient interface {
	FetchGame(ctx context.Context, sportCode string, gameID int) (payload.Document, error)
}

// Datastore persists applied deltas. Upserts are idempotent on
// (game_id, sport_code), so re-persisting an overlap-classified game is
// harmless.
type Datastore interface {
	UpsertLiveDeltas(ctx context.Context, deltas []Delta) error
	SaveFinalGames(ctx context.Context, deltas []Delta) error
}

// Publisher forwards applied deltas to downstream consumers (Redis streams,
// WebSocket clients). Publish failures never affect the polling cycle.
type Publisher interface {
	PublishDelta(ctx context.Context, delta Delta) error
	PublishFinal(ctx context.Context, delta Delta) error
}

// Config holds the scheduler's loop cadences and fan-out limit.
type Config struct {
	TodayInterval      time.Duration // Default: 10m
	EarlyInterval      time.Duration // Default: 2m
	LiveInterval       time.Duration // Default: 2s
	EarlyFinalInterval time.Duration // Default: 5m
	GCInterval         time.Duration // Default: 30m
	FetchConcurrency   int           // Default: 10 in-flight requests per cycle
}

// DefaultConfig returns the production loop cadences.
func DefaultConfig() *Config {
	return &Config{
		TodayInterval:      10 * time.Minute,
		EarlyInterval:      2 * time.Minute,
		LiveInterval:       2 * time.Second,
		EarlyFinalInterval: 5 * time.Minute,
		GCInterval:         30 * time.Minute,
		FetchConcurrency:   10,
	}
}

// Scheduler drives the fetch → diff → apply → persist pipeline at four
// independent cadences, plus the state store GC sweep. The five loops share
// nothing but the state store.
type Scheduler struct {
	store      *StateStore
	fetcher    FetchClient
	datastore  Datastore
	detector   Detector
	publishers []Publisher
	metrics    *metrics.Recorder
	config     *Config
}

// NewScheduler creates a scheduler over the given collaborators.
func NewScheduler(store *StateStore, fetcher FetchClient, datastore Datastore, publishers []Publisher, recorder *metrics.Recorder, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		store:      store,
		fetcher:    fetcher,
		datastore:  datastore,
		publishers: publishers,
		metrics:    recorder,
		config:     config,
	}
}

// Start launches the four polling loops and the GC sweep, then blocks until
// the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("→ Game update scheduler started (today=%v early=%v live=%v early_final=%v)",
		s.config.TodayInterval, s.config.EarlyInterval, s.config.LiveInterval, s.config.EarlyFinalInterval)

	go s.runBucketLoop(ctx, BucketToday, s.config.TodayInterval)
	go s.runBucketLoop(ctx, BucketEarly, s.config.EarlyInterval)
	go s.runBucketLoop(ctx, BucketLive, s.config.LiveInterval)
	go s.runBucketLoop(ctx, BucketEarlyFinal, s.config.EarlyFinalInterval)
	go s.runGCSweep(ctx)

	<-ctx.Done()
	log.Println("→ Game update scheduler stopped")
}

// runBucketLoop runs one bucket's cycle forever. A cycle-level error (in
// practice a persistence failure) terminates this loop only; the operator is
// expected to restart the process under supervision. Per-game fetch problems
// inside a cycle never reach here.
func (s *Scheduler) runBucketLoop(ctx context.Context, bucket Bucket, interval time.Duration) {
	loopName := "game_update_" + string(bucket)
	log.Printf("→ %s loop started (interval: %v)", bucket, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		if err := s.runCycle(ctx, bucket); err != nil {
			log.Printf("❌ %s loop terminated: %v", bucket, err)
			return
		}

		now := time.Now()
		s.metrics.LoopTick(loopName, now.Sub(lastTick))
		lastTick = now

		select {
		case <-ctx.Done():
			log.Printf("→ %s loop stopped", bucket)
			return
		case <-ticker.C:
		}
	}
}

// runCycle performs one select → fetch → diff → apply → persist pass.
func (s *Scheduler) runCycle(ctx context.Context, bucket Bucket) error {
	keys := s.store.GamesByBucket(bucket)
	if len(keys) == 0 {
		return nil
	}

	deltas := s.fetchChanges(ctx, keys)
	if len(deltas) == 0 {
		return nil
	}

	s.store.Apply(deltas)

	var err error
	if bucket == BucketEarlyFinal {
		err = s.datastore.SaveFinalGames(ctx, deltas)
	} else {
		err = s.datastore.UpsertLiveDeltas(ctx, deltas)
	}
	if err != nil {
		return err
	}

	s.publish(ctx, bucket, deltas)
	return nil
}

// fetchChanges fans out one fetch per game with bounded concurrency, diffs
// each result against stored state and returns the non-empty deltas. The
// bound is client-side admission control for the provider API. A failed or
// malformed fetch drops that game from this cycle only.
func (s *Scheduler) fetchChanges(ctx context.Context, keys []GameKey) []Delta {
	results := make([]*Delta, len(keys))

	workers := s.config.FetchConcurrency
	if workers > len(keys) {
		workers = len(keys)
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i, key := range keys {
		i, key := i, key
		p.Go(func() {
			delta, ok := s.gameChanges(ctx, key)
			if ok {
				results[i] = &delta
			}
		})
	}
	p.Wait()

	deltas := make([]Delta, 0, len(keys))
	for _, result := range results {
		if result != nil && !result.Empty() {
			deltas = append(deltas, *result)
		}
	}
	return deltas
}

func (s *Scheduler) gameChanges(ctx context.Context, key GameKey) (Delta, bool) {
	response, err := s.fetcher.FetchGame(ctx, key.SportCode, key.GameID)
	if err != nil {
		log.Printf("⚠️  Fetch failed for %s: %v", key, err)
		return Delta{}, false
	}

	game, ok := gameFromResponse(response)
	if !ok {
		log.Printf("⚠️  Bad response for %s, skipping this cycle", key)
		return Delta{}, false
	}

	previous := s.store.LastInfo(key)
	return s.detector.Diff(key, previous, game), true
}

// gameFromResponse validates the provider envelope and unwraps the single
// game document. The envelope convention is {"success": "1"|"0", "games":
// {...}}; anything other than exactly one game is unusable for a single-game
// query.
func gameFromResponse(response payload.Document) (payload.Document, bool) {
	if response == nil {
		return nil, false
	}
	if success, ok := response.String("success"); !ok || success == "0" {
		return nil, false
	}
	games := response.Values("games")
	if len(games) != 1 {
		return nil, false
	}
	return games[0], true
}

func (s *Scheduler) publish(ctx context.Context, bucket Bucket, deltas []Delta) {
	for _, pub := range s.publishers {
		for _, delta := range deltas {
			var err error
			if bucket == BucketEarlyFinal {
				err = pub.PublishFinal(ctx, delta)
			} else {
				err = pub.PublishDelta(ctx, delta)
			}
			if err != nil {
				log.Printf("⚠️  Failed to publish update for %s: %v", delta.Key, err)
			}
		}
	}
}

// runGCSweep evicts stale games on a fixed cadence, independent of the
// polling loops.
func (s *Scheduler) runGCSweep(ctx context.Context) {
	const loopName = "state_store_gc"
	log.Printf("→ State store GC sweep started (interval: %v)", s.config.GCInterval)

	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		s.store.EvictStale()

		now := time.Now()
		s.metrics.LoopTick(loopName, now.Sub(lastTick))
		lastTick = now

		select {
		case <-ctx.Done():
			log.Println("→ State store GC sweep stopped")
			return
		case <-ticker.C:
		}
	}
}
