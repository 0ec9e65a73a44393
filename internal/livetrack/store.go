package livetrack

import (
	"log"
	"sync"
	"time"

	"github.com/fortuna/argus/internal/metrics"
)

const retentionHorizon = 5 * time.Hour

// StateStore is the authoritative in-memory view of games worth polling now.
// It is shared by every polling loop, the seeder and the GC sweep, so all
// mutating operations hold the write lock for their full duration.
type StateStore struct {
	mu      sync.RWMutex
	games   map[string]*GameState
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewStateStore creates an empty state store.
func NewStateStore(recorder *metrics.Recorder) *StateStore {
	return &StateStore{
		games:   make(map[string]*GameState),
		metrics: recorder,
		now:     time.Now,
	}
}

// Fill seeds the store from persisted game records. Keys already present are
// left untouched, so a refill never loses play-by-play ids or newer state
// accumulated by the polling loops.
func (s *StateStore) Fill(seeds []SeedGame) {
	s.mu.Lock()
	for _, seed := range seeds {
		key := seed.Key.String()
		if _, exists := s.games[key]; exists {
			continue
		}
		s.games[key] = &GameState{
			Key:           seed.Key,
			ScheduledAt:   seed.ScheduledAt,
			Status:        seed.Status,
			ScoreVisitor:  cloneInt(seed.ScoreVisitor),
			ScoreHome:     cloneInt(seed.ScoreHome),
			ScoreOvertime: cloneString(seed.ScoreOvertime),
			KnownEventIDs: cloneIDSet(seed.KnownEventIDs),
		}
	}
	s.mu.Unlock()

	s.updateMetrics()
}

// GamesByBucket returns the keys of every game currently classified into the
// given bucket. Classification is evaluated against UTC "now" at call time.
func (s *StateStore) GamesByBucket(bucket Bucket) []GameKey {
	now := s.now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []GameKey
	for _, state := range s.games {
		if classifies(state, bucket, now) {
			keys = append(keys, state.Key)
		}
	}
	return keys
}

func classifies(state *GameState, bucket Bucket, now time.Time) bool {
	t := state.ScheduledAt

	switch bucket {
	case BucketEarlyFinal:
		return IsFinalStatus(state.Status)
	case BucketLive:
		startingSoon := !t.Before(now) && t.Before(now.Add(3*time.Hour))
		underway := state.Status != "Scheduled" && !t.Before(now.Add(-3*time.Hour)) && t.Before(now)
		return startingSoon || underway
	case BucketEarly:
		// The window is inverted (both bounds are "now"), so nothing ever
		// matches and the early loop polls an empty set. Kept that way until
		// the intended lead time for upcoming games is settled; widening it
		// here would silently change polling load.
		return t.After(now) && !t.After(now)
	case BucketToday:
		y1, m1, d1 := now.Date()
		y2, m2, d2 := t.UTC().Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	default:
		return false
	}
}

// LastInfo returns a copy of the stored state for key, or nil if the game has
// never been seen.
func (s *StateStore) LastInfo(key GameKey) *GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.games[key.String()]
	if !ok {
		return nil
	}
	return cloneState(state)
}

// CurrentStatus returns the stored status for key.
func (s *StateStore) CurrentStatus(key GameKey) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.games[key.String()]
	if !ok {
		return "", false
	}
	return state.Status, true
}

// Size returns the number of tracked games.
func (s *StateStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Apply folds a batch of deltas into the store. Missing games are created
// from the delta itself (its status and scheduled time are always present in
// that case, because a diff against nothing reports every field). Known
// play-by-play ids only ever grow: an event observed once is never unseen.
func (s *StateStore) Apply(deltas []Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, delta := range deltas {
		key := delta.Key.String()
		state, ok := s.games[key]
		if !ok {
			if delta.Status == nil || delta.ScheduledAt == nil {
				log.Printf("StateStore: dropping bootstrap delta for %s without status or scheduled time", key)
				continue
			}
			state = &GameState{
				Key:         delta.Key,
				ScheduledAt: *delta.ScheduledAt,
				Status:      *delta.Status,
			}
			s.games[key] = state
		}

		if delta.Status != nil {
			state.Status = *delta.Status
		}
		if delta.ScheduledAt != nil {
			state.ScheduledAt = *delta.ScheduledAt
		}
		if delta.ScoreVisitor != nil {
			state.ScoreVisitor = cloneInt(delta.ScoreVisitor)
		}
		if delta.ScoreHome != nil {
			state.ScoreHome = cloneInt(delta.ScoreHome)
		}
		if delta.ScoreOvertime != nil {
			state.ScoreOvertime = cloneString(delta.ScoreOvertime)
		}

		if len(delta.NewEvents) > 0 {
			if state.KnownEventIDs == nil {
				state.KnownEventIDs = make(map[int]struct{}, len(delta.NewEvents))
			}
			for _, event := range delta.NewEvents {
				if id, ok := event.Int("id"); ok {
					state.KnownEventIDs[id] = struct{}{}
				}
			}
		}
	}
}

// EvictStale removes every game whose scheduled time is more than the
// retention horizon in the past. Runs as a background sweep.
func (s *StateStore) EvictStale() int {
	threshold := s.now().UTC().Add(-retentionHorizon)

	s.mu.Lock()
	removed := 0
	for key, state := range s.games {
		if state.ScheduledAt.Before(threshold) {
			delete(s.games, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		log.Printf("StateStore: evicted %d stale games", removed)
	}
	s.updateMetrics()
	return removed
}

func (s *StateStore) updateMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetStorageSize(s.Size())
	for _, bucket := range Buckets {
		s.metrics.SetBucketCount(string(bucket), len(s.GamesByBucket(bucket)))
	}
}

func cloneState(state *GameState) *GameState {
	out := &GameState{
		Key:           state.Key,
		ScheduledAt:   state.ScheduledAt,
		Status:        state.Status,
		ScoreVisitor:  cloneInt(state.ScoreVisitor),
		ScoreHome:     cloneInt(state.ScoreHome),
		ScoreOvertime: cloneString(state.ScoreOvertime),
		KnownEventIDs: cloneIDSet(state.KnownEventIDs),
	}
	return out
}

func cloneIDSet(ids map[int]struct{}) map[int]struct{} {
	if ids == nil {
		return nil
	}
	out := make(map[int]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
