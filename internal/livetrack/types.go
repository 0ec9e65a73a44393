package livetrack

import (
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/argus/internal/payload"
)

// Bucket classifies a tracked game into the polling loop responsible for it.
type Bucket string

const (
	BucketToday      Bucket = "today"
	BucketEarly      Bucket = "early"
	BucketLive       Bucket = "live"
	BucketEarlyFinal Bucket = "early_final"
)

// Buckets lists every bucket, in loop-priority order.
var Buckets = []Bucket{BucketToday, BucketEarly, BucketLive, BucketEarlyFinal}

// GameKey identifies a tracked game across every structure in the tracker.
type GameKey struct {
	SportCode string
	GameID    int
}

// String returns the hash-map form of the key.
func (k GameKey) String() string {
	return fmt.Sprintf("%s_%d", k.SportCode, k.GameID)
}

// GameState is the last observed state of one game. Instances are owned
// exclusively by the StateStore; callers get copies.
//
// Pointer fields distinguish "not yet known" from a real zero value, and
// KnownEventIDs distinguishes "never fetched play-by-play" (nil) from
// "fetched, none yet" (empty set).
type GameState struct {
	Key           GameKey
	ScheduledAt   time.Time
	Status        string
	ScoreVisitor  *int
	ScoreHome     *int
	ScoreOvertime *string
	KnownEventIDs map[int]struct{}
}

// Delta is the minimal set of changes between a stored GameState and a fresh
// provider payload. Nil fields mean "unchanged", which the apply and persist
// steps rely on to skip untouched columns.
type Delta struct {
	Key           GameKey
	Status        *string
	ScheduledAt   *time.Time
	ScoreVisitor  *int
	ScoreHome     *int
	ScoreOvertime *string

	// NewEvents holds raw play-by-play records not seen before, in original
	// payload shape. Nil means the payload carried no play-by-play collection
	// at all; an empty slice means it did, with nothing new.
	NewEvents []payload.Document

	// Raw is the full game document the delta was computed from. Needed to
	// bootstrap a missing GameState and to persist a final game in full.
	Raw payload.Document
}

// Empty reports whether the delta carries no change at all. Empty deltas are
// dropped before the apply/persist phase.
func (d Delta) Empty() bool {
	return d.Status == nil &&
		d.ScheduledAt == nil &&
		d.ScoreVisitor == nil &&
		d.ScoreHome == nil &&
		d.ScoreOvertime == nil &&
		len(d.NewEvents) == 0
}

// SeedGame is a persisted game record in the reduced form the StateStore
// needs for seeding. The datastore adapter converts its own rows into this.
type SeedGame struct {
	Key           GameKey
	ScheduledAt   time.Time
	Status        string
	ScoreVisitor  *int
	ScoreHome     *int
	ScoreOvertime *string

	// KnownEventIDs carries the already persisted play-by-play ids, so a
	// freshly seeded store does not re-report the whole backlog as new.
	KnownEventIDs map[int]struct{}
}

// IsFinalStatus reports whether a provider status string marks a finished
// game. The provider has many final variants ("Final", "Final - Forfeit Home").
func IsFinalStatus(status string) bool {
	return strings.Contains(strings.ToLower(status), "final")
}
