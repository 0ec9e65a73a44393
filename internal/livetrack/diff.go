package livetrack

import (
	"strings"
	"time"

	"github.com/fortuna/argus/internal/payload"
)

// sourceLocation is the provider's fixed timezone: every gameday/starttime
// pair in the feed is local to US Eastern.
var sourceLocation = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// GameDateTime derives the UTC scheduled time of a game from the payload's
// local-date ("gameday") and local-time ("starttime") fields. The provider
// substitutes a placeholder object for starttime when tip-off is unknown, in
// which case the date alone is used.
func GameDateTime(doc payload.Document) (time.Time, bool) {
	day, ok := doc.String("gameday")
	if !ok || day == "" {
		return time.Time{}, false
	}
	// The feed occasionally ships a zero day-of-month ("2014-10-00").
	if strings.HasSuffix(day, "-00") {
		day = strings.TrimSuffix(day, "-00") + "-01"
	}

	if start, ok := doc.String("starttime"); ok && start != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+start, sourceLocation); err == nil {
			return t.UTC(), true
		}
	}

	t, err := time.ParseInLocation("2006-01-02", day, sourceLocation)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Detector computes minimal deltas between stored game state and freshly
// fetched payloads. Diff is a pure function: no clock reads, no I/O.
type Detector struct{}

// Diff compares the previous known state (nil for a game never seen before)
// against a fresh game document. A nil previous state reports every
// extractable field as changed, and the comparison is absence-aware: a field
// the previous state never had counts as changed the moment it appears.
func (Detector) Diff(key GameKey, previous *GameState, fresh payload.Document) Delta {
	delta := Delta{Key: key, Raw: fresh}

	if status, ok := fresh.String("status"); ok {
		if previous == nil || previous.Status != status {
			delta.Status = &status
		}
	}

	if scheduledAt, ok := GameDateTime(fresh); ok {
		if previous == nil || !previous.ScheduledAt.Equal(scheduledAt) {
			delta.ScheduledAt = &scheduledAt
		}
	}

	delta.ScoreVisitor = changedInt(fresh, "score.visitor", previous, func(s *GameState) *int { return s.ScoreVisitor })
	delta.ScoreHome = changedInt(fresh, "score.home", previous, func(s *GameState) *int { return s.ScoreHome })

	if overtime, ok := fresh.StringAt("score.overtime"); ok {
		if previous == nil || previous.ScoreOvertime == nil || *previous.ScoreOvertime != overtime {
			delta.ScoreOvertime = &overtime
		}
	}

	delta.NewEvents = newEvents(previous, fresh)

	return delta
}

func changedInt(fresh payload.Document, path string, previous *GameState, field func(*GameState) *int) *int {
	value, ok := fresh.IntAt(path)
	if !ok {
		// Missing or placeholder-shaped score: absent, never zero.
		return nil
	}
	if previous == nil {
		return &value
	}
	prev := field(previous)
	if prev == nil || *prev != value {
		return &value
	}
	return nil
}

// newEvents extracts play-by-play records whose id has not been observed
// before. Returns nil when the payload has no play-by-play collection at all,
// which callers must distinguish from "collection present, nothing new".
func newEvents(previous *GameState, fresh payload.Document) []payload.Document {
	events := fresh.ValuesAt("stats.playbyplay")
	if events == nil {
		return nil
	}

	var known map[int]struct{}
	if previous != nil {
		known = previous.KnownEventIDs
	}
	if known == nil {
		// Never fetched events for this game: everything is new.
		return events
	}

	unseen := make([]payload.Document, 0)
	for _, event := range events {
		id, ok := event.Int("id")
		if !ok {
			continue
		}
		if _, seen := known[id]; !seen {
			unseen = append(unseen, event)
		}
	}
	return unseen
}
