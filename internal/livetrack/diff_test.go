package livetrack

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/argus/internal/payload"
)

func gameDoc(t *testing.T, raw string) payload.Document {
	t.Helper()
	var doc payload.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

var testKey = GameKey{SportCode: "NBA", GameID: 4321}

func TestGameDateTimeConvertsEasternToUTC(t *testing.T) {
	doc := gameDoc(t, `{"gameday": "2026-03-14", "starttime": "19:30"}`)

	got, ok := GameDateTime(doc)
	require.True(t, ok)

	// 19:30 US Eastern on 2026-03-14 is EDT (UTC-4).
	want := time.Date(2026, time.March, 14, 23, 30, 0, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v", got)
}

func TestGameDateTimeZeroDayOfMonth(t *testing.T) {
	doc := gameDoc(t, `{"gameday": "2014-10-00", "starttime": "19:00"}`)

	got, ok := GameDateTime(doc)
	require.True(t, ok)
	assert.Equal(t, 1, got.In(sourceLocation).Day())
}

func TestGameDateTimePlaceholderStarttimeFallsBackToDate(t *testing.T) {
	doc := gameDoc(t, `{"gameday": "2026-03-14", "starttime": {}}`)

	got, ok := GameDateTime(doc)
	require.True(t, ok)

	local := got.In(sourceLocation)
	assert.Equal(t, 0, local.Hour())
	assert.Equal(t, 0, local.Minute())
}

func TestGameDateTimeMissingGameday(t *testing.T) {
	_, ok := GameDateTime(gameDoc(t, `{"starttime": "19:00"}`))
	assert.False(t, ok)
}

func TestDiffAgainstNothingReportsEverything(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"score": {"visitor": "55", "home": 60, "overtime": "N"},
		"stats": {"playbyplay": {"1": {"id": 1}, "2": {"id": 2}}}
	}`)

	var d Detector
	delta := d.Diff(testKey, nil, doc)

	require.NotNil(t, delta.Status)
	assert.Equal(t, "In Progress", *delta.Status)
	require.NotNil(t, delta.ScheduledAt)
	require.NotNil(t, delta.ScoreVisitor)
	assert.Equal(t, 55, *delta.ScoreVisitor)
	require.NotNil(t, delta.ScoreHome)
	assert.Equal(t, 60, *delta.ScoreHome)
	require.NotNil(t, delta.ScoreOvertime)
	assert.Equal(t, "N", *delta.ScoreOvertime)
	assert.Len(t, delta.NewEvents, 2)
	assert.False(t, delta.Empty())
	assert.NotNil(t, delta.Raw)
}

func TestDiffNoChangeIsEmpty(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"score": {"visitor": 55, "home": 60, "overtime": "N"}
	}`)

	scheduledAt, ok := GameDateTime(doc)
	require.True(t, ok)

	visitor, home, overtime := 55, 60, "N"
	previous := &GameState{
		Key:           testKey,
		ScheduledAt:   scheduledAt,
		Status:        "In Progress",
		ScoreVisitor:  &visitor,
		ScoreHome:     &home,
		ScoreOvertime: &overtime,
	}

	var d Detector
	delta := d.Diff(testKey, previous, doc)
	assert.True(t, delta.Empty())
}

func TestDiffPlaceholderScoreIsAbsentNotZero(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "Scheduled",
		"gameday": "2026-03-14", "starttime": "19:30",
		"score": {"visitor": {}, "home": {}}
	}`)

	visitor := 55
	scheduledAt, _ := GameDateTime(doc)
	previous := &GameState{
		Key:          testKey,
		ScheduledAt:  scheduledAt,
		Status:       "Scheduled",
		ScoreVisitor: &visitor,
	}

	var d Detector
	delta := d.Diff(testKey, previous, doc)

	assert.Nil(t, delta.ScoreVisitor, "placeholder must not read as a change to zero")
	assert.Nil(t, delta.ScoreHome)
	assert.True(t, delta.Empty())
}

func TestDiffScoreAppearingCountsAsChange(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"score": {"visitor": 2, "home": 0}
	}`)

	scheduledAt, _ := GameDateTime(doc)
	previous := &GameState{Key: testKey, ScheduledAt: scheduledAt, Status: "In Progress"}

	var d Detector
	delta := d.Diff(testKey, previous, doc)

	require.NotNil(t, delta.ScoreVisitor)
	assert.Equal(t, 2, *delta.ScoreVisitor)
	require.NotNil(t, delta.ScoreHome)
	assert.Equal(t, 0, *delta.ScoreHome, "a real zero is a value, not absence")
}

func TestDiffNewEventsNilWhenCollectionMissing(t *testing.T) {
	doc := gameDoc(t, `{"status": "Scheduled", "gameday": "2026-03-14", "starttime": "19:30"}`)

	var d Detector
	delta := d.Diff(testKey, nil, doc)
	assert.Nil(t, delta.NewEvents)
}

func TestDiffNewEventsAllNewWhenNeverFetched(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"stats": {"playbyplay": {"1": {"id": 1}, "2": {"id": 2}}}
	}`)

	scheduledAt, _ := GameDateTime(doc)
	previous := &GameState{Key: testKey, ScheduledAt: scheduledAt, Status: "In Progress"}

	var d Detector
	delta := d.Diff(testKey, previous, doc)
	assert.Len(t, delta.NewEvents, 2)
}

func TestDiffNewEventsFiltersKnownIDs(t *testing.T) {
	doc := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"stats": {"playbyplay": {"1": {"id": 1}, "2": {"id": 2}, "3": {"id": 3}}}
	}`)

	scheduledAt, _ := GameDateTime(doc)
	previous := &GameState{
		Key:           testKey,
		ScheduledAt:   scheduledAt,
		Status:        "In Progress",
		KnownEventIDs: map[int]struct{}{1: {}, 2: {}},
	}

	var d Detector
	delta := d.Diff(testKey, previous, doc)

	require.Len(t, delta.NewEvents, 1)
	id, ok := delta.NewEvents[0].Int("id")
	require.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestDiffThenApplyThenDiffMonotone(t *testing.T) {
	s := NewStateStore(nil)
	s.now = func() time.Time { return testNow }

	first := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"stats": {"playbyplay": {"1": {"id": 1}, "2": {"id": 2}}}
	}`)
	second := gameDoc(t, `{
		"status": "In Progress",
		"gameday": "2026-03-14", "starttime": "19:30",
		"stats": {"playbyplay": {"1": {"id": 1}, "2": {"id": 2}, "3": {"id": 3}}}
	}`)

	var d Detector
	delta := d.Diff(testKey, s.LastInfo(testKey), first)
	assert.Len(t, delta.NewEvents, 2)
	s.Apply([]Delta{delta})

	delta = d.Diff(testKey, s.LastInfo(testKey), second)
	require.Len(t, delta.NewEvents, 1)
	id, _ := delta.NewEvents[0].Int("id")
	assert.Equal(t, 3, id)

	s.Apply([]Delta{delta})
	delta = d.Diff(testKey, s.LastInfo(testKey), second)
	assert.Empty(t, delta.NewEvents)
	assert.True(t, delta.Empty())
}
