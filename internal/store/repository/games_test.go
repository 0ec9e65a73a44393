package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/argus/internal/payload"
)

func parseDoc(t *testing.T, raw string) payload.Document {
	t.Helper()
	var doc payload.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestGameRowFromDocument(t *testing.T) {
	doc := parseDoc(t, `{
		"id": 4321,
		"gameday": "2026-03-14", "starttime": "19:30",
		"status": "Final",
		"visitor": {"id": 10, "code": "BOS"},
		"home": {"id": 20, "code": "LAL"},
		"winner": {"id": 20, "code": "LAL"},
		"loser": {"id": 10, "code": "BOS"},
		"score": {"visitor": "99", "home": 104, "overtime": "N"}
	}`)

	game, err := gameRowFromDocument("NBA", doc)
	require.NoError(t, err)

	assert.Equal(t, 4321, game.GameID)
	assert.Equal(t, "NBA", game.SportCode)
	assert.Equal(t, "Final", game.Status)
	assert.Equal(t, int32(10), game.VisitorID.Int32)
	assert.Equal(t, "BOS", game.VisitorCode.String)
	assert.Equal(t, int32(20), game.WinnerID.Int32)
	assert.Equal(t, int32(99), game.ScoreVisitor.Int32)
	assert.Equal(t, int32(104), game.ScoreHome.Int32)
	assert.Equal(t, "N", game.ScoreOvertime.String)
}

func TestGameRowFromDocumentArrayAnomaly(t *testing.T) {
	// winner/loser occasionally arrive as a two-element array repeating the
	// same value.
	doc := parseDoc(t, `{
		"id": 7,
		"gameday": "2026-03-14", "starttime": "19:30",
		"status": "Final",
		"winner": {"id": [20, 20], "code": ["LAL", "LAL"]}
	}`)

	game, err := gameRowFromDocument("NBA", doc)
	require.NoError(t, err)

	require.True(t, game.WinnerID.Valid)
	assert.Equal(t, int32(20), game.WinnerID.Int32)
	require.True(t, game.WinnerCode.Valid)
	assert.Equal(t, "LAL", game.WinnerCode.String)
}

func TestGameRowFromDocumentRejectsUnusable(t *testing.T) {
	_, err := gameRowFromDocument("NBA", parseDoc(t, `{"gameday": "2026-03-14", "status": "Final"}`))
	assert.Error(t, err, "no id")

	_, err = gameRowFromDocument("NBA", parseDoc(t, `{"id": 1, "status": "Final"}`))
	assert.Error(t, err, "no gameday")

	_, err = gameRowFromDocument("NBA", parseDoc(t, `{"id": 1, "gameday": "2026-03-14"}`))
	assert.Error(t, err, "no status")
}

func TestGameRowFromDocumentPlaceholderScores(t *testing.T) {
	doc := parseDoc(t, `{
		"id": 9,
		"gameday": "2026-03-14", "starttime": "19:30",
		"status": "Scheduled",
		"score": {"visitor": {}, "home": {}}
	}`)

	game, err := gameRowFromDocument("NBA", doc)
	require.NoError(t, err)
	assert.False(t, game.ScoreVisitor.Valid)
	assert.False(t, game.ScoreHome.Valid)
}

func TestPlayByPlayRowFromDocument(t *testing.T) {
	doc := parseDoc(t, `{
		"id": 812,
		"event": "3PT",
		"period": 4,
		"sequence": "4-37",
		"explanation": "Three pointer from the corner",
		"team": {"id": 20, "code": "LAL"},
		"players": {"primary": {"id": 1001}, "secondary": {"id": 1002}},
		"distance": "24"
	}`)

	row, ok := playByPlayRowFromDocument("NBA", 4321, doc)
	require.True(t, ok)

	assert.Equal(t, 812, row.ID)
	assert.Equal(t, 4321, row.GameID)
	assert.Equal(t, "3PT", row.Event.String)
	assert.Equal(t, "4", row.Period.String)
	assert.Equal(t, "37", row.Sequence.String, "sequence keeps only the trailing counter")
	assert.Equal(t, int32(20), row.TeamID.Int32)
	assert.Equal(t, int32(1001), row.PlayerPrimaryID.Int32)
	assert.Equal(t, int32(1002), row.PlayerSecondaryID.Int32)
	assert.False(t, row.PlayerPitcherID.Valid)
	assert.Equal(t, int32(24), row.Distance.Int32)
}

func TestPlayByPlayRowRequiresID(t *testing.T) {
	_, ok := playByPlayRowFromDocument("NBA", 1, parseDoc(t, `{"event": "FT"}`))
	assert.False(t, ok)
}

func TestPeriodNumber(t *testing.T) {
	for key, want := range map[string]int{"p1": 1, "p4": 4, "p10": 10} {
		got, ok := periodNumber(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}

	for _, key := range []string{"ot", "total", "q1", ""} {
		_, ok := periodNumber(key)
		assert.False(t, ok, key)
	}
}
