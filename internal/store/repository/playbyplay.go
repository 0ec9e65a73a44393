package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/store"
)

// PlayByPlayRepository handles play-by-play event persistence.
type PlayByPlayRepository struct {
	db *store.Database
}

// NewPlayByPlayRepository creates a new play-by-play repository.
func NewPlayByPlayRepository(db *store.Database) *PlayByPlayRepository {
	return &PlayByPlayRepository{db: db}
}

const insertPlayByPlayQuery = `
	INSERT INTO playbyplays (
		id, game_id, sport_code, event, period, sequence, explanation,
		team_id, team_code, scoringplay, tags, thediff,
		player_primary_id, player_secondary_id, player_pitcher_id, distance,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
	ON CONFLICT (id, game_id, sport_code) DO NOTHING
`

// InsertNew writes the given play-by-play events for one game. Events already
// present in the table are left untouched, so callers may hand over the full
// collection each time.
func (r *PlayByPlayRepository) InsertNew(ctx context.Context, sportCode string, gameID int, events []payload.Document) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, doc := range events {
		row, ok := playByPlayRowFromDocument(sportCode, gameID, doc)
		if !ok {
			continue
		}

		if _, err := tx.ExecContext(ctx, insertPlayByPlayQuery,
			row.ID, row.GameID, row.SportCode,
			row.Event, row.Period, row.Sequence, row.Explanation,
			row.TeamID, row.TeamCode, row.ScoringPlay, row.Tags, row.TheDiff,
			row.PlayerPrimaryID, row.PlayerSecondaryID, row.PlayerPitcherID, row.Distance,
		); err != nil {
			return fmt.Errorf("inserting play-by-play %d for game %d (%s): %w", row.ID, gameID, sportCode, err)
		}
	}

	return tx.Commit()
}

// KnownEventIDs returns the ids of all stored play-by-play events of a game.
func (r *PlayByPlayRepository) KnownEventIDs(ctx context.Context, sportCode string, gameID int) (map[int]struct{}, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT id FROM playbyplays WHERE sport_code = $1 AND game_id = $2`,
		sportCode, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying play-by-play ids for game %d (%s): %w", gameID, sportCode, err)
	}
	defer rows.Close()

	ids := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// playByPlayRowFromDocument extracts a row from a raw provider event. Events
// without a usable id are unaddressable and get dropped.
func playByPlayRowFromDocument(sportCode string, gameID int, doc payload.Document) (*store.PlayByPlay, bool) {
	eventID, ok := doc.Int("id")
	if !ok {
		return nil, false
	}

	row := &store.PlayByPlay{
		ID:        eventID,
		GameID:    gameID,
		SportCode: sportCode,
	}

	if v, ok := doc.String("event"); ok {
		row.Event = sql.NullString{String: v, Valid: true}
	}

	// period arrives as number or string depending on sport
	if v, ok := doc.Int("period"); ok {
		row.Period = sql.NullString{String: fmt.Sprintf("%d", v), Valid: true}
	} else if v, ok := doc.String("period"); ok {
		row.Period = sql.NullString{String: v, Valid: true}
	}

	// sequence is "<period>-<n>"; only the trailing counter is stored
	if v, ok := doc.String("sequence"); ok {
		parts := strings.Split(v, "-")
		row.Sequence = sql.NullString{String: parts[len(parts)-1], Valid: true}
	} else if v, ok := doc.Int("sequence"); ok {
		row.Sequence = sql.NullString{String: fmt.Sprintf("%d", v), Valid: true}
	}

	if v, ok := doc.String("explanation"); ok {
		row.Explanation = sql.NullString{String: v, Valid: true}
	}
	if v, ok := doc.String("scoringplay"); ok {
		row.ScoringPlay = sql.NullString{String: v, Valid: true}
	}
	if v, ok := doc.String("tags"); ok {
		row.Tags = sql.NullString{String: v, Valid: true}
	}
	if v, ok := doc.String("thediff"); ok {
		row.TheDiff = sql.NullString{String: v, Valid: true}
	}

	row.TeamID = nullInt(doc, "team.id")
	row.TeamCode = nullString(doc, "team.code")
	row.PlayerPrimaryID = nullInt(doc, "players.primary.id")
	row.PlayerSecondaryID = nullInt(doc, "players.secondary.id")
	row.PlayerPitcherID = nullInt(doc, "players.pitcher.id")
	row.Distance = nullInt(doc, "distance")

	return row, true
}
