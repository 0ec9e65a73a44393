package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/store"
)

// DetailRepository persists the auxiliary blocks of a finished game: narrative
// texts, per-period line scores and player appearances.
type DetailRepository struct {
	db *store.Database
}

// NewDetailRepository creates a new detail repository.
func NewDetailRepository(db *store.Database) *DetailRepository {
	return &DetailRepository{db: db}
}

// SaveFullDetails extracts and stores everything beyond the core game row
// from a raw provider game document. Each block is written independently;
// missing blocks are skipped.
func (r *DetailRepository) SaveFullDetails(ctx context.Context, sportCode string, doc payload.Document) error {
	gameID, ok := doc.Int("id")
	if !ok {
		return fmt.Errorf("document has no usable id")
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveGameText(ctx, tx, sportCode, gameID, doc); err != nil {
		return err
	}
	if err := savePeriodScores(ctx, tx, sportCode, gameID, doc); err != nil {
		return err
	}
	if err := saveGamePlayers(ctx, tx, sportCode, gameID, doc); err != nil {
		return err
	}

	return tx.Commit()
}

func saveGameText(ctx context.Context, tx *sql.Tx, sportCode string, gameID int, doc payload.Document) error {
	text := doc.Map("text")
	if text == nil {
		return nil
	}

	gt := store.GameText{GameID: gameID, SportCode: sportCode}
	if v, ok := text.String("story"); ok {
		gt.Story = sql.NullString{String: v, Valid: true}
	}
	if v, ok := text.String("boxheader"); ok {
		gt.BoxHeader = sql.NullString{String: v, Valid: true}
	}
	if v, ok := text.String("boxscore"); ok {
		gt.BoxScore = sql.NullString{String: v, Valid: true}
	}
	if v, ok := text.String("star"); ok {
		gt.Star = sql.NullString{String: v, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO game_texts (game_id, sport_code, story, boxheader, boxscore, star)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, sport_code) DO NOTHING
	`, gt.GameID, gt.SportCode, gt.Story, gt.BoxHeader, gt.BoxScore, gt.Star)
	if err != nil {
		return fmt.Errorf("inserting game text for game %d (%s): %w", gameID, sportCode, err)
	}
	return nil
}

func savePeriodScores(ctx context.Context, tx *sql.Tx, sportCode string, gameID int, doc payload.Document) error {
	for _, side := range []struct {
		path    string
		visitor bool
	}{
		{"visitor.line", true},
		{"home.line", false},
	} {
		line := doc.MapAt(side.path)
		for key, value := range line {
			period, ok := periodNumber(key)
			if !ok {
				continue
			}
			score, ok := payload.AsInt(value)
			if !ok {
				continue
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO periodscores (game_id, sport_code, period, score, is_visitor)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (game_id, sport_code, period, is_visitor) DO UPDATE SET score = EXCLUDED.score
			`, gameID, sportCode, period, score, side.visitor)
			if err != nil {
				return fmt.Errorf("inserting period score for game %d (%s): %w", gameID, sportCode, err)
			}
		}
	}
	return nil
}

// periodNumber parses line score keys like "p1", "p4", "ot".
func periodNumber(key string) (int, bool) {
	if !strings.HasPrefix(key, "p") {
		return 0, false
	}
	n, err := strconv.Atoi(key[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

func saveGamePlayers(ctx context.Context, tx *sql.Tx, sportCode string, gameID int, doc payload.Document) error {
	for _, player := range doc.ValuesAt("stats.players") {
		playerID, ok := player.Int("id")
		if !ok {
			continue
		}

		gp := store.GamePlayer{GameID: gameID, SportCode: sportCode, PlayerID: playerID}
		gp.TeamID = nullInt(player, "team.id")
		gp.TeamCode = nullString(player, "team.code")
		gp.Position = nullString(player, "position")
		gp.Starter = nullString(player, "starter")

		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, sport_code, player_id, team_id, team_code, position, starter)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (game_id, sport_code, player_id) DO NOTHING
		`, gp.GameID, gp.SportCode, gp.PlayerID, gp.TeamID, gp.TeamCode, gp.Position, gp.Starter)
		if err != nil {
			return fmt.Errorf("inserting game player for game %d (%s): %w", gameID, sportCode, err)
		}
	}
	return nil
}
