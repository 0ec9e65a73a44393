package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/argus/internal/livetrack"
	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/store"
)

const upsertBatchSize = 500

// GameRepository handles game data access.
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

const upsertGameQuery = `
	INSERT INTO games (
		game_id, sport_code, gamedatetime, status,
		visitor_id, home_id, visitor_code, home_code,
		winner_id, winner_code, loser_id, loser_code,
		score_visitor, score_home, score_overtime,
		removed_from_provider, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, FALSE, NOW(), NOW())
	ON CONFLICT (game_id, sport_code) DO UPDATE SET
		gamedatetime = EXCLUDED.gamedatetime,
		status = EXCLUDED.status,
		visitor_id = EXCLUDED.visitor_id,
		home_id = EXCLUDED.home_id,
		visitor_code = EXCLUDED.visitor_code,
		home_code = EXCLUDED.home_code,
		winner_id = EXCLUDED.winner_id,
		winner_code = EXCLUDED.winner_code,
		loser_id = EXCLUDED.loser_id,
		loser_code = EXCLUDED.loser_code,
		score_visitor = EXCLUDED.score_visitor,
		score_home = EXCLUDED.score_home,
		score_overtime = EXCLUDED.score_overtime,
		removed_from_provider = FALSE,
		updated_at = NOW()
`

// BulkUpsert writes raw provider game documents in batches. Documents that
// cannot be reduced to a row (no id, no date) are logged and skipped rather
// than failing the batch.
func (r *GameRepository) BulkUpsert(ctx context.Context, sportCode string, games []payload.Document) error {
	for start := 0; start < len(games); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(games) {
			end = len(games)
		}
		if err := r.upsertBatch(ctx, sportCode, games[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *GameRepository) upsertBatch(ctx context.Context, sportCode string, games []payload.Document) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, doc := range games {
		game, err := gameRowFromDocument(sportCode, doc)
		if err != nil {
			log.Printf("⚠️  Skipping unusable game document for %s: %v", sportCode, err)
			continue
		}

		if _, err := tx.ExecContext(ctx, upsertGameQuery,
			game.GameID, game.SportCode, game.GameDateTime, game.Status,
			game.VisitorID, game.HomeID, game.VisitorCode, game.HomeCode,
			game.WinnerID, game.WinnerCode, game.LoserID, game.LoserCode,
			game.ScoreVisitor, game.ScoreHome, game.ScoreOvertime,
		); err != nil {
			return fmt.Errorf("upserting game %d (%s): %w", game.GameID, sportCode, err)
		}
	}

	return tx.Commit()
}

// ApplyDelta updates only the columns a delta carries. Returns false when the
// game row does not exist yet; live deltas never create rows, that is the
// upcoming-games sync's job.
func (r *GameRepository) ApplyDelta(ctx context.Context, delta livetrack.Delta) (bool, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if delta.Status != nil {
		sets = append(sets, "status = "+arg(*delta.Status))
	}
	if delta.ScheduledAt != nil {
		sets = append(sets, "gamedatetime = "+arg(*delta.ScheduledAt))
	}
	if delta.ScoreVisitor != nil {
		sets = append(sets, "score_visitor = "+arg(*delta.ScoreVisitor))
	}
	if delta.ScoreHome != nil {
		sets = append(sets, "score_home = "+arg(*delta.ScoreHome))
	}
	if delta.ScoreOvertime != nil {
		sets = append(sets, "score_overtime = "+arg(*delta.ScoreOvertime))
	}

	query := fmt.Sprintf(
		"UPDATE games SET %s WHERE game_id = %s AND sport_code = %s",
		strings.Join(sets, ", "), arg(delta.Key.GameID), arg(delta.Key.SportCode),
	)

	result, err := r.db.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("applying delta for %s: %w", delta.Key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const selectGameColumns = `
	game_id, sport_code, gamedatetime, status,
	visitor_id, home_id, visitor_code, home_code,
	winner_id, winner_code, loser_id, loser_code,
	score_visitor, score_home, score_overtime,
	removed_from_provider, created_at, updated_at
`

// GetRecentAndUpcoming returns the games the live tracker should hold in
// memory: basketball games from four hours back to one day ahead that the
// provider has not withdrawn.
func (r *GameRepository) GetRecentAndUpcoming(ctx context.Context) ([]*store.Game, error) {
	now := time.Now().UTC()
	query := `
		SELECT ` + selectGameColumns + `
		FROM games
		JOIN sports ON games.sport_code = sports.code
		WHERE sports.sport = 'Basketball'
			AND games.gamedatetime > $1
			AND games.gamedatetime < $2
			AND games.removed_from_provider = FALSE
		ORDER BY games.gamedatetime
	`

	rows, err := r.db.DB().QueryContext(ctx, query, now.Add(-4*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("querying recent and upcoming games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetGame returns one game row, or sql.ErrNoRows when absent.
func (r *GameRepository) GetGame(ctx context.Context, sportCode string, gameID int) (*store.Game, error) {
	query := `
		SELECT ` + selectGameColumns + `
		FROM games
		WHERE sport_code = $1 AND game_id = $2
	`

	game := &store.Game{}
	err := r.db.DB().QueryRowContext(ctx, query, sportCode, gameID).Scan(
		&game.GameID, &game.SportCode, &game.GameDateTime, &game.Status,
		&game.VisitorID, &game.HomeID, &game.VisitorCode, &game.HomeCode,
		&game.WinnerID, &game.WinnerCode, &game.LoserID, &game.LoserCode,
		&game.ScoreVisitor, &game.ScoreHome, &game.ScoreOvertime,
		&game.Removed, &game.CreatedAt, &game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return game, nil
}

// GetGamesInRange returns all games of a sport scheduled inside [start, end].
func (r *GameRepository) GetGamesInRange(ctx context.Context, sportCode string, start, end time.Time) ([]*store.Game, error) {
	query := `
		SELECT ` + selectGameColumns + `
		FROM games
		WHERE sport_code = $1 AND gamedatetime >= $2 AND gamedatetime <= $3
		ORDER BY gamedatetime
	`

	rows, err := r.db.DB().QueryContext(ctx, query, sportCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying games in range: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// MarkRemoved flags games the provider no longer lists. Flagged games stay in
// the table but drop out of live tracking.
func (r *GameRepository) MarkRemoved(ctx context.Context, sportCode string, gameIDs []int) error {
	if len(gameIDs) == 0 {
		return nil
	}

	ids := make([]int64, len(gameIDs))
	for i, id := range gameIDs {
		ids[i] = int64(id)
	}

	query := `
		UPDATE games
		SET removed_from_provider = TRUE, updated_at = NOW()
		WHERE sport_code = $1 AND game_id = ANY($2)
	`
	_, err := r.db.DB().ExecContext(ctx, query, sportCode, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("marking removed games for %s: %w", sportCode, err)
	}
	return nil
}

func scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game := &store.Game{}
		if err := rows.Scan(
			&game.GameID, &game.SportCode, &game.GameDateTime, &game.Status,
			&game.VisitorID, &game.HomeID, &game.VisitorCode, &game.HomeCode,
			&game.WinnerID, &game.WinnerCode, &game.LoserID, &game.LoserCode,
			&game.ScoreVisitor, &game.ScoreHome, &game.ScoreOvertime,
			&game.Removed, &game.CreatedAt, &game.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// gameRowFromDocument reduces a raw provider game document to a row.
func gameRowFromDocument(sportCode string, doc payload.Document) (*store.Game, error) {
	gameID, ok := doc.Int("id")
	if !ok {
		return nil, fmt.Errorf("document has no usable id")
	}

	scheduledAt, ok := livetrack.GameDateTime(doc)
	if !ok {
		return nil, fmt.Errorf("game %d has no usable gameday", gameID)
	}

	status, ok := doc.String("status")
	if !ok {
		return nil, fmt.Errorf("game %d has no status", gameID)
	}

	game := &store.Game{
		GameID:       gameID,
		SportCode:    sportCode,
		GameDateTime: scheduledAt,
		Status:       status,
	}

	game.VisitorID = nullInt(doc, "visitor.id")
	game.HomeID = nullInt(doc, "home.id")
	game.VisitorCode = nullString(doc, "visitor.code")
	game.HomeCode = nullString(doc, "home.code")

	// winner/loser ids occasionally arrive as a two-element array holding the
	// same value twice.
	game.WinnerID = nullIntTolerant(doc, "winner", "id")
	game.WinnerCode = nullStringTolerant(doc, "winner", "code")
	game.LoserID = nullIntTolerant(doc, "loser", "id")
	game.LoserCode = nullStringTolerant(doc, "loser", "code")

	game.ScoreVisitor = nullInt(doc, "score.visitor")
	game.ScoreHome = nullInt(doc, "score.home")
	game.ScoreOvertime = nullString(doc, "score.overtime")

	return game, nil
}

func nullInt(doc payload.Document, path string) sql.NullInt32 {
	if v, ok := doc.IntAt(path); ok {
		return sql.NullInt32{Int32: int32(v), Valid: true}
	}
	return sql.NullInt32{}
}

func nullString(doc payload.Document, path string) sql.NullString {
	if v, ok := doc.StringAt(path); ok {
		return sql.NullString{String: v, Valid: true}
	}
	return sql.NullString{}
}

func nullIntTolerant(doc payload.Document, parent, key string) sql.NullInt32 {
	m := doc.Map(parent)
	if m == nil {
		return sql.NullInt32{}
	}
	if arr, ok := m[key].([]any); ok {
		if len(arr) > 0 {
			if v, ok := payload.AsInt(arr[0]); ok {
				return sql.NullInt32{Int32: int32(v), Valid: true}
			}
		}
		return sql.NullInt32{}
	}
	return nullInt(doc, parent+"."+key)
}

func nullStringTolerant(doc payload.Document, parent, key string) sql.NullString {
	m := doc.Map(parent)
	if m == nil {
		return sql.NullString{}
	}
	if arr, ok := m[key].([]any); ok {
		if len(arr) > 0 {
			if s, ok := arr[0].(string); ok {
				return sql.NullString{String: s, Valid: true}
			}
		}
		return sql.NullString{}
	}
	return nullString(doc, parent+"."+key)
}
