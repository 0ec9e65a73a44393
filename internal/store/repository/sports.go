package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/store"
)

// SportRepository handles sport catalog access.
type SportRepository struct {
	db *store.Database
}

// NewSportRepository creates a new sport repository.
func NewSportRepository(db *store.Database) *SportRepository {
	return &SportRepository{db: db}
}

// ListBasketball returns the sports the live tracker watches. Only basketball
// feeds carry live play-by-play worth polling at a 2-second cadence.
func (r *SportRepository) ListBasketball(ctx context.Context) ([]*store.Sport, error) {
	query := `
		SELECT code, name, sport, seasons, first, last, statsbegin, inplay
		FROM sports
		WHERE sport = 'Basketball'
		ORDER BY code
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sports: %w", err)
	}
	defer rows.Close()

	var sports []*store.Sport
	for rows.Next() {
		sport := &store.Sport{}
		if err := rows.Scan(
			&sport.Code, &sport.Name, &sport.Discipline, &sport.Seasons,
			&sport.First, &sport.Last, &sport.StatsBegin, &sport.InPlay,
		); err != nil {
			return nil, fmt.Errorf("scanning sport: %w", err)
		}
		sports = append(sports, sport)
	}
	return sports, rows.Err()
}

// SaveAll upserts the provider's sport catalog.
func (r *SportRepository) SaveAll(ctx context.Context, sports []payload.Document) error {
	query := `
		INSERT INTO sports (code, name, sport, seasons, first, last, statsbegin, inplay)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			sport = EXCLUDED.sport,
			seasons = EXCLUDED.seasons,
			first = EXCLUDED.first,
			last = EXCLUDED.last,
			statsbegin = EXCLUDED.statsbegin,
			inplay = EXCLUDED.inplay
	`

	for _, doc := range sports {
		code, ok := doc.String("code")
		if !ok || code == "" {
			continue
		}
		name, _ := doc.String("name")
		discipline, _ := doc.String("sport")
		seasons, _ := doc.Int("seasons")
		first, _ := doc.Int("first")
		last, _ := doc.Int("last")
		statsBegin := nullInt(doc, "statsbegin")
		inplay, _ := doc.String("inplay")

		if _, err := r.db.DB().ExecContext(ctx, query,
			code, name, discipline, seasons, first, last, statsBegin, inplay == "Y",
		); err != nil {
			return fmt.Errorf("upserting sport %s: %w", code, err)
		}
	}
	return nil
}
