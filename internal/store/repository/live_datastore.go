package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/fortuna/argus/internal/livetrack"
	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/store"
)

// LiveDatastore adapts the SQL repositories to what the live tracker needs.
// It is the single persistence sink for both live deltas and finished games.
type LiveDatastore struct {
	games   *GameRepository
	plays   *PlayByPlayRepository
	details *DetailRepository
}

// NewLiveDatastore creates a datastore adapter over the given database.
func NewLiveDatastore(db *store.Database) *LiveDatastore {
	return &LiveDatastore{
		games:   NewGameRepository(db),
		plays:   NewPlayByPlayRepository(db),
		details: NewDetailRepository(db),
	}
}

// UpsertLiveDeltas writes in-progress game changes. Only the columns a delta
// carries are touched. Deltas for games the upcoming-games sync has not
// created yet are logged and skipped, never invented.
func (d *LiveDatastore) UpsertLiveDeltas(ctx context.Context, deltas []livetrack.Delta) error {
	for _, delta := range deltas {
		updated, err := d.games.ApplyDelta(ctx, delta)
		if err != nil {
			return err
		}
		if !updated {
			log.Printf("⚠️  No game row for %s, skipping delta", delta.Key)
			continue
		}

		if len(delta.NewEvents) > 0 {
			if err := d.plays.InsertNew(ctx, delta.Key.SportCode, delta.Key.GameID, delta.NewEvents); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveFinalGames persists finished games in full from their raw documents:
// the core row, narrative texts, line scores, players and the complete
// play-by-play collection.
func (d *LiveDatastore) SaveFinalGames(ctx context.Context, deltas []livetrack.Delta) error {
	for _, delta := range deltas {
		if delta.Raw == nil {
			return fmt.Errorf("final delta for %s has no raw document", delta.Key)
		}

		if err := d.games.BulkUpsert(ctx, delta.Key.SportCode, []payload.Document{delta.Raw}); err != nil {
			return err
		}
		if err := d.details.SaveFullDetails(ctx, delta.Key.SportCode, delta.Raw); err != nil {
			return err
		}

		if events := delta.Raw.ValuesAt("stats.playbyplay"); len(events) > 0 {
			if err := d.plays.InsertNew(ctx, delta.Key.SportCode, delta.Key.GameID, events); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecentAndUpcomingSeeds loads the games the state store should track,
// reduced to seed form.
func (d *LiveDatastore) RecentAndUpcomingSeeds(ctx context.Context) ([]livetrack.SeedGame, error) {
	games, err := d.games.GetRecentAndUpcoming(ctx)
	if err != nil {
		return nil, err
	}

	seeds := make([]livetrack.SeedGame, 0, len(games))
	for _, game := range games {
		seed := livetrack.SeedGame{
			Key:         livetrack.GameKey{SportCode: game.SportCode, GameID: game.GameID},
			ScheduledAt: game.GameDateTime,
			Status:      game.Status,
		}
		if game.ScoreVisitor.Valid {
			v := int(game.ScoreVisitor.Int32)
			seed.ScoreVisitor = &v
		}
		if game.ScoreHome.Valid {
			v := int(game.ScoreHome.Int32)
			seed.ScoreHome = &v
		}
		if game.ScoreOvertime.Valid {
			v := game.ScoreOvertime.String
			seed.ScoreOvertime = &v
		}

		// Warm the seed with the persisted play-by-play ids, so a restart
		// does not re-report every stored event as new. Games still in
		// "Scheduled" have none.
		if game.Status != "Scheduled" {
			ids, err := d.plays.KnownEventIDs(ctx, game.SportCode, game.GameID)
			if err != nil {
				return nil, err
			}
			if len(ids) > 0 {
				seed.KnownEventIDs = ids
			}
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// Games exposes the underlying game repository for the ingest jobs and the
// REST layer.
func (d *LiveDatastore) Games() *GameRepository {
	return d.games
}
