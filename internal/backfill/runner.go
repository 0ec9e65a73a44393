package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/provider"
	"github.com/fortuna/argus/internal/store"
	"github.com/fortuna/argus/internal/store/repository"
)

// Runner executes backfill specs against the provider API.
type Runner struct {
	client  *provider.Client
	games   *repository.GameRepository
	details *repository.DetailRepository
	plays   *repository.PlayByPlayRepository
}

// NewRunner constructs a runner over the given provider client and database.
func NewRunner(client *provider.Client, db *store.Database) *Runner {
	return &Runner{
		client:  client,
		games:   repository.NewGameRepository(db),
		details: repository.NewDetailRepository(db),
		plays:   repository.NewPlayByPlayRepository(db),
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if reporter != nil {
		reporter.OnJobStart(spec)
	}

	if spec.DryRun {
		if reporter != nil {
			reporter.OnProgress("Dry-run mode: no data will be written", 0, 0)
			reporter.OnJobComplete()
		}
		return nil
	}

	var err error
	switch spec.Type {
	case JobTypeGame:
		err = r.runGames(ctx, spec, reporter)
	case JobTypeSeasonRange:
		err = r.runSeasons(ctx, spec, reporter)
	case JobTypeDateRange:
		err = r.runDateRange(ctx, spec, reporter)
	default:
		err = fmt.Errorf("unsupported job type %s", spec.Type)
	}
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return err
	}

	if reporter != nil {
		reporter.OnJobComplete()
	}
	return nil
}

func (r *Runner) runGames(ctx context.Context, spec JobSpec, reporter Reporter) error {
	if len(spec.GameIDs) == 0 {
		return fmt.Errorf("no game ids provided for job type 'game'")
	}

	total := len(spec.GameIDs)
	for idx, gameID := range spec.GameIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnProgress(fmt.Sprintf("Processing game %d (%d/%d)", gameID, idx+1, total), idx, total)
		}

		doc, err := r.client.FetchGame(ctx, spec.SportCode, gameID)
		if err != nil {
			return err
		}
		games, err := envelopeGames(doc)
		if err != nil {
			return fmt.Errorf("game %d: %w", gameID, err)
		}
		if err := r.storeFull(ctx, spec.SportCode, games); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnGameProcessed(gameID)
			reporter.OnProgress(fmt.Sprintf("✓ Game %d complete", gameID), idx+1, total)
		}
	}
	return nil
}

func (r *Runner) runSeasons(ctx context.Context, spec JobSpec, reporter Reporter) error {
	seasons := enumerateSeasons(spec.FirstSeason, spec.LastSeason)
	if len(seasons) == 0 {
		if reporter != nil {
			reporter.OnProgress("No seasons to process", 0, 0)
		}
		return nil
	}

	total := len(seasons)
	for idx, season := range seasons {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnUnitStart(fmt.Sprintf("season %d", season), idx, total)
		}

		doc, err := r.client.FetchGamesInSeasonRange(ctx, spec.SportCode, season, season)
		if err != nil {
			return err
		}
		games, err := envelopeGames(doc)
		if err != nil {
			return fmt.Errorf("season %d: %w", season, err)
		}
		if err := r.storeFull(ctx, spec.SportCode, games); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnProgress(fmt.Sprintf("Season %d: %d games", season, len(games)), idx+1, total)
		}
	}
	return nil
}

func (r *Runner) runDateRange(ctx context.Context, spec JobSpec, reporter Reporter) error {
	windows := enumerateWindows(spec.Start, spec.End)
	if len(windows) == 0 {
		if reporter != nil {
			reporter.OnProgress("No dates to process", 0, 0)
		}
		return nil
	}

	total := len(windows)
	for idx, window := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnUnitStart(window.start.Format("Jan 2, 2006"), idx, total)
		}

		doc, err := r.client.FetchGamesInRange(ctx, spec.SportCode,
			window.start.Format("2006-01-02"), window.end.Format("2006-01-02"))
		if err != nil {
			return err
		}
		games, err := envelopeGames(doc)
		if err != nil {
			return fmt.Errorf("window %s: %w", window.start.Format("2006-01-02"), err)
		}
		if err := r.storeFull(ctx, spec.SportCode, games); err != nil {
			return err
		}

		if reporter != nil {
			reporter.OnProgress(fmt.Sprintf("Processed %s", window.start.Format("Jan 2, 2006")), idx+1, total)
		}
	}
	return nil
}

// storeFull persists each game document in full, including details and
// play-by-play where present.
func (r *Runner) storeFull(ctx context.Context, sportCode string, games []payload.Document) error {
	if err := r.games.BulkUpsert(ctx, sportCode, games); err != nil {
		return err
	}

	for _, doc := range games {
		gameID, ok := doc.Int("id")
		if !ok {
			continue
		}
		if err := r.details.SaveFullDetails(ctx, sportCode, doc); err != nil {
			return err
		}
		if events := doc.ValuesAt("stats.playbyplay"); len(events) > 0 {
			if err := r.plays.InsertNew(ctx, sportCode, gameID, events); err != nil {
				return err
			}
		}
	}
	return nil
}

// envelopeGames unwraps a provider response envelope into its game documents.
func envelopeGames(doc payload.Document) ([]payload.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("provider returned nothing")
	}
	if success, _ := doc.String("success"); success != "1" {
		return nil, fmt.Errorf("provider reported failure")
	}
	return doc.Values("games"), nil
}

func enumerateSeasons(first, last int) []int {
	if last < first {
		first, last = last, first
	}
	var seasons []int
	for season := first; season <= last; season++ {
		seasons = append(seasons, season)
	}
	return seasons
}

type dateWindow struct {
	start time.Time
	end   time.Time
}

// enumerateWindows splits a date range into day windows so progress is
// reported per day and a single failed fetch does not lose the whole range.
func enumerateWindows(start, end time.Time) []dateWindow {
	if end.Before(start) {
		start, end = end, start
	}

	var windows []dateWindow
	current := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	final := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !current.After(final) {
		windows = append(windows, dateWindow{start: current, end: current})
		current = current.AddDate(0, 0, 1)
	}

	return windows
}
