package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fortuna/argus/internal/metrics"
	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/provider"
	"github.com/fortuna/argus/internal/store"
	"github.com/fortuna/argus/internal/store/repository"
)

const (
	futureWindow  = 100 * 24 * time.Hour
	removalWindow = 10 * 24 * time.Hour
	futureJobHour = 12
	futureJobName = "future_games_update"
	dateFormat    = "2006-01-02"
)

// FutureGamesJob keeps the games table ahead of the schedule: it pulls the
// provider's calendar for the next hundred days, upserts every game, and
// flags games the provider has withdrawn from the near-term window.
type FutureGamesJob struct {
	client  *provider.Client
	sports  *repository.SportRepository
	games   *repository.GameRepository
	metrics *metrics.Recorder
}

// NewFutureGamesJob creates the future games sync job.
func NewFutureGamesJob(client *provider.Client, db *store.Database, recorder *metrics.Recorder) *FutureGamesJob {
	return &FutureGamesJob{
		client:  client,
		sports:  repository.NewSportRepository(db),
		games:   repository.NewGameRepository(db),
		metrics: recorder,
	}
}

// Start runs the job once immediately, then once a day at noon.
func (j *FutureGamesJob) Start(ctx context.Context) {
	log.Printf("→ Starting %s (daily at %02d:00)", futureJobName, futureJobHour)

	j.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("⊘ %s stopped", futureJobName)
			return
		case <-time.After(time.Until(nextRunTime(time.Now()))):
			j.runOnce(ctx)
		}
	}
}

func (j *FutureGamesJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		log.Printf("❌ %s failed: %v", futureJobName, err)
		j.metrics.JobFailed(futureJobName)
		return
	}
	j.metrics.JobSucceeded(futureJobName)
}

// Run executes one full sync pass over every basketball sport.
func (j *FutureGamesJob) Run(ctx context.Context) error {
	if err := j.refreshSports(ctx); err != nil {
		return err
	}

	sports, err := j.sports.ListBasketball(ctx)
	if err != nil {
		return err
	}

	for _, sport := range sports {
		if err := j.syncSport(ctx, sport.Code); err != nil {
			return fmt.Errorf("syncing %s: %w", sport.Code, err)
		}
	}

	log.Printf("✓ %s completed for %d sports", futureJobName, len(sports))
	return nil
}

func (j *FutureGamesJob) refreshSports(ctx context.Context) error {
	doc, err := j.client.FetchSports(ctx)
	if err != nil {
		return fmt.Errorf("fetching sports: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("sports endpoint returned nothing")
	}
	return j.sports.SaveAll(ctx, doc.Values("sports"))
}

func (j *FutureGamesJob) syncSport(ctx context.Context, sportCode string) error {
	now := time.Now().UTC()

	games, ok, err := j.fetchRange(ctx, sportCode, now, now.Add(futureWindow))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := j.games.BulkUpsert(ctx, sportCode, games); err != nil {
		return err
	}
	log.Printf("✓ Upserted %d upcoming %s games", len(games), sportCode)

	return j.flagWithdrawn(ctx, sportCode, now, games)
}

// flagWithdrawn compares the stored near-term schedule against the ids the
// provider listed in the just-fetched window and marks the difference as
// removed.
func (j *FutureGamesJob) flagWithdrawn(ctx context.Context, sportCode string, now time.Time, listed []payload.Document) error {
	listedIDs := listedIDSet(listed)

	stored, err := j.games.GetGamesInRange(ctx, sportCode, now, now.Add(removalWindow))
	if err != nil {
		return err
	}

	var withdrawn []int
	for _, game := range stored {
		if _, ok := listedIDs[game.GameID]; !ok {
			withdrawn = append(withdrawn, game.GameID)
		}
	}
	if len(withdrawn) == 0 {
		return nil
	}

	log.Printf("⚠️  Marking %d %s games as removed from provider", len(withdrawn), sportCode)
	return j.games.MarkRemoved(ctx, sportCode, withdrawn)
}

// fetchRange pulls the provider schedule for one sport and date window. A nil
// document (the provider answers some sports with nothing but 500s) or an
// unsuccessful envelope (off-season feeds answer success "0") reports not-ok,
// so the sport is skipped for this pass and the remaining sports still sync.
// The error path is for transport failures only.
func (j *FutureGamesJob) fetchRange(ctx context.Context, sportCode string, start, end time.Time) ([]payload.Document, bool, error) {
	doc, err := j.client.FetchGamesInRange(ctx, sportCode, start.Format(dateFormat), end.Format(dateFormat))
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		log.Printf("⚠️  No schedule response for %s, skipping", sportCode)
		return nil, false, nil
	}
	if success, _ := doc.String("success"); success != "1" {
		log.Printf("⚠️  Schedule fetch for %s unsuccessful, skipping", sportCode)
		return nil, false, nil
	}
	return doc.Values("games"), true, nil
}

func listedIDSet(docs []payload.Document) map[int]struct{} {
	ids := make(map[int]struct{}, len(docs))
	for _, doc := range docs {
		if id, ok := doc.Int("id"); ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// nextRunTime computes the next daily noon boundary after now.
func nextRunTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), futureJobHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
