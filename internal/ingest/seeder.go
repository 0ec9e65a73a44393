package ingest

import (
	"context"
	"log"
	"time"

	"github.com/fortuna/argus/internal/livetrack"
	"github.com/fortuna/argus/internal/metrics"
	"github.com/fortuna/argus/internal/store/repository"
)

const (
	seedInterval = time.Hour
	seedJobName  = "state_store_seed"
)

// Seeder keeps the in-memory state store loaded with the games worth
// tracking. It fills once at startup so the polling loops have work, then
// refreshes hourly to pick up games the future sync added during the day.
type Seeder struct {
	store     *livetrack.StateStore
	datastore *repository.LiveDatastore
	metrics   *metrics.Recorder
}

// NewSeeder creates a state store seeder.
func NewSeeder(store *livetrack.StateStore, datastore *repository.LiveDatastore, recorder *metrics.Recorder) *Seeder {
	return &Seeder{store: store, datastore: datastore, metrics: recorder}
}

// Start runs the initial fill, then refreshes on an hourly ticker. The
// initial fill error is returned so startup can abort on a dead database;
// later refresh failures only log, the store keeps serving what it has.
func (s *Seeder) Start(ctx context.Context) error {
	if err := s.fill(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(seedInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("⊘ %s stopped", seedJobName)
				return
			case <-ticker.C:
				if err := s.fill(ctx); err != nil {
					log.Printf("❌ %s refresh failed: %v", seedJobName, err)
					s.metrics.JobFailed(seedJobName)
				}
			}
		}
	}()

	return nil
}

func (s *Seeder) fill(ctx context.Context) error {
	seeds, err := s.datastore.RecentAndUpcomingSeeds(ctx)
	if err != nil {
		return err
	}

	s.store.Fill(seeds)
	s.metrics.JobSucceeded(seedJobName)
	log.Printf("✓ Seeded state store with %d games (%d tracked total)", len(seeds), s.store.Size())
	return nil
}
