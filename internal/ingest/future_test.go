package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/argus/internal/payload"
	"github.com/fortuna/argus/internal/provider"
)

func TestNextRunTime(t *testing.T) {
	morning := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC), nextRunTime(morning))

	afternoon := time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC), nextRunTime(afternoon))

	// Exactly at the boundary rolls over to the next day.
	noon := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC), nextRunTime(noon))
}

func TestFetchRangeSkipsDeadAndOffSeasonFeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/game/WBPRO/"):
			// Some feeds answer every endpoint with a 500.
			w.WriteHeader(http.StatusInternalServerError)
		case strings.HasPrefix(r.URL.Path, "/game/CBB/"):
			// Off-season feeds answer with an unsuccessful envelope.
			w.Write([]byte(`{"success": "0"}`))
		default:
			w.Write([]byte(`{"success": "1", "games": {"77": {"id": 77, "status": "Scheduled"}}}`))
		}
	}))
	defer server.Close()

	job := &FutureGamesJob{client: provider.New(server.URL, nil)}
	ctx := context.Background()
	now := time.Now().UTC()

	games, ok, err := job.fetchRange(ctx, "WBPRO", now, now.Add(futureWindow))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, games)

	games, ok, err = job.fetchRange(ctx, "CBB", now, now.Add(futureWindow))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, games)

	games, ok, err = job.fetchRange(ctx, "NBA", now, now.Add(futureWindow))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, games, 1)
}

func TestSyncSportToleratesDeadFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// No repositories wired: a dead feed must return before touching them,
	// which is what lets the daily pass continue with the remaining sports.
	job := &FutureGamesJob{client: provider.New(server.URL, nil)}
	assert.NoError(t, job.syncSport(context.Background(), "WBPRO"))
}

func TestListedIDSet(t *testing.T) {
	docs := []payload.Document{
		{"id": float64(101), "status": "Scheduled"},
		{"id": "102"},
		{"status": "Scheduled"}, // no id, unaddressable
	}

	ids := listedIDSet(docs)
	assert.Equal(t, map[int]struct{}{101: {}, 102: {}}, ids)
}
