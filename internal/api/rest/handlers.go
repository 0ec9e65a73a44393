package rest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/argus/internal/cache"
	"github.com/fortuna/argus/internal/livetrack"
	"github.com/fortuna/argus/internal/store"
	"github.com/fortuna/argus/internal/store/repository"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db        *store.Database
	states    *livetrack.StateStore
	snapshots *cache.RedisCache
	games     *repository.GameRepository
}

// NewHandler creates a new handler
func NewHandler(db *store.Database, states *livetrack.StateStore, snapshots *cache.RedisCache) *Handler {
	return &Handler{
		db:        db,
		states:    states,
		snapshots: snapshots,
		games:     repository.NewGameRepository(db),
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "argus",
		"version": "1.0.0",
	})
}

// GetTrackerStatus reports the in-memory tracker state: how many games are
// held and how they currently classify into polling buckets
func (h *Handler) GetTrackerStatus(w http.ResponseWriter, r *http.Request) {
	buckets := map[string]int{}
	for _, bucket := range livetrack.Buckets {
		buckets[string(bucket)] = len(h.states.GamesByBucket(bucket))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracked_games": h.states.Size(),
		"buckets":       buckets,
	})
}

// GetLiveGames returns the tracked games currently classified as live
func (h *Handler) GetLiveGames(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.trackedGames(livetrack.BucketLive))
}

// GetTodaysGames returns all tracked games scheduled for today
func (h *Handler) GetTodaysGames(w http.ResponseWriter, r *http.Request) {
	games := h.trackedGames(livetrack.BucketToday)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

func (h *Handler) trackedGames(bucket livetrack.Bucket) []map[string]interface{} {
	games := []map[string]interface{}{}
	for _, key := range h.states.GamesByBucket(bucket) {
		state := h.states.LastInfo(key)
		if state == nil {
			continue
		}

		game := map[string]interface{}{
			"game_id":      key.GameID,
			"sport_code":   key.SportCode,
			"gamedatetime": state.ScheduledAt,
			"status":       state.Status,
		}
		if state.ScoreVisitor != nil {
			game["score_visitor"] = *state.ScoreVisitor
		}
		if state.ScoreHome != nil {
			game["score_home"] = *state.ScoreHome
		}
		if state.ScoreOvertime != nil {
			game["score_overtime"] = *state.ScoreOvertime
		}
		games = append(games, game)
	}
	return games
}

// GetGame returns a specific game. The cached provider snapshot is served
// when present; otherwise the handler falls back to the database row.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sportCode := vars["sportCode"]

	gameID, err := strconv.Atoi(vars["gameID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid game ID", err)
		return
	}

	snapshot, err := h.snapshots.GetGameSnapshot(r.Context(), sportCode, gameID)
	if err == nil {
		respondJSON(w, http.StatusOK, snapshot)
		return
	}
	if !errors.Is(err, redis.Nil) {
		respondError(w, http.StatusInternalServerError, "Failed to read snapshot cache", err)
		return
	}

	game, err := h.games.GetGame(r.Context(), sportCode, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Game not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch game", err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
