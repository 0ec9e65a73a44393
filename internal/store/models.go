package store

import (
	"database/sql"
	"time"
)

// Sport represents one provider sport feed (e.g. "NBA", "WNBA").
type Sport struct {
	Code       string        `json:"code" db:"code"`
	Name       string        `json:"name" db:"name"`
	Discipline string        `json:"sport" db:"sport"`
	Seasons    int           `json:"seasons" db:"seasons"`
	First      int           `json:"first" db:"first"`
	Last       int           `json:"last" db:"last"`
	StatsBegin sql.NullInt32 `json:"statsbegin,omitempty" db:"statsbegin"`
	InPlay     bool          `json:"inplay" db:"inplay"`
}

// Game represents one game row. Identity is (game_id, sport_code); the same
// numeric id can appear under different sports.
type Game struct {
	GameID        int            `json:"game_id" db:"game_id"`
	SportCode     string         `json:"sport_code" db:"sport_code"`
	GameDateTime  time.Time      `json:"gamedatetime" db:"gamedatetime"`
	Status        string         `json:"status" db:"status"`
	VisitorID     sql.NullInt32  `json:"visitor_id,omitempty" db:"visitor_id"`
	HomeID        sql.NullInt32  `json:"home_id,omitempty" db:"home_id"`
	VisitorCode   sql.NullString `json:"visitor_code,omitempty" db:"visitor_code"`
	HomeCode      sql.NullString `json:"home_code,omitempty" db:"home_code"`
	WinnerID      sql.NullInt32  `json:"winner_id,omitempty" db:"winner_id"`
	WinnerCode    sql.NullString `json:"winner_code,omitempty" db:"winner_code"`
	LoserID       sql.NullInt32  `json:"loser_id,omitempty" db:"loser_id"`
	LoserCode     sql.NullString `json:"loser_code,omitempty" db:"loser_code"`
	ScoreVisitor  sql.NullInt32  `json:"score_visitor,omitempty" db:"score_visitor"`
	ScoreHome     sql.NullInt32  `json:"score_home,omitempty" db:"score_home"`
	ScoreOvertime sql.NullString `json:"score_overtime,omitempty" db:"score_overtime"`
	Removed       bool           `json:"removed_from_provider" db:"removed_from_provider"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// PlayByPlay is one append-only play-by-play record. Columns are extracted
// from the raw provider event; anything sport-specific stays raw.
type PlayByPlay struct {
	ID                int            `json:"id" db:"id"`
	GameID            int            `json:"game_id" db:"game_id"`
	SportCode         string         `json:"sport_code" db:"sport_code"`
	Event             sql.NullString `json:"event,omitempty" db:"event"`
	Period            sql.NullString `json:"period,omitempty" db:"period"`
	Sequence          sql.NullString `json:"sequence,omitempty" db:"sequence"`
	Explanation       sql.NullString `json:"explanation,omitempty" db:"explanation"`
	TeamID            sql.NullInt32  `json:"team_id,omitempty" db:"team_id"`
	TeamCode          sql.NullString `json:"team_code,omitempty" db:"team_code"`
	ScoringPlay       sql.NullString `json:"scoringplay,omitempty" db:"scoringplay"`
	Tags              sql.NullString `json:"tags,omitempty" db:"tags"`
	TheDiff           sql.NullString `json:"thediff,omitempty" db:"thediff"`
	PlayerPrimaryID   sql.NullInt32  `json:"player_primary_id,omitempty" db:"player_primary_id"`
	PlayerSecondaryID sql.NullInt32  `json:"player_secondary_id,omitempty" db:"player_secondary_id"`
	PlayerPitcherID   sql.NullInt32  `json:"player_pitcher_id,omitempty" db:"player_pitcher_id"`
	Distance          sql.NullInt32  `json:"distance,omitempty" db:"distance"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// GameText holds the narrative blocks attached to a finished game.
type GameText struct {
	GameID    int            `json:"game_id" db:"game_id"`
	SportCode string         `json:"sport_code" db:"sport_code"`
	Story     sql.NullString `json:"story,omitempty" db:"story"`
	BoxHeader sql.NullString `json:"boxheader,omitempty" db:"boxheader"`
	BoxScore  sql.NullString `json:"boxscore,omitempty" db:"boxscore"`
	Star      sql.NullString `json:"star,omitempty" db:"star"`
}

// PeriodScore is one side's score for one period of a game.
type PeriodScore struct {
	GameID    int    `json:"game_id" db:"game_id"`
	SportCode string `json:"sport_code" db:"sport_code"`
	Period    int    `json:"period" db:"period"`
	Score     int    `json:"score" db:"score"`
	IsVisitor bool   `json:"is_visitor" db:"is_visitor"`
}

// GamePlayer links a player to a game appearance.
type GamePlayer struct {
	GameID    int            `json:"game_id" db:"game_id"`
	SportCode string         `json:"sport_code" db:"sport_code"`
	PlayerID  int            `json:"player_id" db:"player_id"`
	TeamID    sql.NullInt32  `json:"team_id,omitempty" db:"team_id"`
	TeamCode  sql.NullString `json:"team_code,omitempty" db:"team_code"`
	Position  sql.NullString `json:"position,omitempty" db:"position"`
	Starter   sql.NullString `json:"starter,omitempty" db:"starter"`
}
