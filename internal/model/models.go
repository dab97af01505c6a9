// Package model defines the data models for the board game collection service.
package model

import (
	"math"
	"strconv"
	"time"
)

// UnratedSentinel is stored as CollectionEntry.UserRating when the user has
// not rated the game.
const UnratedSentinel = "0"

// Bounds of the catalog's personal rating scale, and the longest rating
// string stored.
const (
	MinRating       = 1.0
	MaxRating       = 10.0
	MaxRatingLength = 16
)

// User is identified by the user name exactly as provided (case-sensitive).
type User struct {
	UserName     string     `db:"user_name" json:"userName"`
	LastSyncedAt *time.Time `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// CollectionEntry is one game in one user's collection, keyed by (UserName, BggID).
// GameName is the title as it appeared in the collection at import time and
// may differ from the canonical Game.GameName.
type CollectionEntry struct {
	UserName   string    `db:"user_name" json:"userName"`
	BggID      int64     `db:"bgg_id" json:"bggId"`
	GameName   string    `db:"game_name" json:"gameName"`
	UserRating string    `db:"user_rating" json:"userRating"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// NumericRating returns the rating as a number and whether it counts as a
// real rating. Unrated entries and non-numeric values report false.
func (e CollectionEntry) NumericRating() (float64, bool) {
	return ParseRating(e.UserRating)
}

// ParseRating parses a stored rating string. Only numbers within
// MinRating..MaxRating qualify as ratings.
func ParseRating(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < MinRating || v > MaxRating {
		return 0, false
	}
	return v, true
}

// RoundRating rounds half-up to two decimals. The epsilon absorbs binary
// representation error so that e.g. 7.125 rounds to 7.13.
func RoundRating(v float64) float64 {
	return math.Floor(v*100+0.5+1e-9) / 100
}

// Game is the catalog-wide record of a board game, shared across users.
type Game struct {
	BggID              int64      `db:"bgg_id" json:"bggId"`
	GameName           string     `db:"game_name" json:"gameName"`
	Link               string     `db:"link" json:"link"`
	ImageLink          string     `db:"image_link" json:"imageLink"`
	AverageRating      *float64   `db:"average_rating" json:"averageRating"`
	YearPublished      *int       `db:"year_published" json:"yearPublished,omitempty"`
	MinPlayers         *int       `db:"min_players" json:"minPlayers,omitempty"`
	MaxPlayers         *int       `db:"max_players" json:"maxPlayers,omitempty"`
	PlayingTime        *int       `db:"playing_time" json:"playingTime,omitempty"`
	MechanicsFetchedAt *time.Time `db:"mechanics_fetched_at" json:"mechanicsFetchedAt,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// MechanicState is the fetch state of a game's mechanic set.
type MechanicState string

const (
	MechanicsUnfetched       MechanicState = "unfetched"
	MechanicsFetchedEmpty    MechanicState = "fetched-empty"
	MechanicsFetchedNonEmpty MechanicState = "fetched-nonempty"
)

// MechanicState derives the tri-state from the fetch stamp and the number of
// mechanic rows known for the game.
func (g Game) MechanicState(mechanicCount int) MechanicState {
	switch {
	case g.MechanicsFetchedAt == nil:
		return MechanicsUnfetched
	case mechanicCount == 0:
		return MechanicsFetchedEmpty
	default:
		return MechanicsFetchedNonEmpty
	}
}

// GameMechanic tags a game with one mechanic, keyed by (GameBggID, MechanicName).
type GameMechanic struct {
	GameBggID    int64     `db:"game_bgg_id" json:"gameBggId"`
	MechanicName string    `db:"mechanic_name" json:"mechanicName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// MechanicSet is the complete mechanic list of one game as of a detail fetch.
// An empty Names slice means the game was queried and has no mechanics.
type MechanicSet struct {
	GameBggID int64
	Names     []string
}

// Links expands the set into GameMechanic rows.
func (s MechanicSet) Links() []GameMechanic {
	links := make([]GameMechanic, 0, len(s.Names))
	for _, name := range s.Names {
		links = append(links, GameMechanic{GameBggID: s.GameBggID, MechanicName: name})
	}
	return links
}

// UserMechanicStat is a user's average rating across the rated games in
// their collection that carry a mechanic.
type UserMechanicStat struct {
	UserName      string    `db:"user_name" json:"userName"`
	MechanicName  string    `db:"mechanic_name" json:"mechanicName"`
	AverageRating float64   `db:"average_rating" json:"averageRating"`
	GameCount     int       `db:"game_count" json:"gameCount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// CollectionGame is one display-ready row of a user's collection.
type CollectionGame struct {
	BggID         int64    `json:"bggId"`
	GameName      string   `json:"gameName"`
	Link          string   `json:"bggLink"`
	ImageLink     string   `json:"bggImageLink"`
	UserRating    string   `json:"userRating"`
	AverageRating *float64 `json:"averageRating"`
	YearPublished *int     `json:"yearPublished,omitempty"`
	MinPlayers    *int     `json:"minPlayers,omitempty"`
	MaxPlayers    *int     `json:"maxPlayers,omitempty"`
	PlayingTime   *int     `json:"playingTime,omitempty"`
	Mechanics     []string `json:"mechanics"`
}

// CollectionView is the joined collection returned to the browser client.
type CollectionView struct {
	UserName   string           `json:"username"`
	TotalGames int              `json:"totalGames"`
	Games      []CollectionGame `json:"games"`
}

// GameDetail is a persisted game together with its mechanic names.
type GameDetail struct {
	Game
	Mechanics     []string      `json:"mechanics"`
	MechanicState MechanicState `json:"mechanicState"`
}
