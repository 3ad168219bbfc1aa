package models

import "time"

// Per-user movie lists.
const (
	ListFavorites = "favorites"
	ListWatchlist = "watchlist"
)

// MovieRef is the part of a stored movie shown next to per-user rows.
type MovieRef struct {
	ID          int64   `json:"id"`
	TMDBID      int64   `json:"tmdb_id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path,omitempty"`
	VoteAverage float64 `json:"vote_average"`
}

type LibraryEntry struct {
	UserID  string    `json:"user_id"`
	List    string    `json:"list"`
	Movie   MovieRef  `json:"movie"`
	AddedAt time.Time `json:"added_at"`
}

// Rating is one user's score for one movie, 0.5 to 5 in half steps or
// finer, with an optional free-text review.
type Rating struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Movie     MovieRef  `json:"movie"`
	Rating    float64   `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
