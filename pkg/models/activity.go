package models

import "time"

// Activity types written by the API.
const (
	ActivityViewMovie       = "view_movie"
	ActivitySearch          = "search"
	ActivityRateMovie       = "rate_movie"
	ActivityRemoveRating    = "remove_rating"
	ActivityAddFavorite     = "add_favorite"
	ActivityRemoveFavorite  = "remove_favorite"
	ActivityAddWatchlist    = "add_watchlist"
	ActivityRemoveWatchlist = "remove_watchlist"
)

// Activity is an append-only record of something a signed-in user did.
// MovieID is the catalog (tmdb) id, zero when the activity has no movie.
type Activity struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"activity_type"`
	MovieID   int64          `json:"movie_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}
