package models

import "time"

const (
	posterBase   = "https://image.tmdb.org/t/p/w500"
	backdropBase = "https://image.tmdb.org/t/p/w1280"
)

type Genre struct {
	ID     int64  `json:"id"`
	TMDBID int64  `json:"tmdb_id"`
	Name   string `json:"name"`
}

// Movie is the canonical, stored representation of a catalog movie.
// TMDBID is the natural key; there is at most one Movie per TMDBID.
type Movie struct {
	ID               int64      `json:"id"`
	TMDBID           int64      `json:"tmdb_id"`
	Title            string     `json:"title"`
	OriginalTitle    string     `json:"original_title,omitempty"`
	Overview         string     `json:"overview,omitempty"`
	ReleaseDate      *time.Time `json:"release_date,omitempty"`
	PosterPath       string     `json:"poster_path,omitempty"`
	BackdropPath     string     `json:"backdrop_path,omitempty"`
	VoteAverage      float64    `json:"vote_average"`
	VoteCount        int        `json:"vote_count"`
	Popularity       float64    `json:"popularity"`
	Adult            bool       `json:"adult"`
	OriginalLanguage string     `json:"original_language,omitempty"`
	Genres           []Genre    `json:"genres"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastSyncedAt     time.Time  `json:"last_synced_at"`
}

func (m Movie) PosterURL() string {
	if m.PosterPath == "" {
		return ""
	}
	return posterBase + m.PosterPath
}

func (m Movie) BackdropURL() string {
	if m.BackdropPath == "" {
		return ""
	}
	return backdropBase + m.BackdropPath
}
