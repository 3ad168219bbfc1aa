package models

// CatalogRecord is the normalized form of a movie as returned by the
// external catalog, before it is reconciled into the database.
//
// Exactly one of GenreIDs or Genres is usually set: list endpoints return
// genre_ids, the detail endpoint returns full genre objects. A nil slice
// means the field was absent and the movie's genres are left untouched.
type CatalogRecord struct {
	ID               int64         `json:"id"`                  // catalog (external) id
	Title            string        `json:"title"`               // localized title
	OriginalTitle    string        `json:"original_title"`      // title in original language
	Overview         string        `json:"overview"`            // synopsis
	ReleaseDate      string        `json:"release_date"`        // YYYY-MM-DD, may be empty or garbage
	VoteAverage      float64       `json:"vote_average"`        // 0-10
	VoteCount        int           `json:"vote_count"`          // number of votes
	Popularity       float64       `json:"popularity"`          // catalog popularity score
	OriginalLanguage string        `json:"original_language"`   // ISO 639-1
	Adult            bool          `json:"adult"`               // adult content flag
	PosterPath       string        `json:"poster_path"`         // relative image path
	BackdropPath     string        `json:"backdrop_path"`       // relative image path
	GenreIDs         []int64       `json:"genre_ids,omitempty"` // external genre ids (list endpoints)
	Genres           []GenreRecord `json:"genres,omitempty"`    // full genre objects (detail endpoint)
}

// GenreRecord is a category as delivered by the catalog.
type GenreRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
