package catalog

import (
	"net/url"
	"strings"
	"time"
)

// Op names one of the fixed catalog calls.
type Op string

const (
	OpTrending           Op = "trending"
	OpPopular            Op = "popular"
	OpTopRated           Op = "top-rated"
	OpUpcoming           Op = "upcoming"
	OpSearch             Op = "search"
	OpDetail             Op = "detail"
	OpSimilar            Op = "similar"
	OpRecommendationsFor Op = "recommendations-for"
	OpDiscover           Op = "discover"
	OpGenreList          Op = "genre-list"
)

// Parameters that are substituted into the request path instead of the
// query string. They still take part in the cache key.
const (
	ParamTimeWindow = "time_window"
	ParamMovieID    = "movie_id"
)

type operation struct {
	path     string
	ttl      time.Duration
	defaults map[string]string
}

var operations = map[Op]operation{
	OpTrending: {
		path:     "trending/movie/{time_window}",
		ttl:      time.Hour,
		defaults: map[string]string{ParamTimeWindow: "week"},
	},
	OpPopular:  {path: "movie/popular", ttl: 2 * time.Hour},
	OpTopRated: {path: "movie/top_rated", ttl: 4 * time.Hour},
	OpUpcoming: {path: "movie/upcoming", ttl: 6 * time.Hour},
	OpSearch:   {path: "search/movie", ttl: 30 * time.Minute},
	OpDetail: {
		path:     "movie/{movie_id}",
		ttl:      24 * time.Hour,
		defaults: map[string]string{"append_to_response": "credits,videos,similar,recommendations"},
	},
	OpSimilar:            {path: "movie/{movie_id}/similar", ttl: 4 * time.Hour},
	OpRecommendationsFor: {path: "movie/{movie_id}/recommendations", ttl: 4 * time.Hour},
	OpDiscover:           {path: "discover/movie", ttl: 2 * time.Hour},
	OpGenreList:          {path: "genre/movie/list", ttl: 24 * time.Hour},
}

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	_, ok := operations[o]
	return ok
}

// TTL is how long a successful response for o may be served from cache.
func (o Op) TTL() time.Duration {
	return operations[o].ttl
}

// normalize returns a copy of params with the operation defaults filled in.
// The result is what both the request and the cache key are built from.
func (o Op) normalize(params url.Values) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range operations[o].defaults {
		if out.Get(k) == "" {
			out.Set(k, v)
		}
	}
	return out
}

// request splits normalized params into the relative path and the query
// string. Path placeholders are filled from, and removed from, the query.
func (o Op) request(params url.Values) (string, url.Values) {
	path := operations[o].path
	query := url.Values{}
	for k, v := range params {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(params.Get(k)))
			continue
		}
		query[k] = v
	}
	return path, query
}
