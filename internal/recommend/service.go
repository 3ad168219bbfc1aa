// Package recommend turns catalog lists into reconciled movies and records,
// for signed-in callers, which strategy surfaced each one.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"movierec/internal/catalog"
	"movierec/internal/metrics"
	"movierec/internal/movies"
	"movierec/pkg/logger"
	"movierec/pkg/models"
)

var (
	ErrInvalidRequest = errors.New("invalid recommendation request")
	ErrNotFound       = errors.New("movie not found in catalog")
)

// Strategy names accepted by Recommend.
const (
	StrategyTrending   = "trending"
	StrategyPopular    = "popular"
	StrategyGenreBased = "genre-based"
	StrategySimilar    = "similar"
)

// Lists that can be browsed or bulk-synced.
const (
	ListTrending = "trending"
	ListPopular  = "popular"
	ListTopRated = "top-rated"
	ListUpcoming = "upcoming"
)

const (
	attributionScore = 1.0
	maxPage          = 500
)

type Request struct {
	Strategy   string
	Identity   *models.Identity
	Page       int
	TimeWindow string  // trending only: day or week
	GenreIDs   []int64 // genre-based: catalog genre ids
	MovieID    int64   // similar: catalog movie id
}

type SearchQuery struct {
	Query        string
	Page         int
	IncludeAdult bool
	Year         int
}

type SearchResult struct {
	Movies       []models.Movie `json:"results"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// PageSync summarizes one reconciled catalog page.
type PageSync struct {
	Synced  int
	Skipped int
	Empty   bool
}

type Service struct {
	catalog      catalog.Fetcher
	movies       *movies.Repo
	attributions *AttributionRepo
	log          *logger.Logger
}

func NewService(cat catalog.Fetcher, movieRepo *movies.Repo, attr *AttributionRepo, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		catalog:      cat,
		movies:       movieRepo,
		attributions: attr,
		log:          log.With("component", "Recommender"),
	}
}

// Recommend runs one strategy. Upstream failures and empty upstream lists
// yield an empty, non-nil slice and a nil error.
func (s *Service) Recommend(ctx context.Context, req Request) ([]models.Movie, error) {
	page, err := normalizePage(req.Page)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var (
		op  catalog.Op
		tag models.Strategy
	)
	switch req.Strategy {
	case StrategyTrending:
		op, tag = catalog.OpTrending, models.StrategyTrending
		switch req.TimeWindow {
		case "":
		case "day", "week":
			params.Set(catalog.ParamTimeWindow, req.TimeWindow)
		default:
			return nil, fmt.Errorf("%w: time window %q", ErrInvalidRequest, req.TimeWindow)
		}
	case StrategyPopular:
		op, tag = catalog.OpPopular, models.StrategyPopular
	case StrategyGenreBased:
		if len(req.GenreIDs) == 0 {
			return nil, fmt.Errorf("%w: genre ids required", ErrInvalidRequest)
		}
		op, tag = catalog.OpDiscover, models.StrategyGenreBased
		params.Set("with_genres", joinIDs(req.GenreIDs))
		params.Set("sort_by", "popularity.desc")
	case StrategySimilar:
		if req.MovieID <= 0 {
			return nil, fmt.Errorf("%w: movie id required", ErrInvalidRequest)
		}
		op, tag = catalog.OpSimilar, models.StrategyContentBased
		params.Set(catalog.ParamMovieID, strconv.FormatInt(req.MovieID, 10))
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, req.Strategy)
	}

	p, ok := s.fetchPage(ctx, op, params)
	if !ok {
		return []models.Movie{}, nil
	}

	res := s.reconcile(ctx, p)
	if req.Identity != nil && req.Identity.Authenticated {
		s.attribute(ctx, req.Identity.UserID, res.Movies, tag)
	}
	return res.Movies, nil
}

// Browse reconciles one page of a list without attributing it.
func (s *Service) Browse(ctx context.Context, list string, page int) ([]models.Movie, error) {
	op, err := listOp(list)
	if err != nil {
		return nil, err
	}
	page, err = normalizePage(page)
	if err != nil {
		return nil, err
	}

	p, ok := s.fetchPage(ctx, op, url.Values{"page": {strconv.Itoa(page)}})
	if !ok {
		return []models.Movie{}, nil
	}
	return s.reconcile(ctx, p).Movies, nil
}

func (s *Service) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return SearchResult{}, fmt.Errorf("%w: query required", ErrInvalidRequest)
	}
	page, err := normalizePage(q.Page)
	if err != nil {
		return SearchResult{}, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", strconv.FormatBool(q.IncludeAdult))
	if q.Year > 0 {
		params.Set("year", strconv.Itoa(q.Year))
	}

	out := SearchResult{Movies: []models.Movie{}, Page: page}
	p, ok := s.fetchPage(ctx, catalog.OpSearch, params)
	if !ok {
		return out, nil
	}
	out.Movies = s.reconcile(ctx, p).Movies
	out.TotalPages = p.TotalPages
	out.TotalResults = p.TotalResults
	return out, nil
}

// SyncCategories pulls the full genre list. It reports false on any
// gateway or store failure.
func (s *Service) SyncCategories(ctx context.Context) bool {
	resp, err := s.catalog.Fetch(ctx, catalog.OpGenreList, nil)
	if err != nil {
		s.log.Error("failed to fetch genres", "error", err)
		return false
	}
	genres, err := resp.Genres()
	if err != nil {
		s.log.Error("failed to decode genres", "error", err)
		return false
	}
	if len(genres) == 0 {
		s.log.Error("genre list is empty")
		return false
	}
	if err := s.movies.UpsertCategories(ctx, genres); err != nil {
		s.log.Error("failed to store genres", "error", err)
		return false
	}
	s.log.Info("genres synced", "count", len(genres))
	return true
}

// SyncList reconciles one page of a list. ok is false when the page could
// not be fetched or decoded.
func (s *Service) SyncList(ctx context.Context, list string, page int) (PageSync, bool) {
	op, err := listOp(list)
	if err != nil {
		s.log.Error("cannot sync list", "list", list, "error", err)
		return PageSync{}, false
	}
	p, ok := s.fetchPage(ctx, op, url.Values{"page": {strconv.Itoa(page)}})
	if !ok {
		return PageSync{}, false
	}
	if len(p.Results) == 0 && len(p.Invalid) == 0 {
		return PageSync{Empty: true}, true
	}
	res := s.reconcile(ctx, p)
	return PageSync{Synced: len(res.Movies), Skipped: len(res.Failures)}, true
}

// RefreshMovie re-reads one movie from the catalog detail endpoint.
// Unlike the list paths it returns the failure, wrapped in ErrNotFound for
// a 404.
func (s *Service) RefreshMovie(ctx context.Context, tmdbID int64) (*models.Movie, error) {
	if tmdbID <= 0 {
		return nil, fmt.Errorf("%w: movie id required", ErrInvalidRequest)
	}
	resp, err := s.catalog.Fetch(ctx, catalog.OpDetail, url.Values{
		catalog.ParamMovieID: {strconv.FormatInt(tmdbID, 10)},
	})
	if err != nil {
		if f, ok := catalog.AsFailure(err); ok && f.Reason == catalog.ReasonUpstreamStatus && f.Status == 404 {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, tmdbID)
		}
		return nil, err
	}
	rec, err := resp.Record()
	if err != nil {
		return nil, err
	}
	return s.movies.UpsertMovie(ctx, *rec)
}

// GenerateForUser fills the user's attribution history from the trending
// and popular lists and, when genreIDs is not empty, the genre-based
// strategy. It returns how many movies were recommended in total.
func (s *Service) GenerateForUser(ctx context.Context, userID string, genreIDs []int64) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id required", ErrInvalidRequest)
	}
	ident := &models.Identity{UserID: userID, Authenticated: true}

	reqs := []Request{
		{Strategy: StrategyTrending, Identity: ident},
		{Strategy: StrategyPopular, Identity: ident},
	}
	if len(genreIDs) > 0 {
		reqs = append(reqs, Request{Strategy: StrategyGenreBased, Identity: ident, GenreIDs: genreIDs})
	}

	total := 0
	for _, req := range reqs {
		ms, err := s.Recommend(ctx, req)
		if err != nil {
			return total, err
		}
		total += len(ms)
	}
	return total, nil
}

func (s *Service) fetchPage(ctx context.Context, op catalog.Op, params url.Values) (*catalog.Page, bool) {
	resp, err := s.catalog.Fetch(ctx, op, params)
	if err != nil {
		s.log.Warn("catalog unavailable, returning no results", "op", op, "error", err)
		return nil, false
	}
	p, err := resp.Page()
	if err != nil {
		s.log.Warn("catalog page undecodable, returning no results", "op", op, "error", err)
		return nil, false
	}
	return p, true
}

// reconcile upserts the decoded records of p and reports the undecodable
// ones as malformed. Failure indexes are positions in the upstream list.
func (s *Service) reconcile(ctx context.Context, p *catalog.Page) movies.BatchResult {
	res := s.movies.UpsertMovies(ctx, p.Results)
	for i := range res.Failures {
		res.Failures[i].Index = p.Position(res.Failures[i].Index)
	}
	for _, inv := range p.Invalid {
		metrics.MovieUpserts.WithLabelValues("skipped").Inc()
		s.log.Warn("skipping undecodable catalog record", "index", inv.Index, "tmdb_id", inv.TMDBID, "error", inv.Err)
		res.Failures = append(res.Failures, movies.RecordFailure{
			Index:  inv.Index,
			TMDBID: inv.TMDBID,
			Err:    &movies.RecordError{TMDBID: inv.TMDBID, Reason: "undecodable: " + inv.Err.Error()},
		})
	}
	slices.SortStableFunc(res.Failures, func(a, b movies.RecordFailure) int {
		return a.Index - b.Index
	})
	return res
}

// attribute never fails the request; write errors are logged and dropped.
func (s *Service) attribute(ctx context.Context, userID string, ms []models.Movie, tag models.Strategy) {
	for _, m := range ms {
		_, created, err := s.attributions.CreateOrGet(ctx, userID, m.ID, tag, attributionScore)
		if err != nil {
			s.log.Error("failed to record attribution", "user_id", userID, "movie_id", m.ID, "strategy", tag, "error", err)
			continue
		}
		if created {
			metrics.AttributionsLogged.WithLabelValues(string(tag)).Inc()
		}
	}
}

func listOp(list string) (catalog.Op, error) {
	switch list {
	case ListTrending:
		return catalog.OpTrending, nil
	case ListPopular:
		return catalog.OpPopular, nil
	case ListTopRated:
		return catalog.OpTopRated, nil
	case ListUpcoming:
		return catalog.OpUpcoming, nil
	}
	return "", fmt.Errorf("%w: unknown list %q", ErrInvalidRequest, list)
}

func normalizePage(page int) (int, error) {
	if page <= 0 {
		return 1, nil
	}
	if page > maxPage {
		return 0, fmt.Errorf("%w: page %d out of range", ErrInvalidRequest, page)
	}
	return page, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
