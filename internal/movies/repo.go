// Package movies reconciles catalog records into canonical Movie and Genre
// rows keyed by the catalog's own ids.
package movies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"movierec/internal/metrics"
	"movierec/pkg/logger"
	"movierec/pkg/models"
)

const releaseDateLayout = "2006-01-02"

// ErrMalformed marks a catalog record that can never be reconciled.
var ErrMalformed = errors.New("record-malformed")

// RecordError is returned for a single record that was rejected before
// touching the store.
type RecordError struct {
	TMDBID int64
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: tmdb id %d: %s", ErrMalformed, e.TMDBID, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrMalformed }

// RecordFailure describes one skipped record of a batch.
type RecordFailure struct {
	Index  int
	TMDBID int64
	Err    error
}

// BatchResult holds the reconciled movies in input order, minus the
// records listed in Failures.
type BatchResult struct {
	Movies   []models.Movie
	Failures []RecordFailure
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
	log *logger.Logger
}

func NewRepo(db *sql.DB, log *logger.Logger) *Repo {
	if log == nil {
		log = logger.Nop()
	}
	return &Repo{DB: db, Now: time.Now, log: log.With("component", "MovieRepo")}
}

// UpsertMovie creates the movie for rec.ID or overwrites every scalar of
// the existing one. Genres are replaced when the record carries either
// genre_ids or genre objects, and left alone when it carries neither.
func (r *Repo) UpsertMovie(ctx context.Context, rec models.CatalogRecord) (*models.Movie, error) {
	if rec.ID <= 0 {
		return nil, &RecordError{TMDBID: rec.ID, Reason: "missing external id"}
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.Now().UTC()
	release := parseReleaseDate(rec.ReleaseDate)

	var movieID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM movies WHERE tmdb_id = ?`, rec.ID).Scan(&movieID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO movies (
			  tmdb_id, title, original_title, overview, release_date, poster_path, backdrop_path,
			  vote_average, vote_count, popularity, adult, original_language,
			  created_at, updated_at, last_synced_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Title, rec.OriginalTitle, rec.Overview, release, rec.PosterPath, rec.BackdropPath,
			rec.VoteAverage, rec.VoteCount, rec.Popularity, rec.Adult, rec.OriginalLanguage,
			now, now, now)
		if err != nil {
			return nil, fmt.Errorf("insert movie %d: %w", rec.ID, err)
		}
		if movieID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert movie %d id: %w", rec.ID, err)
		}
		metrics.MovieUpserts.WithLabelValues("created").Inc()
	case err != nil:
		return nil, fmt.Errorf("lookup movie %d: %w", rec.ID, err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE movies SET
			  title = ?, original_title = ?, overview = ?, release_date = ?,
			  poster_path = ?, backdrop_path = ?, vote_average = ?, vote_count = ?,
			  popularity = ?, adult = ?, original_language = ?,
			  updated_at = ?, last_synced_at = ?
			WHERE id = ?
		`, rec.Title, rec.OriginalTitle, rec.Overview, release,
			rec.PosterPath, rec.BackdropPath, rec.VoteAverage, rec.VoteCount,
			rec.Popularity, rec.Adult, rec.OriginalLanguage,
			now, now, movieID); err != nil {
			return nil, fmt.Errorf("update movie %d: %w", rec.ID, err)
		}
		metrics.MovieUpserts.WithLabelValues("updated").Inc()
	}

	if err := relinkGenres(ctx, tx, movieID, rec); err != nil {
		return nil, err
	}

	m, err := getMovie(ctx, tx, `m.id = ?`, movieID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return m, nil
}

// UpsertMovies reconciles each record independently. A record that fails,
// for whatever reason, is logged and reported in Failures; it is not
// retried.
func (r *Repo) UpsertMovies(ctx context.Context, recs []models.CatalogRecord) BatchResult {
	out := BatchResult{Movies: make([]models.Movie, 0, len(recs))}
	for i, rec := range recs {
		m, err := r.UpsertMovie(ctx, rec)
		if err != nil {
			metrics.MovieUpserts.WithLabelValues("skipped").Inc()
			r.log.Warn("skipping catalog record", "index", i, "tmdb_id", rec.ID, "error", err)
			out.Failures = append(out.Failures, RecordFailure{Index: i, TMDBID: rec.ID, Err: err})
			continue
		}
		out.Movies = append(out.Movies, *m)
	}
	return out
}

// UpsertCategories creates any genre not yet known. Existing names are
// never rewritten. Records without an id are ignored.
func (r *Repo) UpsertCategories(ctx context.Context, cats []models.GenreRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, g := range cats {
		if g.ID <= 0 {
			r.log.Warn("ignoring genre without id", "name", g.Name)
			continue
		}
		if _, err := ensureGenre(ctx, tx, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByExternalID returns (nil, nil) when no movie has that tmdb id.
func (r *Repo) GetByExternalID(ctx context.Context, tmdbID int64) (*models.Movie, error) {
	m, err := getMovie(ctx, r.DB, `m.tmdb_id = ?`, tmdbID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repo) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, tmdb_id, name FROM genres ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	out := []models.Genre{}
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.TMDBID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GenreIDsByExternal maps catalog genre ids to internal ids. Unknown ids
// are dropped.
func (r *Repo) GenreIDsByExternal(ctx context.Context, tmdbIDs []int64) ([]int64, error) {
	return lookupGenreIDs(ctx, r.DB, tmdbIDs)
}

func ensureGenre(ctx context.Context, q querier, g models.GenreRecord) (int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO genres (tmdb_id, name) VALUES (?, ?)
		ON CONFLICT(tmdb_id) DO NOTHING
	`, g.ID, g.Name); err != nil {
		return 0, fmt.Errorf("insert genre %d: %w", g.ID, err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM genres WHERE tmdb_id = ?`, g.ID).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup genre %d: %w", g.ID, err)
	}
	return id, nil
}

func lookupGenreIDs(ctx context.Context, q querier, tmdbIDs []int64) ([]int64, error) {
	if len(tmdbIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(tmdbIDs))
	for i, id := range tmdbIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM genres WHERE tmdb_id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup genres: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan genre id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// relinkGenres prefers genre_ids, which reference genres that are expected
// to be synced already. Ids not in the table are skipped.
func relinkGenres(ctx context.Context, tx *sql.Tx, movieID int64, rec models.CatalogRecord) error {
	var genreIDs []int64
	switch {
	case rec.GenreIDs != nil:
		ids, err := lookupGenreIDs(ctx, tx, rec.GenreIDs)
		if err != nil {
			return err
		}
		genreIDs = ids
	case rec.Genres != nil:
		for _, g := range rec.Genres {
			if g.ID <= 0 {
				continue
			}
			id, err := ensureGenre(ctx, tx, g)
			if err != nil {
				return err
			}
			genreIDs = append(genreIDs, id)
		}
	default:
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM movie_genres WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("clear movie genres: %w", err)
	}
	for _, gid := range genreIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO movie_genres (movie_id, genre_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, movieID, gid); err != nil {
			return fmt.Errorf("link genre %d: %w", gid, err)
		}
	}
	return nil
}

// parseReleaseDate yields nil (stored as NULL) for anything that is not a
// plain calendar date.
func parseReleaseDate(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(releaseDateLayout, s)
	if err != nil {
		return nil
	}
	return t.Format(releaseDateLayout)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
