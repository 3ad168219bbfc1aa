package movies

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"movierec/pkg/models"
)

type ListQuery struct {
	Q       string // keyword search in title / original title
	GenreID int64  // catalog genre id
	Adult   bool   // include adult titles
	Sort    string // popularity (default), rating, release_date, title
	Limit   int
	Offset  int
}

const movieColumns = `
	m.id, m.tmdb_id, m.title, m.original_title, m.overview, m.release_date,
	m.poster_path, m.backdrop_path, m.vote_average, m.vote_count, m.popularity,
	m.adult, m.original_language, m.created_at, m.updated_at, m.last_synced_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(s rowScanner) (*models.Movie, error) {
	var (
		m       models.Movie
		release sql.NullString
	)
	if err := s.Scan(
		&m.ID, &m.TMDBID, &m.Title, &m.OriginalTitle, &m.Overview, &release,
		&m.PosterPath, &m.BackdropPath, &m.VoteAverage, &m.VoteCount, &m.Popularity,
		&m.Adult, &m.OriginalLanguage, &m.CreatedAt, &m.UpdatedAt, &m.LastSyncedAt,
	); err != nil {
		return nil, err
	}
	if release.Valid {
		if t, err := time.Parse(releaseDateLayout, release.String); err == nil {
			m.ReleaseDate = &t
		}
	}
	m.Genres = []models.Genre{}
	return &m, nil
}

// getMovie loads one movie with its genres. It returns sql.ErrNoRows
// unwrapped when nothing matches.
func getMovie(ctx context.Context, q querier, where string, arg any) (*models.Movie, error) {
	row := q.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies m WHERE `+where, arg)
	m, err := scanMovie(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	movies := []models.Movie{*m}
	if err := attachGenres(ctx, q, movies); err != nil {
		return nil, err
	}
	return &movies[0], nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Movie, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := []models.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	if err := attachGenres(ctx, r.DB, out); err != nil {
		return nil, err
	}
	return out, nil
}

func attachGenres(ctx context.Context, q querier, movies []models.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(movies))
	args := make([]any, 0, len(movies))
	for i, m := range movies {
		idx[m.ID] = i
		args = append(args, m.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT mg.movie_id, g.id, g.tmdb_id, g.name
		FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (`+placeholders(len(args))+`)
		ORDER BY g.name ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("load genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			movieID int64
			g       models.Genre
		)
		if err := rows.Scan(&movieID, &g.ID, &g.TMDBID, &g.Name); err != nil {
			return fmt.Errorf("scan movie genre: %w", err)
		}
		if i, ok := idx[movieID]; ok {
			movies[i].Genres = append(movies[i].Genres, g)
		}
	}
	return rows.Err()
}

// buildListSQL builds either COUNT(*) or the paginated SELECT.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	base := `SELECT ` + movieColumns + ` FROM movies m`
	if countOnly {
		base = `SELECT COUNT(*) FROM movies m`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(m.title) LIKE ? OR LOWER(m.original_title) LIKE ?)")
		kw = "%" + strings.ToLower(kw) + "%"
		args = append(args, kw, kw)
	}

	if q.GenreID > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
			WHERE mg.movie_id = m.id AND g.tmdb_id = ?
		)`)
		args = append(args, q.GenreID)
	}

	if !q.Adult {
		where = append(where, "m.adult = 0")
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		switch q.Sort {
		case "rating":
			sqlStr += " ORDER BY m.vote_average DESC, m.vote_count DESC"
		case "release_date":
			sqlStr += " ORDER BY m.release_date IS NULL, m.release_date DESC"
		case "title":
			sqlStr += " ORDER BY m.title ASC"
		default:
			sqlStr += " ORDER BY m.popularity DESC"
		}
		sqlStr += ", m.id ASC LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
