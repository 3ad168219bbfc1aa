// Package library keeps each user's favorites and watchlist over stored
// movies.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"movierec/pkg/models"
)

var (
	ErrUnknownList  = errors.New("unknown list")
	ErrUnknownMovie = errors.New("movie not found")
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

func validList(list string) bool {
	return list == models.ListFavorites || list == models.ListWatchlist
}

// Add puts movieID on the user's list. created is false when it was there
// already; the original added_at is kept.
func (r *Repo) Add(ctx context.Context, userID, list string, movieID int64) (entry *models.LibraryEntry, created bool, err error) {
	if !validList(list) {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}

	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies WHERE id = ?`, movieID).Scan(&n); err != nil {
		return nil, false, fmt.Errorf("lookup movie: %w", err)
	}
	if n == 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownMovie, movieID)
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO library_entries (user_id, list, movie_id, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, list, movie_id) DO NOTHING
	`, userID, list, movieID, r.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert library entry: %w", err)
	}
	affected, _ := res.RowsAffected()

	entry, err = r.Get(ctx, userID, list, movieID)
	if err != nil {
		return nil, false, err
	}
	return entry, affected > 0, nil
}

func (r *Repo) Remove(ctx context.Context, userID, list string, movieID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM library_entries
		WHERE user_id = ? AND list = ? AND movie_id = ?
	`, userID, list, movieID)
	if err != nil {
		return false, fmt.Errorf("delete library entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const entryColumns = `e.user_id, e.list, e.added_at, m.id, m.tmdb_id, m.title, m.poster_path, m.vote_average`

func scanEntry(s interface{ Scan(...any) error }) (*models.LibraryEntry, error) {
	var e models.LibraryEntry
	if err := s.Scan(&e.UserID, &e.List, &e.AddedAt,
		&e.Movie.ID, &e.Movie.TMDBID, &e.Movie.Title, &e.Movie.PosterPath, &e.Movie.VoteAverage); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get returns (nil, nil) when the movie is not on the list.
func (r *Repo) Get(ctx context.Context, userID, list string, movieID int64) (*models.LibraryEntry, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM library_entries e JOIN movies m ON m.id = e.movie_id
		WHERE e.user_id = ? AND e.list = ? AND e.movie_id = ?
	`, userID, list, movieID)
	e, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get library entry: %w", err)
	}
	return e, nil
}

// List returns one page of the list, newest first, and the list's size.
func (r *Repo) List(ctx context.Context, userID, list string, limit, offset int) ([]models.LibraryEntry, int, error) {
	if !validList(list) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM library_entries WHERE user_id = ? AND list = ?
	`, userID, list).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count library: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM library_entries e JOIN movies m ON m.id = e.movie_id
		WHERE e.user_id = ? AND e.list = ?
		ORDER BY e.added_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`, userID, list, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list library: %w", err)
	}
	defer rows.Close()

	out := make([]models.LibraryEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan library row: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

// Counts reports how many movies the user has on each list.
func (r *Repo) Counts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT list, COUNT(*) FROM library_entries WHERE user_id = ? GROUP BY list
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("count library lists: %w", err)
	}
	defer rows.Close()

	out := map[string]int{models.ListFavorites: 0, models.ListWatchlist: 0}
	for rows.Next() {
		var list string
		var n int
		if err := rows.Scan(&list, &n); err != nil {
			return nil, fmt.Errorf("scan library count: %w", err)
		}
		out[list] = n
	}
	return out, rows.Err()
}
