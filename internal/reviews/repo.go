// Package reviews stores user ratings of movies, one per user and movie,
// each with an optional review text.
package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"movierec/pkg/models"
)

const (
	MinRating = 0.5
	MaxRating = 5.0
)

var (
	ErrRatingRange  = fmt.Errorf("rating must be between %.1f and %.1f", MinRating, MaxRating)
	ErrUnknownMovie = errors.New("movie not found")
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

// Upsert rates movieID for the user, replacing an earlier rating and
// review. created reports whether this is the user's first rating of it.
func (r *Repo) Upsert(ctx context.Context, userID string, movieID int64, rating float64, review string) (out *models.Rating, created bool, err error) {
	if rating < MinRating || rating > MaxRating {
		return nil, false, ErrRatingRange
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies WHERE id = ?`, movieID).Scan(&n); err != nil {
		return nil, false, fmt.Errorf("lookup movie: %w", err)
	}
	if n == 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownMovie, movieID)
	}
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM movie_ratings WHERE user_id = ? AND movie_id = ?
	`, userID, movieID).Scan(&n); err != nil {
		return nil, false, fmt.Errorf("lookup rating: %w", err)
	}
	created = n == 0

	now := r.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO movie_ratings (user_id, movie_id, rating, review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, movie_id) DO UPDATE SET
			rating = excluded.rating,
			review = excluded.review,
			updated_at = excluded.updated_at
	`, userID, movieID, rating, review, now, now); err != nil {
		return nil, false, fmt.Errorf("upsert rating: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	out, err = r.Get(ctx, userID, movieID)
	return out, created, err
}

const ratingColumns = `r.id, r.user_id, r.rating, r.review, r.created_at, r.updated_at,
	m.id, m.tmdb_id, m.title, m.poster_path, m.vote_average`

func scanRating(s interface{ Scan(...any) error }) (*models.Rating, error) {
	var x models.Rating
	if err := s.Scan(&x.ID, &x.UserID, &x.Rating, &x.Review, &x.CreatedAt, &x.UpdatedAt,
		&x.Movie.ID, &x.Movie.TMDBID, &x.Movie.Title, &x.Movie.PosterPath, &x.Movie.VoteAverage); err != nil {
		return nil, err
	}
	return &x, nil
}

// Get returns (nil, nil) when the user has not rated the movie.
func (r *Repo) Get(ctx context.Context, userID string, movieID int64) (*models.Rating, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+ratingColumns+`
		FROM movie_ratings r JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ? AND r.movie_id = ?
	`, userID, movieID)
	x, err := scanRating(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return x, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Rating, int, error) {
	return r.list(ctx, `r.user_id = ?`, userID, limit, offset)
}

// ListForMovie lists every user's rating of one movie, by catalog id.
func (r *Repo) ListForMovie(ctx context.Context, tmdbID int64, limit, offset int) ([]models.Rating, int, error) {
	return r.list(ctx, `m.tmdb_id = ?`, tmdbID, limit, offset)
}

func (r *Repo) list(ctx context.Context, where string, arg any, limit, offset int) ([]models.Rating, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM movie_ratings r JOIN movies m ON m.id = r.movie_id WHERE `+where,
		arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ratings: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+ratingColumns+`
		FROM movie_ratings r JOIN movies m ON m.id = r.movie_id
		WHERE `+where+`
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?
	`, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Rating, 0, limit)
	for rows.Next() {
		x, err := scanRating(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan rating row: %w", err)
		}
		out = append(out, *x)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

func (r *Repo) Delete(ctx context.Context, userID string, movieID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM movie_ratings WHERE user_id = ? AND movie_id = ?
	`, userID, movieID)
	if err != nil {
		return false, fmt.Errorf("delete rating: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Summary is the average and count of a user's ratings.
type Summary struct {
	Count   int     `json:"ratings_count"`
	Average float64 `json:"average_rating"`
}

func (r *Repo) SummaryForUser(ctx context.Context, userID string) (Summary, error) {
	var s Summary
	var avg sql.NullFloat64
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rating) FROM movie_ratings WHERE user_id = ?
	`, userID).Scan(&s.Count, &avg); err != nil {
		return Summary{}, fmt.Errorf("summarize ratings: %w", err)
	}
	s.Average = math.Round(avg.Float64*100) / 100
	return s, nil
}
