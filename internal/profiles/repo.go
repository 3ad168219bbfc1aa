// Package profiles stores per-user recommendation preferences.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"movierec/pkg/models"
)

var ErrUnknownGenre = errors.New("unknown genre")

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

// EnsureProfile creates the profile for userID if it does not exist yet.
// Whoever creates identities calls it once; calling it again is harmless.
func (r *Repo) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("ensure profile: empty user id")
	}
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, created_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, r.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return r.Get(ctx, userID)
}

// Get returns (nil, nil) when the user has no profile.
func (r *Repo) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, created_at FROM user_profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	ids, err := r.FavoriteGenreIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.FavoriteGenres = ids
	return &p, nil
}

// SetFavoriteGenres replaces the favorite set with the given catalog genre
// ids. Every id must already be synced, otherwise nothing changes.
func (r *Repo) SetFavoriteGenres(ctx context.Context, userID string, tmdbIDs []int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles WHERE user_id = ?`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("set favorite genres: no profile for %q", userID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_genres WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear favorite genres: %w", err)
	}
	for _, tmdbID := range tmdbIDs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO profile_genres (user_id, genre_id)
			SELECT ?, id FROM genres WHERE tmdb_id = ?
			ON CONFLICT DO NOTHING
		`, userID, tmdbID)
		if err != nil {
			return fmt.Errorf("insert favorite genre %d: %w", tmdbID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var known int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM genres WHERE tmdb_id = ?`, tmdbID).Scan(&known); err != nil {
				return fmt.Errorf("lookup genre %d: %w", tmdbID, err)
			}
			if known == 0 {
				return fmt.Errorf("%w: %d", ErrUnknownGenre, tmdbID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FavoriteGenreIDs returns catalog genre ids, ascending.
func (r *Repo) FavoriteGenreIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.tmdb_id
		FROM profile_genres pg
		JOIN genres g ON g.id = pg.genre_id
		WHERE pg.user_id = ?
		ORDER BY g.tmdb_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorite genres: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite genre: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
