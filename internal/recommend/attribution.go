package recommend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"movierec/pkg/models"
)

// AttributionRepo stores which strategy surfaced which movie to whom.
// Uniqueness of (user, movie, strategy) is enforced by the table.
type AttributionRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewAttributionRepo(db *sql.DB) *AttributionRepo {
	return &AttributionRepo{DB: db, Now: time.Now}
}

// CreateOrGet inserts the attribution unless one already exists for the
// tuple, and returns the stored row either way. created reports whether
// this call inserted it.
func (r *AttributionRepo) CreateOrGet(ctx context.Context, userID string, movieID int64, s models.Strategy, score float64) (*models.Attribution, bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO recommendation_history (user_id, movie_id, recommendation_type, score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, movie_id, recommendation_type) DO NOTHING
	`, userID, movieID, string(s), score, r.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert attribution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, movie_id, recommendation_type, score, clicked, created_at
		FROM recommendation_history
		WHERE user_id = ? AND movie_id = ? AND recommendation_type = ?
	`, userID, movieID, string(s))
	a, err := scanAttribution(row)
	if err != nil {
		return nil, false, fmt.Errorf("scan attribution: %w", err)
	}
	return a, n > 0, nil
}

// DeleteOlderThan removes every attribution created strictly before cutoff.
func (r *AttributionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM recommendation_history WHERE created_at < ?
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete attributions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListForUser returns the newest attributions first. An empty strategy
// matches all.
func (r *AttributionRepo) ListForUser(ctx context.Context, userID string, s models.Strategy, limit, offset int) ([]models.Attribution, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, movie_id, recommendation_type, score, clicked, created_at
		FROM recommendation_history
		WHERE user_id = ? AND (? = '' OR recommendation_type = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, string(s), string(s), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list attributions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Attribution, 0, limit)
	for rows.Next() {
		a, err := scanAttribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// MarkClicked flags an attribution owned by userID. It reports false when
// no such attribution exists.
func (r *AttributionRepo) MarkClicked(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE recommendation_history SET clicked = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark clicked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttribution(s scanner) (*models.Attribution, error) {
	var (
		a        models.Attribution
		strategy string
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.MovieID, &strategy, &a.Score, &a.Clicked, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Strategy = models.Strategy(strategy)
	return &a, nil
}
