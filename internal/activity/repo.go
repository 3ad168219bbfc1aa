// Package activity is the per-user audit trail: views, searches, list and
// rating changes. Rows are only ever appended.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"movierec/pkg/models"
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

func (r *Repo) Record(ctx context.Context, a models.Activity) (*models.Activity, error) {
	if strings.TrimSpace(a.UserID) == "" || strings.TrimSpace(a.Type) == "" {
		return nil, fmt.Errorf("record activity: user id and type required")
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode activity metadata: %w", err)
	}

	var movieID sql.NullInt64
	if a.MovieID > 0 {
		movieID = sql.NullInt64{Int64: a.MovieID, Valid: true}
	}
	a.Timestamp = r.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_activity (user_id, activity_type, movie_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.UserID, a.Type, movieID, string(meta), a.IPAddress, a.UserAgent, a.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert activity id: %w", err)
	}
	return &a, nil
}

// ListForUser returns the user's activity newest first. typ filters by
// activity type when not empty.
func (r *Repo) ListForUser(ctx context.Context, userID, typ string, limit, offset int) ([]models.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := `user_id = ?`
	args := []any{userID}
	if typ != "" {
		where += ` AND activity_type = ?`
		args = append(args, typ)
	}
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, activity_type, movie_id, metadata, ip_address, user_agent, created_at
		FROM user_activity
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := make([]models.Activity, 0, limit)
	for rows.Next() {
		var (
			a       models.Activity
			movieID sql.NullInt64
			meta    string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &movieID, &meta, &a.IPAddress, &a.UserAgent, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		a.MovieID = movieID.Int64
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
