package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"movierec/internal/movies"
	"movierec/pkg/database/dbtest"
	"movierec/pkg/models"
)

// newTestRepo returns a repo over a database holding Fight Club and The
// Matrix, and their internal ids.
func newTestRepo(t *testing.T) (*Repo, *time.Time, []int64) {
	t.Helper()
	db := dbtest.Open(t)
	mr := movies.NewRepo(db, nil)
	var ids []int64
	for _, rec := range []models.CatalogRecord{{ID: 550, Title: "Fight Club"}, {ID: 603, Title: "The Matrix"}} {
		m, err := mr.UpsertMovie(context.Background(), rec)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	r := NewRepo(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }
	return r, &now, ids
}

func TestAddIsIdempotentPerList(t *testing.T) {
	r, now, ids := newTestRepo(t)
	ctx := context.Background()

	e, created, err := r.Add(ctx, "u-1", models.ListFavorites, ids[0])
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	if e.Movie.TMDBID != 550 || e.Movie.Title != "Fight Club" || e.List != models.ListFavorites {
		t.Fatalf("entry = %+v", e)
	}

	*now = now.Add(time.Hour)
	again, created, err := r.Add(ctx, "u-1", models.ListFavorites, ids[0])
	if err != nil || created {
		t.Fatalf("second add: created=%v err=%v", created, err)
	}
	if !again.AddedAt.Equal(e.AddedAt) {
		t.Fatalf("added_at moved from %v to %v", e.AddedAt, again.AddedAt)
	}

	// the same movie may sit on the other list independently
	if _, created, _ := r.Add(ctx, "u-1", models.ListWatchlist, ids[0]); !created {
		t.Fatal("watchlist add was treated as a duplicate")
	}
}

func TestAddRejectsUnknownMovieAndList(t *testing.T) {
	r, _, ids := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := r.Add(ctx, "u-1", models.ListFavorites, 9999); !errors.Is(err, ErrUnknownMovie) {
		t.Fatalf("err = %v, want ErrUnknownMovie", err)
	}
	if _, _, err := r.Add(ctx, "u-1", "seen", ids[0]); !errors.Is(err, ErrUnknownList) {
		t.Fatalf("err = %v, want ErrUnknownList", err)
	}
}

func TestListNewestFirstAndCounts(t *testing.T) {
	r, now, ids := newTestRepo(t)
	ctx := context.Background()

	r.Add(ctx, "u-1", models.ListWatchlist, ids[0])
	*now = now.Add(time.Minute)
	r.Add(ctx, "u-1", models.ListWatchlist, ids[1])
	r.Add(ctx, "u-2", models.ListWatchlist, ids[0])

	items, total, err := r.List(ctx, "u-1", models.ListWatchlist, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 || items[0].Movie.TMDBID != 603 {
		t.Fatalf("total = %d, items = %+v", total, items)
	}

	counts, err := r.Counts(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.ListWatchlist] != 2 || counts[models.ListFavorites] != 0 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestRemove(t *testing.T) {
	r, _, ids := newTestRepo(t)
	ctx := context.Background()
	r.Add(ctx, "u-1", models.ListFavorites, ids[0])

	if ok, _ := r.Remove(ctx, "u-2", models.ListFavorites, ids[0]); ok {
		t.Fatal("removed another user's entry")
	}
	if ok, err := r.Remove(ctx, "u-1", models.ListFavorites, ids[0]); err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if e, _ := r.Get(ctx, "u-1", models.ListFavorites, ids[0]); e != nil {
		t.Fatalf("entry survived: %+v", e)
	}
}
