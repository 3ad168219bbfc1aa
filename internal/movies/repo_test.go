package movies

import (
	"context"
	"errors"
	"testing"

	"movierec/pkg/database/dbtest"
	"movierec/pkg/models"
)

func countRows(t *testing.T, r *Repo, table string) int {
	t.Helper()
	var n int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestUpsertMovieFightClubScenario(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	ctx := context.Background()

	rec := models.CatalogRecord{
		ID:          550,
		Title:       "Fight Club",
		ReleaseDate: "1999-10-15",
		Genres:      []models.GenreRecord{{ID: 18, Name: "Drama"}},
	}
	m, err := r.UpsertMovie(ctx, rec)
	if err != nil {
		t.Fatalf("UpsertMovie: %v", err)
	}
	if m.TMDBID != 550 || m.Title != "Fight Club" {
		t.Fatalf("unexpected movie: %+v", m)
	}
	if len(m.Genres) != 1 || m.Genres[0].TMDBID != 18 || m.Genres[0].Name != "Drama" {
		t.Fatalf("unexpected genres: %+v", m.Genres)
	}
	if m.ReleaseDate == nil || m.ReleaseDate.Format("2006-01-02") != "1999-10-15" {
		t.Fatalf("release date = %v", m.ReleaseDate)
	}

	rec.Title = "Fight Club (Remastered)"
	again, err := r.UpsertMovie(ctx, rec)
	if err != nil {
		t.Fatalf("second UpsertMovie: %v", err)
	}
	if again.ID != m.ID || again.TMDBID != 550 || again.Title != "Fight Club (Remastered)" {
		t.Fatalf("not updated in place: %+v", again)
	}
	if !again.CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", m.CreatedAt, again.CreatedAt)
	}
	if n := countRows(t, r, "movies"); n != 1 {
		t.Fatalf("movies = %d, want 1", n)
	}
	if n := countRows(t, r, "genres"); n != 1 {
		t.Fatalf("genres = %d, want 1", n)
	}
}

func TestUpsertMovieOverwritesEveryScalar(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	ctx := context.Background()

	first := models.CatalogRecord{
		ID:          603,
		Title:       "The Matrix",
		Overview:    "old",
		VoteAverage: 8.1,
		VoteCount:   100,
		Popularity:  50,
		PosterPath:  "/a.jpg",
		ReleaseDate: "1999-03-31",
		Adult:       true,
	}
	if _, err := r.UpsertMovie(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := models.CatalogRecord{ID: 603, Title: "The Matrix", VoteCount: 200}
	m, err := r.UpsertMovie(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if m.Overview != "" || m.VoteAverage != 0 || m.VoteCount != 200 || m.PosterPath != "" || m.Adult {
		t.Fatalf("scalars not overwritten: %+v", m)
	}
	if m.ReleaseDate != nil {
		t.Fatalf("release date should be cleared, got %v", m.ReleaseDate)
	}
}

func TestUpsertMovieInvalidDateStoredAsAbsent(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	for _, s := range []string{"", "1999", "15/10/1999", "not a date", "1999-13-40"} {
		m, err := r.UpsertMovie(context.Background(), models.CatalogRecord{ID: 1, Title: "x", ReleaseDate: s})
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if m.ReleaseDate != nil {
			t.Fatalf("%q: release date = %v, want nil", s, m.ReleaseDate)
		}
	}
}

func TestUpsertMovieGenreIDsUseKnownGenresOnly(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	ctx := context.Background()

	if err := r.UpsertCategories(ctx, []models.GenreRecord{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}}); err != nil {
		t.Fatal(err)
	}

	m, err := r.UpsertMovie(ctx, models.CatalogRecord{ID: 603, Title: "The Matrix", GenreIDs: []int64{28, 878, 9999}})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Genres) != 2 {
		t.Fatalf("genres = %+v, want Action and Science Fiction", m.Genres)
	}
	if n := countRows(t, r, "genres"); n != 2 {
		t.Fatalf("genre_ids must not create genres, have %d", n)
	}

	// replaced, not merged
	m, err = r.UpsertMovie(ctx, models.CatalogRecord{ID: 603, Title: "The Matrix", GenreIDs: []int64{28}})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Genres) != 1 || m.Genres[0].TMDBID != 28 {
		t.Fatalf("genres = %+v, want Action only", m.Genres)
	}

	// absent genre fields leave the set untouched
	m, err = r.UpsertMovie(ctx, models.CatalogRecord{ID: 603, Title: "The Matrix"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Genres) != 1 {
		t.Fatalf("genres cleared by record without genre data: %+v", m.Genres)
	}
}

func TestUpsertMovieRejectsMissingID(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	_, err := r.UpsertMovie(context.Background(), models.CatalogRecord{Title: "nameless"})

	var rerr *RecordError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want RecordError", err)
	}
}

func TestUpsertMoviesSkipsMalformedRecord(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	recs := []models.CatalogRecord{
		{ID: 1, Title: "one"},
		{ID: 0, Title: "broken"},
		{ID: 3, Title: "three"},
	}

	res := r.UpsertMovies(context.Background(), recs)
	if len(res.Movies) != 2 {
		t.Fatalf("movies = %d, want 2", len(res.Movies))
	}
	if res.Movies[0].TMDBID != 1 || res.Movies[1].TMDBID != 3 {
		t.Fatalf("order not preserved: %d, %d", res.Movies[0].TMDBID, res.Movies[1].TMDBID)
	}
	if len(res.Failures) != 1 || res.Failures[0].Index != 1 {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if n := countRows(t, r, "movies"); n != 2 {
		t.Fatalf("stored movies = %d, want 2", n)
	}
}

func TestUpsertCategoriesKeepsFirstName(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	ctx := context.Background()

	if err := r.UpsertCategories(ctx, []models.GenreRecord{{ID: 18, Name: "Drama"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertCategories(ctx, []models.GenreRecord{{ID: 18, Name: "Dramatic"}, {ID: 0, Name: "bogus"}}); err != nil {
		t.Fatal(err)
	}

	genres, err := r.ListGenres(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(genres) != 1 || genres[0].Name != "Drama" {
		t.Fatalf("genres = %+v", genres)
	}
}

func TestGetByExternalIDMissing(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	m, err := r.GetByExternalID(context.Background(), 42)
	if err != nil || m != nil {
		t.Fatalf("got %v, %v; want nil, nil", m, err)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	r := NewRepo(dbtest.Open(t), nil)
	ctx := context.Background()

	r.UpsertCategories(ctx, []models.GenreRecord{{ID: 18, Name: "Drama"}, {ID: 35, Name: "Comedy"}})
	r.UpsertMovies(ctx, []models.CatalogRecord{
		{ID: 1, Title: "Alpha", Popularity: 10, GenreIDs: []int64{18}},
		{ID: 2, Title: "Beta", Popularity: 30, GenreIDs: []int64{35}},
		{ID: 3, Title: "Gamma", Popularity: 20, GenreIDs: []int64{18, 35}},
		{ID: 4, Title: "Delta", Popularity: 99, Adult: true},
	})

	all, err := r.List(ctx, ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].TMDBID != 2 || all[1].TMDBID != 3 || all[2].TMDBID != 1 {
		t.Fatalf("unexpected popularity order: %+v", all)
	}

	drama, err := r.List(ctx, ListQuery{GenreID: 18, Sort: "title"})
	if err != nil {
		t.Fatal(err)
	}
	if len(drama) != 2 || drama[0].Title != "Alpha" || drama[1].Title != "Gamma" {
		t.Fatalf("unexpected drama list: %+v", drama)
	}
	if len(drama[1].Genres) != 2 {
		t.Fatalf("genres not attached: %+v", drama[1].Genres)
	}

	n, err := r.Count(ctx, ListQuery{Q: "ta", Adult: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 { // Beta, Delta
		t.Fatalf("count = %d, want 2", n)
	}
}
