package main

import (
	"strings"
	"testing"
)

const sample = `tmdb_id,title,original_title,overview,release_date,vote_average,vote_count,popularity,original_language,adult,poster_path,backdrop_path,genre_ids,genres
550,Fight Club,Fight Club,"An insomniac, a soap maker.",1999-10-15,8.4,26280,61.4,en,false,/p.jpg,/b.jpg,18|53,Drama|Thriller
,Nameless,,,,,,,,,,,,
603,The Matrix,,,1999-03-30,8.2,,,en,false,,,,
`

func TestReadMovies(t *testing.T) {
	recs, err := readMovies(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("readMovies: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}

	fc := recs[0]
	if fc.ID != 550 || fc.VoteCount != 26280 || fc.Overview != "An insomniac, a soap maker." {
		t.Fatalf("fight club = %+v", fc)
	}
	if len(fc.Genres) != 2 || fc.Genres[1].ID != 53 || fc.Genres[1].Name != "Thriller" {
		t.Fatalf("genres = %+v", fc.Genres)
	}
	if recs[1].ID != 0 {
		t.Fatalf("missing id should stay 0, got %d", recs[1].ID)
	}
	if recs[2].Genres != nil || recs[2].VoteCount != 0 {
		t.Fatalf("matrix = %+v", recs[2])
	}

	if got := genresOf(recs); len(got) != 2 {
		t.Fatalf("distinct genres = %+v", got)
	}
}

func TestReadMoviesRejectsBadNumbers(t *testing.T) {
	in := "tmdb_id,title,vote_average\n550,Fight Club,high\n"
	if _, err := readMovies(strings.NewReader(in)); err == nil {
		t.Fatal("expected error for non-numeric vote_average")
	}
}
