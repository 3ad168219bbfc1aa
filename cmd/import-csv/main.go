package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"movierec/internal/movies"
	"movierec/pkg/database"
	"movierec/pkg/logger"
	"movierec/pkg/models"
	"movierec/pkg/utils"
)

// Loads a movies CSV (as written by export-csv) through the same
// reconciliation path the catalog sync uses.
func main() {
	moviesIn := flag.String("movies", "data/movies.csv", "input CSV path for movies")
	flag.Parse()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", "error", err)
	}

	f, err := os.Open(*moviesIn)
	if err != nil {
		log.Fatal("open input failed", "error", err)
	}
	defer f.Close()

	recs, err := readMovies(f)
	if err != nil {
		log.Fatal("read movies failed", "path", *moviesIn, "error", err)
	}

	repo := movies.NewRepo(db, log)
	if err := repo.UpsertCategories(ctx, genresOf(recs)); err != nil {
		log.Fatal("import genres failed", "error", err)
	}
	res := repo.UpsertMovies(ctx, recs)
	log.Info("import done", "path", *moviesIn, "stored", len(res.Movies), "skipped", len(res.Failures))
}

func readMovies(in io.Reader) ([]models.CatalogRecord, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	var out []models.CatalogRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		get := func(key string) string { return valueAt(header, row, key) }
		// id 0 is kept so reconciliation reports the row as malformed
		id, _ := strconv.ParseInt(get("tmdb_id"), 10, 64)
		rec := models.CatalogRecord{
			ID:               id,
			Title:            get("title"),
			OriginalTitle:    get("original_title"),
			Overview:         get("overview"),
			ReleaseDate:      get("release_date"),
			OriginalLanguage: get("original_language"),
			Adult:            get("adult") == "true",
			PosterPath:       get("poster_path"),
			BackdropPath:     get("backdrop_path"),
		}
		if rec.VoteAverage, err = parseFloat(get("vote_average")); err != nil {
			return nil, fmt.Errorf("line %d: vote_average: %w", line, err)
		}
		if rec.Popularity, err = parseFloat(get("popularity")); err != nil {
			return nil, fmt.Errorf("line %d: popularity: %w", line, err)
		}
		if v := get("vote_count"); v != "" {
			if rec.VoteCount, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("line %d: vote_count: %w", line, err)
			}
		}
		if rec.Genres, err = parseGenres(get("genre_ids"), get("genres")); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseGenres pairs the |-separated ids with their names.
func parseGenres(ids, names string) ([]models.GenreRecord, error) {
	if ids == "" {
		return nil, nil
	}
	idParts := strings.Split(ids, "|")
	nameParts := strings.Split(names, "|")
	out := make([]models.GenreRecord, 0, len(idParts))
	for i, raw := range idParts {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("genre id %q: %w", raw, err)
		}
		g := models.GenreRecord{ID: id}
		if i < len(nameParts) {
			g.Name = strings.TrimSpace(nameParts[i])
		}
		out = append(out, g)
	}
	return out, nil
}

func genresOf(recs []models.CatalogRecord) []models.GenreRecord {
	seen := make(map[int64]bool)
	var out []models.GenreRecord
	for _, rec := range recs {
		for _, g := range rec.Genres {
			if !seen[g.ID] {
				seen[g.ID] = true
				out = append(out, g)
			}
		}
	}
	return out
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
