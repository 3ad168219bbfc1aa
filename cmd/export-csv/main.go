package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"movierec/pkg/database"
	"movierec/pkg/logger"
	"movierec/pkg/utils"
)

func main() {
	var (
		moviesOut  = flag.String("movies", "data/movies.csv", "output CSV path for movies")
		historyOut = flag.String("history", "data/recommendation_history.csv", "output CSV path for recommendation history")
	)
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal("db migrate failed", "error", err)
	}

	if err := exportMovies(ctx, db, *moviesOut); err != nil {
		log.Fatal("export movies failed", "error", err)
	}
	if err := exportHistory(ctx, db, *historyOut); err != nil {
		log.Fatal("export history failed", "error", err)
	}
	log.Info("export done", "movies", *moviesOut, "history", *historyOut)
}

// movieColumns is also the header import-csv reads.
var movieColumns = []string{
	"tmdb_id", "title", "original_title", "overview", "release_date",
	"vote_average", "vote_count", "popularity", "original_language", "adult",
	"poster_path", "backdrop_path", "genre_ids", "genres",
}

func createCSV(outPath string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, csv.NewWriter(f), nil
}

func exportMovies(ctx context.Context, db *sql.DB, outPath string) error {
	f, w, err := createCSV(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write(movieColumns); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT m.tmdb_id, m.title, m.original_title, m.overview, m.release_date,
		       m.vote_average, m.vote_count, m.popularity, m.original_language, m.adult,
		       m.poster_path, m.backdrop_path,
		       COALESCE(GROUP_CONCAT(g.tmdb_id, '|'), ''),
		       COALESCE(GROUP_CONCAT(g.name, '|'), '')
		FROM movies m
		LEFT JOIN movie_genres mg ON mg.movie_id = m.id
		LEFT JOIN genres g ON g.id = mg.genre_id
		GROUP BY m.id
		ORDER BY m.popularity DESC, m.id ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tmdbID        int64
			title         string
			originalTitle string
			overview      string
			releaseDate   sql.NullString
			voteAverage   float64
			voteCount     int64
			popularity    float64
			language      string
			adult         bool
			posterPath    string
			backdropPath  string
			genreIDs      string
			genres        string
		)
		if err := rows.Scan(&tmdbID, &title, &originalTitle, &overview, &releaseDate,
			&voteAverage, &voteCount, &popularity, &language, &adult,
			&posterPath, &backdropPath, &genreIDs, &genres); err != nil {
			return err
		}
		if err := w.Write([]string{
			strconv.FormatInt(tmdbID, 10),
			title,
			originalTitle,
			overview,
			releaseDate.String,
			strconv.FormatFloat(voteAverage, 'f', -1, 64),
			strconv.FormatInt(voteCount, 10),
			strconv.FormatFloat(popularity, 'f', -1, 64),
			language,
			strconv.FormatBool(adult),
			posterPath,
			backdropPath,
			genreIDs,
			genres,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportHistory(ctx context.Context, db *sql.DB, outPath string) error {
	f, w, err := createCSV(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write([]string{"user_id", "tmdb_id", "recommendation_type", "score", "clicked", "created_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT h.user_id, m.tmdb_id, h.recommendation_type, h.score, h.clicked, h.created_at
		FROM recommendation_history h
		JOIN movies m ON m.id = h.movie_id
		ORDER BY h.created_at DESC, h.id ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID    string
			tmdbID    int64
			strategy  string
			score     float64
			clicked   bool
			createdAt time.Time
		)
		if err := rows.Scan(&userID, &tmdbID, &strategy, &score, &clicked, &createdAt); err != nil {
			return err
		}
		if err := w.Write([]string{
			userID,
			strconv.FormatInt(tmdbID, 10),
			strategy,
			strconv.FormatFloat(score, 'f', -1, 64),
			strconv.FormatBool(clicked),
			createdAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
