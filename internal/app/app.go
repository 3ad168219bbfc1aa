// Package app assembles the shared object graph used by the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"movierec/internal/activity"
	"movierec/internal/cache"
	"movierec/internal/catalog"
	"movierec/internal/events"
	"movierec/internal/jobs"
	"movierec/internal/library"
	"movierec/internal/movies"
	"movierec/internal/profiles"
	"movierec/internal/recommend"
	"movierec/internal/reviews"
	"movierec/pkg/database"
	"movierec/pkg/logger"
	"movierec/pkg/utils"
)

type App struct {
	DB           *sql.DB
	Cache        cache.Store
	Catalog      catalog.Fetcher
	Movies       *movies.Repo
	Attributions *recommend.AttributionRepo
	Profiles     *profiles.Repo
	Library      *library.Repo
	Ratings      *reviews.Repo
	Activity     *activity.Repo
	Tracker      *activity.Tracker
	Service      *recommend.Service
	Registry     *jobs.Registry
	Queue        *jobs.Queue
	Hub          *events.Hub

	closers []func() error
}

// New opens and migrates the database, connects the cache backend and
// wires the catalog gateway into the services and job registry.
func New(ctx context.Context, cfg *utils.Config, log *logger.Logger) (*App, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a := &App{DB: db, closers: []func() error{db.Close}}

	if err := database.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:   cfg.Cache.RedisAddr,
			DB:     cfg.Cache.RedisDB,
			Prefix: cfg.Cache.Prefix,
		}, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.Cache = r
		a.closers = append(a.closers, r.Close)
	default:
		a.Cache = cache.NewMemory()
	}

	a.Catalog = catalog.NewCachedClient(catalog.NewClient(catalog.Config{
		BaseURL:       cfg.Catalog.BaseURL,
		APIKey:        cfg.Catalog.APIKey,
		Timeout:       cfg.Catalog.Timeout,
		RatePerSecond: cfg.Catalog.RatePerSecond,
		Burst:         cfg.Catalog.Burst,
	}, log), a.Cache, log)

	a.Movies = movies.NewRepo(db, log)
	a.Attributions = recommend.NewAttributionRepo(db)
	a.Profiles = profiles.NewRepo(db)
	a.Library = library.NewRepo(db)
	a.Ratings = reviews.NewRepo(db)
	a.Activity = activity.NewRepo(db)
	a.Tracker = activity.NewTracker(a.Activity, log)
	a.Service = recommend.NewService(a.Catalog, a.Movies, a.Attributions, log)
	a.Registry = jobs.NewDefaultRegistry(jobs.Deps{
		Service:      a.Service,
		Attributions: a.Attributions,
		Profiles:     a.Profiles,
		Log:          log,
	})
	a.Queue = jobs.NewQueue(db)
	a.Hub = events.NewHub(log)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
