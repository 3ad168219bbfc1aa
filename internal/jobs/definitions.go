package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"movierec/internal/catalog"
	"movierec/internal/profiles"
	"movierec/internal/recommend"
	"movierec/pkg/logger"
)

const (
	SyncTrending        = "sync-trending"
	SyncPopular         = "sync-popular"
	SyncTopRated        = "sync-top-rated"
	SyncUpcoming        = "sync-upcoming"
	SyncGenres          = "sync-genres"
	UpdateMovieDetail   = "update-single-movie-detail"
	CleanupAttributions = "cleanup-stale-attributions"
	DailyFullSync       = "daily-full-sync"
	GenerateUserRecs    = "generate-user-recommendations"
)

const (
	defaultMaxAgeDays     = 30
	defaultSyncAttempts   = 3
	defaultUpdateAttempts = 2
)

// Deps are the collaborators the built-in jobs need.
type Deps struct {
	Service      *recommend.Service
	Attributions *recommend.AttributionRepo
	Profiles     *profiles.Repo
	Now          func() time.Time
	Log          *logger.Logger
}

type listSync struct {
	name  string
	list  string
	label string
	pages int
}

var listSyncs = []listSync{
	{SyncTrending, recommend.ListTrending, "trending", 1},
	{SyncPopular, recommend.ListPopular, "popular", 5},
	{SyncTopRated, recommend.ListTopRated, "top rated", 5},
	{SyncUpcoming, recommend.ListUpcoming, "upcoming", 3},
}

// NewDefaultRegistry wires every built-in job.
func NewDefaultRegistry(d Deps) *Registry {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	reg := NewRegistry()
	must := func(def Definition) {
		if err := reg.Register(def); err != nil {
			panic(err)
		}
	}

	for _, ls := range listSyncs {
		must(Definition{Name: ls.name, MaxAttempts: defaultSyncAttempts, Run: syncPages(d.Service, ls)})
	}
	must(Definition{Name: SyncGenres, MaxAttempts: defaultSyncAttempts, Run: syncGenres(d.Service)})
	must(Definition{Name: UpdateMovieDetail, MaxAttempts: defaultUpdateAttempts, Run: updateMovieDetail(d.Service)})
	must(Definition{Name: CleanupAttributions, MaxAttempts: defaultSyncAttempts, Run: cleanupAttributions(d.Attributions, d.Now)})
	must(Definition{Name: GenerateUserRecs, MaxAttempts: defaultUpdateAttempts, Run: generateUserRecs(d.Service, d.Profiles)})
	// the daily sequence only reruns on its next schedule
	must(Definition{Name: DailyFullSync, MaxAttempts: 1, Run: dailyFullSync(reg, d.Log)})

	return reg
}

// syncPages stops at the first failed or empty page. Only a failure on
// the first page fails the job.
func syncPages(svc *recommend.Service, ls listSync) Func {
	return func(ctx context.Context, _ Args) Result {
		total := 0
		for page := 1; page <= ls.pages; page++ {
			ps, ok := svc.SyncList(ctx, ls.list, page)
			if !ok {
				if page == 1 {
					return Result{Status: fmt.Sprintf("Failed to fetch %s movies", ls.label)}
				}
				break
			}
			if ps.Empty {
				break
			}
			total += ps.Synced
		}
		return Result{Status: fmt.Sprintf("Synced %d %s movies", total, ls.label), OK: true}
	}
}

func syncGenres(svc *recommend.Service) Func {
	return func(ctx context.Context, _ Args) Result {
		if svc.SyncCategories(ctx) {
			return Result{Status: "Genres synced successfully", OK: true}
		}
		return Result{Status: "Failed to sync genres"}
	}
}

func updateMovieDetail(svc *recommend.Service) Func {
	return func(ctx context.Context, args Args) Result {
		id, err := strconv.ParseInt(strings.TrimSpace(args["movie_id"]), 10, 64)
		if err != nil || id <= 0 {
			return Result{Status: fmt.Sprintf("Error: invalid movie_id %q", args["movie_id"])}
		}
		m, err := svc.RefreshMovie(ctx, id)
		switch {
		case err == nil:
			return Result{Status: "Updated movie: " + m.Title, OK: true}
		case errors.Is(err, recommend.ErrNotFound):
			return Result{Status: fmt.Sprintf("Failed to fetch details for movie %d", id)}
		default:
			if _, isCatalog := catalog.AsFailure(err); isCatalog {
				return Result{Status: fmt.Sprintf("Failed to fetch details for movie %d", id)}
			}
			return Result{Status: fmt.Sprintf("Failed to sync movie %d", id)}
		}
	}
}

func cleanupAttributions(repo *recommend.AttributionRepo, now func() time.Time) Func {
	return func(ctx context.Context, args Args) Result {
		days := defaultMaxAgeDays
		if s := strings.TrimSpace(args["max_age_days"]); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return Result{Status: fmt.Sprintf("Error: invalid max_age_days %q", s)}
			}
			days = n
		}
		cutoff := now().AddDate(0, 0, -days)
		n, err := repo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return Result{Status: "Error: " + err.Error()}
		}
		return Result{Status: fmt.Sprintf("Cleaned up %d old recommendation entries", n), OK: true}
	}
}

func generateUserRecs(svc *recommend.Service, profs *profiles.Repo) Func {
	return func(ctx context.Context, args Args) Result {
		userID := strings.TrimSpace(args["user_id"])
		if userID == "" {
			return Result{Status: "Error: user_id is required"}
		}
		var genreIDs []int64
		if profs != nil {
			p, err := profs.Get(ctx, userID)
			if err != nil {
				return Result{Status: "Error: " + err.Error()}
			}
			if p != nil {
				genreIDs = p.FavoriteGenres
			}
		}
		n, err := svc.GenerateForUser(ctx, userID, genreIDs)
		if err != nil {
			return Result{Status: "Error: " + err.Error()}
		}
		return Result{Status: fmt.Sprintf("Generated %d recommendations for user %s", n, userID), OK: true}
	}
}

var dailySteps = []struct {
	label string
	job   string
}{
	{"Genres", SyncGenres},
	{"Trending", SyncTrending},
	{"Popular", SyncPopular},
	{"Top Rated", SyncTopRated},
	{"Upcoming", SyncUpcoming},
	{"Cleanup", CleanupAttributions},
}

// dailyFullSync runs each step in order regardless of earlier failures.
func dailyFullSync(reg *Registry, log *logger.Logger) Func {
	runner := NewRunner(reg, log)
	return func(ctx context.Context, _ Args) Result {
		parts := make([]string, 0, len(dailySteps))
		ok := true
		for _, step := range dailySteps {
			res, err := runner.Run(ctx, step.job, nil)
			if err != nil {
				res = Result{Status: "Error: " + err.Error()}
			}
			ok = ok && res.OK
			parts = append(parts, step.label+": "+res.Status)
		}
		return Result{Status: "Daily sync completed: " + strings.Join(parts, "; "), OK: ok}
	}
}
