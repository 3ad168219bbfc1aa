package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movierec/internal/activity"
	"movierec/internal/app"
	"movierec/internal/auth"
	"movierec/internal/events"
	"movierec/internal/grpcserver"
	"movierec/internal/jobs"
	"movierec/internal/library"
	"movierec/internal/movies"
	"movierec/internal/profiles"
	"movierec/internal/recommend"
	"movierec/internal/reviews"
	"movierec/internal/supervisor"
	"movierec/pkg/logger"
	"movierec/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer a.Close()

	tokens := auth.TokenService{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.JWTIssuer,
	}

	if cfg.Logging.Mode == "prod" || cfg.Logging.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies(cfg.Server.TrustedProxies)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		stats := a.Hub.Stats()
		if err := a.DB.PingContext(pctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": stats.WSClients,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	api.Use(auth.OptionalIdentity(tokens))
	movieHandler := movies.NewHandler(a.Movies)
	movieHandler.Tracker = a.Tracker
	movieHandler.RegisterRoutes(api)
	recHandler := recommend.NewHandler(a.Service, a.Attributions)
	recHandler.Tracker = a.Tracker
	recHandler.RegisterRoutes(api)
	ratings := reviews.NewHandler(a.Ratings, a.Tracker)
	ratings.RegisterPublicRoutes(api)

	me := api.Group("/users/me")
	me.Use(auth.RequireIdentity())
	profiles.NewHandler(a.Profiles).RegisterRoutes(me)
	library.NewHandler(a.Library, a.Tracker).RegisterRoutes(me)
	ratings.RegisterProtectedRoutes(me)
	activity.NewHandler(a.Activity).RegisterRoutes(me)

	admin := api.Group("/admin")
	admin.Use(auth.RequireStaff())
	jobs.NewHandler(a.Queue, a.Registry, a.Hub).RegisterRoutes(admin)
	admin.GET("/ws/jobs", events.WSHandler(a.Hub))

	tree := supervisor.NewTree(log, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(&http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, 10*time.Second))
	if cfg.Server.GRPCAddr != "" {
		tree.AddAPIService(grpcserver.NewServer(cfg.Server.GRPCAddr, a.DB, log))
	}

	if n, err := a.Queue.RequeueStale(ctx, jobs.StaleRunning); err != nil {
		log.Warn("requeue stale runs failed", "error", err)
	} else if n > 0 {
		log.Info("requeued stale runs", "count", n)
	}
	wcfg := jobs.WorkerConfig{PollInterval: cfg.Jobs.PollInterval, RetryDelay: cfg.Jobs.RetryDelay}
	for i := 1; i <= cfg.Jobs.Workers; i++ {
		tree.AddJobService(jobs.NewWorker(i, a.Queue, a.Registry, a.Hub, wcfg, log))
	}
	tree.AddJobService(jobs.NewScheduler(a.Queue, a.Hub, []jobs.Schedule{
		{Job: jobs.DailyFullSync, Interval: cfg.Jobs.DailySyncInterval},
		{Job: jobs.SyncTrending, Interval: cfg.Jobs.TrendingSyncInterval},
	}, log))

	log.Info("movierec api starting", "addr", cfg.Server.Addr, "grpc_addr", cfg.Server.GRPCAddr, "workers", cfg.Jobs.Workers)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error("supervisor stopped", "error", err)
	}
	log.Info("servers stopped")
}
