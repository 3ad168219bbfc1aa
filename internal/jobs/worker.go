package jobs

import (
	"context"
	"fmt"
	"time"

	"movierec/internal/events"
	"movierec/internal/metrics"
	"movierec/pkg/logger"
	"movierec/pkg/models"
)

// StaleRunning is how long a run may sit in running before a restarted
// process treats it as abandoned.
const StaleRunning = 30 * time.Minute

type WorkerConfig struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// Worker drains the queue one run at a time. It implements suture.Service;
// start several for parallelism.
type Worker struct {
	id       int
	queue    *Queue
	registry *Registry
	runner   *Runner
	hub      *events.Hub
	cfg      WorkerConfig
	log      *logger.Logger
}

func NewWorker(id int, queue *Queue, reg *Registry, hub *events.Hub, cfg WorkerConfig, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		id:       id,
		queue:    queue,
		registry: reg,
		runner:   NewRunner(reg, log),
		hub:      hub,
		cfg:      cfg,
		log:      log.With("component", "JobWorker", "worker", id),
	}
}

func (w *Worker) String() string {
	return fmt.Sprintf("job-worker-%d", w.id)
}

// Serve leaves stale runs alone; sibling workers may still own them.
// Recovery happens once per process, before any worker starts.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for w.ProcessNext(ctx) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// ProcessNext claims and runs at most one due run. It reports whether a
// run was processed.
func (w *Worker) ProcessNext(ctx context.Context) bool {
	run, err := w.queue.ClaimNext(ctx)
	if err != nil {
		w.log.Warn("ClaimNext failed", "error", err)
		return false
	}
	if run == nil {
		return false
	}
	w.hub.Publish(events.JobEvent{Type: events.JobStarted, Job: run})

	maxAttempts := 1
	res, err := w.runner.Run(ctx, run.Name, Args(run.Args))
	if err != nil {
		w.log.Warn("No handler registered for job", "job", run.Name, "job_id", run.ID)
		res = Result{Status: "Error: " + err.Error()}
	} else if d, ok := w.registry.Get(run.Name); ok {
		maxAttempts = d.maxAttempts()
	}

	// record the outcome even if we are shutting down
	done, err := w.queue.Complete(context.WithoutCancel(ctx), run, res, maxAttempts, w.cfg.RetryDelay)
	if err != nil {
		w.log.Error("Complete failed", "job_id", run.ID, "error", err)
		return true
	}
	if done.State == models.JobQueued {
		metrics.JobRuns.WithLabelValues(run.Name, "retried").Inc()
		w.log.Info("job requeued", "job", run.Name, "job_id", run.ID, "attempts", done.Attempts, "run_after", done.RunAfter)
	}
	w.hub.Publish(events.JobEvent{Type: eventFor(done), Job: done})
	return true
}

func eventFor(run *models.JobRun) string {
	switch run.State {
	case models.JobSucceeded:
		return events.JobSucceeded
	case models.JobQueued:
		return events.JobRetrying
	default:
		return events.JobFailed
	}
}
