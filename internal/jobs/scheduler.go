package jobs

import (
	"context"
	"time"

	"movierec/internal/events"
	"movierec/pkg/logger"
)

type Schedule struct {
	Job      string
	Args     Args
	Interval time.Duration // 0 disables the entry
}

// Scheduler enqueues jobs at fixed intervals. Runs are picked up by the
// worker pool like any other queued run.
type Scheduler struct {
	queue     *Queue
	hub       *events.Hub
	schedules []Schedule
	log       *logger.Logger
}

func NewScheduler(queue *Queue, hub *events.Hub, schedules []Schedule, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		queue:     queue,
		hub:       hub,
		schedules: schedules,
		log:       log.With("component", "JobScheduler"),
	}
}

func (s *Scheduler) String() string { return "job-scheduler" }

func (s *Scheduler) Serve(ctx context.Context) error {
	type entry struct {
		Schedule
		ticker *time.Ticker
	}
	var active []entry
	for _, sc := range s.schedules {
		if sc.Interval <= 0 {
			continue
		}
		active = append(active, entry{Schedule: sc, ticker: time.NewTicker(sc.Interval)})
		s.log.Info("job scheduled", "job", sc.Job, "interval", sc.Interval)
	}
	defer func() {
		for _, e := range active {
			e.ticker.Stop()
		}
	}()

	fired := make(chan Schedule)
	for _, e := range active {
		go func(e entry) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-e.ticker.C:
					select {
					case fired <- e.Schedule:
					case <-ctx.Done():
						return
					}
				}
			}
		}(e)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sc := <-fired:
			s.Fire(ctx, sc)
		}
	}
}

// Fire enqueues one run of sc now.
func (s *Scheduler) Fire(ctx context.Context, sc Schedule) {
	run, err := s.queue.Enqueue(ctx, sc.Job, sc.Args)
	if err != nil {
		s.log.Error("scheduled enqueue failed", "job", sc.Job, "error", err)
		return
	}
	s.hub.Publish(events.JobEvent{Type: events.JobQueued, Job: run})
}
