// Package jobs runs the catalog refresh and housekeeping jobs, either
// directly by name or through a durable queue drained by a worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"movierec/internal/metrics"
	"movierec/pkg/logger"
)

var ErrUnknownJob = errors.New("unknown job")

type Args map[string]string

// Result is what every job reports. Status is meant for humans; OK drives
// retries.
type Result struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

type Func func(ctx context.Context, args Args) Result

type Definition struct {
	Name        string
	MaxAttempts int // 0 means 1
	Run         Func
}

type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("job name is empty")
	}
	if d.Run == nil {
		return fmt.Errorf("job %s has no func", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("job already registered: %s", d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d Definition) maxAttempts() int {
	if d.MaxAttempts <= 0 {
		return 1
	}
	return d.MaxAttempts
}

// Runner invokes registered jobs synchronously.
type Runner struct {
	registry *Registry
	log      *logger.Logger
}

func NewRunner(reg *Registry, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{registry: reg, log: log.With("component", "JobRunner")}
}

// Run executes one job. The only error is ErrUnknownJob; everything the
// job itself hits, panics included, comes back as a failed Result.
func (r *Runner) Run(ctx context.Context, name string, args Args) (res Result, err error) {
	d, ok := r.registry.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	start := time.Now()
	log := r.log.With("job", name)
	log.Info("job started", "args", args)

	defer func() {
		if p := recover(); p != nil {
			log.Error("job panic", "panic", p, "stack", string(debug.Stack()))
			res = Result{Status: fmt.Sprintf("Error: panic: %v", p)}
		}
		outcome := "ok"
		if !res.OK {
			outcome = "failed"
		}
		metrics.JobRuns.WithLabelValues(name, outcome).Inc()
		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		log.Info("job finished", "ok", res.OK, "status", res.Status, "duration", time.Since(start))
	}()

	if args == nil {
		args = Args{}
	}
	return d.Run(ctx, args), nil
}
