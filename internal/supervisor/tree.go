// Package supervisor runs the long-lived services under a suture tree so a
// crash in a worker restarts that worker instead of taking down the API.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"movierec/pkg/logger"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64 // seconds
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree has two layers: api (HTTP and gRPC listeners) and jobs (queue
// workers and the scheduler).
type Tree struct {
	root *suture.Supervisor
	api  *suture.Supervisor
	jobs *suture.Supervisor
}

func NewTree(log *logger.Logger, cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "Supervisor")

	child := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := child
	rootSpec.EventHook = eventHook(log)

	t := &Tree{
		root: suture.New("movierec", rootSpec),
		api:  suture.New("api-layer", child),
		jobs: suture.New("jobs-layer", child),
	}
	t.root.Add(t.api)
	t.root.Add(t.jobs)
	return t
}

func eventHook(log *logger.Logger) suture.EventHook {
	return func(ev suture.Event) {
		kv := make([]interface{}, 0, 2*len(ev.Map()))
		for k, v := range ev.Map() {
			kv = append(kv, k, v)
		}
		log.Warn(ev.String(), kv...)
	}
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

func (t *Tree) AddJobService(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// Serve blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
