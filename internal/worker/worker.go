// Package worker implements the bounded-concurrency runtime: a pool of N
// worker slots, an in-process active-run set, the per-run claim/heartbeat
// state machine (delegated to persistence.RunStore), and the startup
// crash-recovery sweep.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docingest/internal/persistence"
	"docingest/internal/pipeline"
)

var ErrBusy = errors.New("worker: busy")

// Runtime accepts jobs and runs the pipeline under bounded concurrency.
type Runtime struct {
	orchestrator   *pipeline.Orchestrator
	runs           persistence.RunStore
	staleThreshold time.Duration
	logger         *logrus.Logger

	sem chan struct{}

	mu     sync.Mutex
	active map[string]struct{}
}

func New(orchestrator *pipeline.Orchestrator, runs persistence.RunStore, maxConcurrent int, staleThreshold time.Duration, logger *logrus.Logger) *Runtime {
	return &Runtime{
		orchestrator:   orchestrator,
		runs:           runs,
		staleThreshold: staleThreshold,
		logger:         logger,
		sem:            make(chan struct{}, maxConcurrent),
		active:         map[string]struct{}{},
	}
}

// Submit admits job to the pool. It returns ErrBusy if all slots are
// occupied, the backpressure signal the RPC layer maps to 503; it is a
// no-op (not an error) if the run id is already in flight.
func (r *Runtime) Submit(job pipeline.Job) error {
	r.mu.Lock()
	if _, inFlight := r.active[job.RunID]; inFlight {
		r.mu.Unlock()
		return nil
	}
	select {
	case r.sem <- struct{}{}:
	default:
		r.mu.Unlock()
		return ErrBusy
	}
	r.active[job.RunID] = struct{}{}
	r.mu.Unlock()

	go r.run(job)
	return nil
}

func (r *Runtime) run(job pipeline.Job) {
	defer r.release(job.RunID)

	ctx := context.Background()
	run, ok, err := r.runs.Claim(ctx, job.RunID, r.staleThreshold)
	if err != nil {
		r.logger.WithError(err).WithField("run_id", job.RunID).Error("claim failed")
		return
	}
	if !ok {
		r.logger.WithField("run_id", job.RunID).WithField("status", run.Status).Info("claim skipped")
		return
	}

	if err := r.orchestrator.Process(ctx, job); err != nil {
		r.logger.WithError(err).WithField("run_id", job.RunID).Error("run failed")
		return
	}
	r.logger.WithField("run_id", job.RunID).WithField("tenant", job.Tenant).Info("run succeeded")
}

func (r *Runtime) release(runID string) {
	r.mu.Lock()
	delete(r.active, runID)
	r.mu.Unlock()
	<-r.sem
}

// ActiveJobs reports the number of in-flight jobs, for the health endpoint.
func (r *Runtime) ActiveJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runtime) MaxConcurrent() int { return cap(r.sem) }

// SweepStale runs the startup crash-recovery sweep.
func (r *Runtime) SweepStale(ctx context.Context, threshold time.Duration) (int, error) {
	return r.runs.SweepStale(ctx, threshold)
}
