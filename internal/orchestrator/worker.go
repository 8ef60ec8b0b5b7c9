package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

const (
	defaultPollInterval = 5 * time.Second
	evictionInterval    = 1 * time.Minute
)

// Worker polls for queued runs and executes them. A single worker claims one
// run per tick; concurrent workers are safe because the claim is atomic.
type Worker struct {
	runs     RunStore
	executor *Executor

	pollInterval time.Duration
	runTimeout   time.Duration

	telemetry *telemetry.Provider
	log       logger.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewWorker creates a Worker.
func NewWorker(runs RunStore, executor *Executor, pollInterval, runTimeout time.Duration, tel *telemetry.Provider, log logger.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{
		runs:         runs,
		executor:     executor,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
		telemetry:    tel,
		log:          log,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling and eviction loops.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.wg.Add(1)
	go w.runEviction(ctx)

	w.log.Info("run worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Duration("run_timeout", w.runTimeout))
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.log.Info("run worker stopped")
}

// IsRunning returns whether the worker is currently running.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.processOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processOnce claims and executes queued runs until the queue is drained.
func (w *Worker) processOnce(ctx context.Context) {
	for {
		run, err := w.runs.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.log.Error("failed to claim run", logger.Error(err))
			}
			return
		}

		w.telemetry.Metrics.RunsClaimed.Inc()
		w.log.Info("claimed run",
			logger.String("run_id", run.ID),
			logger.String("hostname", run.Hostname))
		w.executor.Execute(ctx, run)

		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

// runEviction periodically finalizes runs stuck past the wall-clock ceiling.
// This protects the queue from runs hung on a slow provider.
func (w *Worker) runEviction(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted, err := w.runs.EvictTimedOut(ctx, w.runTimeout)
			if err != nil {
				w.log.Error("run eviction sweep failed", logger.Error(err))
			} else if evicted > 0 {
				w.telemetry.Metrics.RunsEvicted.Add(float64(evicted))
				w.log.Warn("evicted timed out runs", logger.Int64("evicted", evicted))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
