// Package worker runs the periodic upkeep of the collection job queue.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// DefaultInterval is the sweep period when none is configured
const DefaultInterval = time.Minute

// Queue is the part of job.CollectionQueue the worker drives
type Queue interface {
	Reclaim(ctx context.Context) (int, error)
	CancelLowData(ctx context.Context) (int, error)
	PruneCooldown() int
	Stats(ctx context.Context) (models.JobStats, error)
}

// StaleCounter counts price references past their refresh window
type StaleCounter interface {
	CountStale(ctx context.Context, now time.Time) (int, error)
}

// Config holds configuration for a maintenance worker
type Config struct {
	Queue    Queue
	Prices   StaleCounter // optional
	Interval time.Duration
}

// Sweep is the result of one maintenance pass
type Sweep struct {
	At        time.Time       `json:"at"`
	Reclaimed int             `json:"reclaimed"`
	Cancelled int             `json:"cancelled"`
	Pruned    int             `json:"pruned"`
	Stale     int             `json:"stale"`
	Jobs      models.JobStats `json:"jobs"`
	Errors    []string        `json:"errors,omitempty"`
}

// Status describes a running worker
type Status struct {
	Running         bool   `json:"running"`
	IntervalSeconds int    `json:"intervalSeconds"`
	Sweeps          int    `json:"sweeps"`
	LastSweep       *Sweep `json:"lastSweep,omitempty"`
}

// MaintenanceWorker reclaims expired assignments, applies the low-data
// breaker and refreshes the queue gauges on a fixed interval. Pick does the
// same reclaim and cancel work, so the worker only matters when collectors
// are idle.
type MaintenanceWorker struct {
	queue    Queue
	prices   StaleCounter
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger

	mu        sync.RWMutex
	running   bool
	sweeps    int
	lastSweep *Sweep
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewMaintenanceWorker creates a new maintenance worker
func NewMaintenanceWorker(cfg *Config) (*MaintenanceWorker, error) {
	if cfg == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}

	return &MaintenanceWorker{
		queue:    cfg.Queue,
		prices:   cfg.Prices,
		interval: interval,
		now:      time.Now,
		logger:   logging.GetGlobalLogger().WithComponent("maintenance-worker"),
	}, nil
}

// Start runs one sweep immediately, then one per interval until ctx ends or
// Stop is called
func (w *MaintenanceWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("maintenance worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.WithField("interval", w.interval.String()).Info("Starting maintenance worker")
	go w.loop(ctx, stopCh, doneCh)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish
func (w *MaintenanceWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("maintenance worker is not running")
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.Info("Maintenance worker stopped")
	case <-ctx.Done():
		w.logger.Warn("Maintenance worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *MaintenanceWorker) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Context cancelled, leaving maintenance loop")
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. A failing step is logged and recorded in
// the result; the remaining steps still run.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) *Sweep {
	now := w.now()
	sweep := &Sweep{At: now}
	fail := func(step string, err error) {
		sweep.Errors = append(sweep.Errors, fmt.Sprintf("%s: %v", step, err))
		w.logger.WithError(err).WithField("step", step).Warn("Maintenance step failed")
	}

	if n, err := w.queue.Reclaim(ctx); err != nil {
		fail("reclaim", err)
	} else {
		sweep.Reclaimed = n
	}

	if n, err := w.queue.CancelLowData(ctx); err != nil {
		fail("cancel_low_data", err)
	} else {
		sweep.Cancelled = n
	}

	sweep.Pruned = w.queue.PruneCooldown()

	if stats, err := w.queue.Stats(ctx); err != nil {
		fail("stats", err)
	} else {
		sweep.Jobs = stats
		metrics.JobsByStatus.WithLabelValues(string(types.JobPending)).Set(float64(stats.Pending))
		metrics.JobsByStatus.WithLabelValues(string(types.JobAssigned)).Set(float64(stats.Assigned))
		metrics.JobsByStatus.WithLabelValues(string(types.JobDone)).Set(float64(stats.Done))
		metrics.JobsByStatus.WithLabelValues(string(types.JobFailed)).Set(float64(stats.Failed))
	}

	if w.prices != nil {
		if n, err := w.prices.CountStale(ctx, now); err != nil {
			fail("count_stale", err)
		} else {
			sweep.Stale = n
			metrics.StaleReferences.Set(float64(n))
		}
	}

	w.logger.WithFields(map[string]interface{}{
		"reclaimed": sweep.Reclaimed,
		"cancelled": sweep.Cancelled,
		"pruned":    sweep.Pruned,
		"stale":     sweep.Stale,
		"pending":   sweep.Jobs.Pending,
	}).Debug("Maintenance sweep finished")

	w.mu.Lock()
	w.sweeps++
	w.lastSweep = sweep
	w.mu.Unlock()
	return sweep
}

// GetStatus returns the current worker status
func (w *MaintenanceWorker) GetStatus() *Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &Status{
		Running:         w.running,
		IntervalSeconds: int(w.interval.Seconds()),
		Sweeps:          w.sweeps,
		LastSweep:       w.lastSweep,
	}
}
