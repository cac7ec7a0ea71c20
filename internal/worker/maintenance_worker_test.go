package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// brokenQueue fails every store-backed step
type brokenQueue struct{}

func (brokenQueue) Reclaim(context.Context) (int, error) { return 0, stderrors.New("db down") }
func (brokenQueue) CancelLowData(context.Context) (int, error) {
	return 0, stderrors.New("db down")
}
func (brokenQueue) PruneCooldown() int { return 2 }
func (brokenQueue) Stats(context.Context) (models.JobStats, error) {
	return models.JobStats{}, stderrors.New("db down")
}

func TestNewMaintenanceWorker(t *testing.T) {
	_, err := NewMaintenanceWorker(&Config{})
	assert.Error(t, err)

	_, err = NewMaintenanceWorker(&Config{Queue: brokenQueue{}, Interval: -time.Second})
	assert.Error(t, err)

	w, err := NewMaintenanceWorker(&Config{Queue: brokenQueue{}})
	require.NoError(t, err)
	assert.Equal(t, int(DefaultInterval.Seconds()), w.GetStatus().IntervalSeconds)
}

func TestRunOnce_ReclaimsExpiredAssignments(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	jobs := storage.NewMemoryJobStore()
	prices := storage.NewMemoryPriceStore()
	queue := job.NewCollectionQueue(jobs, prices, job.DefaultQueueConfig(), job.WithClock(clock.Now))

	created, err := queue.Expand(ctx, job.ExpandRequest{
		Make: "Peugeot", Model: "308", Year: 2019, Region: "Bretagne",
		Fuel: "diesel", Gearbox: "manuelle", Country: "FR",
	})
	require.NoError(t, err)
	require.Equal(t, 40, created)

	picked, err := queue.Pick(ctx, 3)
	require.NoError(t, err)
	require.Len(t, picked, 3)

	_, err = prices.UpsertReference(ctx, &models.PriceReference{
		PriceKey:     models.NewPriceKey("Peugeot", "308", 2019, "Bretagne", "diesel", "", "FR"),
		RefreshAfter: clock.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	w, err := NewMaintenanceWorker(&Config{Queue: queue, Prices: prices, Interval: time.Minute})
	require.NoError(t, err)
	w.now = clock.Now

	sweep := w.RunOnce(ctx)
	assert.Empty(t, sweep.Errors)
	assert.Equal(t, 0, sweep.Reclaimed)
	assert.Equal(t, 37, sweep.Jobs.Pending)
	assert.Equal(t, 3, sweep.Jobs.Assigned)
	assert.Equal(t, 1, sweep.Stale)

	clock.Advance(job.DefaultQueueConfig().AssignTimeout + time.Minute)
	sweep = w.RunOnce(ctx)
	assert.Empty(t, sweep.Errors)
	assert.Equal(t, 3, sweep.Reclaimed)
	assert.Equal(t, 40, sweep.Jobs.Pending)
	assert.Equal(t, 0, sweep.Jobs.Assigned)

	status := w.GetStatus()
	assert.Equal(t, 2, status.Sweeps)
	assert.Same(t, sweep, status.LastSweep)
}

func TestRunOnce_CancelsLowDataVehicles(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	queue := job.NewCollectionQueue(storage.NewMemoryJobStore(), nil, job.DefaultQueueConfig(), job.WithClock(clock.Now))

	_, err := queue.Expand(ctx, job.ExpandRequest{
		Make: "Dacia", Model: "Sandero", Year: 2021, Region: "Bretagne", Country: "FR",
	})
	require.NoError(t, err)

	// three jobs fail for good, which trips the breaker for the vehicle
	picked, err := queue.Pick(ctx, 3)
	require.NoError(t, err)
	require.Len(t, picked, 3)
	for _, p := range picked {
		for {
			j, err := queue.Complete(ctx, p.ID, false)
			require.NoError(t, err)
			if j.Status == types.JobFailed {
				break
			}
		}
	}

	w, err := NewMaintenanceWorker(&Config{Queue: queue})
	require.NoError(t, err)
	w.now = clock.Now

	sweep := w.RunOnce(ctx)
	assert.Empty(t, sweep.Errors)
	assert.Equal(t, 11, sweep.Cancelled)
	assert.Equal(t, 0, sweep.Jobs.Pending)
	assert.Equal(t, 0, sweep.Jobs.Assigned)
	assert.Equal(t, 14, sweep.Jobs.Failed)
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	w, err := NewMaintenanceWorker(&Config{Queue: brokenQueue{}})
	require.NoError(t, err)

	sweep := w.RunOnce(context.Background())
	assert.Len(t, sweep.Errors, 3)
	assert.Equal(t, 2, sweep.Pruned)
}

func TestStartStop(t *testing.T) {
	queue := job.NewCollectionQueue(storage.NewMemoryJobStore(), nil, job.DefaultQueueConfig())
	w, err := NewMaintenanceWorker(&Config{Queue: queue, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx))

	require.Eventually(t, func() bool { return w.GetStatus().Sweeps >= 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.GetStatus().Running)
	assert.Error(t, w.Stop(stopCtx))

	// a stopped worker can be started again
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop(stopCtx))
}
