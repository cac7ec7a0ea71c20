package job

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

// QueueConfig holds the collection queue tunables
type QueueConfig struct {
	MaxAttempts      int
	AssignTimeout    time.Duration
	RecycleAfter     time.Duration
	LowDataThreshold int
	LowDataWindow    time.Duration
}

// DefaultQueueConfig returns the production defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxAttempts:      3,
		AssignTimeout:    30 * time.Minute,
		RecycleAfter:     24 * time.Hour,
		LowDataThreshold: 3,
		LowDataWindow:    7 * 24 * time.Hour,
	}
}

// ExpandRequest is the vehicle an expansion is centered on
type ExpandRequest struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Region    string `json:"region"`
	Fuel      string `json:"fuel,omitempty"`
	Gearbox   string `json:"gearbox,omitempty"`
	PowerBand string `json:"powerBand,omitempty"`
	Country   string `json:"country"`
}

// Key returns the normalized job key of the request itself
func (r ExpandRequest) Key() models.JobKey {
	return models.NewJobKey(r.Make, r.Model, r.Year, r.Region, r.Fuel, r.Gearbox, r.PowerBand, r.Country)
}

// Option customizes a CollectionQueue
type Option func(*CollectionQueue)

// WithCooldown replaces the in-memory expansion cooldown
func WithCooldown(c Cooldown) Option {
	return func(q *CollectionQueue) { q.cooldown = c }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(q *CollectionQueue) { q.now = now }
}

// CollectionQueue expands, hands out and settles collection jobs
type CollectionQueue struct {
	store    JobStore
	prices   ReferenceLookup
	cooldown Cooldown
	cfg      QueueConfig
	now      func() time.Time
	logger   *logging.Logger
}

// NewCollectionQueue creates a queue over store. prices may be nil, in which
// case no candidate is considered fresh.
func NewCollectionQueue(store JobStore, prices ReferenceLookup, cfg QueueConfig, opts ...Option) *CollectionQueue {
	def := DefaultQueueConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AssignTimeout <= 0 {
		cfg.AssignTimeout = def.AssignTimeout
	}
	if cfg.LowDataThreshold <= 0 {
		cfg.LowDataThreshold = def.LowDataThreshold
	}
	if cfg.LowDataWindow <= 0 {
		cfg.LowDataWindow = def.LowDataWindow
	}

	q := &CollectionQueue{
		store:  store,
		prices: prices,
		cfg:    cfg,
		now:    time.Now,
		logger: logging.GetGlobalLogger().WithComponent("collection-queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.cooldown == nil {
		q.cooldown = NewMemoryCooldown(10*time.Minute, 10000)
	}
	return q
}

func cooldownKey(k models.JobKey) string {
	return k.Make + "|" + k.Model + "|" + strconv.Itoa(k.Year) + "|" + k.Country
}

type candidate struct {
	key      models.JobKey
	priority types.JobPriority
}

// candidates lists every job an expansion around k may create, highest
// priority first, without duplicates
func candidates(k models.JobKey) []candidate {
	regions := vehicle.Regions(k.Country)
	if len(regions) == 0 && k.Region != "" {
		regions = []string{k.Region}
	}

	var out []candidate
	seen := make(map[string]bool)
	add := func(c models.JobKey, p types.JobPriority) {
		s := c.String()
		if seen[s] || c == k {
			return
		}
		seen[s] = true
		out = append(out, candidate{key: c, priority: p})
	}

	for _, r := range vehicle.OtherRegions(k.Country, k.Region) {
		c := k
		c.Region = r
		add(c, types.PriorityOtherRegion)
	}

	if fuel, ok := vehicle.OppositeFuel(k.Fuel); ok {
		for _, r := range regions {
			c := k
			c.Region, c.Fuel = r, fuel
			add(c, types.PriorityFuelVariant)
		}
	}

	if gearbox, ok := vehicle.OppositeGearbox(k.Gearbox); ok {
		for _, r := range regions {
			c := k
			c.Region, c.Gearbox = r, gearbox
			add(c, types.PriorityGearboxVariant)
		}
	}

	for _, year := range []int{k.Year - 1, k.Year + 1} {
		c := k
		c.Year = year
		add(c, types.PriorityAdjacentYear)
	}

	return out
}

// Expand creates the collection jobs around one analyzed vehicle and returns
// how many were created or recycled. A second call for the same
// make/model/year/country inside the cooldown window returns 0 without
// touching the store, and so does a vehicle the low-data breaker holds.
// One failed insert never stops the others.
func (q *CollectionQueue) Expand(ctx context.Context, req ExpandRequest) (int, error) {
	key := req.Key()
	if key.Make == "" || key.Model == "" {
		return 0, errors.NewValidationError("make", "make and model are required")
	}
	if key.Year <= 0 {
		return 0, errors.NewValidationError("year", "year is required")
	}

	logger := q.logger.WithFields(map[string]interface{}{
		"make":    key.Make,
		"model":   key.Model,
		"year":    key.Year,
		"country": key.Country,
	})

	ck := cooldownKey(key)
	acquired, err := q.cooldown.Acquire(ctx, ck)
	if err != nil {
		logger.WithError(err).Warn("Expansion cooldown unavailable, expanding anyway")
	} else if !acquired {
		logger.Debug("Expansion skipped: cooldown active")
		return 0, nil
	}

	now := q.now()
	policy := models.CreatePolicy{
		RecycleBefore: now.Add(-q.cfg.RecycleAfter),
		FailedSince:   now.Add(-q.cfg.LowDataWindow),
		FailureLimit:  q.cfg.LowDataThreshold,
	}

	failures, err := q.store.RecentFailures(ctx, key, policy.FailedSince)
	if err != nil {
		logger.WithError(err).Warn("Failed to count recent failures, relying on the store guard")
	} else if policy.Blocks(failures) {
		logger.WithField("failures", failures).Info("Expansion skipped: vehicle has too little data")
		return 0, nil
	}

	var (
		created, fresh, existing, failed int
		lastErr                          error
	)
	for _, c := range candidates(key) {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		if q.isFresh(ctx, c.key, now) {
			fresh++
			continue
		}

		job := &models.CollectionJob{
			JobKey:    c.key,
			Priority:  c.priority,
			CreatedAt: now,
		}
		ok, err := q.store.TryCreate(ctx, job, policy)
		if err != nil {
			failed++
			lastErr = err
			logger.WithError(err).WithField("candidate", c.key.String()).Warn("Failed to create collection job")
			continue
		}
		if !ok {
			existing++
			continue
		}
		created++
		metrics.JobsExpanded.WithLabelValues(strconv.Itoa(int(c.priority))).Inc()
	}

	logger.WithFields(map[string]interface{}{
		"created":  created,
		"fresh":    fresh,
		"existing": existing,
		"failed":   failed,
	}).Info("Expanded collection jobs")

	if lastErr != nil && created == 0 && existing == 0 {
		// nothing landed; let the next call retry instead of waiting out the window
		if err := q.cooldown.Release(ctx, ck); err != nil {
			logger.WithError(err).Warn("Failed to release expansion cooldown")
		}
		return 0, fmt.Errorf("failed to expand collection jobs: %w", lastErr)
	}
	return created, nil
}

func (q *CollectionQueue) isFresh(ctx context.Context, key models.JobKey, now time.Time) bool {
	if q.prices == nil {
		return false
	}
	ref, err := q.prices.GetReference(ctx, key.PriceKey())
	if err != nil {
		q.logger.WithError(err).WithField("candidate", key.String()).Debug("Freshness check failed")
		return false
	}
	return ref != nil && !ref.IsStale(now)
}

// Reclaim returns assignments older than the assign timeout to pending
func (q *CollectionQueue) Reclaim(ctx context.Context) (int, error) {
	n, err := q.store.ReclaimExpired(ctx, q.now().Add(-q.cfg.AssignTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim jobs: %w", err)
	}
	if n > 0 {
		metrics.JobsReclaimed.Add(float64(n))
		q.logger.WithField("count", n).Info("Reclaimed expired assignments")
	}
	return n, nil
}

// CancelLowData fails the live jobs of every vehicle that reached the
// recent failure threshold
func (q *CollectionQueue) CancelLowData(ctx context.Context) (int, error) {
	now := q.now()
	n, err := q.store.CancelLowData(ctx, q.cfg.LowDataThreshold, now.Add(-q.cfg.LowDataWindow), q.cfg.MaxAttempts, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel low-data jobs: %w", err)
	}
	if n > 0 {
		metrics.JobsCancelled.Add(float64(n))
		q.logger.WithField("count", n).Info("Cancelled jobs of low-data vehicles")
	}
	return n, nil
}

// Pick reclaims expired assignments, applies the low-data breaker, then
// assigns up to maxJobs pending jobs by priority and age
func (q *CollectionQueue) Pick(ctx context.Context, maxJobs int) ([]*models.CollectionJob, error) {
	if maxJobs <= 0 {
		return nil, nil
	}

	if _, err := q.Reclaim(ctx); err != nil {
		return nil, err
	}
	if _, err := q.CancelLowData(ctx); err != nil {
		return nil, err
	}

	jobs, err := q.store.ClaimPending(ctx, maxJobs, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	metrics.JobsPicked.Add(float64(len(jobs)))
	q.logger.WithFields(map[string]interface{}{
		"requested": maxJobs,
		"picked":    len(jobs),
	}).Debug("Picked collection jobs")
	return jobs, nil
}

// Complete settles a job. Unknown ids return a not-found error and jobs that
// are neither pending nor assigned a job state error.
func (q *CollectionQueue) Complete(ctx context.Context, id string, success bool) (*models.CollectionJob, error) {
	job, err := q.store.CompleteJob(ctx, id, success, q.cfg.MaxAttempts, q.now())
	if err != nil {
		return nil, err
	}

	metrics.JobsCompleted.WithLabelValues(string(job.Status)).Inc()
	q.logger.WithFields(map[string]interface{}{
		"job_id":   job.ID,
		"success":  success,
		"status":   job.Status,
		"attempts": job.Attempts,
	}).Info("Collection job completed")
	return job, nil
}

// Job returns one job by id
func (q *CollectionQueue) Job(ctx context.Context, id string) (*models.CollectionJob, error) {
	return q.store.GetJob(ctx, id)
}

// Stats counts jobs per status
func (q *CollectionQueue) Stats(ctx context.Context) (models.JobStats, error) {
	return q.store.Stats(ctx)
}

// PruneCooldown drops expired cooldown entries when the cooldown keeps them
// in memory
func (q *CollectionQueue) PruneCooldown() int {
	if c, ok := q.cooldown.(interface{ Prune() int }); ok {
		return c.Prune()
	}
	return 0
}
