// Package job schedules the data-collection tasks that keep the market price
// reference fresh.
package job

import (
	"context"
	"time"

	"github.com/listing-trust/internal/models"
)

// JobStore is the durable collection job table. TryCreate returns false when
// a live or recently finished job already holds the key, or when the policy
// blocks the vehicle.
type JobStore interface {
	TryCreate(ctx context.Context, job *models.CollectionJob, policy models.CreatePolicy) (bool, error)
	RecentFailures(ctx context.Context, key models.JobKey, since time.Time) (int, error)
	GetJob(ctx context.Context, id string) (*models.CollectionJob, error)
	ReclaimExpired(ctx context.Context, assignedBefore time.Time) (int, error)
	CancelLowData(ctx context.Context, threshold int, failedSince time.Time, maxAttempts int, now time.Time) (int, error)
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.CollectionJob, error)
	CompleteJob(ctx context.Context, id string, success bool, maxAttempts int, now time.Time) (*models.CollectionJob, error)
	Stats(ctx context.Context) (models.JobStats, error)
}

// ReferenceLookup tells the queue whether a candidate is already covered by
// a fresh price reference
type ReferenceLookup interface {
	GetReference(ctx context.Context, key models.PriceKey) (*models.PriceReference, error)
}

// Cooldown suppresses repeated expansions of the same vehicle
type Cooldown interface {
	// Acquire reports whether key was free and is now held for the window
	Acquire(ctx context.Context, key string) (bool, error)
	// Release frees key before its window ends
	Release(ctx context.Context, key string) error
}
