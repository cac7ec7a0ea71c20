package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	apperrors "github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

const collectionJobColumns = `
	id, make, model, year, region, fuel, gearbox, power_band, country,
	priority, status, attempts, created_at, assigned_at, completed_at`

// CollectionJobRepository persists collection jobs in Postgres
type CollectionJobRepository struct {
	db *PostgresDB
}

// NewCollectionJobRepository creates a new collection job repository
func NewCollectionJobRepository(db *PostgresDB) *CollectionJobRepository {
	return &CollectionJobRepository{db: db}
}

// TryCreate inserts job, or recycles in place a done/failed job with the same
// key completed before policy.RecycleBefore. It returns false when a live or
// recently finished job already holds the key, or when the vehicle has reached
// policy.FailureLimit recent failures. On success job.ID holds the stored id.
func (r *CollectionJobRepository) TryCreate(ctx context.Context, job *models.CollectionJob, policy models.CreatePolicy) (bool, error) {
	query := `
		INSERT INTO collection_jobs (` + collectionJobColumns + `)
		SELECT $1::uuid, $2::text, $3::text, $4::integer, $5::text, $6::text, $7::text, $8::text, $9::text,
			$10::smallint, 'pending', 0, $11::timestamptz, NULL, NULL
		WHERE $14::integer <= 0 OR (
			SELECT COUNT(*) FROM collection_jobs f
			WHERE f.make = $2 AND f.model = $3 AND f.country = $9
			  AND f.status = 'failed' AND f.completed_at >= $13
		) < $14
		ON CONFLICT ON CONSTRAINT collection_jobs_key DO UPDATE SET
			priority     = EXCLUDED.priority,
			status       = 'pending',
			attempts     = 0,
			created_at   = EXCLUDED.created_at,
			assigned_at  = NULL,
			completed_at = NULL
		WHERE collection_jobs.status IN ('done', 'failed')
		  AND collection_jobs.completed_at < $12
		RETURNING id
	`

	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}

	var storedID string
	err := r.db.Pool().QueryRow(ctx, query,
		id,
		job.Make,
		job.Model,
		job.Year,
		job.Region,
		job.Fuel,
		job.Gearbox,
		job.PowerBand,
		job.Country,
		job.Priority,
		job.CreatedAt,
		policy.RecycleBefore,
		policy.FailedSince,
		policy.FailureLimit,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create collection job: %w", err)
	}

	job.ID = storedID
	job.Status = types.JobPending
	job.Attempts = 0
	job.AssignedAt = nil
	job.CompletedAt = nil
	return true, nil
}

// RecentFailures counts failed jobs of the vehicle (make, model, country)
// completed since since
func (r *CollectionJobRepository) RecentFailures(ctx context.Context, key models.JobKey, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM collection_jobs
		WHERE make = $1 AND model = $2 AND country = $3
		  AND status = 'failed' AND completed_at >= $4
	`

	var n int
	if err := r.db.Pool().QueryRow(ctx, query, key.Make, key.Model, key.Country, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent failures: %w", err)
	}
	return n, nil
}

// GetJob retrieves a job by id
func (r *CollectionJobRepository) GetJob(ctx context.Context, id string) (*models.CollectionJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("collection job", id)
	}

	query := `SELECT ` + collectionJobColumns + ` FROM collection_jobs WHERE id = $1`
	job, err := scanCollectionJob(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("collection job", id)
		}
		return nil, fmt.Errorf("failed to get collection job: %w", err)
	}
	return job, nil
}

// ReclaimExpired returns assigned jobs older than assignedBefore to pending.
// Attempts are left unchanged.
func (r *CollectionJobRepository) ReclaimExpired(ctx context.Context, assignedBefore time.Time) (int, error) {
	query := `
		UPDATE collection_jobs
		SET status = 'pending', assigned_at = NULL
		WHERE status = 'assigned' AND assigned_at < $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, assignedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CancelLowData fails every pending/assigned job of a vehicle (make, model,
// country) with at least threshold failed jobs completed since failedSince.
func (r *CollectionJobRepository) CancelLowData(ctx context.Context, threshold int, failedSince time.Time, maxAttempts int, now time.Time) (int, error) {
	query := `
		WITH low_data AS (
			SELECT make, model, country
			FROM collection_jobs
			WHERE status = 'failed' AND completed_at >= $1
			GROUP BY make, model, country
			HAVING COUNT(*) >= $2
		)
		UPDATE collection_jobs j
		SET status = 'failed', attempts = $3, completed_at = $4
		FROM low_data d
		WHERE j.make = d.make AND j.model = d.model AND j.country = d.country
		  AND j.status IN ('pending', 'assigned')
	`

	tag, err := r.db.Pool().Exec(ctx, query, failedSince, threshold, maxAttempts, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel low-data jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ClaimPending assigns up to limit pending jobs ordered by priority, creation
// time and id. Rows locked by a concurrent claim are skipped.
func (r *CollectionJobRepository) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*models.CollectionJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		UPDATE collection_jobs
		SET status = 'assigned', assigned_at = $2
		WHERE id IN (
			SELECT id FROM collection_jobs
			WHERE status = 'pending'
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + collectionJobColumns

	rows, err := r.db.Pool().Query(ctx, query, limit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.CollectionJob
	for rows.Next() {
		job, err := scanCollectionJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed jobs: %w", err)
	}

	// RETURNING does not preserve the subquery order
	sortJobs(jobs)
	return jobs, nil
}

// CompleteJob applies a completion report under a row lock
func (r *CollectionJobRepository) CompleteJob(ctx context.Context, id string, success bool, maxAttempts int, now time.Time) (*models.CollectionJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("collection job", id)
	}

	var job *models.CollectionJob
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + collectionJobColumns + ` FROM collection_jobs WHERE id = $1 FOR UPDATE`
		current, err := scanCollectionJob(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFoundError("collection job", id)
			}
			return fmt.Errorf("failed to lock collection job: %w", err)
		}
		if !current.Status.Active() {
			return apperrors.NewJobStateError(id, current.Status)
		}

		current.ApplyCompletion(success, maxAttempts, now)

		_, err = tx.Exec(ctx, `
			UPDATE collection_jobs
			SET status = $2, attempts = $3, assigned_at = $4, completed_at = $5
			WHERE id = $1
		`, id, current.Status, current.Attempts, current.AssignedAt, current.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to update collection job: %w", err)
		}
		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Stats counts jobs per status
func (r *CollectionJobRepository) Stats(ctx context.Context) (models.JobStats, error) {
	var stats models.JobStats

	rows, err := r.db.Pool().Query(ctx, `SELECT status, COUNT(*) FROM collection_jobs GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to count collection jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status types.JobStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("failed to scan job count: %w", err)
		}
		stats.Add(status, n)
	}
	return stats, rows.Err()
}

func scanCollectionJob(row pgx.Row) (*models.CollectionJob, error) {
	var job models.CollectionJob
	err := row.Scan(
		&job.ID,
		&job.Make,
		&job.Model,
		&job.Year,
		&job.Region,
		&job.Fuel,
		&job.Gearbox,
		&job.PowerBand,
		&job.Country,
		&job.Priority,
		&job.Status,
		&job.Attempts,
		&job.CreatedAt,
		&job.AssignedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// sortJobs orders jobs the way they are picked: priority, created_at, id
func sortJobs(jobs []*models.CollectionJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobLess(jobs[i], jobs[j])
	})
}

func jobLess(a, b *models.CollectionJob) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
