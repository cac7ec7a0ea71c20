package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// MemoryPriceStore keeps price references in process memory. It backs the
// "memory" storage backend and the tests of everything above storage.
type MemoryPriceStore struct {
	mu   sync.RWMutex
	rows map[string]*models.PriceReference
}

// NewMemoryPriceStore creates an empty store
func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{rows: make(map[string]*models.PriceReference)}
}

// UpsertReference replaces the statistics of key, keeping its id
func (s *MemoryPriceStore) UpsertReference(_ context.Context, ref *models.PriceReference) (*models.PriceReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *ref
	k := ref.PriceKey.String()
	if existing, ok := s.rows[k]; ok {
		out.ID = existing.ID
	} else if out.ID == "" {
		out.ID = uuid.NewString()
	}
	s.rows[k] = &out

	stored := out
	return &stored, nil
}

// GetReference returns a copy of the row for key, or nil
func (s *MemoryPriceStore) GetReference(_ context.Context, key models.PriceKey) (*models.PriceReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.rows[key.String()]
	if !ok {
		return nil, nil
	}
	out := *ref
	return &out, nil
}

// ListVehicleReferences returns copies of every row in the vehicle scope
func (s *MemoryPriceStore) ListVehicleReferences(_ context.Context, scope models.PriceKey) ([]*models.PriceReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope = scope.VehicleScope()
	var out []*models.PriceReference
	for _, ref := range s.rows {
		if ref.PriceKey.VehicleScope() == scope {
			c := *ref
			out = append(out, &c)
		}
	}
	return out, nil
}

// CountStale counts rows past their refresh window
func (s *MemoryPriceStore) CountStale(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ref := range s.rows {
		if ref.IsStale(now) {
			n++
		}
	}
	return n, nil
}

// MemoryJobStore keeps collection jobs in process memory with the same
// uniqueness and transition rules as CollectionJobRepository.
type MemoryJobStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.CollectionJob
	byKey   map[string]string
	pending *pendingIndex
}

// NewMemoryJobStore creates an empty store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:    make(map[string]*models.CollectionJob),
		byKey:   make(map[string]string),
		pending: newPendingIndex(),
	}
}

// TryCreate inserts job or recycles an aged terminal job with the same key
func (s *MemoryJobStore) TryCreate(_ context.Context, job *models.CollectionJob, policy models.CreatePolicy) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if policy.Blocks(s.failuresLocked(job.VehicleKey(), policy.FailedSince)) {
		return false, nil
	}

	k := job.JobKey.String()
	if id, ok := s.byKey[k]; ok {
		existing := s.jobs[id]
		if !existing.Recyclable(policy.RecycleBefore) {
			return false, nil
		}
		existing.Recycle(job.Priority, job.CreatedAt)
		s.pending.push(existing)
		*job = *existing
		return true, nil
	}

	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Status = types.JobPending
	stored.Attempts = 0
	stored.AssignedAt = nil
	stored.CompletedAt = nil

	s.jobs[stored.ID] = &stored
	s.byKey[k] = stored.ID
	s.pending.push(&stored)
	*job = stored
	return true, nil
}

// RecentFailures counts failed jobs of the vehicle completed since since
func (s *MemoryJobStore) RecentFailures(_ context.Context, key models.JobKey, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failuresLocked(key.VehicleKey(), since), nil
}

func (s *MemoryJobStore) failuresLocked(vehicle string, since time.Time) int {
	n := 0
	for _, job := range s.jobs {
		if job.Status == types.JobFailed && job.CompletedAt != nil &&
			!job.CompletedAt.Before(since) && job.VehicleKey() == vehicle {
			n++
		}
	}
	return n
}

// GetJob returns a copy of the job
func (s *MemoryJobStore) GetJob(_ context.Context, id string) (*models.CollectionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("collection job", id)
	}
	out := *job
	return &out, nil
}

// ReclaimExpired returns stale assignments to pending, attempts unchanged
func (s *MemoryJobStore) ReclaimExpired(_ context.Context, assignedBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == types.JobAssigned && job.AssignedAt != nil && job.AssignedAt.Before(assignedBefore) {
			job.Status = types.JobPending
			job.AssignedAt = nil
			s.pending.push(job)
			n++
		}
	}
	return n, nil
}

// CancelLowData fails the live jobs of vehicles with too many recent failures
func (s *MemoryJobStore) CancelLowData(_ context.Context, threshold int, failedSince time.Time, maxAttempts int, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make(map[string]int)
	for _, job := range s.jobs {
		if job.Status == types.JobFailed && job.CompletedAt != nil && !job.CompletedAt.Before(failedSince) {
			failures[job.VehicleKey()]++
		}
	}

	n := 0
	for _, job := range s.jobs {
		if !job.Status.Active() || failures[job.VehicleKey()] < threshold {
			continue
		}
		if job.Status == types.JobPending {
			s.pending.remove(job.ID)
		}
		completed := now
		job.Status = types.JobFailed
		job.Attempts = maxAttempts
		job.CompletedAt = &completed
		n++
	}
	return n, nil
}

// ClaimPending assigns up to limit pending jobs in pick order
func (s *MemoryJobStore) ClaimPending(_ context.Context, limit int, now time.Time) ([]*models.CollectionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []*models.CollectionJob
	for len(claimed) < limit && s.pending.len() > 0 {
		job := s.pending.pop()
		assignedAt := now
		job.Status = types.JobAssigned
		job.AssignedAt = &assignedAt
		out := *job
		claimed = append(claimed, &out)
	}
	return claimed, nil
}

// CompleteJob applies a completion report
func (s *MemoryJobStore) CompleteJob(_ context.Context, id string, success bool, maxAttempts int, now time.Time) (*models.CollectionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("collection job", id)
	}
	if !job.Status.Active() {
		return nil, errors.NewJobStateError(id, job.Status)
	}

	wasPending := job.Status == types.JobPending
	job.ApplyCompletion(success, maxAttempts, now)
	switch {
	case job.Status == types.JobPending && !wasPending:
		s.pending.push(job)
	case job.Status != types.JobPending && wasPending:
		s.pending.remove(job.ID)
	}

	out := *job
	return &out, nil
}

// Stats counts jobs per status
func (s *MemoryJobStore) Stats(_ context.Context) (models.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.JobStats
	for _, job := range s.jobs {
		stats.Add(job.Status, 1)
	}
	return stats, nil
}
