package service

import (
	"context"
	"time"

	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/models"
)

// DefaultBonusJobs is how many extra jobs a worker receives with its current one
const DefaultBonusJobs = 2

// JobRequest describes the vehicle a collection worker is looking at
type JobRequest struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Region    string `json:"region"`
	Fuel      string `json:"fuel,omitempty"`
	Gearbox   string `json:"gearbox,omitempty"`
	PowerBand string `json:"powerBand,omitempty"`
	Country   string `json:"country,omitempty"`
}

// NextJobResult tells a worker what to collect. RefreshCurrent is set when
// the requested vehicle itself has no fresh reference.
type NextJobResult struct {
	RefreshCurrent bool                    `json:"refreshCurrent"`
	Current        *models.CollectionJob   `json:"current"`
	Bonus          []*models.CollectionJob `json:"bonus"`
}

// CollectionService drives the collection queue for external workers
type CollectionService struct {
	queue          *job.CollectionQueue
	prices         job.ReferenceLookup
	bonusJobs      int
	defaultCountry string
	now            func() time.Time
	logger         *logging.Logger
}

// NewCollectionService creates a collection service. bonusJobs < 0 falls
// back to DefaultBonusJobs.
func NewCollectionService(queue *job.CollectionQueue, prices job.ReferenceLookup, bonusJobs int, defaultCountry string) *CollectionService {
	if bonusJobs < 0 {
		bonusJobs = DefaultBonusJobs
	}
	return &CollectionService{
		queue:          queue,
		prices:         prices,
		bonusJobs:      bonusJobs,
		defaultCountry: defaultCountry,
		now:            time.Now,
		logger:         logging.GetGlobalLogger().WithComponent("collection-service"),
	}
}

// NextCollectionJob expands around the requested vehicle then assigns one
// current job plus up to bonusJobs more. Current is nil when nothing is
// pending.
func (s *CollectionService) NextCollectionJob(ctx context.Context, req JobRequest) (*NextJobResult, error) {
	if req.Country == "" {
		req.Country = s.defaultCountry
	}
	expand := job.ExpandRequest{
		Make:      req.Make,
		Model:     req.Model,
		Year:      req.Year,
		Region:    req.Region,
		Fuel:      req.Fuel,
		Gearbox:   req.Gearbox,
		PowerBand: req.PowerBand,
		Country:   req.Country,
	}

	if _, err := s.queue.Expand(ctx, expand); err != nil {
		if isValidation(err) {
			return nil, err
		}
		s.logger.WithError(err).Warn("Expansion failed, picking from the existing queue")
	}

	jobs, err := s.queue.Pick(ctx, 1+s.bonusJobs)
	if err != nil {
		return nil, err
	}

	result := &NextJobResult{
		RefreshCurrent: s.needsRefresh(ctx, expand.Key()),
		Bonus:          []*models.CollectionJob{},
	}
	if len(jobs) > 0 {
		result.Current = jobs[0]
		result.Bonus = append(result.Bonus, jobs[1:]...)
	}
	return result, nil
}

func (s *CollectionService) needsRefresh(ctx context.Context, key models.JobKey) bool {
	if s.prices == nil {
		return true
	}
	ref, err := s.prices.GetReference(ctx, key.PriceKey())
	if err != nil {
		s.logger.WithError(err).Debug("Reference lookup for the current vehicle failed")
		return true
	}
	return ref == nil || ref.IsStale(s.now())
}

// MarkJobComplete settles a job reported by a worker
func (s *CollectionService) MarkJobComplete(ctx context.Context, id string, success bool) (*models.CollectionJob, error) {
	return s.queue.Complete(ctx, id, success)
}

// Job returns one collection job
func (s *CollectionService) Job(ctx context.Context, id string) (*models.CollectionJob, error) {
	return s.queue.Job(ctx, id)
}

// Stats counts jobs per status
func (s *CollectionService) Stats(ctx context.Context) (models.JobStats, error) {
	return s.queue.Stats(ctx)
}
