package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/listing-trust/internal/engine"
	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
)

// Expander creates collection jobs around an analyzed vehicle
type Expander interface {
	Expand(ctx context.Context, req job.ExpandRequest) (int, error)
}

// EventRecorder stores analysis history
type EventRecorder interface {
	RecordEvents(ctx context.Context, events ...*models.AnalysisEvent) error
}

// TrustService scores listings
type TrustService struct {
	engine         *engine.FilterEngine
	aggregator     *engine.ScoreAggregator
	expander       Expander
	recorder       EventRecorder
	defaultCountry string
	now            func() time.Time
	logger         *logging.Logger
}

// NewTrustService creates a trust service. expander and recorder may be nil.
func NewTrustService(
	filterEngine *engine.FilterEngine,
	aggregator *engine.ScoreAggregator,
	expander Expander,
	recorder EventRecorder,
	defaultCountry string,
) *TrustService {
	if aggregator == nil {
		aggregator = engine.NewScoreAggregator(nil)
	}
	return &TrustService{
		engine:         filterEngine,
		aggregator:     aggregator,
		expander:       expander,
		recorder:       recorder,
		defaultCountry: defaultCountry,
		now:            time.Now,
		logger:         logging.GetGlobalLogger().WithComponent("trust-service"),
	}
}

// AnalyzeListing validates the listing, runs every filter and aggregates the
// outcomes. Job expansion and event recording are best effort and never fail
// the analysis.
func (s *TrustService) AnalyzeListing(ctx context.Context, listing *models.ListingRecord) (*models.AnalysisResult, error) {
	now := s.now()
	if err := listing.Validate(now); err != nil {
		return nil, err
	}

	start := time.Now()
	outcomes := s.engine.RunAll(ctx, listing)
	trust := s.aggregator.Aggregate(outcomes)
	metrics.TrustScores.Observe(float64(trust.Score))

	s.logger.WithFields(map[string]interface{}{
		"listing_id": listing.ID,
		"score":      trust.Score,
		"partial":    trust.Partial,
		"duration":   time.Since(start).String(),
	}).Info("Listing analyzed")

	s.expand(ctx, listing)
	s.record(ctx, listing, trust, outcomes, now)

	return &models.AnalysisResult{
		ListingID: listing.ID,
		Trust:     trust,
		Outcomes:  outcomes,
	}, nil
}

func (s *TrustService) expand(ctx context.Context, l *models.ListingRecord) {
	if s.expander == nil || l.Year == nil || l.Region == "" {
		return
	}
	req := job.ExpandRequest{
		Make:      l.Make,
		Model:     l.Model,
		Year:      *l.Year,
		Region:    l.Region,
		Fuel:      l.Fuel,
		Gearbox:   l.Gearbox,
		PowerBand: l.PowerBand(),
		Country:   l.CountryOr(s.defaultCountry),
	}
	if _, err := s.expander.Expand(ctx, req); err != nil {
		s.logger.WithError(err).WithField("listing_id", l.ID).Warn("Job expansion after analysis failed")
	}
}

func (s *TrustService) record(ctx context.Context, l *models.ListingRecord, trust models.TrustScore, outcomes []*models.FilterOutcome, now time.Time) {
	if s.recorder == nil {
		return
	}

	statuses := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		statuses = append(statuses, o.FilterID+":"+string(o.Status))
	}
	year := 0
	if l.Year != nil {
		year = *l.Year
	}

	event := &models.AnalysisEvent{
		EventID:    uuid.NewString(),
		ListingID:  l.ID,
		Make:       l.Make,
		Model:      l.Model,
		Year:       int32(year),
		Country:    l.CountryOr(s.defaultCountry),
		Score:      uint8(trust.Score),
		Partial:    trust.Partial,
		Statuses:   statuses,
		AnalyzedAt: now,
	}
	if err := s.recorder.RecordEvents(ctx, event); err != nil {
		s.logger.WithError(err).WithField("listing_id", l.ID).Warn("Failed to record analysis event")
	}
}
