package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/pricing"
)

// DefaultRefreshWindow is how long a submitted reference stays fresh
const DefaultRefreshWindow = 7 * 24 * time.Hour

// PriceService accepts crowdsourced price samples
type PriceService struct {
	store         pricing.PriceStore
	refreshWindow time.Duration
	now           func() time.Time
	logger        *logging.Logger
}

// NewPriceService creates a price service
func NewPriceService(store pricing.PriceStore, refreshWindow time.Duration) *PriceService {
	if refreshWindow <= 0 {
		refreshWindow = DefaultRefreshWindow
	}
	return &PriceService{
		store:         store,
		refreshWindow: refreshWindow,
		now:           time.Now,
		logger:        logging.GetGlobalLogger().WithComponent("price-service"),
	}
}

// SubmitPriceSamples computes the statistics of one sample batch and replaces
// the reference of its key. Batches with fewer than pricing.AbsoluteMinSamples
// positive prices are rejected.
func (s *PriceService) SubmitPriceSamples(ctx context.Context, sub *models.SampleSubmission) (*models.PriceReference, error) {
	if strings.TrimSpace(sub.Make) == "" || strings.TrimSpace(sub.Model) == "" {
		return nil, errors.NewValidationError("make", "make and model are required")
	}
	if sub.Year < models.MinListingYear {
		return nil, errors.NewValidationError("year", "out of range")
	}
	if strings.TrimSpace(sub.Country) == "" {
		return nil, errors.NewValidationError("country", "required")
	}
	if n := pricing.CountPositive(sub.Prices); n < pricing.AbsoluteMinSamples {
		return nil, errors.NewValidationError("prices",
			fmt.Sprintf("at least %d positive prices required, got %d", pricing.AbsoluteMinSamples, n))
	}

	ref := pricing.BuildReference(sub.Key(), sub.Prices, s.now(), s.refreshWindow)
	stored, err := s.store.UpsertReference(ctx, ref)
	if err != nil {
		return nil, errors.NewDatabaseError("upsert price reference", err)
	}

	metrics.PriceSubmissions.Inc()
	s.logger.WithFields(map[string]interface{}{
		"key":     stored.PriceKey.String(),
		"samples": stored.SampleCount,
		"iqm":     stored.IQM,
		"job_id":  sub.JobID,
	}).Info("Price reference updated")
	return stored, nil
}
