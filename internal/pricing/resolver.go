// Package pricing resolves market reference prices for listings through a
// fallback cascade: crowdsourced cache, relaxed cache, static seed bands and
// finally the platform's own estimate.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// Confidence attached to each tier
const (
	ConfidenceCacheExact   = 1.0
	ConfidenceCacheRelaxed = 0.8
	ConfidenceSeed         = 0.7
	ConfidenceSelfEstimate = 0.5
)

// PriceStore is the durable price reference cache
type PriceStore interface {
	// GetReference returns the row for key, or nil when none exists
	GetReference(ctx context.Context, key models.PriceKey) (*models.PriceReference, error)
	// ListVehicleReferences returns every row sharing make, model, year,
	// region and country with scope, whatever its fuel and power band
	ListVehicleReferences(ctx context.Context, scope models.PriceKey) ([]*models.PriceReference, error)
	// UpsertReference inserts or replaces the statistics of key in one statement
	UpsertReference(ctx context.Context, ref *models.PriceReference) (*models.PriceReference, error)
}

// PriceQuery describes the vehicle a reference price is needed for
type PriceQuery struct {
	Make         string
	Model        string
	Year         int
	Region       string
	Country      string
	Fuel         string
	PowerBand    string
	PowerHP      *int
	SelfEstimate *models.PriceBand
}

// Key returns the normalized exact-match key
func (q PriceQuery) Key() models.PriceKey {
	return models.NewPriceKey(q.Make, q.Model, q.Year, q.Region, q.Fuel, q.PowerBand, q.Country)
}

// Resolution is the answer of the cascade
type Resolution struct {
	// Reference is set for the cache tiers only
	Reference      *models.PriceReference
	ReferencePrice int
	Tier           types.ResolverTier
	Confidence     float64
	MinSamples     int
}

// Deviation returns the listing price deviation from the reference, halved for
// the self-estimate tier
func (r *Resolution) Deviation(price int) float64 {
	dev := Deviation(price, r.ReferencePrice)
	if r.Tier == types.TierSelfEstimate {
		dev /= 2
	}
	return dev
}

// Resolver runs the price cascade. It is read-only and safe for concurrent use.
type Resolver struct {
	store      PriceStore
	seed       *SeedReference
	thresholds *Thresholds
	logger     *logging.Logger
}

// NewResolver creates a resolver. store and seed may be nil, in which case
// the corresponding tiers never answer.
func NewResolver(store PriceStore, seed *SeedReference, thresholds *Thresholds) *Resolver {
	if thresholds == nil {
		thresholds = NewThresholds(nil)
	}
	return &Resolver{
		store:      store,
		seed:       seed,
		thresholds: thresholds,
		logger:     logging.GetGlobalLogger().WithComponent("resolver"),
	}
}

// MinSamples exposes the per-vehicle sample threshold
func (r *Resolver) MinSamples(brand, model string, powerHP *int) int {
	return r.thresholds.MinSamples(brand, model, powerHP)
}

// Seed returns the seed reference, possibly nil
func (r *Resolver) Seed() *SeedReference {
	return r.seed
}

// Resolve walks the cascade and returns the first tier with enough data.
// It returns an error wrapping errors.ErrInsufficientData when no tier answers.
// A store failure is logged and the cascade continues with the seed tier.
func (r *Resolver) Resolve(ctx context.Context, q PriceQuery) (*Resolution, error) {
	minSamples := r.MinSamples(q.Make, q.Model, q.PowerHP)
	key := q.Key()

	if r.store != nil {
		rows, err := r.store.ListVehicleReferences(ctx, key.VehicleScope())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.WithError(err).WithField("key", key.String()).Warn("price cache lookup failed, falling back")
		} else if res := resolveFromCache(rows, key, minSamples); res != nil {
			return r.answer(res), nil
		}
	}

	if band, ok := r.seed.Lookup(q.Make, q.Model, q.Region, q.Year); ok {
		return r.answer(&Resolution{
			ReferencePrice: band.Midpoint(),
			Tier:           types.TierSeed,
			Confidence:     ConfidenceSeed,
			MinSamples:     minSamples,
		}), nil
	}

	if q.SelfEstimate != nil && q.SelfEstimate.Valid() {
		return r.answer(&Resolution{
			ReferencePrice: q.SelfEstimate.Midpoint(),
			Tier:           types.TierSelfEstimate,
			Confidence:     ConfidenceSelfEstimate,
			MinSamples:     minSamples,
		}), nil
	}

	return nil, errors.NewInsufficientDataError(fmt.Sprintf("%s %s %d", q.Make, q.Model, q.Year))
}

func (r *Resolver) answer(res *Resolution) *Resolution {
	metrics.ResolverTiers.WithLabelValues(string(res.Tier)).Inc()
	return res
}

// resolveFromCache applies the exact then relaxed tiers to the rows of one
// vehicle scope. Rows below minSamples never answer.
func resolveFromCache(rows []*models.PriceReference, key models.PriceKey, minSamples int) *Resolution {
	enough := func(ref *models.PriceReference) bool {
		return ref != nil && ref.SampleCount >= minSamples && ref.ReferencePrice() > 0
	}
	find := func(fuel, band string) *models.PriceReference {
		for _, ref := range rows {
			if ref.Fuel == fuel && ref.PowerBand == band {
				return ref
			}
		}
		return nil
	}
	hit := func(ref *models.PriceReference, tier types.ResolverTier, confidence float64) *Resolution {
		return &Resolution{
			Reference:      ref,
			ReferencePrice: ref.ReferencePrice(),
			Tier:           tier,
			Confidence:     confidence,
			MinSamples:     minSamples,
		}
	}

	if ref := find(key.Fuel, key.PowerBand); enough(ref) {
		return hit(ref, types.TierCacheExact, ConfidenceCacheExact)
	}

	// generic-then-any
	relaxed := make([]*models.PriceReference, 0, 2)
	if key.PowerBand != "" {
		relaxed = append(relaxed, find(key.Fuel, ""))
	}
	if key.Fuel != "" || key.PowerBand != "" {
		relaxed = append(relaxed, find("", ""))
	}
	for _, ref := range relaxed {
		if enough(ref) {
			return hit(ref, types.TierCacheRelaxed, ConfidenceCacheRelaxed)
		}
	}

	if best := mostSampled(rows); enough(best) {
		return hit(best, types.TierCacheRelaxed, ConfidenceCacheRelaxed)
	}
	return nil
}

// mostSampled picks the row with the most samples, most recent first on ties
func mostSampled(rows []*models.PriceReference) *models.PriceReference {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]*models.PriceReference, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SampleCount != sorted[j].SampleCount {
			return sorted[i].SampleCount > sorted[j].SampleCount
		}
		if !sorted[i].CollectedAt.Equal(sorted[j].CollectedAt) {
			return sorted[i].CollectedAt.After(sorted[j].CollectedAt)
		}
		return sorted[i].PriceKey.String() < sorted[j].PriceKey.String()
	})
	return sorted[0]
}

// BuildReference computes a reference row for key from raw samples
func BuildReference(key models.PriceKey, prices []int, now time.Time, refreshWindow time.Duration) *models.PriceReference {
	stats := ComputeStats(prices)
	return &models.PriceReference{
		PriceKey:      key,
		PriceStats:    stats,
		PrecisionTier: types.PrecisionForSamples(stats.SampleCount),
		CollectedAt:   now,
		RefreshAfter:  now.Add(refreshWindow),
	}
}
