package filters

import (
	"context"
	"fmt"
	"math"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/pricing"
	"github.com/listing-trust/internal/types"
)

// z-score bounds
const (
	zWarning = 2.0
	zFail    = 3.0
)

// OutlierFilter (L5) measures how far the price sits from the crowdsourced
// sample distribution. Without sample statistics it falls back to a neutral
// score derived from the deviation.
type OutlierFilter struct {
	resolver       PriceResolver
	defaultCountry string
}

// NewOutlierFilter creates L5
func NewOutlierFilter(resolver PriceResolver, defaultCountry string) *OutlierFilter {
	return &OutlierFilter{resolver: resolver, defaultCountry: defaultCountry}
}

// ID returns "L5"
func (f *OutlierFilter) ID() string { return IDOutlier }

// Run computes the z-score of the price
func (f *OutlierFilter) Run(ctx context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	q, price, ok := priceQuery(l, f.defaultCountry)
	if !ok {
		return nil, errors.NewFilterError(IDOutlier, "price or year missing", nil)
	}

	res, err := resolve(ctx, IDOutlier, f.resolver, q)
	if err != nil {
		return nil, err
	}

	ref := res.Reference
	if !res.Tier.Crowdsourced() || ref == nil || ref.Std <= 0 {
		dev := res.Deviation(price)
		score := math.Max(0, 1-math.Abs(dev)/100)
		out := outcome(types.StatusNeutral, score, "no sample distribution for this vehicle")
		out.Details = map[string]interface{}{
			"tier":          res.Tier,
			"deviation_pct": pricing.RoundPercent(dev),
		}
		return out, nil
	}

	z := (float64(price) - float64(ref.Mean)) / ref.Std
	absZ := math.Abs(z)

	var out *models.FilterOutcome
	switch {
	case absZ <= zWarning:
		out = outcome(types.StatusPass, 1, "price within the usual spread")
	case absZ <= zFail:
		out = outcome(types.StatusWarning, 0.5, fmt.Sprintf("price is %.1f standard deviations from the mean", absZ))
	default:
		out = outcome(types.StatusFail, 0, fmt.Sprintf("price is %.1f standard deviations from the mean", absZ))
	}
	out.Details = map[string]interface{}{
		"z_score":      math.Round(z*100) / 100,
		"mean":         ref.Mean,
		"std":          ref.Std,
		"tier":         res.Tier,
		"sample_count": ref.SampleCount,
	}
	return out, nil
}
