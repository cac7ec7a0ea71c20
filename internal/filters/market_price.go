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

// PriceResolver answers reference price queries. *pricing.Resolver
// implements it.
type PriceResolver interface {
	Resolve(ctx context.Context, q pricing.PriceQuery) (*pricing.Resolution, error)
}

// priceQuery builds the resolver query for l. ok is false when the listing
// has no usable price or year.
func priceQuery(l *models.ListingRecord, defaultCountry string) (q pricing.PriceQuery, price int, ok bool) {
	if l.Price == nil || *l.Price <= 0 || l.Year == nil {
		return q, 0, false
	}
	q = pricing.PriceQuery{
		Make:         l.Make,
		Model:        l.Model,
		Year:         *l.Year,
		Region:       l.Region,
		Country:      l.CountryOr(defaultCountry),
		Fuel:         l.Fuel,
		PowerBand:    l.PowerBand(),
		PowerHP:      l.PowerHP,
		SelfEstimate: l.SelfEstimate,
	}
	return q, *l.Price, true
}

// resolve runs the query and turns resolver errors into filter errors. A
// cancelled context is returned as is.
func resolve(ctx context.Context, filterID string, resolver PriceResolver, q pricing.PriceQuery) (*pricing.Resolution, error) {
	if resolver == nil {
		return nil, errors.NewFilterError(filterID, "price reference unavailable", nil)
	}
	res, err := resolver.Resolve(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Categorize(err).Category == errors.CategoryInsufficientData {
			return nil, errors.NewFilterError(filterID, "not enough market data", err)
		}
		return nil, errors.NewFilterError(filterID, "price reference unavailable", err)
	}
	return res, nil
}

func sampleCount(res *pricing.Resolution) int {
	if res.Reference == nil {
		return 0
	}
	return res.Reference.SampleCount
}

// MarketPriceFilter (L4) compares the asking price with the market reference
type MarketPriceFilter struct {
	resolver       PriceResolver
	defaultCountry string
}

// NewMarketPriceFilter creates L4
func NewMarketPriceFilter(resolver PriceResolver, defaultCountry string) *MarketPriceFilter {
	return &MarketPriceFilter{resolver: resolver, defaultCountry: defaultCountry}
}

// ID returns "L4"
func (f *MarketPriceFilter) ID() string { return IDMarketPrice }

// Run classifies the deviation from the reference price
func (f *MarketPriceFilter) Run(ctx context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	q, price, ok := priceQuery(l, f.defaultCountry)
	if !ok {
		return nil, errors.NewFilterError(IDMarketPrice, "price or year missing", nil)
	}

	res, err := resolve(ctx, IDMarketPrice, f.resolver, q)
	if err != nil {
		return nil, err
	}

	dev := res.Deviation(price)
	status := pricing.Classify(dev)

	var out *models.FilterOutcome
	switch status {
	case types.StatusPass:
		out = outcome(status, 1, "price in line with the market")
	case types.StatusWarning:
		out = outcome(status, 0.5, fmt.Sprintf("price %.0f%% %s the market", math.Abs(dev), direction(dev)))
	default:
		out = outcome(status, 0, fmt.Sprintf("price %.0f%% %s the market", math.Abs(dev), direction(dev)))
	}
	out.Details = map[string]interface{}{
		"reference_price": res.ReferencePrice,
		"deviation_pct":   pricing.RoundPercent(dev),
		"tier":            res.Tier,
		"confidence":      res.Confidence,
		"sample_count":    sampleCount(res),
	}
	return out, nil
}

func direction(dev float64) string {
	if dev < 0 {
		return "below"
	}
	return "above"
}
