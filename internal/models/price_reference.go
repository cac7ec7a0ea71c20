package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

// PriceKey identifies one price reference row. Build it with NewPriceKey so
// every component is folded the same way.
type PriceKey struct {
	Make      string `json:"make" db:"make"`
	Model     string `json:"model" db:"model"`
	Year      int    `json:"year" db:"year"`
	Region    string `json:"region" db:"region"`
	Fuel      string `json:"fuel" db:"fuel"`
	PowerBand string `json:"powerBand" db:"power_band"`
	Country   string `json:"country" db:"country"`
}

// NewPriceKey normalizes the key components
func NewPriceKey(brand, model string, year int, region, fuel, powerBand, country string) PriceKey {
	return PriceKey{
		Make:      vehicle.Fold(brand),
		Model:     vehicle.Fold(model),
		Year:      year,
		Region:    vehicle.Fold(region),
		Fuel:      vehicle.NormalizeFuel(fuel),
		PowerBand: strings.TrimSpace(powerBand),
		Country:   vehicle.NormalizeCountry(country),
	}
}

// String renders the key for caches and logs
func (k PriceKey) String() string {
	return strings.Join([]string{
		k.Make, k.Model, strconv.Itoa(k.Year), k.Region, k.Fuel, k.PowerBand, k.Country,
	}, "|")
}

// VehicleScope drops fuel and power band, leaving the set of rows the relaxed
// resolver tiers search through
func (k PriceKey) VehicleScope() PriceKey {
	k.Fuel = ""
	k.PowerBand = ""
	return k
}

// PriceStats are the statistics computed from one sample set
type PriceStats struct {
	Min         int     `json:"min" db:"price_min"`
	Median      int     `json:"median" db:"price_median"`
	Mean        int     `json:"mean" db:"price_mean"`
	Max         int     `json:"max" db:"price_max"`
	Std         float64 `json:"std" db:"price_std"`
	IQM         int     `json:"iqm" db:"price_iqm"`
	SampleCount int     `json:"sampleCount" db:"sample_count"`
}

// PriceReference is the aggregated crowdsourced market price for one key
type PriceReference struct {
	ID string `json:"id" db:"id"`
	PriceKey
	PriceStats
	PrecisionTier types.PrecisionTier `json:"precisionTier" db:"precision_tier"`
	CollectedAt   time.Time           `json:"collectedAt" db:"collected_at"`
	RefreshAfter  time.Time           `json:"refreshAfter" db:"refresh_after"`
}

// IsStale reports whether the reference is past its refresh window. Stale
// references are still usable.
func (r *PriceReference) IsStale(now time.Time) bool {
	return now.After(r.RefreshAfter)
}

// ReferencePrice is the IQM, or the median when no IQM could be computed
func (r *PriceReference) ReferencePrice() int {
	if r.IQM > 0 {
		return r.IQM
	}
	return r.Median
}

// SeedRecord is one static fallback band, loaded once at startup
type SeedRecord struct {
	Make   string
	Model  string
	Region string
	Year   int
	Band   PriceBand
}

// SampleSubmission is a batch of raw prices pushed by a collection worker
type SampleSubmission struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Region    string `json:"region"`
	Fuel      string `json:"fuel,omitempty"`
	PowerBand string `json:"powerBand,omitempty"`
	Country   string `json:"country"`
	Prices    []int  `json:"prices"`
	JobID     string `json:"jobId,omitempty"`
}

// Key returns the normalized reference key for the submission
func (s *SampleSubmission) Key() PriceKey {
	return NewPriceKey(s.Make, s.Model, s.Year, s.Region, s.Fuel, s.PowerBand, s.Country)
}
