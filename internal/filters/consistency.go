package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// Mileage plausibility bounds, in km per year of age
const (
	kmPerYearFail    = 40000
	kmPerYearWarning = 30000
	kmPerYearLow     = 2000
	lowMileageMinAge = 3
	// rollbackMaxKm below this total at rollbackMinAge years or more fails
	rollbackMaxKm  = 1000
	rollbackMinAge = 5
)

// ConsistencyFilter (L3) checks that the mileage is plausible for the age
type ConsistencyFilter struct {
	now func() time.Time
}

// NewConsistencyFilter creates L3. now defaults to time.Now.
func NewConsistencyFilter(now func() time.Time) *ConsistencyFilter {
	if now == nil {
		now = time.Now
	}
	return &ConsistencyFilter{now: now}
}

// ID returns "L3"
func (f *ConsistencyFilter) ID() string { return IDConsistency }

// Run compares mileage and age
func (f *ConsistencyFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	if l.Year == nil || l.Mileage == nil {
		return nil, errors.NewFilterError(IDConsistency, "year or mileage missing", nil)
	}

	age := f.now().Year() - *l.Year
	if age < 1 {
		age = 1
	}
	mileage := *l.Mileage
	perYear := mileage / age

	var out *models.FilterOutcome
	switch {
	case perYear > kmPerYearFail:
		out = outcome(types.StatusFail, 0, fmt.Sprintf("%d km per year is implausibly high", perYear))
	case perYear > kmPerYearWarning:
		out = outcome(types.StatusWarning, 0.5, fmt.Sprintf("%d km per year is unusually high", perYear))
	case age >= rollbackMinAge && mileage < rollbackMaxKm:
		out = outcome(types.StatusFail, 0, fmt.Sprintf("%d km after %d years suggests a rolled-back odometer", mileage, age))
	case age >= lowMileageMinAge && perYear < kmPerYearLow:
		out = outcome(types.StatusWarning, 0.5, fmt.Sprintf("%d km per year is unusually low", perYear))
	default:
		out = outcome(types.StatusPass, 1, "mileage consistent with age")
	}
	out.Details = map[string]interface{}{
		"age_years":   age,
		"km_per_year": perYear,
	}
	return out, nil
}
