package filters

import (
	"context"
	"strings"

	"github.com/listing-trust/internal/adapter"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// registryCountry is the only country whose company registry is wired
const registryCountry = "FR"

// laPosteSIREN establishments may carry a digit-sum check instead of Luhn
const laPosteSIREN = "356000000"

// RegistryFilter (L7) checks that a professional seller is a registered,
// active company
type RegistryFilter struct {
	registry       adapter.CompanyLookup
	defaultCountry string
}

// NewRegistryFilter creates L7. A nil registry makes pro listings skip.
func NewRegistryFilter(registry adapter.CompanyLookup, defaultCountry string) *RegistryFilter {
	return &RegistryFilter{registry: registry, defaultCountry: defaultCountry}
}

// ID returns "L7"
func (f *RegistryFilter) ID() string { return IDRegistry }

// Run validates the company number and looks it up
func (f *RegistryFilter) Run(ctx context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	if l.SellerType != types.SellerPro {
		return outcome(types.StatusNeutral, 1, "private seller"), nil
	}

	id := strings.Join(strings.Fields(l.CompanyID), "")
	if id == "" {
		return outcome(types.StatusFail, 0, "professional seller without company number"), nil
	}
	if l.CountryOr(f.defaultCountry) != registryCountry {
		return outcome(types.StatusNeutral, 1, "company registry not available for this country"), nil
	}
	if !validSIRET(id) {
		return outcome(types.StatusFail, 0, "invalid company number"), nil
	}
	if f.registry == nil {
		return nil, errors.NewFilterError(IDRegistry, "company registry unavailable", nil)
	}

	company, err := f.registry.Lookup(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.IsNotFound(err) {
			return outcome(types.StatusFail, 0, "company not found in registry"), nil
		}
		return nil, errors.NewFilterError(IDRegistry, "company registry lookup failed", err)
	}

	details := map[string]interface{}{"company_name": company.Name}
	if !company.Active {
		out := outcome(types.StatusFail, 0, "company is no longer active")
		out.Details = details
		return out, nil
	}
	out := outcome(types.StatusPass, 1, "registered company")
	out.Details = details
	return out, nil
}

// validSIRET accepts a 9-digit SIREN or a 14-digit SIRET with a valid check digit
func validSIRET(id string) bool {
	if len(id) != 9 && len(id) != 14 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	if luhn(id) {
		return true
	}
	if len(id) == 14 && strings.HasPrefix(id, laPosteSIREN) {
		sum := 0
		for _, r := range id {
			sum += int(r - '0')
		}
		return sum%5 == 0
	}
	return false
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
