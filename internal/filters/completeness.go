package filters

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// CompletenessFilter (L1) scores how many of the fields buyers rely on the ad
// states. An ad without a price fails outright.
type CompletenessFilter struct{}

// NewCompletenessFilter creates L1
func NewCompletenessFilter() *CompletenessFilter {
	return &CompletenessFilter{}
}

// ID returns "L1"
func (f *CompletenessFilter) ID() string { return IDCompleteness }

// Run checks the listing fields
func (f *CompletenessFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	fields := []struct {
		name    string
		present bool
	}{
		{"make", strings.TrimSpace(l.Make) != ""},
		{"model", strings.TrimSpace(l.Model) != ""},
		{"year", l.Year != nil},
		{"mileage", l.Mileage != nil},
		{"price", l.Price != nil && *l.Price > 0},
		{"fuel", strings.TrimSpace(l.Fuel) != ""},
		{"gearbox", strings.TrimSpace(l.Gearbox) != ""},
		{"power", l.PowerHP != nil && *l.PowerHP > 0},
		{"region", strings.TrimSpace(l.Region) != ""},
		{"phone", strings.TrimSpace(l.Phone) != ""},
		{"description", strings.TrimSpace(l.Description) != ""},
	}

	missing := []string{}
	for _, fld := range fields {
		if !fld.present {
			missing = append(missing, fld.name)
		}
	}
	ratio := float64(len(fields)-len(missing)) / float64(len(fields))
	ratio = math.Round(ratio*100) / 100

	var out *models.FilterOutcome
	switch {
	case l.Price == nil || *l.Price <= 0:
		out = outcome(types.StatusFail, 0, "price missing")
	case len(missing) == 0:
		out = outcome(types.StatusPass, 1, "all key fields present")
	case ratio >= 0.8:
		out = outcome(types.StatusPass, ratio, fmt.Sprintf("%d field(s) missing", len(missing)))
	case ratio >= 0.5:
		out = outcome(types.StatusWarning, ratio, fmt.Sprintf("%d field(s) missing", len(missing)))
	default:
		out = outcome(types.StatusFail, ratio, fmt.Sprintf("%d field(s) missing", len(missing)))
	}
	out.Details = map[string]interface{}{
		"missing":      missing,
		"completeness": ratio,
	}
	return out, nil
}
