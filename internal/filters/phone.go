package filters

import (
	"context"
	"fmt"
	"strings"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
	"github.com/nyaruka/phonenumbers"
)

// phonePlans are the numbering plans classified in detail
var phonePlans = map[string]bool{
	"FR": true,
	"BE": true,
	"CH": true,
}

// PhoneFilter (L6) checks the contact number format for FR, BE and CH and
// flags premium-rate and hard-to-trace numbers
type PhoneFilter struct {
	defaultCountry string
}

// NewPhoneFilter creates L6
func NewPhoneFilter(defaultCountry string) *PhoneFilter {
	return &PhoneFilter{defaultCountry: defaultCountry}
}

// ID returns "L6"
func (f *PhoneFilter) ID() string { return IDPhone }

// Run classifies the phone number
func (f *PhoneFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	if strings.TrimSpace(l.Phone) == "" {
		return nil, errors.NewFilterError(IDPhone, "no phone number", nil)
	}

	country := l.CountryOr(f.defaultCountry)
	num, err := phonenumbers.Parse(l.Phone, country)
	if err != nil {
		return outcome(types.StatusFail, 0, "invalid phone number"), nil
	}

	region := phonenumbers.GetRegionCodeForCountryCode(int(num.GetCountryCode()))
	if !phonePlans[region] {
		if region == country {
			return outcome(types.StatusNeutral, 1, fmt.Sprintf("phone format not checked for %s", country)), nil
		}
		if !phonenumbers.IsValidNumber(num) {
			return outcome(types.StatusFail, 0, "invalid phone number"), nil
		}
		out := outcome(types.StatusWarning, 0.5, "foreign phone number")
		out.Details = map[string]interface{}{"type": "foreign", "country": phonenumbers.GetRegionCodeForNumber(num)}
		return out, nil
	}

	out := classifyPhone(num)
	if out.Status == types.StatusPass && vehicle.SupportedCountry(country) && region != country {
		out = outcome(types.StatusWarning, 0.5, fmt.Sprintf("phone registered in %s", region))
		out.Details = map[string]interface{}{"type": "other_country"}
	}
	if out.Details == nil {
		out.Details = map[string]interface{}{}
	}
	out.Details["country"] = region
	return out, nil
}

func classifyPhone(num *phonenumbers.PhoneNumber) *models.FilterOutcome {
	if !phonenumbers.IsValidNumber(num) {
		return outcome(types.StatusFail, 0, "invalid phone number")
	}

	var kind string
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.PREMIUM_RATE:
		out := outcome(types.StatusFail, 0, "premium-rate phone number")
		out.Details = map[string]interface{}{"type": "premium"}
		return out
	case phonenumbers.SHARED_COST:
		kind = "shared_cost"
	case phonenumbers.VOIP:
		kind = "voip"
	case phonenumbers.PERSONAL_NUMBER:
		kind = "personal"
	default:
		out := outcome(types.StatusPass, 1, "phone number looks valid")
		out.Details = map[string]interface{}{"type": "standard"}
		return out
	}

	out := outcome(types.StatusWarning, 0.5, "phone number is hard to trace")
	out.Details = map[string]interface{}{"type": kind}
	return out
}
