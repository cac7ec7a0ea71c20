package models

import (
	"strings"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

// MinListingYear is the oldest model year accepted at the boundary
const MinListingYear = 1950

// PriceBand is a low/high price range, used for seed bands and the
// platform-provided self-estimate
type PriceBand struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Midpoint returns the rounded centre of the band
func (b PriceBand) Midpoint() int {
	return (b.Low + b.High + 1) / 2
}

// Valid reports whether the band is positive and ordered
func (b PriceBand) Valid() bool {
	return b.Low > 0 && b.High >= b.Low
}

// ListingRecord is the normalized view of one classified ad. Optional numeric
// fields are nil when the ad does not state them.
type ListingRecord struct {
	ID           string           `json:"id"`
	Make         string           `json:"make"`
	Model        string           `json:"model"`
	Year         *int             `json:"year,omitempty"`
	Mileage      *int             `json:"mileage,omitempty"`
	Price        *int             `json:"price,omitempty"`
	Fuel         string           `json:"fuel,omitempty"`
	Gearbox      string           `json:"gearbox,omitempty"`
	PowerHP      *int             `json:"powerHp,omitempty"`
	Region       string           `json:"region,omitempty"`
	Country      string           `json:"country,omitempty"`
	SellerType   types.SellerType `json:"sellerType,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	CompanyID    string           `json:"companyId,omitempty"` // SIRET or equivalent registry number
	Description  string           `json:"description,omitempty"`
	PublishedAt  *time.Time       `json:"publishedAt,omitempty"`
	UpdatedAt    *time.Time       `json:"updatedAt,omitempty"`
	SelfEstimate *PriceBand       `json:"selfEstimate,omitempty"`
	Flags        map[string]bool  `json:"flags,omitempty"`
}

// Validate checks the listing once at the boundary, before it enters the engine
func (l *ListingRecord) Validate(now time.Time) error {
	if strings.TrimSpace(l.Make) == "" {
		return errors.NewValidationError("make", "required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return errors.NewValidationError("model", "required")
	}
	if l.Year != nil && (*l.Year < MinListingYear || *l.Year > now.Year()+1) {
		return errors.NewValidationError("year", "out of range")
	}
	if l.Price != nil && *l.Price < 0 {
		return errors.NewValidationError("price", "must not be negative")
	}
	if l.Mileage != nil && *l.Mileage < 0 {
		return errors.NewValidationError("mileage", "must not be negative")
	}
	if l.PowerHP != nil && *l.PowerHP < 0 {
		return errors.NewValidationError("powerHp", "must not be negative")
	}
	if l.SellerType != "" && l.SellerType != types.SellerPrivate && l.SellerType != types.SellerPro {
		return errors.NewValidationError("sellerType", "must be private or pro")
	}
	if l.SelfEstimate != nil && !l.SelfEstimate.Valid() {
		return errors.NewValidationError("selfEstimate", "low must be positive and not above high")
	}
	return nil
}

// PowerBand returns the listing's power bucket, "" when power is unknown
func (l *ListingRecord) PowerBand() string {
	return vehicle.PowerBand(l.PowerHP)
}

// CountryOr returns the listing country, or fallback when it is not set
func (l *ListingRecord) CountryOr(fallback string) string {
	if c := vehicle.NormalizeCountry(l.Country); c != "" {
		return c
	}
	return vehicle.NormalizeCountry(fallback)
}

// Flag returns the named platform flag, false when absent
func (l *ListingRecord) Flag(name string) bool {
	return l.Flags[name]
}
