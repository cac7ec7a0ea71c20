package filters

import (
	"context"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// ModelCatalog knows which makes and models exist. *pricing.SeedReference
// implements it.
type ModelCatalog interface {
	Len() int
	KnowsMake(brand string) bool
	KnowsModel(brand, model string) bool
}

// CatalogFilter (L2) checks that the make and model are recognized
type CatalogFilter struct {
	catalog ModelCatalog
}

// NewCatalogFilter creates L2. A nil or empty catalog makes it skip.
func NewCatalogFilter(catalog ModelCatalog) *CatalogFilter {
	return &CatalogFilter{catalog: catalog}
}

// ID returns "L2"
func (f *CatalogFilter) ID() string { return IDCatalog }

// Run looks the make and model up
func (f *CatalogFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	if f.catalog == nil || f.catalog.Len() == 0 {
		return nil, errors.NewFilterError(IDCatalog, "model catalog unavailable", nil)
	}

	switch {
	case f.catalog.KnowsModel(l.Make, l.Model):
		return outcome(types.StatusPass, 1, "model recognized"), nil
	case f.catalog.KnowsMake(l.Make):
		return outcome(types.StatusWarning, 0.5, "make recognized, model unknown"), nil
	default:
		return outcome(types.StatusFail, 0, "unknown make"), nil
	}
}
