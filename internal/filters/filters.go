// Package filters implements the nine analysis filters run by the engine.
// Each filter looks at one aspect of a listing and returns a verdict; a
// filter that cannot judge returns an *errors.FilterError and the engine
// records a skip.
package filters

import (
	"strings"
	"time"
	"unicode"

	"github.com/listing-trust/internal/adapter"
	"github.com/listing-trust/internal/engine"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

// Filter ids
const (
	IDCompleteness = "L1"
	IDCatalog      = "L2"
	IDConsistency  = "L3"
	IDMarketPrice  = "L4"
	IDOutlier      = "L5"
	IDPhone        = "L6"
	IDRegistry     = "L7"
	IDImport       = "L8"
	IDScam         = "L9"
)

// Dependencies are the collaborators the default filter set needs. Nil
// collaborators make the corresponding filter skip.
type Dependencies struct {
	Catalog        ModelCatalog
	Resolver       PriceResolver
	Registry       adapter.CompanyLookup
	DefaultCountry string
	Now            func() time.Time
}

// NewDefaultSet builds L1 to L9
func NewDefaultSet(deps Dependencies) []engine.AnalysisFilter {
	return []engine.AnalysisFilter{
		NewCompletenessFilter(),
		NewCatalogFilter(deps.Catalog),
		NewConsistencyFilter(deps.Now),
		NewMarketPriceFilter(deps.Resolver, deps.DefaultCountry),
		NewOutlierFilter(deps.Resolver, deps.DefaultCountry),
		NewPhoneFilter(deps.DefaultCountry),
		NewRegistryFilter(deps.Registry, deps.DefaultCountry),
		NewImportFilter(),
		NewScamFilter(),
	}
}

func outcome(status types.FilterStatus, score float64, message string) *models.FilterOutcome {
	return &models.FilterOutcome{Status: status, Score: score, Message: message}
}

// normalizeText folds s and pads it with spaces so phrases can be matched on
// word boundaries with strings.Contains(text, " "+phrase+" ")
func normalizeText(s string) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, vehicle.Fold(s))
	return " " + strings.Join(strings.Fields(folded), " ") + " "
}

// matchPhrases returns the phrases found in normalized text, in list order
func matchPhrases(text string, phrases []string) []string {
	var found []string
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			found = append(found, p)
		}
	}
	return found
}
