package filters

import (
	"context"
	"fmt"
	"strings"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// importedFlag is the platform flag set on ads declared as imported
const importedFlag = "imported"

var importPhrases = []string{
	"import",
	"importe",
	"importee",
	"importation",
	"vehicule etranger",
	"voiture etrangere",
	"provenance allemagne",
	"provenance belgique",
	"provenance espagne",
	"provenance italie",
	"origine allemagne",
	"ex allemagne",
	"immatriculation etrangere",
	"carte grise etrangere",
	"plaques etrangeres",
	"certificat de conformite",
	"coc",
	"en cours d immatriculation",
	"quitus fiscal",
	"ww",
}

// ImportFilter (L8) looks for signs the vehicle was imported. An import is
// not fraud by itself, so the worst verdict is a warning.
type ImportFilter struct{}

// NewImportFilter creates L8
func NewImportFilter() *ImportFilter {
	return &ImportFilter{}
}

// ID returns "L8"
func (f *ImportFilter) ID() string { return IDImport }

// Run scans the description and flags
func (f *ImportFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	flagged := l.Flag(importedFlag)
	if strings.TrimSpace(l.Description) == "" && !flagged {
		return nil, errors.NewFilterError(IDImport, "no description", nil)
	}

	signals := matchPhrases(normalizeText(l.Description), importPhrases)
	if flagged {
		signals = append([]string{"flag:" + importedFlag}, signals...)
	}

	var out *models.FilterOutcome
	switch {
	case len(signals) == 0:
		out = outcome(types.StatusPass, 1, "no import signal")
	case len(signals) == 1:
		out = outcome(types.StatusWarning, 0.6, "vehicle may be imported")
	default:
		out = outcome(types.StatusWarning, 0.4, fmt.Sprintf("vehicle likely imported (%d signals)", len(signals)))
	}
	if len(signals) > 0 {
		out.Details = map[string]interface{}{"signals": signals}
	}
	return out, nil
}
