package filters

import (
	"context"
	"fmt"
	"strings"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// Phrases typical of advance-fee and remote-payment scams. One is enough to fail.
var scamPhrasesHigh = []string{
	"western union",
	"moneygram",
	"mandat cash",
	"coupon pcs",
	"coupons pcs",
	"transcash",
	"neosurf",
	"paysafecard",
	"paiement par coupon",
	"paypal entre amis",
	"je suis a l etranger",
	"je suis actuellement a l etranger",
	"je suis en mission",
	"livraison par transporteur",
	"envoi par transporteur",
	"agent de transport",
	"societe de transport",
	"caution remboursable",
	"frais de dedouanement",
}

// Phrases worth a second look on their own
var scamPhrasesMedium = []string{
	"contact par mail uniquement",
	"contact par email uniquement",
	"uniquement par mail",
	"uniquement par email",
	"whatsapp uniquement",
	"pas de visite",
	"visite impossible",
	"acompte",
	"virement bancaire uniquement",
	"paiement a la livraison",
	"prix sacrifie",
	"vente rapide cause demenagement",
	"cause depart a l etranger",
}

// ScamFilter (L9) scans the description for payment and contact red flags
type ScamFilter struct{}

// NewScamFilter creates L9
func NewScamFilter() *ScamFilter {
	return &ScamFilter{}
}

// ID returns "L9"
func (f *ScamFilter) ID() string { return IDScam }

// Run scans the description
func (f *ScamFilter) Run(_ context.Context, l *models.ListingRecord) (*models.FilterOutcome, error) {
	if strings.TrimSpace(l.Description) == "" {
		return nil, errors.NewFilterError(IDScam, "no description", nil)
	}

	text := normalizeText(l.Description)
	high := matchPhrases(text, scamPhrasesHigh)
	medium := matchPhrases(text, scamPhrasesMedium)

	var out *models.FilterOutcome
	switch {
	case len(high) > 0:
		out = outcome(types.StatusFail, 0, fmt.Sprintf("scam pattern: %s", high[0]))
	case len(medium) == 1:
		out = outcome(types.StatusWarning, 0.5, fmt.Sprintf("suspicious wording: %s", medium[0]))
	case len(medium) > 1:
		out = outcome(types.StatusWarning, 0.25, fmt.Sprintf("%d suspicious phrases", len(medium)))
	default:
		return outcome(types.StatusPass, 1, "no red flag in description"), nil
	}
	out.Details = map[string]interface{}{
		"high":   high,
		"medium": medium,
	}
	return out, nil
}
