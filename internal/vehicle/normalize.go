// Package vehicle holds the key normalization rules shared by price references
// and collection jobs: folded text keys, fuel and gearbox vocabularies, power
// bands and the per-country region lists.
package vehicle

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical fuel values
const (
	FuelDiesel   = "diesel"
	FuelEssence  = "essence"
	FuelHybride  = "hybride"
	FuelElectric = "electrique"
	FuelGPL      = "gpl"
)

// Canonical gearbox values
const (
	GearboxManual    = "manuelle"
	GearboxAutomatic = "automatique"
)

var fuelAliases = map[string]string{
	"diesel":     FuelDiesel,
	"gazole":     FuelDiesel,
	"gasoil":     FuelDiesel,
	"essence":    FuelEssence,
	"petrol":     FuelEssence,
	"gasoline":   FuelEssence,
	"benzine":    FuelEssence,
	"hybride":    FuelHybride,
	"hybrid":     FuelHybride,
	"electrique": FuelElectric,
	"electric":   FuelElectric,
	"gpl":        FuelGPL,
	"lpg":        FuelGPL,
}

var gearboxAliases = map[string]string{
	"manuelle":     GearboxManual,
	"manuel":       GearboxManual,
	"manual":       GearboxManual,
	"automatique":  GearboxAutomatic,
	"auto":         GearboxAutomatic,
	"automatic":    GearboxAutomatic,
	"sequentielle": GearboxAutomatic,
}

// Fold lowercases s, strips diacritics, maps separators to spaces and
// collapses runs of whitespace. Fold(Fold(s)) == Fold(s).
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}

	stripped = strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '\'', '’', '/':
			return ' '
		}
		return r
	}, stripped)

	return strings.Join(strings.Fields(stripped), " ")
}

// NormalizeFuel folds fuel and maps known synonyms onto the canonical value.
// Unknown values are returned folded.
func NormalizeFuel(fuel string) string {
	f := Fold(fuel)
	if canonical, ok := fuelAliases[f]; ok {
		return canonical
	}
	return f
}

// NormalizeGearbox folds gearbox and maps known synonyms.
func NormalizeGearbox(gearbox string) string {
	g := Fold(gearbox)
	if canonical, ok := gearboxAliases[g]; ok {
		return canonical
	}
	return g
}

// OppositeFuel returns the diesel/essence counterpart. Other fuels have none.
func OppositeFuel(fuel string) (string, bool) {
	switch NormalizeFuel(fuel) {
	case FuelDiesel:
		return FuelEssence, true
	case FuelEssence:
		return FuelDiesel, true
	}
	return "", false
}

// OppositeGearbox returns the manual/automatic counterpart.
func OppositeGearbox(gearbox string) (string, bool) {
	switch NormalizeGearbox(gearbox) {
	case GearboxManual:
		return GearboxAutomatic, true
	case GearboxAutomatic:
		return GearboxManual, true
	}
	return "", false
}

type powerBand struct {
	upper int // exclusive; 0 means unbounded
	label string
}

var powerBands = []powerBand{
	{90, "0-89"},
	{130, "90-129"},
	{180, "130-179"},
	{250, "180-249"},
	{350, "250-349"},
	{0, "350+"},
}

// PowerBand buckets horsepower into comparable trims. A nil or non-positive
// power yields "" (unknown band).
func PowerBand(hp *int) string {
	if hp == nil || *hp <= 0 {
		return ""
	}
	for _, b := range powerBands {
		if b.upper == 0 || *hp < b.upper {
			return b.label
		}
	}
	return ""
}

// MakeModelKey is the "make:model" key used for per-vehicle overrides
func MakeModelKey(brand, model string) string {
	return Fold(brand) + ":" + Fold(model)
}
