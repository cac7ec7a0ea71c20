package pricing

import (
	"math"
	"strings"

	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

const (
	defaultMinSamples    = AbsoluteMinSamples
	nicheMinSamples      = 5
	ultraNicheMinSamples = 8
	highPowerThresholdHP = 300
)

// Low-volume makes need more samples before a crowdsourced median is trusted.
var (
	ultraNicheMakes = map[string]bool{
		"ferrari":      true,
		"lamborghini":  true,
		"mclaren":      true,
		"bugatti":      true,
		"pagani":       true,
		"koenigsegg":   true,
		"rolls royce":  true,
		"bentley":      true,
		"aston martin": true,
	}
	nicheMakes = map[string]bool{
		"porsche":  true,
		"maserati": true,
		"alpine":   true,
		"lotus":    true,
		"jaguar":   true,
		"lexus":    true,
		"abarth":   true,
		"morgan":   true,
		"cupra":    true,
	}
)

// Thresholds computes the minimum crowdsourced sample count per vehicle
type Thresholds struct {
	overrides map[string]int
}

// NewThresholds builds thresholds from "make:model" -> n overrides. Keys are
// folded; values below the absolute floor are raised to it.
func NewThresholds(overrides map[string]int) *Thresholds {
	t := &Thresholds{overrides: make(map[string]int, len(overrides))}
	for key, n := range overrides {
		brand, model, _ := strings.Cut(key, ":")
		if n < AbsoluteMinSamples {
			n = AbsoluteMinSamples
		}
		t.overrides[vehicle.MakeModelKey(brand, model)] = n
	}
	return t
}

// MinSamples returns the per-vehicle override, else 8 for ultra-niche makes,
// else 5 for niche makes or power >= 300hp, else 3.
func (t *Thresholds) MinSamples(brand, model string, powerHP *int) int {
	if t != nil {
		if n, ok := t.overrides[vehicle.MakeModelKey(brand, model)]; ok {
			return n
		}
	}
	folded := vehicle.Fold(brand)
	switch {
	case ultraNicheMakes[folded]:
		return ultraNicheMinSamples
	case nicheMakes[folded]:
		return nicheMinSamples
	case powerHP != nil && *powerHP >= highPowerThresholdHP:
		return nicheMinSamples
	}
	return defaultMinSamples
}

// Deviation is the signed percentage gap between a listing price and the reference
func Deviation(price, reference int) float64 {
	if reference <= 0 {
		return 0
	}
	return float64(price-reference) / float64(reference) * 100
}

// Classify maps a deviation onto the fixed bands: <=10% pass, <=25% warning, else fail
func Classify(deviation float64) types.FilterStatus {
	abs := math.Abs(deviation)
	switch {
	case abs <= 10:
		return types.StatusPass
	case abs <= 25:
		return types.StatusWarning
	default:
		return types.StatusFail
	}
}

// RoundPercent rounds a percentage to two decimals for display
func RoundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
