package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPrecisionForSamplesIsMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	rank := map[PrecisionTier]int{PrecisionLow: 0, PrecisionMedium: 1, PrecisionHigh: 2}

	properties.Property("more samples never lower the precision tier", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return rank[PrecisionForSamples(a)] <= rank[PrecisionForSamples(b)]
		},
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}
