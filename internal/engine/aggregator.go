package engine

import (
	"math"

	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// DefaultWeight applies to filter ids missing from the weight table
const DefaultWeight = 1.0

// DefaultWeights weights critical checks 2x and weak signals 0.5x
var DefaultWeights = map[string]float64{
	"L1": 1.0,
	"L2": 1.0,
	"L3": 2.0,
	"L4": 2.0,
	"L5": 1.0,
	"L6": 0.5,
	"L7": 1.0,
	"L8": 0.5,
	"L9": 1.0,
}

// ScoreAggregator folds filter outcomes into a 0-100 trust score
type ScoreAggregator struct {
	weights map[string]float64
}

// NewScoreAggregator starts from DefaultWeights and applies overrides.
// Negative weights are treated as zero.
func NewScoreAggregator(overrides map[string]float64) *ScoreAggregator {
	weights := make(map[string]float64, len(DefaultWeights)+len(overrides))
	for id, w := range DefaultWeights {
		weights[id] = w
	}
	for id, w := range overrides {
		weights[id] = math.Max(w, 0)
	}
	return &ScoreAggregator{weights: weights}
}

// Weight returns the weight of a filter id
func (a *ScoreAggregator) Weight(filterID string) float64 {
	if w, ok := a.weights[filterID]; ok {
		return w
	}
	return DefaultWeight
}

// Aggregate computes round(100 * weighted sum / weighted total). Skipped
// outcomes count in the total but add nothing to the sum, so missing data
// lowers the score and marks it partial.
func (a *ScoreAggregator) Aggregate(outcomes []*models.FilterOutcome) models.TrustScore {
	var (
		sum, total float64
		partial    bool
		counted    int
	)
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		counted++
		w := a.Weight(o.FilterID)
		total += w
		if o.Status == types.StatusSkip {
			partial = true
			continue
		}
		sum += w * clampUnit(o.Score)
	}

	if counted == 0 || total <= 0 {
		return models.TrustScore{Score: 0, Partial: true}
	}

	score := int(math.Round(100 * sum / total))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return models.TrustScore{Score: score, Partial: partial}
}
