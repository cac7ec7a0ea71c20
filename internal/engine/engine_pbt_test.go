package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

// behaviourFilter picks its behaviour from an index: pass, known failure,
// unexpected error, panic or nil outcome
func behaviourFilter(id string, behaviour int) AnalysisFilter {
	return &stubFilter{id: id, fn: func(context.Context) (*models.FilterOutcome, error) {
		switch behaviour {
		case 0:
			return &models.FilterOutcome{Status: types.StatusPass, Score: 1}, nil
		case 1:
			return nil, errors.NewFilterError(id, "missing data", nil)
		case 2:
			return nil, stderrors.New("boom")
		case 3:
			panic("boom")
		default:
			return nil, nil
		}
	}}
}

func TestRunAllProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one outcome per filter, sorted by id", prop.ForAll(
		func(behaviours []int) bool {
			var filters []AnalysisFilter
			for i, b := range behaviours {
				// reverse order so sorting is exercised
				filters = append(filters, behaviourFilter(fmt.Sprintf("F%02d", len(behaviours)-i), b))
			}
			e, err := NewFilterEngine(filters, WithMaxWorkers(4))
			if err != nil {
				return false
			}

			out := e.RunAll(context.Background(), &models.ListingRecord{})
			if len(out) != len(behaviours) {
				return false
			}
			ids := make([]string, len(out))
			for i, o := range out {
				if o == nil || !o.Status.Valid() {
					return false
				}
				ids[i] = o.FilterID
			}
			return sort.StringsAreSorted(ids)
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func TestAggregateProperties(t *testing.T) {
	a := NewScoreAggregator(nil)
	ids := []string{"L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8", "L9"}

	build := func(scores []float64, skips []bool) []*models.FilterOutcome {
		out := make([]*models.FilterOutcome, len(ids))
		for i, id := range ids {
			status := types.StatusPass
			if skips[i] {
				status = types.StatusSkip
			}
			out[i] = &models.FilterOutcome{FilterID: id, Status: status, Score: scores[i]}
		}
		return out
	}

	properties := gopter.NewProperties(nil)

	properties.Property("raising one score never lowers the aggregate", prop.ForAll(
		func(scores []float64, skips []bool, idx int, delta float64) bool {
			before := a.Aggregate(build(scores, skips))

			raised := append([]float64(nil), scores...)
			raised[idx] += delta
			if raised[idx] > 1 {
				raised[idx] = 1
			}
			after := a.Aggregate(build(raised, skips))
			return after.Score >= before.Score
		},
		gen.SliceOfN(9, gen.Float64Range(0, 1)),
		gen.SliceOfN(9, gen.Bool()),
		gen.IntRange(0, 8),
		gen.Float64Range(0, 1),
	))

	properties.Property("score stays in range and partial tracks skips", prop.ForAll(
		func(scores []float64, skips []bool) bool {
			got := a.Aggregate(build(scores, skips))
			anySkip := false
			for _, s := range skips {
				anySkip = anySkip || s
			}
			return got.Score >= 0 && got.Score <= 100 && got.Partial == anySkip
		},
		gen.SliceOfN(9, gen.Float64Range(0, 1)),
		gen.SliceOfN(9, gen.Bool()),
	))

	properties.TestingRun(t)
}
