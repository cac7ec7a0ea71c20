package pricing

import (
	"math"
	"sort"

	"github.com/listing-trust/internal/models"
)

// AbsoluteMinSamples is the floor below which a sample batch is rejected and
// a cached reference is never trusted
const AbsoluteMinSamples = 3

// ComputeStats derives every statistic of a reference from one sample set.
// Non-positive prices are ignored. The interquartile mean drops the lowest and
// highest quarter of the sorted samples; with fewer than four samples it is
// the plain mean.
func ComputeStats(prices []int) models.PriceStats {
	sorted := make([]int, 0, len(prices))
	for _, p := range prices {
		if p > 0 {
			sorted = append(sorted, p)
		}
	}
	n := len(sorted)
	if n == 0 {
		return models.PriceStats{}
	}
	sort.Ints(sorted)

	var sum float64
	for _, p := range sorted {
		sum += float64(p)
	}
	mean := sum / float64(n)

	var sq float64
	for _, p := range sorted {
		d := float64(p) - mean
		sq += d * d
	}

	var median float64
	if n%2 == 1 {
		median = float64(sorted[n/2])
	} else {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	q := n / 4
	inner := sorted[q : n-q]
	var innerSum float64
	for _, p := range inner {
		innerSum += float64(p)
	}

	return models.PriceStats{
		Min:         sorted[0],
		Median:      int(math.Round(median)),
		Mean:        int(math.Round(mean)),
		Max:         sorted[n-1],
		Std:         math.Round(math.Sqrt(sq/float64(n))*100) / 100,
		IQM:         int(math.Round(innerSum / float64(len(inner)))),
		SampleCount: n,
	}
}

// CountPositive returns how many prices would be kept by ComputeStats
func CountPositive(prices []int) int {
	n := 0
	for _, p := range prices {
		if p > 0 {
			n++
		}
	}
	return n
}
