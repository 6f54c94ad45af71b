package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/yieldopt/internal/domain"
)

// DefaultZeroTolerance is the absolute threshold below which a weight counts as zero.
const DefaultZeroTolerance = 1e-9

// Allocation pairs a retained weight with the row it was computed for.
type Allocation[R any] struct {
	Index  int     `json:"index" msgpack:"index"`
	Weight float64 `json:"weight" msgpack:"weight"`
	Row    R       `json:"row" msgpack:"row"`
}

// FilterZeroWeights pairs weights with rows by position and drops every pair
// whose weight is within tolerance of zero. Relative order is preserved and
// each allocation keeps the index of its row. Pairing stops at the shorter
// input. Applying it again to the retained weights removes nothing.
func FilterZeroWeights[R any](weights []float64, rows []R, tolerance float64) []Allocation[R] {
	if tolerance < 0 {
		tolerance = -tolerance
	}
	n := len(weights)
	if len(rows) < n {
		n = len(rows)
	}

	out := make([]Allocation[R], 0, n)
	for i := 0; i < n; i++ {
		if math.Abs(weights[i]) < tolerance {
			continue
		}
		out = append(out, Allocation[R]{
			Index:  i,
			Weight: weights[i],
			Row:    rows[i],
		})
	}
	return out
}

// Weights returns the weights of allocs in order.
func Weights[R any](allocs []Allocation[R]) []float64 {
	out := make([]float64, len(allocs))
	for i, a := range allocs {
		out[i] = a.Weight
	}
	return out
}

// CheckAllocation returns a description of every portfolio rule that weights
// violate by more than eps. An empty result means the allocation is valid.
func CheckAllocation(rows []Row, req Request, weights []float64, eps float64) []string {
	var violations []string
	if len(weights) != len(rows) {
		return append(violations, fmt.Sprintf("have %d weights for %d rows", len(weights), len(rows)))
	}

	var total, duration float64
	sectorTotals := make(map[domain.Sector]float64, len(domain.CappedSectors))
	for i, w := range weights {
		if w < -eps || w > req.UpperBound+eps {
			violations = append(violations, fmt.Sprintf("weight %d = %g outside [0, %g]", i, w, req.UpperBound))
		}
		total += w
		duration += w * rows[i].Duration
		sectorTotals[domain.Sector(rows[i].Sector)] += w
	}

	if total > 1+eps {
		violations = append(violations, fmt.Sprintf("weights sum to %g > 1", total))
	}
	if math.Abs(duration-req.TargetDuration) > eps {
		violations = append(violations, fmt.Sprintf("weighted duration %g != target %g", duration, req.TargetDuration))
	}
	for _, s := range domain.CappedSectors {
		if sectorTotals[s] > req.SectorCap+eps {
			violations = append(violations, fmt.Sprintf("sector %s weight %g > cap %g", s, sectorTotals[s], req.SectorCap))
		}
	}
	return violations
}
