// Package optimization builds and solves the yield-maximizing allocation LP.
package optimization

import (
	"github.com/aristath/yieldopt/internal/domain"
)

// Constraint names, in the order BuildModel adds them
const (
	BudgetConstraint   = "budget"
	DurationConstraint = "duration"
	sectorPrefix       = "sector_"
)

// Row is one instrument as seen by the optimizer. Metric is the YTM or OAS
// value selected by the request objective.
type Row struct {
	Key      string  `json:"key"`
	Metric   float64 `json:"metric"`
	Duration float64 `json:"duration"`
	Sector   string  `json:"sector"`
}

// SectorConstraintName returns the constraint name used for a capped sector.
func SectorConstraintName(s domain.Sector) string {
	return sectorPrefix + string(s)
}

// BuildModel translates rows and a validated request into an LP:
//
//	maximize   Σ metric_i·w_i
//	subject to Σ w_i <= 1
//	           Σ duration_i·w_i = target
//	           Σ_{i in s} w_i <= cap   for s in FINANCIAL, INDUSTRIAL, UTILITY
//	           0 <= w_i <= upperBound
//
// Variable i corresponds to rows[i] and carries its key. Building is
// deterministic and does not depend on any solver.
func BuildModel(rows []Row, req Request) *LpModel {
	n := len(rows)
	model := NewLpModel(Maximize)

	for _, row := range rows {
		model.AddVariable(row.Key, 0, req.UpperBound, row.Metric)
	}

	budget := make([]float64, n)
	duration := make([]float64, n)
	for i, row := range rows {
		budget[i] = 1
		duration[i] = row.Duration
	}
	model.addRow(BudgetConstraint, budget, LessEqual, 1)
	model.addRow(DurationConstraint, duration, Equal, req.TargetDuration)

	for _, sector := range domain.CappedSectors {
		coeffs := make([]float64, n)
		for i, row := range rows {
			if domain.Sector(row.Sector) == sector {
				coeffs[i] = 1
			}
		}
		model.addRow(SectorConstraintName(sector), coeffs, LessEqual, req.SectorCap)
	}

	return model
}
