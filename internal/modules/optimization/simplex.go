package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultSimplexTolerance is the tolerance handed to the simplex routine.
const DefaultSimplexTolerance = 1e-10

const (
	// FeasibilityTolerance is the relative primal slack granted to inequality
	// rows when a first solve reports infeasibility.
	FeasibilityTolerance = 1e-9

	// SolutionTolerance bounds how far simplex values may miss the model's
	// bounds and constraints before the solve is rejected.
	SolutionTolerance = 1e-7
)

// SimplexSolver solves LpModels with gonum's simplex implementation.
type SimplexSolver struct {
	tolerance float64
	log       zerolog.Logger
}

// NewSimplexSolver creates a simplex-backed solver. A non-positive tolerance
// selects DefaultSimplexTolerance.
func NewSimplexSolver(tolerance float64, log zerolog.Logger) *SimplexSolver {
	if tolerance <= 0 {
		tolerance = DefaultSimplexTolerance
	}
	return &SimplexSolver{
		tolerance: tolerance,
		log:       log.With().Str("component", "simplex").Logger(),
	}
}

// Solve runs the simplex method on model. The simplex routine itself cannot be
// interrupted, so when ctx ends first the solve is abandoned and its result
// discarded.
func (s *SimplexSolver) Solve(ctx context.Context, model *LpModel) Solution {
	if model == nil || model.NumVariables() == 0 {
		return rejected(StatusUndefined, "model has no variables")
	}
	if err := ctx.Err(); err != nil {
		return rejected(StatusTimeout, err.Error())
	}

	done := make(chan Solution, 1)
	go func() {
		done <- s.solve(model)
	}()

	select {
	case sol := <-done:
		return sol
	case <-ctx.Done():
		s.log.Warn().
			Int("variables", model.NumVariables()).
			Err(ctx.Err()).
			Msg("Solve abandoned")
		return rejected(StatusTimeout, ctx.Err().Error())
	}
}

func (s *SimplexSolver) solve(model *LpModel) (sol Solution) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Simplex panicked")
			sol = rejected(StatusUndefined, fmt.Sprintf("solver panic: %v", r))
		}
	}()

	values, early := s.run(model)
	if early != nil && (early.Status == StatusInfeasible || early.Status == StatusUndefined) {
		// gonum rejects a basis with any slightly negative slack, so rows that
		// must sit exactly on an inequality can come back infeasible.
		if relaxed, ok := s.runRelaxed(model); ok {
			values, early = relaxed, nil
		}
	}
	if early != nil {
		return *early
	}

	if !model.Feasible(values, SolutionTolerance) {
		return rejected(StatusUndefined, "simplex solution violates the model")
	}
	for j, v := range model.Variables {
		values[j] = clamp(values[j], v.Lower, v.Upper)
	}

	return Solution{
		Status:    StatusOptimal,
		Values:    values,
		Objective: model.Value(values),
	}
}

// run solves model once. A non-nil Solution is the final non-optimal outcome.
func (s *SimplexSolver) run(model *LpModel) ([]float64, *Solution) {
	sf, early := toStandardForm(model, s.tolerance)
	if early != nil {
		return nil, early
	}

	values := sf.lowerBounds()
	if len(sf.c) > 0 {
		_, x, err := lp.Simplex(sf.c, sf.a, sf.b, s.tolerance, nil)
		if err != nil {
			sol := mapSimplexError(err)
			return nil, &sol
		}
		for j, col := range sf.columns {
			if col >= 0 {
				values[j] += x[col]
			}
		}
	}

	s.log.Debug().
		Int("rows", len(sf.b)).
		Int("columns", len(sf.c)).
		Msg("Simplex solved")
	return values, nil
}

// runRelaxed re-solves model with every inequality loosened by
// FeasibilityTolerance. The result is only used when it satisfies the
// unrelaxed model within SolutionTolerance.
func (s *SimplexSolver) runRelaxed(model *LpModel) ([]float64, bool) {
	values, early := s.run(relaxInequalities(model, FeasibilityTolerance))
	if early != nil {
		return nil, false
	}
	if !model.Feasible(values, SolutionTolerance) {
		s.log.Debug().Msg("Relaxed solution does not satisfy the model")
		return nil, false
	}
	s.log.Debug().Int("variables", model.NumVariables()).Msg("Infeasible report resolved by relaxed solve")
	return values, true
}

// relaxInequalities returns a copy of model whose inequality constraints and
// finite upper bounds are loosened by tol·max(1, |rhs|). Equalities and lower
// bounds are unchanged.
func relaxInequalities(model *LpModel, tol float64) *LpModel {
	slack := func(rhs float64) float64 {
		return tol * math.Max(1, math.Abs(rhs))
	}

	relaxed := &LpModel{
		Sense:       model.Sense,
		Objective:   model.Objective,
		Variables:   make([]Variable, len(model.Variables)),
		Constraints: make([]Constraint, len(model.Constraints)),
	}
	for j, v := range model.Variables {
		if !math.IsInf(v.Upper, 1) {
			v.Upper += slack(v.Upper)
		}
		relaxed.Variables[j] = v
	}
	for i, c := range model.Constraints {
		switch c.Relation {
		case LessEqual:
			c.RHS += slack(c.RHS)
		case GreaterEqual:
			c.RHS -= slack(c.RHS)
		}
		relaxed.Constraints[i] = c
	}
	return relaxed
}

// mapSimplexError converts gonum's errors to a solver status.
func mapSimplexError(err error) Solution {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return rejected(StatusInfeasible, err.Error())
	case errors.Is(err, lp.ErrUnbounded):
		return rejected(StatusUnbounded, err.Error())
	default:
		return rejected(StatusUndefined, err.Error())
	}
}

// standardForm is an LpModel rewritten as
//
//	minimize cᵀy subject to Ay = b, y >= 0
//
// where y holds the shifted model variables (x - lower) that appear in at
// least one row, followed by one slack or surplus column per inequality.
type standardForm struct {
	c []float64
	a *mat.Dense
	b []float64

	// columns maps a model variable to its column in y, or -1 when the
	// variable appears in no row and stays at its lower bound.
	columns []int
	lower   []float64
}

func (sf *standardForm) lowerBounds() []float64 {
	out := make([]float64, len(sf.lower))
	copy(out, sf.lower)
	return out
}

type sfRow struct {
	coeffs []float64
	rel    Relation
	rhs    float64
}

// toStandardForm converts model. When the outcome is already decided
// (trivially infeasible rows, unbounded free columns, unsupported bounds)
// it returns that solution instead.
func toStandardForm(model *LpModel, tol float64) (*standardForm, *Solution) {
	n := model.NumVariables()
	lower := make([]float64, n)
	sign := 1.0
	if model.Sense == Maximize {
		sign = -1
	}

	var rows []sfRow
	for j, v := range model.Variables {
		if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
			sol := rejected(StatusUndefined, fmt.Sprintf("variable %s has no finite lower bound", v.Key))
			return nil, &sol
		}
		if v.Upper < v.Lower {
			sol := rejected(StatusInfeasible, fmt.Sprintf("variable %s has empty domain [%v, %v]", v.Key, v.Lower, v.Upper))
			return nil, &sol
		}
		lower[j] = v.Lower
	}

	for _, c := range model.Constraints {
		rhs := c.RHS - c.Activity(lower)
		if isZeroRow(c.Coeffs) {
			if !trivialRowHolds(c.Relation, rhs, tol) {
				sol := rejected(StatusInfeasible, fmt.Sprintf("constraint %s has no variables and cannot hold", c.Name))
				return nil, &sol
			}
			continue
		}
		rows = append(rows, sfRow{coeffs: c.Coeffs, rel: c.Relation, rhs: rhs})
	}

	for j, v := range model.Variables {
		if math.IsInf(v.Upper, 1) {
			continue
		}
		coeffs := make([]float64, n)
		coeffs[j] = 1
		rows = append(rows, sfRow{coeffs: coeffs, rel: LessEqual, rhs: v.Upper - v.Lower})
	}

	columns := make([]int, n)
	var cost []float64
	for j := range model.Variables {
		used := false
		for _, r := range rows {
			if r.coeffs[j] != 0 {
				used = true
				break
			}
		}
		if !used {
			if sign*model.Objective[j] < 0 {
				sol := rejected(StatusUnbounded, fmt.Sprintf("variable %s is unconstrained and improves the objective", model.Variables[j].Key))
				return nil, &sol
			}
			columns[j] = -1
			continue
		}
		columns[j] = len(cost)
		cost = append(cost, sign*model.Objective[j])
	}

	structural := len(cost)
	for _, r := range rows {
		if r.rel != Equal {
			cost = append(cost, 0)
		}
	}

	sf := &standardForm{columns: columns, lower: lower}
	if len(rows) == 0 {
		return sf, nil
	}

	m, cols := len(rows), len(cost)
	if m > cols {
		sol := rejected(StatusUndefined, fmt.Sprintf("%d rows exceed %d columns", m, cols))
		return nil, &sol
	}

	a := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	slack := structural
	for i, r := range rows {
		for j, coef := range r.coeffs {
			if columns[j] >= 0 {
				a.Set(i, columns[j], coef)
			}
		}
		switch r.rel {
		case LessEqual:
			a.Set(i, slack, 1)
			slack++
		case GreaterEqual:
			a.Set(i, slack, -1)
			slack++
		}
		b[i] = r.rhs
		if b[i] < 0 {
			for j := 0; j < cols; j++ {
				a.Set(i, j, -a.At(i, j))
			}
			b[i] = -b[i]
		}
	}

	sf.c, sf.a, sf.b = cost, a, b
	return sf, nil
}

func isZeroRow(coeffs []float64) bool {
	for _, v := range coeffs {
		if v != 0 {
			return false
		}
	}
	return true
}

// trivialRowHolds evaluates 0 rel rhs.
func trivialRowHolds(rel Relation, rhs, tol float64) bool {
	switch rel {
	case Equal:
		return math.Abs(rhs) <= tol
	case GreaterEqual:
		return rhs <= tol
	default:
		return rhs >= -tol
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
