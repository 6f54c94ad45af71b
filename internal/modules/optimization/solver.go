package optimization

import (
	"context"
	"fmt"
)

// Status is the outcome of a solve.
type Status string

// Solver outcomes. StatusTimeout is reported when the solve context ends first.
const (
	StatusOptimal    Status = "Optimal"
	StatusInfeasible Status = "Infeasible"
	StatusUnbounded  Status = "Unbounded"
	StatusUndefined  Status = "Undefined"
	StatusTimeout    Status = "Timeout"
)

// Solution is the result of solving an LpModel. Values is aligned with the
// model's variables and is only set when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
	Detail    string
}

// Optimal reports whether the solution carries usable values.
func (s Solution) Optimal() bool {
	return s.Status == StatusOptimal
}

// Solver is any LP backend able to solve an LpModel.
type Solver interface {
	Solve(ctx context.Context, model *LpModel) Solution
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, model *LpModel) Solution

// Solve calls f(ctx, model)
func (f SolverFunc) Solve(ctx context.Context, model *LpModel) Solution {
	return f(ctx, model)
}

// SolveError is returned by Result.Err for non-optimal solver outcomes.
type SolveError struct {
	Status Status
	Detail string
}

func (e *SolveError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("solver returned %s", e.Status)
	}
	return fmt.Sprintf("solver returned %s: %s", e.Status, e.Detail)
}

// rejected builds a non-optimal solution; it never carries values.
func rejected(status Status, detail string) Solution {
	return Solution{Status: status, Detail: detail}
}
