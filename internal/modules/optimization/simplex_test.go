package optimization

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/aristath/yieldopt/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const propertyEps = 1e-6

func newTestSolver() *SimplexSolver {
	return NewSimplexSolver(DefaultSimplexTolerance, zerolog.Nop())
}

func TestSimplexSolver_BoundaryScenarioIsOptimal(t *testing.T) {
	rows, req := boundaryRows(), boundaryRequest()

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, req))

	require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
	require.Len(t, sol.Values, len(rows))
	assert.Empty(t, CheckAllocation(rows, req, sol.Values, propertyEps))

	var total, duration float64
	for i, w := range sol.Values {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, req.UpperBound)
		total += w
		duration += w * rows[i].Duration
	}
	assert.LessOrEqual(t, total, 1+propertyEps)
	assert.InDelta(t, req.TargetDuration, duration, propertyEps)
	// Every optimal vertex of this problem has w_A = w_C and a full budget.
	assert.InDelta(t, 0.05, sol.Objective, propertyEps)
}

func TestSimplexSolver_UnreachableDurationIsInfeasible(t *testing.T) {
	req := boundaryRequest()
	req.TargetDuration = 100

	sol := newTestSolver().Solve(context.Background(), BuildModel(boundaryRows(), req))

	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Nil(t, sol.Values)
	assert.NotEmpty(t, sol.Detail)
}

func TestSimplexSolver_UncappedSectorsAreVacuous(t *testing.T) {
	rows := []Row{
		{Key: "t1", Metric: 0.03, Duration: 4, Sector: "SOVEREIGN"},
		{Key: "t2", Metric: 0.035, Duration: 5, Sector: "SOVEREIGN"},
		{Key: "t3", Metric: 0.04, Duration: 6, Sector: "AGENCY"},
	}
	req := boundaryRequest()
	req.SectorCap = 0.2

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, req))

	require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
	assert.Empty(t, CheckAllocation(rows, req, sol.Values, propertyEps))

	var total float64
	for _, w := range sol.Values {
		total += w
	}
	// Far above the 0.2 cap, which applies to none of these sectors.
	assert.InDelta(t, 1.0, total, propertyEps)
	assert.InDelta(t, 0.035, sol.Objective, propertyEps)
}

func TestSimplexSolver_RoundTripIsStable(t *testing.T) {
	solver := newTestSolver()

	first := solver.Solve(context.Background(), BuildModel(boundaryRows(), boundaryRequest()))
	second := solver.Solve(context.Background(), BuildModel(boundaryRows(), boundaryRequest()))

	require.Equal(t, first.Status, second.Status)
	require.Len(t, second.Values, len(first.Values))
	for i := range first.Values {
		assert.InDelta(t, first.Values[i], second.Values[i], propertyEps)
	}
}

func TestSimplexSolver_ZeroDurationRowIsInfeasible(t *testing.T) {
	rows := []Row{
		{Key: "cash", Metric: 0.01, Duration: 0, Sector: "FINANCIAL"},
	}

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, boundaryRequest()))

	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Contains(t, sol.Detail, DurationConstraint)
}

func TestSimplexSolver_SingleInstrumentCannotReachTarget(t *testing.T) {
	rows := []Row{{Key: "only", Metric: 0.05, Duration: 5, Sector: "FINANCIAL"}}

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, boundaryRequest()))

	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Nil(t, sol.Values)
}

func TestSimplexSolver_GeneralModels(t *testing.T) {
	t.Run("greater-equal row with minimize", func(t *testing.T) {
		m := NewLpModel(Minimize)
		m.AddVariable("x", 0, 0.3, 1)
		m.AddVariable("y", 0, 1, 2)
		require.NoError(t, m.AddConstraint("floor", []float64{1, 1}, GreaterEqual, 1))

		sol := newTestSolver().Solve(context.Background(), m)

		require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
		assert.InDelta(t, 0.3, sol.Values[0], propertyEps)
		assert.InDelta(t, 0.7, sol.Values[1], propertyEps)
		assert.InDelta(t, 1.7, sol.Objective, propertyEps)
	})

	t.Run("non-zero lower bound", func(t *testing.T) {
		m := NewLpModel(Minimize)
		m.AddVariable("x", 0.2, 1, 1)
		m.AddVariable("y", 0, 1, 1)
		require.NoError(t, m.AddConstraint("cap", []float64{1, 1}, LessEqual, 1))

		sol := newTestSolver().Solve(context.Background(), m)

		require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
		assert.InDelta(t, 0.2, sol.Values[0], propertyEps)
		assert.InDelta(t, 0.0, sol.Values[1], propertyEps)
	})

	t.Run("unconstrained improving variable is unbounded", func(t *testing.T) {
		m := NewLpModel(Maximize)
		m.AddVariable("x", 0, math.Inf(1), 1)

		sol := newTestSolver().Solve(context.Background(), m)

		assert.Equal(t, StatusUnbounded, sol.Status)
		assert.Nil(t, sol.Values)
	})

	t.Run("unconstrained idle variable stays at lower bound", func(t *testing.T) {
		m := NewLpModel(Maximize)
		m.AddVariable("x", 0.1, math.Inf(1), -1)

		sol := newTestSolver().Solve(context.Background(), m)

		require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
		assert.Equal(t, []float64{0.1}, sol.Values)
	})

	t.Run("ray through a constraint is unbounded", func(t *testing.T) {
		m := NewLpModel(Maximize)
		m.AddVariable("x", 0, math.Inf(1), 1)
		m.AddVariable("y", 0, math.Inf(1), 0)
		require.NoError(t, m.AddConstraint("spread", []float64{1, -1}, LessEqual, 1))

		sol := newTestSolver().Solve(context.Background(), m)

		assert.Equal(t, StatusUnbounded, sol.Status)
	})

	t.Run("empty domain is infeasible", func(t *testing.T) {
		m := NewLpModel(Maximize)
		m.AddVariable("x", 1, 0, 1)

		sol := newTestSolver().Solve(context.Background(), m)

		assert.Equal(t, StatusInfeasible, sol.Status)
	})

	t.Run("free variable is undefined", func(t *testing.T) {
		m := NewLpModel(Maximize)
		m.AddVariable("x", math.Inf(-1), 1, 1)

		sol := newTestSolver().Solve(context.Background(), m)

		assert.Equal(t, StatusUndefined, sol.Status)
	})
}

func TestSimplexSolver_EmptyModelIsUndefined(t *testing.T) {
	assert.Equal(t, StatusUndefined, newTestSolver().Solve(context.Background(), NewLpModel(Maximize)).Status)
	assert.Equal(t, StatusUndefined, newTestSolver().Solve(context.Background(), nil).Status)
}

func TestSimplexSolver_CancelledContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol := newTestSolver().Solve(ctx, BuildModel(boundaryRows(), boundaryRequest()))

	assert.Equal(t, StatusTimeout, sol.Status)
	assert.Nil(t, sol.Values)
}

func TestSimplexSolver_OASObjectiveUsesMetric(t *testing.T) {
	rows := []Row{
		{Key: "A", Metric: 0.011, Duration: 2, Sector: string(domain.SectorFinancial)},
		{Key: "B", Metric: 0.014, Duration: 5, Sector: string(domain.SectorIndustrial)},
		{Key: "C", Metric: 0.017, Duration: 8, Sector: string(domain.SectorUtility)},
	}
	req := boundaryRequest()
	req.Objective = domain.ObjectiveOAS

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, req))

	require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
	assert.Empty(t, CheckAllocation(rows, req, sol.Values, propertyEps))
}

func TestSimplexSolver_SectorExactlyAtCap(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		req  Request
		want []float64
	}{
		{
			name: "single industrial bond",
			rows: []Row{{Key: "ind", Metric: 0.03, Duration: 10, Sector: "INDUSTRIAL"}},
			req:  Request{Objective: domain.ObjectiveYTM, UpperBound: 1, TargetDuration: 3, SectorCap: 0.3},
			want: []float64{0.3},
		},
		{
			name: "single utility bond",
			rows: []Row{{Key: "utl", Metric: 0.04, Duration: 7, Sector: "UTILITY"}},
			req:  Request{Objective: domain.ObjectiveYTM, UpperBound: 1, TargetDuration: 3.5, SectorCap: 0.5},
			want: []float64{0.5},
		},
		{
			name: "upper bound and cap both tight",
			rows: []Row{
				{Key: "fin", Metric: 0.05, Duration: 10, Sector: "FINANCIAL"},
				{Key: "gov", Metric: 0.02, Duration: 0, Sector: "SOVEREIGN"},
			},
			req:  Request{Objective: domain.ObjectiveYTM, UpperBound: 0.3, TargetDuration: 3, SectorCap: 0.3},
			want: []float64{0.3, 0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol := newTestSolver().Solve(context.Background(), BuildModel(tt.rows, tt.req))

			require.Equal(t, StatusOptimal, sol.Status, sol.Detail)
			require.Len(t, sol.Values, len(tt.want))
			for i, w := range tt.want {
				assert.InDelta(t, w, sol.Values[i], propertyEps)
				assert.LessOrEqual(t, sol.Values[i], tt.req.UpperBound)
			}
			assert.Empty(t, CheckAllocation(tt.rows, tt.req, sol.Values, propertyEps))
		})
	}
}

func TestSimplexSolver_SlightlyOverCapStaysInfeasible(t *testing.T) {
	// Reaching the target needs w = 0.300001, over the 0.3 cap.
	rows := []Row{{Key: "ind", Metric: 0.03, Duration: 10, Sector: "INDUSTRIAL"}}
	req := Request{Objective: domain.ObjectiveYTM, UpperBound: 1, TargetDuration: 3.00001, SectorCap: 0.3}

	sol := newTestSolver().Solve(context.Background(), BuildModel(rows, req))

	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Nil(t, sol.Values)
}

func TestRelaxInequalities(t *testing.T) {
	model := BuildModel(boundaryRows(), boundaryRequest())

	relaxed := relaxInequalities(model, 1e-3)

	budget, _ := relaxed.Constraint(BudgetConstraint)
	assert.InDelta(t, 1.001, budget.RHS, 1e-12)
	duration, _ := relaxed.Constraint(DurationConstraint)
	assert.Equal(t, 5.0, duration.RHS)
	sector, _ := relaxed.Constraint(SectorConstraintName(domain.SectorFinancial))
	assert.InDelta(t, 0.401, sector.RHS, 1e-12)
	for _, v := range relaxed.Variables {
		assert.Equal(t, 0.0, v.Lower)
		assert.InDelta(t, 0.501, v.Upper, 1e-12)
	}

	// The source model is untouched
	original, _ := model.Constraint(BudgetConstraint)
	assert.Equal(t, 1.0, original.RHS)
	assert.Equal(t, 0.5, model.Variables[0].Upper)
}

// vertexOptimum finds the best objective of BuildModel(rows, req) by solving
// every system of the duration equality plus n-1 active inequalities. It
// reports false when no vertex is feasible.
func vertexOptimum(rows []Row, req Request) (float64, bool) {
	n := len(rows)
	type halfspace struct {
		a []float64
		b float64
	}

	var ineqs []halfspace
	budget := make([]float64, n)
	duration := make([]float64, n)
	for i, row := range rows {
		lower := make([]float64, n)
		lower[i] = -1
		upper := make([]float64, n)
		upper[i] = 1
		ineqs = append(ineqs, halfspace{lower, 0}, halfspace{upper, req.UpperBound})
		budget[i] = 1
		duration[i] = row.Duration
	}
	ineqs = append(ineqs, halfspace{budget, 1})
	for _, sector := range domain.CappedSectors {
		a := make([]float64, n)
		members := false
		for i, row := range rows {
			if domain.Sector(row.Sector) == sector {
				a[i] = 1
				members = true
			}
		}
		if members {
			ineqs = append(ineqs, halfspace{a, req.SectorCap})
		}
	}

	best, found := math.Inf(-1), false
	eachSubset(len(ineqs), n-1, func(active []int) {
		a := mat.NewDense(n, n, nil)
		b := mat.NewVecDense(n, nil)
		a.SetRow(0, duration)
		b.SetVec(0, req.TargetDuration)
		for k, idx := range active {
			a.SetRow(k+1, ineqs[idx].a)
			b.SetVec(k+1, ineqs[idx].b)
		}

		var x mat.VecDense
		if err := x.SolveVec(a, b); err != nil {
			return
		}
		w := make([]float64, n)
		for i := range w {
			w[i] = x.AtVec(i)
		}
		for _, h := range ineqs {
			if floats.Dot(h.a, w) > h.b+1e-9 {
				return
			}
		}

		var obj float64
		for i, row := range rows {
			obj += row.Metric * w[i]
		}
		if obj > best {
			best = obj
		}
		found = true
	})
	return best, found
}

// eachSubset calls fn with every k-element subset of 0..n-1 in lexicographic order.
func eachSubset(n, k int, fn func([]int)) {
	subset := make([]int, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(subset) == k {
			fn(subset)
			return
		}
		for i := start; i <= n-(k-len(subset)); i++ {
			subset = append(subset, i)
			walk(i + 1)
			subset = subset[:len(subset)-1]
		}
	}
	walk(0)
}

func TestSimplexSolver_MatchesVertexEnumeration(t *testing.T) {
	rng := rand.New(rand.NewSource(20240131))
	solver := newTestSolver()

	durations := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 12}
	sectors := []string{"FINANCIAL", "INDUSTRIAL", "UTILITY", "SOVEREIGN"}
	upperBounds := []float64{0.1, 0.2, 0.25, 0.3, 0.5, 1}

	var optimal, infeasible int
	for trial := 0; trial < 3000; trial++ {
		n := 1 + rng.Intn(4)
		rows := make([]Row, n)
		for i := range rows {
			rows[i] = Row{
				Key:      fmt.Sprintf("r%d", i),
				Metric:   float64(1+rng.Intn(80)) / 1000,
				Duration: durations[rng.Intn(len(durations))],
				Sector:   sectors[rng.Intn(len(sectors))],
			}
		}
		req := Request{
			Objective:      domain.ObjectiveYTM,
			UpperBound:     upperBounds[rng.Intn(len(upperBounds))],
			TargetDuration: MinWeightedAverageDuration + float64(rng.Intn(9))*0.5,
			SectorCap:      MinSectorCap + float64(rng.Intn(7))*0.05,
		}
		require.NoError(t, req.Validate())

		want, feasible := vertexOptimum(rows, req)
		sol := solver.Solve(context.Background(), BuildModel(rows, req))

		if !feasible {
			infeasible++
			assert.Equal(t, StatusInfeasible, sol.Status, "trial %d: %+v %+v", trial, rows, req)
			continue
		}
		optimal++
		if !assert.Equal(t, StatusOptimal, sol.Status, "trial %d: %+v %+v: %s", trial, rows, req, sol.Detail) {
			continue
		}
		assert.Empty(t, CheckAllocation(rows, req, sol.Values, propertyEps), "trial %d", trial)
		assert.InDelta(t, want, sol.Objective, propertyEps, "trial %d: %+v %+v", trial, rows, req)
	}

	// Both outcomes are exercised
	assert.Greater(t, optimal, 100)
	assert.Greater(t, infeasible, 100)
}
