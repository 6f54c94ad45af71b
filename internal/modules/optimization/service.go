package optimization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/yieldopt/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a step of the per-request pipeline.
type State string

// Pipeline states. Filtered and Rejected are terminal.
const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateModeled   State = "modeled"
	StateSolved    State = "solved"
	StateFiltered  State = "filtered"
	StateRejected  State = "rejected"
)

// Rejection names why a request ended in StateRejected.
type Rejection string

const (
	RejectInvalidParameters Rejection = "invalid_parameters"
	RejectEmptyUniverse     Rejection = "empty_universe"
	RejectSolver            Rejection = "solver"
)

// ErrEmptyUniverse is returned when a request selects no instruments.
var ErrEmptyUniverse = errors.New("no instruments selected")

// invariantTolerance is used to double-check optimal solutions before they are returned.
const invariantTolerance = 1e-6

// Result is the outcome of one optimization request. Weights and
// Allocations are only set when State is StateFiltered.
type Result struct {
	RunID          string
	Request        Request
	State          State
	Rejection      Rejection
	Status         Status
	Diagnostic     string
	Instruments    int
	Weights        []float64
	Allocations    []Allocation[Row]
	ObjectiveValue float64
	Elapsed        time.Duration

	err error
}

// OK reports whether the request produced an allocation.
func (r *Result) OK() bool {
	return r.State == StateFiltered
}

// Err returns nil on success, otherwise an error matching ErrInvalidParameters,
// ErrEmptyUniverse or *SolveError.
func (r *Result) Err() error {
	return r.err
}

// RunRecorder persists finished optimization runs.
type RunRecorder interface {
	Record(ctx context.Context, run *Run) error
}

// RunOption customises the run record of a single Optimize call.
type RunOption func(*Run)

// WithFilters attaches the universe filters that produced the rows.
func WithFilters(filters map[string]string) RunOption {
	return func(run *Run) {
		run.Filters = filters
	}
}

// OptimizerService drives requests through validation, model building,
// solving and zero filtering. It keeps no per-request state, so one service
// can serve concurrent requests.
type OptimizerService struct {
	solver        Solver
	eventManager  *events.Manager
	recorder      RunRecorder
	solveTimeout  time.Duration
	zeroTolerance float64
	skipPolicy    bool
	log           zerolog.Logger
}

// NewOptimizerService creates a new optimizer service.
func NewOptimizerService(solver Solver, log zerolog.Logger) *OptimizerService {
	return &OptimizerService{
		solver:        solver,
		zeroTolerance: DefaultZeroTolerance,
		log:           log.With().Str("service", "optimizer").Logger(),
	}
}

// SetEventManager sets the event manager used to announce finished runs.
func (s *OptimizerService) SetEventManager(m *events.Manager) {
	s.eventManager = m
}

// SetRecorder sets where finished runs are stored.
func (s *OptimizerService) SetRecorder(r RunRecorder) {
	s.recorder = r
}

// SetSolveTimeout bounds each solve. Zero disables the timeout.
func (s *OptimizerService) SetSolveTimeout(d time.Duration) {
	s.solveTimeout = d
}

// SetPolicyCheck controls whether requests must respect the duration and
// sector cap policy bounds. It is on by default; when off, only malformed
// requests are rejected and out-of-policy targets go to the solver.
func (s *OptimizerService) SetPolicyCheck(enabled bool) {
	s.skipPolicy = !enabled
}

// SetZeroTolerance sets the threshold below which weights are dropped.
func (s *OptimizerService) SetZeroTolerance(tol float64) {
	if tol > 0 {
		s.zeroTolerance = tol
	}
}

// Optimize runs one request against rows. It never panics on bad input or
// solver failure; every outcome is reported through the returned Result.
func (s *OptimizerService) Optimize(ctx context.Context, req Request, rows []Row, opts ...RunOption) *Result {
	start := time.Now()
	result := &Result{
		RunID:       uuid.New().String(),
		Request:     req,
		State:       StateReceived,
		Instruments: len(rows),
	}
	defer func() {
		result.Elapsed = time.Since(start)
		s.finish(ctx, result, opts)
	}()

	validate := req.Validate
	if s.skipPolicy {
		validate = req.ValidateFields
	}
	if err := validate(); err != nil {
		s.reject(result, RejectInvalidParameters, err)
		return result
	}
	result.State = StateValidated

	if len(rows) == 0 {
		s.reject(result, RejectEmptyUniverse, ErrEmptyUniverse)
		return result
	}

	model := BuildModel(rows, req)
	result.State = StateModeled

	sol := s.solve(ctx, model)
	result.State = StateSolved
	result.Status = sol.Status

	if !sol.Optimal() {
		s.reject(result, RejectSolver, &SolveError{Status: sol.Status, Detail: sol.Detail})
		return result
	}
	if len(sol.Values) != len(rows) {
		result.Status = StatusUndefined
		s.reject(result, RejectSolver, &SolveError{
			Status: StatusUndefined,
			Detail: fmt.Sprintf("solver returned %d values for %d variables", len(sol.Values), len(rows)),
		})
		return result
	}

	if violations := CheckAllocation(rows, req, sol.Values, invariantTolerance); len(violations) > 0 {
		s.log.Error().Strs("violations", violations).Str("run_id", result.RunID).Msg("Optimal solution violates portfolio rules")
		result.Status = StatusUndefined
		s.reject(result, RejectSolver, &SolveError{
			Status: StatusUndefined,
			Detail: "solution violates portfolio rules: " + strings.Join(violations, "; "),
		})
		return result
	}

	result.Weights = sol.Values
	result.ObjectiveValue = sol.Objective
	result.Allocations = FilterZeroWeights(sol.Values, rows, s.zeroTolerance)
	result.State = StateFiltered
	return result
}

func (s *OptimizerService) solve(ctx context.Context, model *LpModel) (sol Solution) {
	if s.solver == nil {
		return rejected(StatusUndefined, "no solver configured")
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Solver panicked")
			sol = rejected(StatusUndefined, fmt.Sprintf("solver panic: %v", r))
		}
	}()

	if s.solveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.solveTimeout)
		defer cancel()
	}

	sol = s.solver.Solve(ctx, model)
	if !sol.Optimal() {
		sol.Values = nil
	}
	return sol
}

func (s *OptimizerService) reject(result *Result, reason Rejection, err error) {
	result.State = StateRejected
	result.Rejection = reason
	result.Diagnostic = err.Error()
	result.err = err
}

// finish logs, announces and records a terminal result.
func (s *OptimizerService) finish(ctx context.Context, result *Result, opts []RunOption) {
	logEvent := s.log.Info()
	if !result.OK() {
		logEvent = s.log.Warn()
	}
	logEvent.
		Str("run_id", result.RunID).
		Str("objective", string(result.Request.Objective)).
		Int("instruments", result.Instruments).
		Str("state", string(result.State)).
		Str("status", string(result.Status)).
		Int("allocations", len(result.Allocations)).
		Dur("elapsed", result.Elapsed).
		Msg("Optimization finished")

	if s.eventManager != nil {
		if result.OK() {
			s.eventManager.EmitTyped("optimization", &events.OptimizationCompletedData{
				RunID:          result.RunID,
				Objective:      string(result.Request.Objective),
				Instruments:    result.Instruments,
				Allocations:    len(result.Allocations),
				ObjectiveValue: result.ObjectiveValue,
				DurationMs:     result.Elapsed.Milliseconds(),
			})
		} else {
			s.eventManager.EmitTyped("optimization", &events.OptimizationRejectedData{
				RunID:       result.RunID,
				Objective:   string(result.Request.Objective),
				Instruments: result.Instruments,
				Reason:      string(result.Rejection),
				Status:      string(result.Status),
				Diagnostic:  result.Diagnostic,
			})
		}
	}

	if s.recorder != nil {
		run := NewRun(result)
		for _, opt := range opts {
			opt(run)
		}
		// A cancelled request still gets its run recorded.
		if err := s.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
			s.log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to record optimization run")
		}
	}
}

// Optimize solves req against rows with a default simplex solver and no side
// effects. Policy bounds are not enforced here; callers check them with
// CheckBoundaries first.
func Optimize(ctx context.Context, req Request, rows []Row) *Result {
	svc := NewOptimizerService(NewSimplexSolver(DefaultSimplexTolerance, zerolog.Nop()), zerolog.Nop())
	svc.SetPolicyCheck(false)
	return svc.Optimize(ctx, req, rows)
}
