package optimization

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultRunListLimit caps List when no limit is given.
const DefaultRunListLimit = 50

// RunAllocation is the stored form of one retained weight.
type RunAllocation struct {
	Index  int     `json:"index" msgpack:"i"`
	Key    string  `json:"key" msgpack:"k"`
	Weight float64 `json:"weight" msgpack:"w"`
}

// Run is a recorded optimization request and its outcome.
type Run struct {
	ID              string            `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	Objective       string            `json:"objective"`
	UpperBound      float64           `json:"upper_bound"`
	TargetDuration  float64           `json:"target_duration"`
	SectorCap       float64           `json:"sector_cap"`
	Filters         map[string]string `json:"filters"`
	InstrumentCount int               `json:"instrument_count"`
	State           State             `json:"state"`
	Status          Status            `json:"status,omitempty"`
	Diagnostic      string            `json:"diagnostic,omitempty"`
	ObjectiveValue  float64           `json:"objective_value"`
	Allocations     []RunAllocation   `json:"allocations"`
}

// NewRun builds the record of a finished result.
func NewRun(result *Result) *Run {
	run := &Run{
		ID:              result.RunID,
		CreatedAt:       time.Now(),
		Objective:       string(result.Request.Objective),
		UpperBound:      result.Request.UpperBound,
		TargetDuration:  result.Request.TargetDuration,
		SectorCap:       result.Request.SectorCap,
		Filters:         map[string]string{},
		InstrumentCount: result.Instruments,
		State:           result.State,
		Status:          result.Status,
		Diagnostic:      result.Diagnostic,
		ObjectiveValue:  result.ObjectiveValue,
		Allocations:     make([]RunAllocation, 0, len(result.Allocations)),
	}
	for _, a := range result.Allocations {
		run.Allocations = append(run.Allocations, RunAllocation{
			Index:  a.Index,
			Key:    a.Row.Key,
			Weight: a.Weight,
		})
	}
	return run
}

// RunRepository stores optimization runs in the cache database.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "optimization_runs").Logger(),
	}
}

// Record inserts a run. Allocations are stored as a msgpack blob.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	filters := run.Filters
	if filters == nil {
		filters = map[string]string{}
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	allocations, err := msgpack.Marshal(run.Allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_runs
		(id, created_at, objective, upper_bound, target_duration, sector_cap, filters,
		 instrument_count, state, status, diagnostic, objective_value, allocations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.Unix(),
		run.Objective,
		run.UpperBound,
		run.TargetDuration,
		run.SectorCap,
		string(filtersJSON),
		run.InstrumentCount,
		string(run.State),
		string(run.Status),
		run.Diagnostic,
		run.ObjectiveValue,
		allocations,
	)
	if err != nil {
		return fmt.Errorf("failed to insert optimization run: %w", err)
	}

	r.log.Debug().Str("run_id", run.ID).Int("allocations", len(run.Allocations)).Msg("Recorded optimization run")
	return nil
}

const runColumns = `id, created_at, objective, upper_bound, target_duration, sector_cap, filters,
instrument_count, state, status, diagnostic, objective_value, allocations`

// Get returns a run by id, or nil if it does not exist.
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+runColumns+" FROM optimization_runs WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	run, err := scanRun(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan optimization run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM optimization_runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating optimization runs: %w", err)
	}
	return runs, nil
}

// Prune deletes runs created before cutoff and returns how many were removed.
func (r *RunRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM optimization_runs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune optimization runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run         Run
		createdAt   int64
		filtersJSON string
		state       string
		status      string
		blob        []byte
	)
	err := rows.Scan(
		&run.ID,
		&createdAt,
		&run.Objective,
		&run.UpperBound,
		&run.TargetDuration,
		&run.SectorCap,
		&filtersJSON,
		&run.InstrumentCount,
		&state,
		&status,
		&run.Diagnostic,
		&run.ObjectiveValue,
		&blob,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(createdAt, 0)
	run.State = State(state)
	run.Status = Status(status)

	if err := json.Unmarshal([]byte(filtersJSON), &run.Filters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
	}
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &run.Allocations); err != nil {
			return nil, fmt.Errorf("failed to decode allocations: %w", err)
		}
	}
	if run.Allocations == nil {
		run.Allocations = []RunAllocation{}
	}
	return &run, nil
}
