package universe

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/yieldopt/internal/database"
	"github.com/rs/zerolog"
)

// InstrumentRepository handles instrument database operations
type InstrumentRepository struct {
	universeDB  *sql.DB // universe.db - instruments table
	upperBounds []float64
	log         zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(universeDB *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		universeDB:  universeDB,
		upperBounds: DefaultUpperBoundChoices,
		log:         log.With().Str("repo", "instrument").Logger(),
	}
}

// SetUpperBoundChoices overrides the upper bound dropdown values.
func (r *InstrumentRepository) SetUpperBoundChoices(choices []float64) {
	if len(choices) > 0 {
		r.upperBounds = append([]float64(nil), choices...)
	}
}

// List returns the instruments matching filters, ordered by id.
func (r *InstrumentRepository) List(ctx context.Context, filters Filters) ([]Instrument, error) {
	query, args, err := Select().Where(filters.Predicates()...).OrderBy("id").Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build instrument query: %w", err)
	}

	rows, err := r.universeDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	instruments := make([]Instrument, 0)
	for rows.Next() {
		var inst Instrument
		if err := rows.Scan(
			&inst.ID,
			&inst.CUSIP,
			&inst.Issuer,
			&inst.Class1,
			&inst.Class2,
			&inst.Class3,
			&inst.Class4,
			&inst.Rating,
			&inst.DurCell,
			&inst.EffDate,
			&inst.YTM,
			&inst.OAS,
			&inst.EffDur,
			&inst.MV,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	r.log.Debug().Interface("filters", filters.Map()).Int("count", len(instruments)).Msg("Listed instruments")
	return instruments, nil
}

// Headings returns the instruments table column names in schema order.
func (r *InstrumentRepository) Headings(ctx context.Context) ([]string, error) {
	rows, err := r.universeDB.QueryContext(ctx, "PRAGMA table_info(instruments)")
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	var headings []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		headings = append(headings, name)
	}
	return headings, rows.Err()
}

// distinct returns the distinct non-null values of column.
func (r *InstrumentRepository) distinct(ctx context.Context, column string) ([]string, error) {
	if !isInstrumentColumn(column) {
		return nil, fmt.Errorf("unknown column %q", column)
	}

	rows, err := r.universeDB.QueryContext(ctx, "SELECT DISTINCT "+column+" FROM instruments WHERE "+column+" <> ''")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Options returns the dropdown choices for every filter.
func (r *InstrumentRepository) Options(ctx context.Context) (*Options, error) {
	opts := &Options{UpperBound: append([]float64(nil), r.upperBounds...)}

	targets := []struct {
		column string
		dest   *[]string
	}{
		{"class_1", &opts.Class1},
		{"class_2", &opts.Class2},
		{"class_3", &opts.Class3},
		{"class_4", &opts.Class4},
		{"rating", &opts.Rating},
		{"effdate", &opts.Date},
	}
	for _, t := range targets {
		values, err := r.distinct(ctx, t.column)
		if err != nil {
			return nil, err
		}
		*t.dest = withAny(values)
	}

	buckets, err := r.distinct(ctx, "dur_cell")
	if err != nil {
		return nil, err
	}
	opts.Duration = append([]string{""}, SortDurationBuckets(buckets)...)

	return opts, nil
}

// Summary computes the statistic report for the filtered selection.
func (r *InstrumentRepository) Summary(ctx context.Context, filters Filters) (*Summary, error) {
	instruments, err := r.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return Summarize(instruments)
}

// Count returns the number of instruments in the universe.
func (r *InstrumentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.universeDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM instruments").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count instruments: %w", err)
	}
	return n, nil
}

// Insert stores instruments in one transaction. When replace is set the
// existing universe is cleared first. IDs of the given instruments are
// ignored; rows are numbered in insertion order.
func (r *InstrumentRepository) Insert(ctx context.Context, instruments []Instrument, replace bool) (int, error) {
	err := database.WithTransaction(r.universeDB, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx, "DELETE FROM instruments"); err != nil {
				return fmt.Errorf("failed to clear instruments: %w", err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO instruments
			(cusip, issuer, class_1, class_2, class_3, class_4, rating, dur_cell, effdate, ytm, oas, effdur, mv)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, inst := range instruments {
			if _, err := stmt.ExecContext(ctx,
				inst.CUSIP,
				inst.Issuer,
				inst.Class1,
				inst.Class2,
				inst.Class3,
				inst.Class4,
				inst.Rating,
				inst.DurCell,
				inst.EffDate,
				inst.YTM,
				inst.OAS,
				inst.EffDur,
				inst.MV,
			); err != nil {
				return fmt.Errorf("failed to insert instrument %s: %w", inst.CUSIP, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().Int("count", len(instruments)).Bool("replace", replace).Msg("Inserted instruments")
	return len(instruments), nil
}
