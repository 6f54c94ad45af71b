package universe

import (
	"fmt"
	"strings"
)

// instrumentColumns lists the instruments table columns in schema order.
// Only these names may appear in a generated query.
var instrumentColumns = []string{
	"id", "cusip", "issuer", "class_1", "class_2", "class_3", "class_4",
	"rating", "dur_cell", "effdate", "ytm", "oas", "effdur", "mv",
}

func isInstrumentColumn(name string) bool {
	for _, c := range instrumentColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Predicate is an equality test on one column. A nil Value adds no condition.
type Predicate struct {
	Column string
	Value  *string
}

// Eq returns a predicate for column = value. An empty value means "any".
func Eq(column, value string) Predicate {
	if value == "" {
		return Predicate{Column: column}
	}
	v := value
	return Predicate{Column: column, Value: &v}
}

// Query is a declarative SELECT over the instruments table. Values are
// always bound as parameters, never spliced into the SQL text.
type Query struct {
	columns    []string
	predicates []Predicate
	orderBy    string
}

// Select starts a query for the given columns (all columns when none are given).
func Select(columns ...string) Query {
	return Query{columns: columns}
}

// Where returns a copy of q with the predicates appended.
func (q Query) Where(predicates ...Predicate) Query {
	next := q
	next.predicates = append(append([]Predicate(nil), q.predicates...), predicates...)
	return next
}

// OrderBy returns a copy of q ordered by column ascending.
func (q Query) OrderBy(column string) Query {
	next := q
	next.orderBy = column
	return next
}

// Build renders the SQL text and its arguments.
func (q Query) Build() (string, []interface{}, error) {
	columns := q.columns
	if len(columns) == 0 {
		columns = instrumentColumns
	}
	for _, c := range columns {
		if !isInstrumentColumn(c) {
			return "", nil, fmt.Errorf("unknown column %q", c)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM instruments")

	var (
		conditions []string
		args       []interface{}
	)
	for _, p := range q.predicates {
		if !isInstrumentColumn(p.Column) {
			return "", nil, fmt.Errorf("unknown filter column %q", p.Column)
		}
		if p.Value == nil {
			continue
		}
		conditions = append(conditions, p.Column+" = ?")
		args = append(args, *p.Value)
	}
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if q.orderBy != "" {
		if !isInstrumentColumn(q.orderBy) {
			return "", nil, fmt.Errorf("unknown order column %q", q.orderBy)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.orderBy)
	}

	return sb.String(), args, nil
}
