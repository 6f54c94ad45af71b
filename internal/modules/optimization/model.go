package optimization

import (
	"fmt"
	"math"
	"strconv"
)

// Sense is the optimization direction of an LpModel.
type Sense int

const (
	// Maximize the objective
	Maximize Sense = iota
	// Minimize the objective
	Minimize
)

func (s Sense) String() string {
	if s == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Relation is the comparison of a linear constraint.
type Relation int

const (
	// LessEqual is a·x <= rhs
	LessEqual Relation = iota
	// Equal is a·x == rhs
	Equal
	// GreaterEqual is a·x >= rhs
	GreaterEqual
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "="
	case GreaterEqual:
		return ">="
	default:
		return "<="
	}
}

// Variable is one continuous decision variable. Index is its position in the
// model and Key the stable identity of the instrument it was built from, so
// solver output can be aligned back to input rows without relying on order.
type Variable struct {
	Index int
	Key   string
	Lower float64
	Upper float64 // math.Inf(1) when unbounded above
}

// Constraint is a named dense linear constraint over all model variables.
type Constraint struct {
	Name     string
	Coeffs   []float64
	Relation Relation
	RHS      float64
}

// Activity returns a·x for the given variable values.
func (c Constraint) Activity(values []float64) float64 {
	var sum float64
	for j, a := range c.Coeffs {
		if j < len(values) {
			sum += a * values[j]
		}
	}
	return sum
}

// Satisfied reports whether values satisfy the constraint within eps.
func (c Constraint) Satisfied(values []float64, eps float64) bool {
	lhs := c.Activity(values)
	switch c.Relation {
	case Equal:
		return math.Abs(lhs-c.RHS) <= eps
	case GreaterEqual:
		return lhs >= c.RHS-eps
	default:
		return lhs <= c.RHS+eps
	}
}

// LpModel is a linear program in general form: a linear objective, bounded
// variables and named constraints. A model is built for one request and
// owned by a single solve.
type LpModel struct {
	Sense       Sense
	Objective   []float64
	Variables   []Variable
	Constraints []Constraint
}

// NewLpModel creates an empty model with the given sense.
func NewLpModel(sense Sense) *LpModel {
	return &LpModel{Sense: sense}
}

// AddVariable appends a variable and its objective coefficient and returns its index.
// An empty key is replaced by the variable's index.
func (m *LpModel) AddVariable(key string, lower, upper, cost float64) int {
	idx := len(m.Variables)
	if key == "" {
		key = strconv.Itoa(idx)
	}
	m.Variables = append(m.Variables, Variable{
		Index: idx,
		Key:   key,
		Lower: lower,
		Upper: upper,
	})
	m.Objective = append(m.Objective, cost)
	return idx
}

// AddConstraint appends a constraint. coeffs must have one entry per variable.
func (m *LpModel) AddConstraint(name string, coeffs []float64, rel Relation, rhs float64) error {
	if len(coeffs) != len(m.Variables) {
		return fmt.Errorf("constraint %s has %d coefficients, model has %d variables", name, len(coeffs), len(m.Variables))
	}
	row := make([]float64, len(coeffs))
	copy(row, coeffs)
	m.addRow(name, row, rel, rhs)
	return nil
}

// addRow appends a constraint that already has one coefficient per variable
// and takes ownership of coeffs.
func (m *LpModel) addRow(name string, coeffs []float64, rel Relation, rhs float64) {
	m.Constraints = append(m.Constraints, Constraint{
		Name:     name,
		Coeffs:   coeffs,
		Relation: rel,
		RHS:      rhs,
	})
}

// NumVariables returns the number of decision variables.
func (m *LpModel) NumVariables() int {
	return len(m.Variables)
}

// Constraint returns the named constraint.
func (m *LpModel) Constraint(name string) (Constraint, bool) {
	for _, c := range m.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return Constraint{}, false
}

// Value returns the objective value for the given variable values.
func (m *LpModel) Value(values []float64) float64 {
	var sum float64
	for j, c := range m.Objective {
		if j < len(values) {
			sum += c * values[j]
		}
	}
	return sum
}

// Feasible reports whether values satisfy every bound and constraint within eps.
func (m *LpModel) Feasible(values []float64, eps float64) bool {
	if len(values) != len(m.Variables) {
		return false
	}
	for j, v := range m.Variables {
		if values[j] < v.Lower-eps || values[j] > v.Upper+eps {
			return false
		}
	}
	for _, c := range m.Constraints {
		if !c.Satisfied(values, eps) {
			return false
		}
	}
	return true
}
