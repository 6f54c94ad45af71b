package optimization

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aristath/yieldopt/internal/domain"
)

// Policy bounds for user-supplied targets
const (
	MinWeightedAverageDuration = 3.0
	MaxWeightedAverageDuration = 7.0
	MinSectorCap               = 0.2
	MaxSectorCap               = 0.5
)

// ErrInvalidParameters is returned when request fields are malformed or out of policy.
var ErrInvalidParameters = errors.New("invalid optimization parameters")

// Request holds validated optimization inputs. It is built per call and never shared.
type Request struct {
	Objective      domain.Objective `json:"objective"`
	UpperBound     float64          `json:"upper_bound"`
	TargetDuration float64          `json:"target_duration"`
	SectorCap      float64          `json:"sector_cap"`
}

// CheckBoundaries reports whether the weighted-average duration or the sector
// cap is outside policy. True means the request must be rejected.
func CheckBoundaries(weightedAverageDuration, sectorCap float64) bool {
	if math.IsNaN(weightedAverageDuration) || math.IsNaN(sectorCap) {
		return true
	}
	if weightedAverageDuration < MinWeightedAverageDuration || weightedAverageDuration > MaxWeightedAverageDuration {
		return true
	}
	return sectorCap < MinSectorCap || sectorCap > MaxSectorCap
}

// ParseNumericField parses an unsigned decimal typed by a user: ASCII digits
// with at most one decimal point and at least one digit. Signs, exponents and
// whitespace are rejected.
func ParseNumericField(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}

	digits, dots := 0, 0
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
			if dots > 1 {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRequest builds a Request from raw form values. Any malformed field or
// out-of-policy bound yields an error wrapping ErrInvalidParameters.
func ParseRequest(objective, upperBound, weightedAverageDuration, sectorCap string) (Request, error) {
	obj, err := domain.ParseObjective(objective)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	ub, ok := ParseNumericField(upperBound)
	if !ok {
		return Request{}, fmt.Errorf("%w: upper bound %q is not a number", ErrInvalidParameters, upperBound)
	}
	wad, ok := ParseNumericField(weightedAverageDuration)
	if !ok {
		return Request{}, fmt.Errorf("%w: weighted average duration %q is not a number", ErrInvalidParameters, weightedAverageDuration)
	}
	sc, ok := ParseNumericField(sectorCap)
	if !ok {
		return Request{}, fmt.Errorf("%w: sector cap %q is not a number", ErrInvalidParameters, sectorCap)
	}

	req := Request{
		Objective:      obj,
		UpperBound:     ub,
		TargetDuration: wad,
		SectorCap:      sc,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks a programmatically built request against the same rules as ParseRequest.
func (r Request) Validate() error {
	if err := r.ValidateFields(); err != nil {
		return err
	}
	if CheckBoundaries(r.TargetDuration, r.SectorCap) {
		return fmt.Errorf("%w: duration %v must be in [%v, %v] and sector cap %v in [%v, %v]",
			ErrInvalidParameters,
			r.TargetDuration, MinWeightedAverageDuration, MaxWeightedAverageDuration,
			r.SectorCap, MinSectorCap, MaxSectorCap)
	}
	return nil
}

// ValidateFields checks that the request can be modeled at all: a known
// objective and finite numbers. Policy bounds are left to Validate.
func (r Request) ValidateFields() error {
	if _, err := domain.ParseObjective(string(r.Objective)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if math.IsNaN(r.UpperBound) || math.IsInf(r.UpperBound, 0) || r.UpperBound < 0 {
		return fmt.Errorf("%w: upper bound %v must be a non-negative number", ErrInvalidParameters, r.UpperBound)
	}
	if !isFinite(r.TargetDuration) || !isFinite(r.SectorCap) {
		return fmt.Errorf("%w: duration %v and sector cap %v must be finite", ErrInvalidParameters, r.TargetDuration, r.SectorCap)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
