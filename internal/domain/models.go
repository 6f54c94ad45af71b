// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
)

// Objective is the yield metric an optimization maximizes
type Objective string

const (
	// ObjectiveYTM maximizes yield to maturity
	ObjectiveYTM Objective = "YTM"
	// ObjectiveOAS maximizes option-adjusted spread
	ObjectiveOAS Objective = "OAS"
)

// ParseObjective accepts "YTM" / "OAS" in any case.
func ParseObjective(s string) (Objective, error) {
	switch Objective(strings.ToUpper(strings.TrimSpace(s))) {
	case ObjectiveYTM:
		return ObjectiveYTM, nil
	case ObjectiveOAS:
		return ObjectiveOAS, nil
	default:
		return "", fmt.Errorf("unknown objective %q (want YTM or OAS)", s)
	}
}

// Sector is the CLASS_2 label of an instrument
type Sector string

const (
	SectorFinancial  Sector = "FINANCIAL"
	SectorIndustrial Sector = "INDUSTRIAL"
	SectorUtility    Sector = "UTILITY"
)

// CappedSectors are the sectors subject to the concentration cap, in constraint order.
// Instruments in any other sector are not limited by the cap.
var CappedSectors = []Sector{SectorFinancial, SectorIndustrial, SectorUtility}

// IsCapped reports whether the sector is one of CappedSectors (exact, case-sensitive match).
func (s Sector) IsCapped() bool {
	for _, c := range CappedSectors {
		if s == c {
			return true
		}
	}
	return false
}
