// Package universe provides the instrument universe: storage, filtering,
// dropdown options and summary statistics.
package universe

import (
	"strconv"

	"github.com/aristath/yieldopt/internal/domain"
	"github.com/aristath/yieldopt/internal/modules/optimization"
)

// Instrument is one fixed-income instrument in the universe.
// Class2 is the sector label used by the concentration cap.
type Instrument struct {
	ID      int64   `json:"id"`
	CUSIP   string  `json:"cusip"`
	Issuer  string  `json:"issuer"`
	Class1  string  `json:"class_1"`
	Class2  string  `json:"class_2"`
	Class3  string  `json:"class_3"`
	Class4  string  `json:"class_4"`
	Rating  string  `json:"rating"`
	DurCell string  `json:"dur_cell"`
	EffDate string  `json:"effdate"`
	YTM     float64 `json:"ytm"`
	OAS     float64 `json:"oas"`
	EffDur  float64 `json:"effdur"`
	MV      float64 `json:"mv"`
}

// Key is the stable identity used to align optimizer output with instruments.
func (i Instrument) Key() string {
	return strconv.FormatInt(i.ID, 10)
}

// Metric returns the yield metric the objective maximizes.
func (i Instrument) Metric(objective domain.Objective) float64 {
	if objective == domain.ObjectiveOAS {
		return i.OAS
	}
	return i.YTM
}

// Rows projects instruments onto optimizer rows, preserving order.
func Rows(instruments []Instrument, objective domain.Objective) []optimization.Row {
	rows := make([]optimization.Row, len(instruments))
	for i, inst := range instruments {
		rows[i] = optimization.Row{
			Key:      inst.Key(),
			Metric:   inst.Metric(objective),
			Duration: inst.EffDur,
			Sector:   inst.Class2,
		}
	}
	return rows
}
