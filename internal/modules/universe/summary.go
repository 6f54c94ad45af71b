package universe

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummaryPrecision is the number of decimal places summary figures are rounded to.
const SummaryPrecision = 3

// ErrEmptySummary is returned when the filters select no instruments.
var ErrEmptySummary = errors.New("no instruments match the filters")

// MetricSummary describes the distribution of one yield metric.
type MetricSummary struct {
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// Summary is the statistic report for a filtered selection.
type Summary struct {
	Count int           `json:"count"`
	YTM   MetricSummary `json:"ytm"`
	OAS   MetricSummary `json:"oas"`
	MV    float64       `json:"mv"`
}

// Summarize computes the report for instruments. It returns ErrEmptySummary
// when there is nothing to summarize.
func Summarize(instruments []Instrument) (*Summary, error) {
	if len(instruments) == 0 {
		return nil, ErrEmptySummary
	}

	ytm := make([]float64, len(instruments))
	oas := make([]float64, len(instruments))
	mv := make([]float64, len(instruments))
	for i, inst := range instruments {
		ytm[i] = inst.YTM
		oas[i] = inst.OAS
		mv[i] = inst.MV
	}

	return &Summary{
		Count: len(instruments),
		YTM:   summarizeMetric(ytm),
		OAS:   summarizeMetric(oas),
		MV:    round(floats.Sum(mv)),
	}, nil
}

func summarizeMetric(values []float64) MetricSummary {
	return MetricSummary{
		Max:    round(floats.Max(values)),
		Min:    round(floats.Min(values)),
		Avg:    round(stat.Mean(values, nil)),
		Median: round(median(values)),
	}
}

// median averages the two middle values of an even-length sample.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(SummaryPrecision).InexactFloat64()
}
