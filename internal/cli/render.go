package cli

import (
	"fmt"
	"strings"

	"github.com/aristath/yieldopt/internal/modules/optimization"
	"github.com/aristath/yieldopt/internal/modules/universe"
	"github.com/shopspring/decimal"
)

// Decimal places used when printing figures.
const (
	weightPlaces = 4
	metricPlaces = 4
	amountPlaces = 2
)

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

// OptionsMarkdown lists the choices available for every filter.
func OptionsMarkdown(opts *universe.Options) string {
	var b strings.Builder
	b.WriteString("# Filter options\n")

	sections := []struct {
		name   string
		values []string
	}{
		{universe.FilterClass1, opts.Class1},
		{universe.FilterClass2, opts.Class2},
		{universe.FilterClass3, opts.Class3},
		{universe.FilterClass4, opts.Class4},
		{universe.FilterRating, opts.Rating},
		{universe.FilterDuration, opts.Duration},
		{universe.FilterDate, opts.Date},
	}
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.name)
		for _, v := range s.values {
			if v == "" {
				b.WriteString("- _any_\n")
				continue
			}
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	b.WriteString("\n## upper_bound\n\n")
	for _, v := range opts.UpperBound {
		fmt.Fprintf(&b, "- %s\n", decimal.NewFromFloat(v).String())
	}
	return b.String()
}

// InstrumentsMarkdown renders instruments as a table.
func InstrumentsMarkdown(instruments []universe.Instrument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Instruments (%d)\n\n", len(instruments))
	if len(instruments) == 0 {
		b.WriteString("_No instruments match the filters._\n")
		return b.String()
	}

	b.WriteString("| CUSIP | Issuer | Class 1 | Class 2 | Rating | Duration | Date | YTM | OAS | EffDur | MV |\n")
	b.WriteString("|---|---|---|---|---|---|---|---:|---:|---:|---:|\n")
	for _, inst := range instruments {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			cell(inst.CUSIP),
			cell(inst.Issuer),
			cell(inst.Class1),
			cell(inst.Class2),
			cell(inst.Rating),
			cell(inst.DurCell),
			cell(inst.EffDate),
			fixed(inst.YTM, metricPlaces),
			fixed(inst.OAS, metricPlaces),
			fixed(inst.EffDur, amountPlaces),
			fixed(inst.MV, amountPlaces),
		)
	}
	return b.String()
}

// SummaryMarkdown renders the statistic report of a selection.
func SummaryMarkdown(s *universe.Summary, filters universe.Filters) string {
	var b strings.Builder
	b.WriteString("# Summary\n\n")
	writeFilters(&b, filters)

	fmt.Fprintf(&b, "- Instruments: %d\n", s.Count)
	fmt.Fprintf(&b, "- Market value: %s\n\n", decimal.NewFromFloat(s.MV).String())

	b.WriteString("| Metric | Max | Min | Avg | Median |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, row := range []struct {
		name string
		m    universe.MetricSummary
	}{
		{"YTM", s.YTM},
		{"OAS", s.OAS},
	} {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			row.name,
			decimal.NewFromFloat(row.m.Max).String(),
			decimal.NewFromFloat(row.m.Min).String(),
			decimal.NewFromFloat(row.m.Avg).String(),
			decimal.NewFromFloat(row.m.Median).String(),
		)
	}
	return b.String()
}

// AllocationMarkdown renders an optimal allocation. instruments must be the
// slice the result's rows were built from.
func AllocationMarkdown(result *optimization.Result, instruments []universe.Instrument, filters universe.Filters) string {
	var b strings.Builder
	b.WriteString("# Optimal allocation\n\n")
	writeFilters(&b, filters)

	req := result.Request
	fmt.Fprintf(&b, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&b, "- Objective: %s = %s\n", req.Objective, fixed(result.ObjectiveValue, metricPlaces))
	fmt.Fprintf(&b, "- Upper bound: %s, duration: %s, sector cap: %s\n",
		decimal.NewFromFloat(req.UpperBound).String(),
		decimal.NewFromFloat(req.TargetDuration).String(),
		decimal.NewFromFloat(req.SectorCap).String(),
	)
	fmt.Fprintf(&b, "- Holdings: %d of %d instruments\n\n", len(result.Allocations), result.Instruments)

	b.WriteString("| CUSIP | Issuer | Sector | EffDur | Metric | Weight |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	total := decimal.Zero
	for _, a := range result.Allocations {
		inst := instruments[a.Index]
		w := decimal.NewFromFloat(a.Weight)
		total = total.Add(w)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(inst.CUSIP),
			cell(inst.Issuer),
			cell(inst.Class2),
			fixed(inst.EffDur, amountPlaces),
			fixed(a.Row.Metric, metricPlaces),
			w.StringFixed(weightPlaces),
		)
	}
	fmt.Fprintf(&b, "| **Total** | | | | | **%s** |\n", total.StringFixed(weightPlaces))
	return b.String()
}

func writeFilters(b *strings.Builder, filters universe.Filters) {
	m := filters.Map()
	if len(m) == 0 {
		b.WriteString("_Whole universe._\n\n")
		return
	}
	for _, k := range []string{
		universe.FilterClass1,
		universe.FilterClass2,
		universe.FilterClass3,
		universe.FilterClass4,
		universe.FilterRating,
		universe.FilterDuration,
		universe.FilterDate,
	} {
		if v, ok := m[k]; ok {
			fmt.Fprintf(b, "- %s: %s\n", k, v)
		}
	}
	b.WriteString("\n")
}
