package cli

import (
	"flag"

	"github.com/aristath/yieldopt/internal/modules/universe"
)

// filterFlags are the categorical selections shared by table, summary and optimize.
type filterFlags struct {
	values map[string]*string
}

func (ff *filterFlags) register(f *flag.FlagSet) {
	ff.values = map[string]*string{
		universe.FilterClass1:   f.String(universe.FilterClass1, "", "Asset class level 1 (e.g. CORP)"),
		universe.FilterClass2:   f.String(universe.FilterClass2, "", "Sector (e.g. FINANCIAL)"),
		universe.FilterClass3:   f.String(universe.FilterClass3, "", "Asset class level 3"),
		universe.FilterClass4:   f.String(universe.FilterClass4, "", "Asset class level 4"),
		universe.FilterRating:   f.String(universe.FilterRating, "", "Credit rating"),
		universe.FilterDuration: f.String(universe.FilterDuration, "", "Duration bucket (e.g. 3to5, 10+)"),
		universe.FilterDate:     f.String(universe.FilterDate, "", "Effective date (YYYY-MM-DD)"),
	}
}

func (ff *filterFlags) filters() universe.Filters {
	m := make(map[string]string, len(ff.values))
	for k, v := range ff.values {
		m[k] = *v
	}
	return universe.FiltersFromMap(m)
}
