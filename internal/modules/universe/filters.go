package universe

import (
	"net/url"
	"strings"
)

// Filter keys as used in query strings, CLI flags and run records
const (
	FilterClass1   = "class_1"
	FilterClass2   = "class_2"
	FilterClass3   = "class_3"
	FilterClass4   = "class_4"
	FilterRating   = "rating"
	FilterDuration = "duration"
	FilterDate     = "date"
)

// Filters are the categorical selections of one request. The zero value
// selects the whole universe. Filters are plain values: build a new one per
// request instead of sharing or mutating.
type Filters struct {
	Class1   string `json:"class_1,omitempty"`
	Class2   string `json:"class_2,omitempty"`
	Class3   string `json:"class_3,omitempty"`
	Class4   string `json:"class_4,omitempty"`
	Rating   string `json:"rating,omitempty"`
	Duration string `json:"duration,omitempty"`
	Date     string `json:"date,omitempty"`
}

// FiltersFromValues reads filters from URL query or form values.
func FiltersFromValues(v url.Values) Filters {
	return FiltersFromMap(map[string]string{
		FilterClass1:   v.Get(FilterClass1),
		FilterClass2:   v.Get(FilterClass2),
		FilterClass3:   v.Get(FilterClass3),
		FilterClass4:   v.Get(FilterClass4),
		FilterRating:   v.Get(FilterRating),
		FilterDuration: v.Get(FilterDuration),
		FilterDate:     v.Get(FilterDate),
	})
}

// FiltersFromMap builds filters from a key/value map. Values are trimmed;
// unknown keys are ignored.
func FiltersFromMap(m map[string]string) Filters {
	get := func(k string) string { return strings.TrimSpace(m[k]) }
	return Filters{
		Class1:   get(FilterClass1),
		Class2:   get(FilterClass2),
		Class3:   get(FilterClass3),
		Class4:   get(FilterClass4),
		Rating:   get(FilterRating),
		Duration: get(FilterDuration),
		Date:     get(FilterDate),
	}
}

// Map returns the non-empty selections keyed by filter name.
func (f Filters) Map() map[string]string {
	out := make(map[string]string)
	for _, kv := range [][2]string{
		{FilterClass1, f.Class1},
		{FilterClass2, f.Class2},
		{FilterClass3, f.Class3},
		{FilterClass4, f.Class4},
		{FilterRating, f.Rating},
		{FilterDuration, f.Duration},
		{FilterDate, f.Date},
	} {
		if kv[1] != "" {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

// IsEmpty reports whether no selection is made.
func (f Filters) IsEmpty() bool {
	return f == Filters{}
}

// Predicates maps each selection onto its column. Empty selections become
// predicates without a value and so add no condition.
func (f Filters) Predicates() []Predicate {
	return []Predicate{
		Eq("class_1", f.Class1),
		Eq("class_2", f.Class2),
		Eq("class_3", f.Class3),
		Eq("class_4", f.Class4),
		Eq("rating", f.Rating),
		Eq("dur_cell", f.Duration),
		Eq("effdate", f.Date),
	}
}
