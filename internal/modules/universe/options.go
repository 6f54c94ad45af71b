package universe

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultUpperBoundChoices are the per-weight upper bounds offered to users.
var DefaultUpperBoundChoices = []float64{0.01, 0.02, 0.03}

// Options are the dropdown choices for every filter. Each list except
// UpperBound starts with an empty entry meaning "any".
type Options struct {
	Class1     []string  `json:"class_1"`
	Class2     []string  `json:"class_2"`
	Class3     []string  `json:"class_3"`
	Class4     []string  `json:"class_4"`
	Rating     []string  `json:"rating"`
	Duration   []string  `json:"duration"`
	Date       []string  `json:"date"`
	UpperBound []float64 `json:"upper_bound"`
}

// withAny sorts values and prepends the empty "any" choice.
func withAny(values []string) []string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return append([]string{""}, sorted...)
}

// durationBucket is a parsed dur_cell label: "3to5" or "10+".
type durationBucket struct {
	label string
	lower int
	open  bool
}

func parseDurationBucket(label string) (durationBucket, bool) {
	if lo, hi, ok := strings.Cut(label, "to"); ok {
		l, err1 := strconv.Atoi(strings.TrimSpace(lo))
		_, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil {
			return durationBucket{}, false
		}
		return durationBucket{label: label, lower: l}, true
	}
	if lo, ok := strings.CutSuffix(label, "+"); ok {
		l, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return durationBucket{}, false
		}
		return durationBucket{label: label, lower: l, open: true}, true
	}
	return durationBucket{}, false
}

// SortDurationBuckets orders duration bucket labels numerically: closed
// "a to b" ranges by lower bound first, then open "n+" buckets. Labels in
// neither form come last in lexical order.
func SortDurationBuckets(labels []string) []string {
	var (
		closed, open []durationBucket
		other        []string
	)
	for _, l := range labels {
		b, ok := parseDurationBucket(l)
		switch {
		case !ok:
			other = append(other, l)
		case b.open:
			open = append(open, b)
		default:
			closed = append(closed, b)
		}
	}

	byLower := func(s []durationBucket) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].lower < s[j].lower })
	}
	byLower(closed)
	byLower(open)
	sort.Strings(other)

	out := make([]string, 0, len(labels))
	for _, b := range closed {
		out = append(out, b.label)
	}
	for _, b := range open {
		out = append(out, b.label)
	}
	return append(out, other...)
}
