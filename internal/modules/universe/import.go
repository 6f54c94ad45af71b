package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// requiredCSVColumns must be present in an import header.
var requiredCSVColumns = []string{"class_2", "effdur", "ytm", "oas"}

// ParseCSV reads instruments from CSV with a header row. Header names match
// table columns case-insensitively; unknown columns are ignored.
func ParseCSV(r io.Reader) ([]Instrument, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV input")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredCSVColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", c)
		}
	}

	var instruments []Instrument
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}

		text := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		number := func(col string) (float64, error) {
			s := text(col)
			if s == "" {
				return 0, nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: column %s: %w", line, col, err)
			}
			return v, nil
		}

		inst := Instrument{
			CUSIP:   text("cusip"),
			Issuer:  text("issuer"),
			Class1:  text("class_1"),
			Class2:  text("class_2"),
			Class3:  text("class_3"),
			Class4:  text("class_4"),
			Rating:  text("rating"),
			DurCell: text("dur_cell"),
			EffDate: text("effdate"),
		}
		for _, f := range []struct {
			col  string
			dest *float64
		}{
			{"ytm", &inst.YTM},
			{"oas", &inst.OAS},
			{"effdur", &inst.EffDur},
			{"mv", &inst.MV},
		} {
			v, err := number(f.col)
			if err != nil {
				return nil, err
			}
			*f.dest = v
		}
		instruments = append(instruments, inst)
	}

	return instruments, nil
}
