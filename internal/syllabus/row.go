package syllabus

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingFloat matches the numeric prefix of an hours cell such as "2 hrs".
var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// SplitTable separates the header row from the data rows. Tables with fewer
// than two rows are skipped.
func SplitTable(rows []RawRow) (header RawRow, data []RawRow, err error) {
	if len(rows) < 2 {
		return RawRow{}, nil, skip(ReasonTooFewRows, "got %d row(s)", len(rows))
	}
	return rows[0], rows[1:], nil
}

// ParseModuleRow maps the fixed column order onto a ModuleRow:
// module, date expression, activities, technology, onsite, async, hours.
// Extra trailing columns are ignored.
func ParseModuleRow(raw RawRow) (ModuleRow, error) {
	f := raw.Fields
	if len(f) < MinFields {
		return ModuleRow{}, skip(ReasonTooFewFields, "got %d, need %d", len(f), MinFields)
	}
	return ModuleRow{
		Module:     f[0],
		DateExpr:   f[1],
		Activities: f[2],
		Technology: f[3],
		Onsite:     parseFlag(f[4]),
		Async:      parseFlag(f[5]),
		Hours:      parseHours(f[6]),
	}, nil
}

func parseFlag(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// parseHours reads the leading number of s. Anything that is not a finite
// positive number, or does not fit a duration of at least one second,
// yields DefaultHours.
func parseHours(s string) float64 {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return DefaultHours
	}
	h, err := strconv.ParseFloat(m, 64)
	if err != nil || h <= 0 || math.IsInf(h, 0) || math.IsNaN(h) || !durationFits(h) {
		return DefaultHours
	}
	return h
}
