package syllabus

import "strings"

// Tokenize splits a region into rows on RowSeparator and each row into
// fields on FieldSeparator. Surrounding whitespace is trimmed and empty rows
// are dropped; short rows pass through for the row parser to reject.
func Tokenize(region TableRegion) []RawRow {
	// A stray open marker inside a region is markup, not data.
	body := strings.ReplaceAll(region.Text, TableOpen, "")

	var rows []RawRow
	for _, line := range strings.Split(body, RowSeparator) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, FieldSeparator)
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		rows = append(rows, RawRow{Index: len(rows), Fields: fields})
	}
	return rows
}
