package syllabus

import (
	"iter"
	"strings"
)

// LocateTables scans text left to right and yields the content between each
// TableOpen and the next TableClose. Regions never overlap or nest; an open
// marker without a close ends the scan. Zero-length regions are not yielded.
func LocateTables(text string) iter.Seq[TableRegion] {
	return func(yield func(TableRegion) bool) {
		pos, idx := 0, 0
		for pos < len(text) {
			open := strings.Index(text[pos:], TableOpen)
			if open < 0 {
				return
			}
			start := pos + open + len(TableOpen)
			n := strings.Index(text[start:], TableClose)
			if n < 0 {
				return
			}
			end := start + n
			pos = end + len(TableClose)
			if end == start {
				continue
			}
			if !yield(TableRegion{Index: idx, Start: start, End: end, Text: text[start:end]}) {
				return
			}
			idx++
		}
	}
}
