// Package syllabus turns the plain-text rendering of a course syllabus into
// calendar events.
//
// The input format is fixed by the upstream document template: tables sit
// between <table> and </table>, rows are separated by '@' and fields by '$',
// and the course title sits between <title> and </title>. Separators cannot
// be escaped, so a field value containing '@' or '$' is split.
//
// Pipeline: LocateTables -> Tokenize -> SplitTable/ParseModuleRow ->
// Resolver.Resolve -> Synthesize, driven by Extractor.Extract. Every stage
// is a pure function of its inputs; the reference year and event zone are
// passed in explicitly, so documents can be processed concurrently.
package syllabus

import (
	"time"

	"cloud.google.com/go/civil"
)

// Document markers and separators.
const (
	TableOpen      = "<table>"
	TableClose     = "</table>"
	TitleOpen      = "<title>"
	TitleClose     = "</title>"
	RowSeparator   = "@"
	FieldSeparator = "$"
)

const (
	// DefaultCourseTitle is used when the document has no title marker.
	DefaultCourseTitle = "No Course Title Found"
	// DefaultHours is the event duration when the hours column is unusable.
	DefaultHours = 1.0
	// DefaultStartHour is the local time-of-day events start at.
	DefaultStartHour = 9
	// MinFields is the number of columns a data row must carry.
	MinFields = 7
)

// TableRegion is the text strictly between one open and close table marker.
type TableRegion struct {
	Index int // position among regions yielded for the document
	Start int // byte offset of Text in the document
	End   int
	Text  string
}

// RawRow is one row of a table region, split into trimmed fields.
// Index 0 is the header candidate.
type RawRow struct {
	Index  int
	Fields []string
}

// ModuleRow is a validated data row.
type ModuleRow struct {
	Module     string
	DateExpr   string
	Activities string
	Technology string
	Onsite     bool
	Async      bool
	Hours      float64
}

// DateRange is the resolved form of a week expression.
type DateRange struct {
	WeekLabel string
	// Start and End are the first and last civil days named by the
	// expression; End carries the year rollover.
	Start civil.Date
	End   civil.Date
	// StartAt is Start at the configured hour; EndAt is StartAt plus the
	// row's hours.
	StartAt time.Time
	EndAt   time.Time
}
