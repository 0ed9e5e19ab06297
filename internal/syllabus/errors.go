package syllabus

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned by Extract for blank documents.
	ErrEmptyInput = errors.New("syllabus: empty document text")

	// ErrNoData marks a document that parsed but yielded nothing. It may be
	// a genuinely event-free document rather than a corrupt one.
	ErrNoData   = errors.New("syllabus: no data")
	ErrNoTables = fmt.Errorf("%w: no tables found", ErrNoData)
	ErrNoEvents = fmt.Errorf("%w: no events extracted", ErrNoData)
)

// Reason classifies why a table or row was skipped.
type Reason string

const (
	ReasonNoTables      Reason = "no tables found"
	ReasonTooFewRows    Reason = "table needs a header and at least one data row"
	ReasonTooFewFields  Reason = "row has too few fields"
	ReasonNoWeek        Reason = "no week number"
	ReasonNoRange       Reason = "no parenthesized date range"
	ReasonUnknownMonth  Reason = "unknown month abbreviation"
	ReasonBadDay        Reason = "non-numeric day"
	ReasonInvalidDate   Reason = "invalid calendar date"
	ReasonInvertedRange Reason = "date range ends before it starts"
	ReasonInvalidEvent  Reason = "invalid event"
)

// SkipError is returned by the parse stages when their input must be
// skipped. It never aborts a batch.
type SkipError struct {
	Reason Reason
	Detail string
}

func (e *SkipError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return string(e.Reason)
}

func skip(reason Reason, format string, args ...any) *SkipError {
	return &SkipError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Diagnostic records one skipped table or row. Table is -1 for
// document-level diagnostics; Row is -1 for table-level ones.
type Diagnostic struct {
	Table  int    `json:"table"`
	Row    int    `json:"row"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Table < 0:
		return fmt.Sprintf("document: %s %s", d.Reason, d.Detail)
	case d.Row < 0:
		return fmt.Sprintf("table %d: %s %s", d.Table, d.Reason, d.Detail)
	default:
		return fmt.Sprintf("table %d row %d: %s %s", d.Table, d.Row, d.Reason, d.Detail)
	}
}

func diagnosticFrom(table, row int, err error) Diagnostic {
	d := Diagnostic{Table: table, Row: row, Reason: ReasonInvalidEvent, Detail: err.Error()}
	var se *SkipError
	if errors.As(err, &se) {
		d.Reason = se.Reason
		d.Detail = se.Detail
	}
	return d
}
