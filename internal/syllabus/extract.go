package syllabus

import (
	"strings"
	"unicode/utf8"

	appLog "sylcal/internal/log"
	"sylcal/internal/model"
)

// previewRunes bounds the text excerpt attached to a no-tables diagnostic.
const previewRunes = 200

// CourseTitle returns the trimmed text of the first <title>...</title>
// pair, or DefaultCourseTitle when there is none or it is blank.
func CourseTitle(text string) string {
	i := strings.Index(text, TitleOpen)
	if i < 0 {
		return DefaultCourseTitle
	}
	rest := text[i+len(TitleOpen):]
	j := strings.Index(rest, TitleClose)
	if j < 0 {
		return DefaultCourseTitle
	}
	title := strings.TrimSpace(rest[:j])
	if title == "" {
		return DefaultCourseTitle
	}
	return title
}

// Result is the outcome of extracting one document.
type Result struct {
	CourseTitle string                `json:"courseTitle"`
	Tables      int                   `json:"tables"`
	Events      []model.CalendarEvent `json:"events"`
	Diagnostics []Diagnostic          `json:"diagnostics"`
}

// NoData reports ErrNoTables or ErrNoEvents when the document yielded
// nothing, and nil otherwise. Callers decide whether that is a failure.
func (r Result) NoData() error {
	switch {
	case r.Tables == 0:
		return ErrNoTables
	case len(r.Events) == 0:
		return ErrNoEvents
	}
	return nil
}

// Extractor drives the pipeline over every table of a document.
type Extractor struct {
	Resolver Resolver
	// Title finds the course title; CourseTitle when nil.
	Title func(text string) string
}

// NewExtractor returns an Extractor using the default title scan.
func NewExtractor(r Resolver) *Extractor {
	return &Extractor{Resolver: r, Title: CourseTitle}
}

// Extract returns every event it could build from text along with a
// diagnostic for each skipped table or row. Only blank input is an error;
// documents without tables or events are reported through Result.NoData.
func (x *Extractor) Extract(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	titleFn := x.Title
	if titleFn == nil {
		titleFn = CourseTitle
	}
	res := Result{
		CourseTitle: titleFn(text),
		Events:      []model.CalendarEvent{},
		Diagnostics: []Diagnostic{},
	}

	for region := range LocateTables(text) {
		res.Tables++
		x.extractTable(region, &res)
	}

	if res.Tables == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Table:  -1,
			Row:    -1,
			Reason: ReasonNoTables,
			Detail: preview(text),
		})
	}

	appLog.Info("syllabus extract completed",
		"title", res.CourseTitle,
		"tables", res.Tables,
		"events", len(res.Events),
		"skipped", len(res.Diagnostics),
	)
	return res, nil
}

func (x *Extractor) extractTable(region TableRegion, res *Result) {
	_, data, err := SplitTable(Tokenize(region))
	if err != nil {
		x.record(res, diagnosticFrom(region.Index, -1, err))
		return
	}

	for _, raw := range data {
		ev, err := x.buildEvent(raw, res.CourseTitle)
		if err != nil {
			x.record(res, diagnosticFrom(region.Index, raw.Index, err))
			continue
		}
		res.Events = append(res.Events, ev)
	}
}

func (x *Extractor) buildEvent(raw RawRow, title string) (model.CalendarEvent, error) {
	row, err := ParseModuleRow(raw)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	dr, err := x.Resolver.Resolve(row)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	ev := Synthesize(dr, row, title)
	if err := ev.Validate(); err != nil {
		return model.CalendarEvent{}, skip(ReasonInvalidEvent, "%v", err)
	}
	return ev, nil
}

func (x *Extractor) record(res *Result, d Diagnostic) {
	appLog.Debug("syllabus skip", "table", d.Table, "row", d.Row, "reason", string(d.Reason), "detail", d.Detail)
	res.Diagnostics = append(res.Diagnostics, d)
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}
