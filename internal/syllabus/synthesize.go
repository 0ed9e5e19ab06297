package syllabus

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"sylcal/internal/model"
)

// Synthesize builds the event for one resolved row. It has no side effects.
func Synthesize(dr DateRange, row ModuleRow, courseTitle string) model.CalendarEvent {
	start := dr.StartAt.UTC().Format(time.RFC3339)
	end := dr.EndAt.UTC().Format(time.RFC3339)

	return model.CalendarEvent{
		Summary:     courseTitle + " | " + dr.WeekLabel,
		Description: describe(dr, row, courseTitle),
		StartTime:   dr.StartAt,
		EndTime:     dr.EndAt,
		Metadata: model.Metadata{
			Module:                  row.Module,
			Date:                    row.DateExpr,
			ActivitiesAndAssessment: row.Activities,
			Technology:              row.Technology,
			IsOnsite:                row.Onsite,
			IsAsync:                 row.Async,
			Hours:                   row.Hours,
			CourseTitle:             courseTitle,
			WeekInfo:                dr.WeekLabel,
			DateRange:               model.DateRangeStamp{Start: start, End: end},
			RangeEnd:                dr.End.String(),
		},
	}
}

func describe(dr DateRange, row ModuleRow, courseTitle string) string {
	var b strings.Builder
	b.WriteString(courseTitle + "\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(courseTitle)) + "\n\n")
	fmt.Fprintf(&b, "Module: %s\n\n", row.Module)
	b.WriteString(dr.WeekLabel + "\n")
	fmt.Fprintf(&b, "Activities and Assessment:\n%s\n\n", row.Activities)
	fmt.Fprintf(&b, "Technology: %s\n", row.Technology)
	fmt.Fprintf(&b, "Mode: %s %s", modeWord(row.Onsite, "Onsite", "Online"), modeWord(row.Async, "(Asynchronous)", "(Synchronous)"))
	return b.String()
}

func modeWord(flag bool, yes, no string) string {
	if flag {
		return yes
	}
	return no
}
