package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// uidNamespace scopes the SHA-1 UIDs derived from event content.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:sylcal:event"))

// DateRangeStamp is the ISO form of the instants an event was built from.
type DateRangeStamp struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metadata echoes the inputs that produced a CalendarEvent so downstream
// consumers (calendar APIs, audits) can see the structured values behind
// the human-readable summary and description.
type Metadata struct {
	Module                  string         `json:"module"`
	Date                    string         `json:"date"`
	ActivitiesAndAssessment string         `json:"activitiesAndAssessment"`
	Technology              string         `json:"technology"`
	IsOnsite                bool           `json:"isOnsite"`
	IsAsync                 bool           `json:"isAsync"`
	Hours                   float64        `json:"hours"`
	CourseTitle             string         `json:"courseTitle"`
	WeekInfo                string         `json:"weekInfo"`
	DateRange               DateRangeStamp `json:"dateRange"`
	// RangeEnd is the last civil day (YYYY-MM-DD) covered by the week
	// expression, after year rollover.
	RangeEnd string `json:"rangeEnd"`
}

// CalendarEvent is one synthesized event ready for a calendar service.
type CalendarEvent struct {
	Summary     string    `json:"summary" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Metadata    Metadata  `json:"metadata"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks the event invariants: a summary is present and the end
// is strictly after the start.
func (e CalendarEvent) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(e)
}

// UID returns a stable identifier derived from the event's row content and
// start instant. Extracting the same document twice yields the same UIDs;
// rows differing in any column get different ones.
func (e CalendarEvent) UID() uuid.UUID {
	m := e.Metadata
	key := strings.Join([]string{
		e.Summary,
		m.Module,
		m.Date,
		m.ActivitiesAndAssessment,
		m.Technology,
		strconv.FormatBool(m.IsOnsite),
		strconv.FormatBool(m.IsAsync),
		strconv.FormatFloat(m.Hours, 'g', -1, 64),
		e.StartTime.UTC().Format(time.RFC3339Nano),
	}, "\x00")
	return uuid.NewSHA1(uidNamespace, []byte(key))
}

// Flat renders the metadata as a flat string bag, the shape calendar
// services accept for private extended properties.
func (m Metadata) Flat() map[string]string {
	dr, _ := json.Marshal(m.DateRange)
	return map[string]string{
		"module":      m.Module,
		"isOnsite":    strconv.FormatBool(m.IsOnsite),
		"isAsync":     strconv.FormatBool(m.IsAsync),
		"hours":       strconv.FormatFloat(m.Hours, 'f', -1, 64),
		"courseTitle": m.CourseTitle,
		"weekInfo":    m.WeekInfo,
		"dateRange":   string(dr),
	}
}
