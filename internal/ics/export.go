package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "sylcal/internal/log"
	"sylcal/internal/model"
)

const productID = "-//sylcal//syllabus calendar//EN"

// propPrefix namespaces the metadata echoed into each VEVENT.
const propPrefix = "X-SYLCAL-"

// oneLine keeps X- property values on a single content line.
var oneLine = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Recurrence controls whether an event repeats across the days its week
// expression covers. The default places one event on the range start.
type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// ParseRecurrence accepts "", "none", "daily" and "weekly".
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case "", RecurrenceNone:
		return RecurrenceNone, nil
	case RecurrenceDaily, RecurrenceWeekly:
		return r, nil
	default:
		return "", fmt.Errorf("ics: unknown recurrence %q", s)
	}
}

// ExportConfig controls calendar serialization.
type ExportConfig struct {
	// Name is written as X-WR-CALNAME when set.
	Name       string
	Recurrence Recurrence
	// Stamp is the DTSTAMP of every VEVENT. Zero means now; fix it for
	// reproducible output.
	Stamp time.Time
}

// Encode serializes events as a VCALENDAR. Event UIDs are derived from
// event content, so re-exporting the same document updates rather than
// duplicates events in subscribing clients.
func Encode(events []model.CalendarEvent, cfg ExportConfig) (string, error) {
	stamp := cfg.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}

	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return "", fmt.Errorf("ics: event %d (%q): %w", i, ev.Summary, err)
		}

		ve := cal.AddEvent(ev.UID().String() + "@sylcal")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.StartTime)
		ve.SetEndAt(ev.EndTime)
		ve.SetSummary(ev.Summary)
		ve.SetDescription(ev.Description)

		flat := ev.Metadata.Flat()
		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ve.SetProperty(ical.ComponentProperty(propPrefix+strings.ToUpper(k)), oneLine.Replace(flat[k]))
		}

		rule, err := RecurrenceRule(ev, cfg.Recurrence)
		if err != nil {
			// The event itself is still valid; export it without repeats.
			appLog.Error("ics: recurrence rule skipped", err, "summary", ev.Summary)
			continue
		}
		if rule != "" {
			ve.AddProperty(ical.ComponentPropertyRrule, rule)
		}
	}

	appLog.Info("ics export completed", "events", len(events), "recurrence", string(cfg.Recurrence))
	return cal.Serialize(), nil
}

// RecurrenceRule returns the RRULE value repeating ev until the last day of
// its week range, or "" when no repeat applies.
func RecurrenceRule(ev model.CalendarEvent, rec Recurrence) (string, error) {
	var freq string
	switch rec {
	case "", RecurrenceNone:
		return "", nil
	case RecurrenceDaily:
		freq = "DAILY"
	case RecurrenceWeekly:
		freq = "WEEKLY"
	default:
		return "", fmt.Errorf("unknown recurrence %q", rec)
	}

	until, ok, err := rangeUntil(ev)
	if err != nil || !ok {
		return "", err
	}

	rule := fmt.Sprintf("FREQ=%s;UNTIL=%s", freq, until.UTC().Format("20060102T150405Z"))
	if _, err := rrule.StrToRRule(rule); err != nil {
		return "", fmt.Errorf("build rrule %q: %w", rule, err)
	}
	return rule, nil
}

// Occurrences lists the start instants ev occupies under rec. Without a
// recurrence it is just the event start.
func Occurrences(ev model.CalendarEvent, rec Recurrence) ([]time.Time, error) {
	rule, err := RecurrenceRule(ev, rec)
	if err != nil {
		return nil, err
	}
	if rule == "" {
		return []time.Time{ev.StartTime}, nil
	}

	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.StartTime)

	occ := r.All()
	out := make([]time.Time, len(occ))
	for i, t := range occ {
		out[i] = t.In(ev.StartTime.Location())
	}
	return out, nil
}

// rangeUntil is the last range day at the event's start clock. ok is false
// for single-day ranges.
func rangeUntil(ev model.CalendarEvent) (time.Time, bool, error) {
	if ev.Metadata.RangeEnd == "" {
		return time.Time{}, false, nil
	}
	end, err := civil.ParseDate(ev.Metadata.RangeEnd)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("range end %q: %w", ev.Metadata.RangeEnd, err)
	}

	s := ev.StartTime
	until := time.Date(end.Year, end.Month, end.Day, s.Hour(), s.Minute(), s.Second(), 0, s.Location())
	if !until.After(s) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}
