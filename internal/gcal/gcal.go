// Package gcal adapts extracted events to the Google Calendar v3 API.
//
// Only the shape of the request and a narrow Inserter contract live here;
// authentication is the caller's concern.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	appLog "sylcal/internal/log"
	"sylcal/internal/model"
)

// Inserter submits a single event to a calendar.
type Inserter interface {
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
}

// ServiceInserter is an Inserter backed by a calendar.Service.
type ServiceInserter struct {
	svc *calendar.Service
}

func NewServiceInserter(svc *calendar.Service) *ServiceInserter {
	return &ServiceInserter{svc: svc}
}

func (s *ServiceInserter) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return s.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
}

// EventID converts the content-derived UID into a valid Google event id
// (base32hex alphabet, so lowercase hex without dashes).
func EventID(ev model.CalendarEvent) string {
	return strings.ReplaceAll(ev.UID().String(), "-", "")
}

// ToEvent builds the API request body. timeZone is the IANA zone the
// calendar should display the event in; empty uses the event's own zone.
func ToEvent(ev model.CalendarEvent, timeZone string) (*calendar.Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("gcal: invalid event %q: %w", ev.Summary, err)
	}
	if timeZone == "" {
		timeZone = ev.StartTime.Location().String()
	}

	return &calendar.Event{
		Id:          EventID(ev),
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.StartTime.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.EndTime.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: ev.Metadata.Flat(),
		},
	}, nil
}

// Failure is one event the calendar service did not accept.
type Failure struct {
	Index   int
	Summary string
	Err     error
}

// PublishResult summarizes a Publish call.
type PublishResult struct {
	Created  []string // ids returned by the service
	Existing []string // ids already present from an earlier publish
	Failed   []Failure
}

// Publish submits events one at a time. A failed event is recorded and the
// rest are still sent; only context cancellation stops the loop early.
func Publish(ctx context.Context, ins Inserter, calendarID, timeZone string, events []model.CalendarEvent) (PublishResult, error) {
	var res PublishResult
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := ToEvent(ev, timeZone)
		if err != nil {
			res.Failed = append(res.Failed, Failure{Index: i, Summary: ev.Summary, Err: err})
			continue
		}

		created, err := ins.Insert(ctx, calendarID, body)
		switch {
		case isConflict(err):
			res.Existing = append(res.Existing, body.Id)
		case err != nil:
			appLog.Error("gcal insert failed", err, "calendar", calendarID, "summary", ev.Summary)
			res.Failed = append(res.Failed, Failure{Index: i, Summary: ev.Summary, Err: err})
		default:
			res.Created = append(res.Created, created.Id)
		}
	}

	appLog.Info("gcal publish completed",
		"calendar", calendarID,
		"created", len(res.Created),
		"existing", len(res.Existing),
		"failed", len(res.Failed),
	)
	return res, nil
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
