package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"meetsync/models"
	"meetsync/services/negotiation"
)

const idempotencyProperty = "negotiationKey"

// GoogleCalendarService implements the calendar collaborator against the
// Google Calendar API. Availability comes from freebusy queries; bookings are
// events on the service account's primary calendar with every participant
// invited.
type GoogleCalendarService struct {
	events   EventsAPI
	freebusy FreeBusyAPI
	timezone string
}

// EventsAPI and FreeBusyAPI mirror the API surface used here so tests can
// substitute fakes.
type EventsAPI interface {
	Insert(ctx context.Context, event *gcal.Event) (*gcal.Event, error)
	FindByPrivateProperty(ctx context.Context, key, value string) (*gcal.Event, error)
}

type FreeBusyAPI interface {
	Query(ctx context.Context, req *gcal.FreeBusyRequest) (*gcal.FreeBusyResponse, error)
}

func NewGoogleCalendarService(ctx context.Context, credentialsFile, timezone string) (*GoogleCalendarService, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	api := &googleCalendarAPI{svc: svc}
	return &GoogleCalendarService{events: api, freebusy: api, timezone: timezone}, nil
}

func NewGoogleCalendarServiceWithAPI(events EventsAPI, freebusy FreeBusyAPI, timezone string) *GoogleCalendarService {
	return &GoogleCalendarService{events: events, freebusy: freebusy, timezone: timezone}
}

// GetAvailability returns busy intervals per participant. A calendar the
// backend cannot read comes back with HasData false so the caller can treat
// it as fully busy rather than silently free.
func (s *GoogleCalendarService) GetAvailability(ctx context.Context, participants []string, queried models.Interval) ([]models.AvailabilityWindow, error) {
	items := make([]*gcal.FreeBusyRequestItem, 0, len(participants))
	for _, p := range participants {
		items = append(items, &gcal.FreeBusyRequestItem{Id: p})
	}

	resp, err := s.freebusy.Query(ctx, &gcal.FreeBusyRequest{
		TimeMin:  queried.Start.Format(time.RFC3339),
		TimeMax:  queried.End.Format(time.RFC3339),
		TimeZone: s.timezone,
		Items:    items,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	windows := make([]models.AvailabilityWindow, 0, len(participants))
	for _, p := range participants {
		window := models.AvailabilityWindow{Participant: p, QueriedRange: queried}
		cal, ok := resp.Calendars[p]
		if ok && len(cal.Errors) == 0 {
			window.HasData = true
			for _, period := range cal.Busy {
				iv, err := parsePeriod(period)
				if err != nil {
					return nil, fmt.Errorf("bad busy period for %s: %w", p, err)
				}
				window.Busy = append(window.Busy, iv)
			}
		}
		windows = append(windows, window)
	}
	return windows, nil
}

// BookEvent creates the event. The idempotency key is stored as a private
// extended property and looked up first, so a retried insert returns the
// event created by an earlier attempt instead of a duplicate.
func (s *GoogleCalendarService) BookEvent(ctx context.Context, req negotiation.BookEventRequest) (string, error) {
	for _, attendee := range req.Attendees {
		if _, err := mail.ParseAddress(attendee); err != nil {
			return "", &negotiation.InvalidAttendeeError{Attendee: attendee}
		}
	}

	existing, err := s.events.FindByPrivateProperty(ctx, idempotencyProperty, req.IdempotencyKey)
	if err != nil {
		return "", classifyError(err)
	}
	if existing != nil {
		return existing.Id, nil
	}

	attendees := make([]*gcal.EventAttendee, 0, len(req.Attendees))
	for _, a := range req.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: a})
	}

	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Slot.Start.Format(time.RFC3339), TimeZone: s.timezone},
		End:         &gcal.EventDateTime{DateTime: req.Slot.End.Format(time.RFC3339), TimeZone: s.timezone},
		Attendees:   attendees,
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{idempotencyProperty: req.IdempotencyKey},
		},
	}

	created, err := s.events.Insert(ctx, event)
	if err != nil {
		return "", classifyBookingError(err, req.Attendees)
	}
	return created.Id, nil
}

// classifyError maps backend failures onto the retryable sentinel. Rate
// limits and server errors are transient; everything else surfaces as is.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", negotiation.ErrCalendarUnavailable, err)
		}
		return err
	}
	// Network-level failures have no status code; treat as transient.
	return fmt.Errorf("%w: %v", negotiation.ErrCalendarUnavailable, err)
}

func classifyBookingError(err error, attendees []string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(strings.ToLower(apiErr.Message), "attendee") {
		return &negotiation.InvalidAttendeeError{Attendee: strings.Join(attendees, ", ")}
	}
	return classifyError(err)
}

func parsePeriod(period *gcal.TimePeriod) (models.Interval, error) {
	start, err := time.Parse(time.RFC3339, period.Start)
	if err != nil {
		return models.Interval{}, err
	}
	end, err := time.Parse(time.RFC3339, period.End)
	if err != nil {
		return models.Interval{}, err
	}
	return models.Interval{Start: start, End: end}, nil
}

// googleCalendarAPI is the live implementation over the generated client.
type googleCalendarAPI struct {
	svc *gcal.Service
}

func (a *googleCalendarAPI) Insert(ctx context.Context, event *gcal.Event) (*gcal.Event, error) {
	return a.svc.Events.Insert("primary", event).SendUpdates("all").Context(ctx).Do()
}

func (a *googleCalendarAPI) FindByPrivateProperty(ctx context.Context, key, value string) (*gcal.Event, error) {
	list, err := a.svc.Events.List("primary").
		PrivateExtendedProperty(key + "=" + value).
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, nil
	}
	return list.Items[0], nil
}

func (a *googleCalendarAPI) Query(ctx context.Context, req *gcal.FreeBusyRequest) (*gcal.FreeBusyResponse, error) {
	return a.svc.Freebusy.Query(req).Context(ctx).Do()
}
