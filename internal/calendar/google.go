package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Source lists events that have not ended yet, ordered by start time.
type Source interface {
	Upcoming(ctx context.Context, calendarID string, now time.Time) ([]Event, error)
}

// GoogleSource reads events from the Google Calendar v3 API.
type GoogleSource struct {
	service    *gcal.Service
	maxResults int64
}

// NewGoogleSource creates a source from an authorized HTTP client.
// Extra options are passed to the API client (endpoint overrides in tests).
func NewGoogleSource(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleSource, error) {
	if client != nil {
		opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	}
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleSource{service: service}, nil
}

// WithMaxResults caps the number of events requested. Zero leaves the
// provider default.
func (g *GoogleSource) WithMaxResults(n int64) *GoogleSource {
	g.maxResults = n
	return g
}

// Upcoming returns events ending after now with recurring events expanded
// into single instances.
func (g *GoogleSource) Upcoming(ctx context.Context, calendarID string, now time.Time) ([]Event, error) {
	call := g.service.Events.List(calendarID).
		Context(ctx).
		TimeMin(now.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if g.maxResults > 0 {
		call = call.MaxResults(g.maxResults)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, fromAPI(item))
	}
	return events, nil
}

func fromAPI(item *gcal.Event) Event {
	e := Event{
		Summary:     item.Summary,
		Description: strings.TrimSpace(item.Description),
	}
	if item.Start != nil {
		e.Start = EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date, TimeZone: item.Start.TimeZone}
	}
	if item.End != nil {
		e.End = EventTime{DateTime: item.End.DateTime, Date: item.End.Date, TimeZone: item.End.TimeZone}
	}
	return e
}
