package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/chatplan/chatplan/internal/google"
	"github.com/chatplan/chatplan/internal/instrumentation"
)

// Client talks to the Google Calendar API on behalf of a single user.
// It always operates on the user's primary calendar.
type Client struct {
	svc    *gcal.Service
	userID string
}

// NewClient builds a calendar client for userID using credentials from
// the token store. Returns ErrNotConnected (wrapped) when the user has
// no stored token.
func NewClient(ctx context.Context, store google.TokenStore, userID string) (*Client, error) {
	return NewClientWithMetrics(ctx, store, userID, nil)
}

// NewClientWithMetrics is NewClient with token refresh observability
// threaded into the underlying OAuth token source.
func NewClientWithMetrics(ctx context.Context, store google.TokenStore, userID string, metrics *instrumentation.Metrics) (*Client, error) {
	httpClient, err := google.HTTPClientForUserWithMetrics(ctx, store, userID, metrics)
	if err != nil {
		return nil, classifyError(err)
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{svc: svc, userID: userID}, nil
}

// ListEvents returns single-instance events overlapping [start, end),
// in start order. Recurring events are expanded by the provider.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	call := c.svc.Events.List("primary").
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// CreateEvent inserts ev into the user's primary calendar and returns
// the stored copy with its provider-assigned ID.
func (c *Client) CreateEvent(ctx context.Context, ev Event, timezone string) (*Event, error) {
	created, err := c.svc.Events.Insert("primary", fromEvent(ev, timezone)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	out := toEvent(created)
	return &out, nil
}

// UpdateEvent applies the non-zero fields of ev to the stored event
// with ev.ID and returns the updated copy.
func (c *Client) UpdateEvent(ctx context.Context, ev Event, timezone string) (*Event, error) {
	existing, err := c.svc.Events.Get("primary", ev.ID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", ev.ID, err)
	}
	if ev.Title != "" {
		existing.Summary = ev.Title
	}
	if ev.Description != "" {
		existing.Description = ev.Description
	}
	if ev.Location != "" {
		existing.Location = ev.Location
	}
	if !ev.Start.IsZero() {
		existing.Start = &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: timezone}
	}
	if !ev.End.IsZero() {
		existing.End = &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: timezone}
	}
	updated, err := c.svc.Events.Update("primary", ev.ID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("updating event %s: %w", ev.ID, err)
	}
	out := toEvent(updated)
	return &out, nil
}

// DeleteEvent removes the event with the given ID.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting event %s: %w", eventID, err)
	}
	return nil
}

func toEvent(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	ev.Start = parseEventTime(item.Start)
	ev.End = parseEventTime(item.End)
	return ev
}

// parseEventTime returns the zero time for all-day entries, which carry
// only a date.
func parseEventTime(edt *gcal.EventDateTime) time.Time {
	if edt == nil || edt.DateTime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fromEvent(ev Event, timezone string) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: timezone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: timezone},
	}
}
