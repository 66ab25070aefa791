package tools

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatplan/chatplan/internal/calendar"
	"github.com/chatplan/chatplan/internal/schedule"
)

// CalendarService is the calendar surface the tool handlers need.
// *calendar.Service implements it.
type CalendarService interface {
	ListEvents(ctx context.Context, userID string, start, end time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, userID string, loc *time.Location, input calendar.EventInput) (*calendar.Event, error)
}

// ConflictDetector checks proposed events. *schedule.Detector
// implements it.
type ConflictDetector interface {
	DetectConflicts(ctx context.Context, userID string, proposed schedule.ProposedEvent, loc *time.Location) (*schedule.ConflictResult, error)
}

// RegisterCalendarTools adds the scheduling tool set to the registry.
func RegisterCalendarTools(registry *Registry, svc CalendarService, detector ConflictDetector) error {
	defs := []struct {
		name Name
		def  Definition
	}{
		{GetCalendarEvents, Definition{
			Tool: mcp.NewTool(string(GetCalendarEvents),
				mcp.WithDescription("List the user's calendar events in a date range. Dates are YYYY-MM-DD in the user's timezone; the end date is inclusive."),
				mcp.WithString("startDate", mcp.Required(), mcp.Description("First day of the range, YYYY-MM-DD")),
				mcp.WithString("endDate", mcp.Required(), mcp.Description("Last day of the range, YYYY-MM-DD")),
			),
			Handler: getCalendarEventsHandler(svc),
		}},
		{CreateCalendarEvent, Definition{
			Tool: mcp.NewTool(string(CreateCalendarEvent),
				mcp.WithDescription("Create a calendar event. Check for conflicts first with detectConflicts unless the user explicitly asked to book regardless."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
				mcp.WithString("date", mcp.Required(), mcp.Description("Event date, YYYY-MM-DD")),
				mcp.WithString("startTime", mcp.Required(), mcp.Description("Start time, HH:MM 24-hour clock")),
				mcp.WithNumber("duration", mcp.Description("Duration in minutes, default 60")),
				mcp.WithString("description", mcp.Description("Optional event description")),
				mcp.WithString("location", mcp.Description("Optional event location")),
			),
			Handler: createCalendarEventHandler(svc),
		}},
		{DetectConflicts, Definition{
			Tool: mcp.NewTool(string(DetectConflicts),
				mcp.WithDescription("Check whether a proposed time clashes with existing events and get alternative open slots if it does."),
				mcp.WithString("date", mcp.Required(), mcp.Description("Proposed date, YYYY-MM-DD")),
				mcp.WithString("startTime", mcp.Required(), mcp.Description("Proposed start time, HH:MM 24-hour clock")),
				mcp.WithNumber("duration", mcp.Description("Duration in minutes, default 60")),
				mcp.WithString("title", mcp.Description("Title of the proposed event, used in the conflict report")),
			),
			Handler: detectConflictsHandler(detector),
		}},
	}
	for _, d := range defs {
		if err := registry.Register(d.name, d.def); err != nil {
			return err
		}
	}
	return nil
}

// eventView is the event shape handed back to the model.
type eventView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

func toEventView(ev calendar.Event, loc *time.Location) eventView {
	view := eventView{
		ID:          ev.ID,
		Title:       ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
	}
	if !ev.Start.IsZero() {
		view.Start = ev.Start.In(loc).Format(time.RFC3339)
	}
	if !ev.End.IsZero() {
		view.End = ev.End.In(loc).Format(time.RFC3339)
	}
	return view
}

func getCalendarEventsHandler(svc CalendarService) Handler {
	type listArgs struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	return func(ctx context.Context, uc UserContext, args map[string]any) Result {
		var in listArgs
		if err := decodeArgs(args, &in); err != nil {
			return Fail("pass startDate and endDate as YYYY-MM-DD strings", "invalid arguments: %v", err)
		}
		start, err := time.ParseInLocation("2006-01-02", in.StartDate, uc.Location)
		if err != nil {
			return Fail("pass startDate as YYYY-MM-DD", "invalid startDate %q", in.StartDate)
		}
		last, err := time.ParseInLocation("2006-01-02", in.EndDate, uc.Location)
		if err != nil {
			return Fail("pass endDate as YYYY-MM-DD", "invalid endDate %q", in.EndDate)
		}
		// The end date is inclusive, so the fetch window runs to the
		// following midnight.
		end := last.AddDate(0, 0, 1)
		if !start.Before(end) {
			return Fail("endDate must not be before startDate", "invalid range %s..%s", in.StartDate, in.EndDate)
		}

		events, err := svc.ListEvents(ctx, uc.UserID, start, end)
		if err != nil {
			return calendarFailure("listing events", err)
		}
		views := make([]eventView, 0, len(events))
		for _, ev := range events {
			views = append(views, toEventView(ev, uc.Location))
		}
		return OK(map[string]any{"events": views})
	}
}

func createCalendarEventHandler(svc CalendarService) Handler {
	type createArgs struct {
		Title       string  `json:"title"`
		Date        string  `json:"date"`
		StartTime   string  `json:"startTime"`
		Duration    float64 `json:"duration"`
		Description string  `json:"description"`
		Location    string  `json:"location"`
	}
	return func(ctx context.Context, uc UserContext, args map[string]any) Result {
		var in createArgs
		if err := decodeArgs(args, &in); err != nil {
			return Fail("pass title, date and startTime; duration is optional minutes", "invalid arguments: %v", err)
		}
		created, err := svc.CreateEvent(ctx, uc.UserID, uc.Location, calendar.EventInput{
			Title:           in.Title,
			Date:            in.Date,
			StartTime:       in.StartTime,
			DurationMinutes: int(in.Duration),
			Description:     in.Description,
			Location:        in.Location,
		})
		if err != nil {
			return calendarFailure("creating event", err)
		}
		return OK(map[string]any{"event": toEventView(*created, uc.Location)})
	}
}

// conflictView mirrors schedule.ConflictResult for the model.
type conflictView struct {
	HasConflict      bool            `json:"hasConflict"`
	Conflicts        []conflictEntry `json:"conflicts"`
	AlternativeTimes []string        `json:"alternativeTimes"`
	Degraded         bool            `json:"degraded,omitempty"`
}

type conflictEntry struct {
	Title          string `json:"title"`
	Start          string `json:"start"`
	End            string `json:"end"`
	OverlapMinutes int    `json:"overlapMinutes"`
}

func detectConflictsHandler(detector ConflictDetector) Handler {
	type detectArgs struct {
		Date      string  `json:"date"`
		StartTime string  `json:"startTime"`
		Duration  float64 `json:"duration"`
		Title     string  `json:"title"`
	}
	return func(ctx context.Context, uc UserContext, args map[string]any) Result {
		var in detectArgs
		if err := decodeArgs(args, &in); err != nil {
			return Fail("pass date and startTime; duration is optional minutes", "invalid arguments: %v", err)
		}
		result, err := detector.DetectConflicts(ctx, uc.UserID, schedule.ProposedEvent{
			Title:           in.Title,
			Date:            in.Date,
			StartTime:       in.StartTime,
			DurationMinutes: int(in.Duration),
		}, uc.Location)
		if err != nil {
			return calendarFailure("checking conflicts", err)
		}

		view := conflictView{
			HasConflict:      result.HasConflict,
			Conflicts:        make([]conflictEntry, 0, len(result.Conflicts)),
			AlternativeTimes: result.Alternative.Alternatives,
			Degraded:         result.Alternative.Degraded,
		}
		if view.AlternativeTimes == nil {
			view.AlternativeTimes = []string{}
		}
		for _, c := range result.Conflicts {
			view.Conflicts = append(view.Conflicts, conflictEntry{
				Title:          c.Block.Title,
				Start:          c.Block.Start.In(uc.Location).Format(time.RFC3339),
				End:            c.Block.End.In(uc.Location).Format(time.RFC3339),
				OverlapMinutes: c.OverlapMinutes,
			})
		}
		return OK(view)
	}
}

// calendarFailure converts a calendar-layer error into a structured
// failure with a model-facing hint keyed to the error class.
func calendarFailure(action string, err error) Result {
	switch {
	case errors.Is(err, calendar.ErrNotConnected):
		return Fail("ask the user to connect their Google Calendar first", "%s: calendar not connected", action)
	case errors.Is(err, calendar.ErrAccessDenied):
		return Fail("ask the user to re-link their Google Calendar", "%s: calendar access was revoked", action)
	case errors.Is(err, calendar.ErrProviderTransient):
		return Fail("tell the user the calendar service is busy and to try again shortly", "%s: calendar provider unavailable", action)
	case calendar.IsValidation(err):
		return Fail("fix the named field and call the tool again", "%s: %v", action, err)
	default:
		return Fail("tell the user the request could not be completed", "%s: %v", action, err)
	}
}
