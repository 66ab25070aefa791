package calendar

import (
	"fmt"
	"sort"
	"time"
)

// DefaultEventDurationMinutes is assumed when a caller omits a duration.
const DefaultEventDurationMinutes = 60

// Event is a normalized calendar entry. Start and End carry the event's
// timezone as returned by the provider.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// BusyBlock is the scheduling view of an event: just the occupied span
// and enough identity to describe the clash to a user.
type BusyBlock struct {
	SourceEventID string
	Title         string
	Start         time.Time
	End           time.Time
}

// BusyBlocks converts events to busy blocks sorted by start time.
// Events without concrete start and end instants (all-day entries) do
// not block specific times and are skipped.
func BusyBlocks(events []Event) []BusyBlock {
	blocks := make([]BusyBlock, 0, len(events))
	for _, ev := range events {
		if ev.Start.IsZero() || ev.End.IsZero() {
			continue
		}
		blocks = append(blocks, BusyBlock{
			SourceEventID: ev.ID,
			Title:         ev.Title,
			Start:         ev.Start,
			End:           ev.End,
		})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })
	return blocks
}

// EventInput carries caller-supplied fields for creating or updating an
// event. Date and StartTime are interpreted in the user's timezone.
type EventInput struct {
	Title           string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM, 24-hour clock
	DurationMinutes int
	Description     string
	Location        string
}

// Validate checks the required fields for event creation.
func (in EventInput) Validate() error {
	if in.Title == "" {
		return NewValidationError("title", "must not be empty")
	}
	if in.Date == "" {
		return NewValidationError("date", "must not be empty")
	}
	if in.StartTime == "" {
		return NewValidationError("startTime", "must not be empty")
	}
	if in.DurationMinutes < 0 {
		return NewValidationError("duration", "must not be negative")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", in.Date))
	}
	if _, err := time.Parse("15:04", in.StartTime); err != nil {
		return NewValidationError("startTime", fmt.Sprintf("%q is not a HH:MM time", in.StartTime))
	}
	return nil
}

// Resolve converts the input's date and clock time into concrete start
// and end instants in loc, applying the default duration when none was
// given. Validate must have passed first.
func (in EventInput) Resolve(loc *time.Location) (start, end time.Time, err error) {
	start, err = ResolveLocalTime(in.Date, in.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	minutes := in.DurationMinutes
	if minutes == 0 {
		minutes = DefaultEventDurationMinutes
	}
	return start, start.Add(time.Duration(minutes) * time.Minute), nil
}

// ResolveLocalTime combines a YYYY-MM-DD date and a HH:MM clock time
// into an instant in loc.
func ResolveLocalTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, NewValidationError("startTime", fmt.Sprintf("cannot resolve %s %s: %v", date, clock, err))
	}
	return t, nil
}
