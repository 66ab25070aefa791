package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatplan/chatplan/internal/calendar"
	"github.com/chatplan/chatplan/internal/interval"
	"github.com/chatplan/chatplan/internal/logging"
)

// EventLister fetches a user's events for a time range.
// *calendar.Service implements it.
type EventLister interface {
	ListEvents(ctx context.Context, userID string, start, end time.Time) ([]calendar.Event, error)
}

// FinderConfig bounds the free-slot search.
type FinderConfig struct {
	// DayStartHour and DayEndHour delimit the searchable window of each
	// day in the user's timezone.
	DayStartHour int
	DayEndHour   int

	// Step is the granularity of candidate start times.
	Step time.Duration

	// MaxSameDay caps suggestions taken from the proposed day itself
	// plus the following day.
	MaxSameDay int

	// MaxTotal caps the suggestions overall.
	MaxTotal int

	// HorizonDays is how far past the proposed day escalation may look.
	HorizonDays int
}

// DefaultFinderConfig returns the standard search bounds: 08:00-20:00,
// 30-minute steps, up to 3 near-term suggestions and 5 overall, looking
// at most a week ahead.
func DefaultFinderConfig() FinderConfig {
	return FinderConfig{
		DayStartHour: 8,
		DayEndHour:   20,
		Step:         30 * time.Minute,
		MaxSameDay:   3,
		MaxTotal:     5,
		HorizonDays:  7,
	}
}

// AlternativeSet holds formatted alternative time suggestions.
// Degraded is true when a fetch failed partway through escalation and
// the set is whatever had been collected up to that point.
type AlternativeSet struct {
	Alternatives []string
	Degraded     bool
}

// Finder searches a user's calendar for open slots around a proposed
// time, escalating day by day until enough suggestions are collected.
type Finder struct {
	events EventLister
	cfg    FinderConfig
	logger *slog.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithFinderConfig overrides the default search bounds.
func WithFinderConfig(cfg FinderConfig) FinderOption {
	return func(f *Finder) { f.cfg = cfg }
}

// WithFinderLogger sets the finder logger.
func WithFinderLogger(logger *slog.Logger) FinderOption {
	return func(f *Finder) { f.logger = logger }
}

// NewFinder creates a Finder reading events from lister.
func NewFinder(lister EventLister, opts ...FinderOption) *Finder {
	f := &Finder{
		events: lister,
		cfg:    DefaultFinderConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindAlternatives suggests open slots of the given duration around
// day, a time on the proposed day in the user's timezone. Escalation
// order: up to MaxSameDay slots on the proposed day, then the next day
// until MaxSameDay near-term suggestions exist, then one slot per
// further day until MaxTotal suggestions or the horizon is reached.
func (f *Finder) FindAlternatives(ctx context.Context, userID string, day time.Time, durationMinutes int, loc *time.Location) AlternativeSet {
	duration := time.Duration(durationMinutes) * time.Minute
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	var out []string
	sameDay, err := f.dayFreeSlots(ctx, userID, midnight, duration, f.cfg.MaxSameDay)
	if err != nil {
		return f.degraded(ctx, userID, out, err)
	}
	for _, slot := range sameDay {
		out = append(out, slot.Format("3:04 PM"))
	}

	if len(out) < f.cfg.MaxSameDay {
		nextDay, err := f.dayFreeSlots(ctx, userID, addDays(midnight, 1, loc), duration, f.cfg.MaxSameDay-len(out))
		if err != nil {
			return f.degraded(ctx, userID, out, err)
		}
		for _, slot := range nextDay {
			out = append(out, "tomorrow at "+slot.Format("3:04 PM"))
		}
	}

	// Later days are only scanned when the proposed day and the next
	// day together came up short.
	if len(out) >= f.cfg.MaxSameDay {
		return AlternativeSet{Alternatives: out}
	}
	for offset := 2; offset <= f.cfg.HorizonDays && len(out) < f.cfg.MaxTotal; offset++ {
		slots, err := f.dayFreeSlots(ctx, userID, addDays(midnight, offset, loc), duration, 1)
		if err != nil {
			return f.degraded(ctx, userID, out, err)
		}
		for _, slot := range slots {
			out = append(out, slot.Format("Monday, Jan 2 at 3:04 PM"))
		}
	}

	return AlternativeSet{Alternatives: out}
}

// dayFreeSlots scans one day for up to max open slots of the given
// duration, stepping candidate starts by cfg.Step inside the day
// window.
func (f *Finder) dayFreeSlots(ctx context.Context, userID string, midnight time.Time, duration time.Duration, max int) ([]time.Time, error) {
	if max <= 0 {
		return nil, nil
	}
	dayEnd := addDays(midnight, 1, midnight.Location())
	events, err := f.events.ListEvents(ctx, userID, midnight, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("fetching events for %s: %w", midnight.Format("2006-01-02"), err)
	}
	blocks := calendar.BusyBlocks(events)

	loc := midnight.Location()
	windowStart := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), f.cfg.DayStartHour, 0, 0, 0, loc)
	windowEnd := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), f.cfg.DayEndHour, 0, 0, 0, loc)

	var slots []time.Time
	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(f.cfg.Step) {
		if f.slotFree(start, start.Add(duration), blocks) {
			slots = append(slots, start)
			if len(slots) == max {
				break
			}
		}
	}
	return slots, nil
}

func (f *Finder) slotFree(start, end time.Time, blocks []calendar.BusyBlock) bool {
	for _, block := range blocks {
		if interval.Conflicts(start, end, block.Start, block.End) {
			return false
		}
	}
	return true
}

func (f *Finder) degraded(ctx context.Context, userID string, collected []string, err error) AlternativeSet {
	f.logger.WarnContext(ctx, "alternative search degraded",
		logging.Operation("schedule.alternatives"),
		logging.UserHash(userID),
		logging.Err(err))
	return AlternativeSet{Alternatives: collected, Degraded: true}
}

// addDays advances by whole calendar days in loc, staying correct
// across DST transitions.
func addDays(t time.Time, days int, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, t.Hour(), t.Minute(), 0, 0, loc)
}
