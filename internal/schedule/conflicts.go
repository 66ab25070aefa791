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

// ProposedEvent is a tentative event to check against the calendar.
// Date and StartTime are interpreted in the user's timezone.
type ProposedEvent struct {
	Title           string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM, 24-hour clock
	DurationMinutes int
}

// Conflict pairs an existing busy block with how much of the proposal
// it overlaps.
type Conflict struct {
	Block          calendar.BusyBlock
	OverlapMinutes int
}

// ConflictResult is the outcome of a conflict check. Alternatives are
// only populated when a conflict was found.
type ConflictResult struct {
	HasConflict bool
	Conflicts   []Conflict
	Alternative AlternativeSet
}

// Detector checks proposed events against a user's calendar and, on
// conflict, asks the Finder for open alternatives.
type Detector struct {
	events EventLister
	finder *Finder
	logger *slog.Logger
}

// NewDetector creates a Detector reading events from lister and
// sourcing alternatives from finder.
func NewDetector(lister EventLister, finder *Finder, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{events: lister, finder: finder, logger: logger}
}

// DetectConflicts resolves the proposal in loc, compares it against
// every busy block on that day, and suggests alternatives when it
// clashes. Alternative search is best-effort; a failure there degrades
// the result instead of failing the check.
func (d *Detector) DetectConflicts(ctx context.Context, userID string, proposed ProposedEvent, loc *time.Location) (*ConflictResult, error) {
	if proposed.Date == "" {
		return nil, calendar.NewValidationError("date", "must not be empty")
	}
	if proposed.StartTime == "" {
		return nil, calendar.NewValidationError("startTime", "must not be empty")
	}
	duration := proposed.DurationMinutes
	if duration == 0 {
		duration = calendar.DefaultEventDurationMinutes
	}
	if duration < 0 {
		return nil, calendar.NewValidationError("duration", "must not be negative")
	}
	start, err := calendar.ResolveLocalTime(proposed.Date, proposed.StartTime, loc)
	if err != nil {
		return nil, err
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	events, err := d.events.ListEvents(ctx, userID, midnight, addDays(midnight, 1, loc))
	if err != nil {
		return nil, fmt.Errorf("fetching events for conflict check: %w", err)
	}

	result := &ConflictResult{}
	for _, block := range calendar.BusyBlocks(events) {
		overlap, err := interval.Compute(start, end, block.Start, block.End)
		if err != nil {
			// A malformed stored event cannot conflict with anything.
			continue
		}
		if overlap.HasConflict {
			result.HasConflict = true
			result.Conflicts = append(result.Conflicts, Conflict{
				Block:          block,
				OverlapMinutes: overlap.OverlapMinutes,
			})
		}
	}

	if result.HasConflict {
		result.Alternative = d.finder.FindAlternatives(ctx, userID, start, duration, loc)
		d.logger.InfoContext(ctx, "conflict detected",
			logging.Operation("schedule.detect"),
			logging.UserHash(userID),
			slog.Int("conflicts", len(result.Conflicts)),
			slog.Int("alternatives", len(result.Alternative.Alternatives)))
	}
	return result, nil
}
