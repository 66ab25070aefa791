package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatplan/chatplan/internal/calendar"
)

// fakeLister serves scripted events keyed by the local date of the
// requested range.
type fakeLister struct {
	events map[string][]calendar.Event
	errs   map[string]error
	calls  []string
}

func (f *fakeLister) ListEvents(ctx context.Context, userID string, start, end time.Time) ([]calendar.Event, error) {
	day := start.Format("2006-01-02")
	f.calls = append(f.calls, day)
	if err := f.errs[day]; err != nil {
		return nil, err
	}
	return f.events[day], nil
}

func busyAt(t *testing.T, loc *time.Location, date, from, to, title string) calendar.Event {
	t.Helper()
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+from, loc)
	require.NoError(t, err)
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+to, loc)
	require.NoError(t, err)
	return calendar.Event{ID: title, Title: title, Start: start, End: end}
}

func fullDay(t *testing.T, loc *time.Location, date string) calendar.Event {
	return busyAt(t, loc, date, "08:00", "20:00", "busy "+date)
}

func newTestDetector(lister *fakeLister) *Detector {
	finder := NewFinder(lister)
	return NewDetector(lister, finder, nil)
}

func TestDetectConflicts_PartialOverlapWithAlternatives(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {busyAt(t, loc, "2026-03-10", "14:00", "15:00", "Soccer practice")},
	}}
	detector := newTestDetector(lister)

	result, err := detector.DetectConflicts(context.Background(), "alice", ProposedEvent{
		Title:     "Dentist",
		Date:      "2026-03-10",
		StartTime: "14:45",
	}, loc)
	require.NoError(t, err)

	require.True(t, result.HasConflict)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "Soccer practice", result.Conflicts[0].Block.Title)
	assert.Equal(t, 15, result.Conflicts[0].OverlapMinutes)

	// Morning is wide open, so the first three same-day slots win.
	assert.Equal(t, []string{"8:00 AM", "8:30 AM", "9:00 AM"}, result.Alternative.Alternatives)
	assert.False(t, result.Alternative.Degraded)
}

func TestDetectConflicts_BackToBackIsClear(t *testing.T) {
	loc := time.UTC
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {busyAt(t, loc, "2026-03-10", "14:00", "15:00", "Soccer practice")},
	}}
	detector := newTestDetector(lister)

	result, err := detector.DetectConflicts(context.Background(), "alice", ProposedEvent{
		Date:      "2026-03-10",
		StartTime: "15:00",
	}, loc)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, result.Alternative.Alternatives)
}

func TestDetectConflicts_MissingFields(t *testing.T) {
	detector := newTestDetector(&fakeLister{})

	_, err := detector.DetectConflicts(context.Background(), "alice", ProposedEvent{
		StartTime: "15:00",
	}, time.UTC)
	var ve *calendar.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date", ve.Field)

	_, err = detector.DetectConflicts(context.Background(), "alice", ProposedEvent{
		Date: "2026-03-10",
	}, time.UTC)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "startTime", ve.Field)
}

func TestDetectConflicts_TimezoneResolution(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// Event stored in Eastern time, proposal resolved in Central.
	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {busyAt(t, eastern, "2026-03-10", "15:00", "16:00", "Review")},
	}}
	detector := newTestDetector(lister)

	// 14:00 Central is 15:00 Eastern, a full-hour clash.
	result, err := detector.DetectConflicts(context.Background(), "alice", ProposedEvent{
		Date:      "2026-03-10",
		StartTime: "14:00",
	}, chicago)
	require.NoError(t, err)
	require.True(t, result.HasConflict)
	assert.Equal(t, 60, result.Conflicts[0].OverlapMinutes)
}

func TestFindAlternatives_EscalatesToNextDay(t *testing.T) {
	loc := time.UTC
	// Tuesday is solid, Wednesday is open.
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {fullDay(t, loc, "2026-03-10")},
	}}
	finder := NewFinder(lister)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	set := finder.FindAlternatives(context.Background(), "alice", day, 60, loc)

	assert.Equal(t, []string{
		"tomorrow at 8:00 AM",
		"tomorrow at 8:30 AM",
		"tomorrow at 9:00 AM",
	}, set.Alternatives)
	assert.False(t, set.Degraded)
}

func TestFindAlternatives_WeekEscalationOnePerDay(t *testing.T) {
	loc := time.UTC
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {fullDay(t, loc, "2026-03-10")},
		"2026-03-11": {fullDay(t, loc, "2026-03-11")},
	}}
	finder := NewFinder(lister)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	set := finder.FindAlternatives(context.Background(), "alice", day, 60, loc)

	// One suggestion per later day, capped at five overall.
	assert.Equal(t, []string{
		"Thursday, Mar 12 at 8:00 AM",
		"Friday, Mar 13 at 8:00 AM",
		"Saturday, Mar 14 at 8:00 AM",
		"Sunday, Mar 15 at 8:00 AM",
		"Monday, Mar 16 at 8:00 AM",
	}, set.Alternatives)
}

func TestFindAlternatives_PartialFillFromSameDay(t *testing.T) {
	loc := time.UTC
	// Only one opening on Tuesday: 19:00-20:00.
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {busyAt(t, loc, "2026-03-10", "08:00", "19:00", "All day offsite")},
	}}
	finder := NewFinder(lister)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	set := finder.FindAlternatives(context.Background(), "alice", day, 60, loc)

	assert.Equal(t, []string{
		"7:00 PM",
		"tomorrow at 8:00 AM",
		"tomorrow at 8:30 AM",
	}, set.Alternatives)
}

func TestFindAlternatives_DegradesOnFetchFailure(t *testing.T) {
	loc := time.UTC
	lister := &fakeLister{
		events: map[string][]calendar.Event{
			"2026-03-10": {busyAt(t, loc, "2026-03-10", "08:00", "19:00", "All day offsite")},
		},
		errs: map[string]error{
			"2026-03-11": errors.New("provider unavailable"),
		},
	}
	finder := NewFinder(lister)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	set := finder.FindAlternatives(context.Background(), "alice", day, 60, loc)

	// Whatever was collected before the failure survives.
	assert.Equal(t, []string{"7:00 PM"}, set.Alternatives)
	assert.True(t, set.Degraded)
}

func TestFindAlternatives_SlotMustFitInsideWindow(t *testing.T) {
	loc := time.UTC
	lister := &fakeLister{events: map[string][]calendar.Event{
		"2026-03-10": {busyAt(t, loc, "2026-03-10", "08:00", "19:30", "All day offsite")},
	}}
	finder := NewFinder(lister)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	set := finder.FindAlternatives(context.Background(), "alice", day, 60, loc)

	// 19:30 + 60min would spill past 20:00, so the day offers nothing.
	require.Len(t, set.Alternatives, 3)
	for _, alt := range set.Alternatives {
		assert.Contains(t, alt, "tomorrow")
	}
}
