package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/chatplan/chatplan/internal/google"
)

// fakeProvider implements ProviderClient and scripts failures per call.
type fakeProvider struct {
	listCalls   int
	createCalls int
	deleteCalls int
	events      []Event
	listErrs    []error
	createErr   error
}

func (f *fakeProvider) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.events, nil
}

func (f *fakeProvider) CreateEvent(ctx context.Context, ev Event, timezone string) (*Event, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := ev
	created.ID = "created-1"
	return &created, nil
}

func (f *fakeProvider) UpdateEvent(ctx context.Context, ev Event, timezone string) (*Event, error) {
	return &ev, nil
}

func (f *fakeProvider) DeleteEvent(ctx context.Context, eventID string) error {
	f.deleteCalls++
	return nil
}

func newTestService(provider ProviderClient) *Service {
	svc := NewService(
		func(ctx context.Context, userID string) (ProviderClient, error) { return provider, nil },
		NewEventCache(5*time.Minute),
	)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func TestService_ListEvents_CacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{events: []Event{{ID: "ev1", Title: "Standup"}}}
	svc := newTestService(provider)
	start, end := testRange()

	first, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	second, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.listCalls, "second read must come from the cache")
}

func TestService_CreateEvent_InvalidatesCache(t *testing.T) {
	provider := &fakeProvider{events: []Event{{ID: "ev1"}}}
	svc := newTestService(provider)
	start, end := testRange()

	_, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)

	created, err := svc.CreateEvent(context.Background(), "alice", time.UTC, EventInput{
		Title:     "Dentist",
		Date:      "2026-03-10",
		StartTime: "14:45",
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", created.ID)
	// Default duration applies when none was given.
	assert.Equal(t, time.Hour, created.End.Sub(created.Start))

	_, err = svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.listCalls, "read after create must refetch")
}

func TestService_MutationsDropClientHandle(t *testing.T) {
	provider := &fakeProvider{events: []Event{{ID: "ev1"}}}
	factoryCalls := 0
	svc := NewService(
		func(ctx context.Context, userID string) (ProviderClient, error) {
			factoryCalls++
			return provider, nil
		},
		NewEventCache(5*time.Minute),
	)
	start, end := testRange()

	_, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	require.Equal(t, 1, factoryCalls)

	_, err = svc.CreateEvent(context.Background(), "alice", time.UTC, EventInput{
		Title:     "Dentist",
		Date:      "2026-03-10",
		StartTime: "14:45",
	})
	require.NoError(t, err)

	_, err = svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, factoryCalls, "read after create must rebuild the client handle")

	require.NoError(t, svc.DeleteEvent(context.Background(), "alice", "ev1"))
	_, err = svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, factoryCalls, "read after delete must rebuild the client handle")
}

func TestService_CreateEvent_Validation(t *testing.T) {
	svc := newTestService(&fakeProvider{})

	_, err := svc.CreateEvent(context.Background(), "alice", time.UTC, EventInput{
		Date:      "2026-03-10",
		StartTime: "14:45",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)

	_, err = svc.CreateEvent(context.Background(), "alice", time.UTC, EventInput{
		Title:     "Dentist",
		Date:      "March 10",
		StartTime: "14:45",
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date", ve.Field)
}

func TestService_TransientFailureRetriedOnce(t *testing.T) {
	provider := &fakeProvider{
		events:   []Event{{ID: "ev1"}},
		listErrs: []error{&googleapi.Error{Code: 503, Message: "backend error"}},
	}
	svc := newTestService(provider)
	start, end := testRange()

	events, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 2, provider.listCalls)
}

func TestService_TransientFailureNotRetriedTwice(t *testing.T) {
	provider := &fakeProvider{
		listErrs: []error{
			&googleapi.Error{Code: 429, Message: "rate limited"},
			&googleapi.Error{Code: 429, Message: "rate limited"},
		},
	}
	svc := newTestService(provider)
	start, end := testRange()

	_, err := svc.ListEvents(context.Background(), "alice", start, end)
	require.ErrorIs(t, err, ErrProviderTransient)
	assert.Equal(t, 2, provider.listCalls)
}

func TestService_AccessDeniedDropsClientHandle(t *testing.T) {
	provider := &fakeProvider{
		events:   []Event{{ID: "ev1"}},
		listErrs: []error{&googleapi.Error{Code: 401, Message: "unauthorized"}},
	}
	factoryCalls := 0
	svc := NewService(
		func(ctx context.Context, userID string) (ProviderClient, error) {
			factoryCalls++
			return provider, nil
		},
		NewEventCache(5*time.Minute),
	)

	_, err := svc.ListEvents(context.Background(), "alice", testRangeStart(), testRangeStart().Add(time.Hour))
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.ListEvents(context.Background(), "alice", testRangeStart(), testRangeStart().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, factoryCalls, "client handle must be rebuilt after access failure")
}

func testRangeStart() time.Time {
	start, _ := testRange()
	return start
}

func TestService_NotConnectedUser(t *testing.T) {
	svc := NewService(
		func(ctx context.Context, userID string) (ProviderClient, error) {
			return nil, google.ErrTokenNotFound
		},
		NewEventCache(5*time.Minute),
	)

	_, err := svc.ListEvents(context.Background(), "ghost", testRangeStart(), testRangeStart().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestService_DeleteEvent_RequiresID(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)

	err := svc.DeleteEvent(context.Background(), "alice", "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, provider.deleteCalls)

	require.NoError(t, svc.DeleteEvent(context.Background(), "alice", "ev1"))
	assert.Equal(t, 1, provider.deleteCalls)
}

func TestBusyBlocks_SortsAndSkipsAllDay(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "b", Title: "Lunch", Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)},
		{ID: "allday", Title: "Holiday"},
		{ID: "a", Title: "Standup", Start: base, End: base.Add(30 * time.Minute)},
	}

	blocks := BusyBlocks(events)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].SourceEventID)
	assert.Equal(t, "b", blocks[1].SourceEventID)
}
