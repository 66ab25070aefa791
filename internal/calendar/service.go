package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chatplan/chatplan/internal/instrumentation"
	"github.com/chatplan/chatplan/internal/logging"
)

// ProviderClient is the per-user calendar API surface the Service
// depends on. *Client implements it.
type ProviderClient interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, ev Event, timezone string) (*Event, error)
	UpdateEvent(ctx context.Context, ev Event, timezone string) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// ClientFactory builds a ProviderClient for a user.
type ClientFactory func(ctx context.Context, userID string) (ProviderClient, error)

const (
	// defaultProviderRate caps provider calls per user per second.
	defaultProviderRate  = rate.Limit(5)
	defaultProviderBurst = 10

	// transientRetryDelay is the pause before the single retry of a
	// transient provider failure.
	transientRetryDelay = 200 * time.Millisecond
)

// Service is the calendar access layer: it caches event reads per user,
// rate-limits provider calls, retries transient failures once, and
// invalidates the user's cache and provider handle on every mutation.
type Service struct {
	factory ClientFactory
	cache   *EventCache
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	limit rate.Limit
	burst int

	mu       sync.Mutex
	clients  map[string]ProviderClient
	limiters map[string]*rate.Limiter
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *instrumentation.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithRateLimit overrides the per-user provider rate limit.
func WithRateLimit(limit rate.Limit, burst int) ServiceOption {
	return func(s *Service) {
		s.limit = limit
		s.burst = burst
	}
}

// NewService creates a Service using factory for provider access and
// cache for event reads.
func NewService(factory ClientFactory, cache *EventCache, opts ...ServiceOption) *Service {
	s := &Service{
		factory:  factory,
		cache:    cache,
		logger:   slog.Default(),
		limit:    defaultProviderRate,
		burst:    defaultProviderBurst,
		clients:  make(map[string]ProviderClient),
		limiters: make(map[string]*rate.Limiter),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListEvents returns the user's events overlapping [start, end), served
// from the cache when a fresh identical range exists.
func (s *Service) ListEvents(ctx context.Context, userID string, start, end time.Time) ([]Event, error) {
	if !start.Before(end) {
		return nil, NewValidationError("range", "start must be before end")
	}
	if events, ok := s.cache.Get(userID, start, end); ok {
		s.metrics.RecordCacheLookup(ctx, instrumentation.CacheHit)
		return events, nil
	}
	s.metrics.RecordCacheLookup(ctx, instrumentation.CacheMiss)

	gen := s.cache.Generation(userID)
	var events []Event
	err := s.provider(ctx, userID, instrumentation.OperationList, func(client ProviderClient) error {
		var listErr error
		events, listErr = client.ListEvents(ctx, start, end)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	s.cache.Put(userID, start, end, events, gen)
	return events, nil
}

// CreateEvent validates input, resolves it in loc, creates the event,
// and invalidates the user's cached ranges.
func (s *Service) CreateEvent(ctx context.Context, userID string, loc *time.Location, input EventInput) (*Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	start, end, err := input.Resolve(loc)
	if err != nil {
		return nil, err
	}
	ev := Event{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Start:       start,
		End:         end,
	}
	var created *Event
	err = s.provider(ctx, userID, instrumentation.OperationCreate, func(client ProviderClient) error {
		var createErr error
		created, createErr = client.CreateEvent(ctx, ev, loc.String())
		return createErr
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(userID)
	s.dropClient(userID)
	s.logger.InfoContext(ctx, "event created",
		logging.Operation("calendar.create"),
		logging.UserHash(userID),
		slog.String("event_id", created.ID))
	return created, nil
}

// UpdateEvent applies the non-empty fields of input to the stored event
// and invalidates the user's cached ranges.
func (s *Service) UpdateEvent(ctx context.Context, userID, eventID string, loc *time.Location, input EventInput) (*Event, error) {
	if eventID == "" {
		return nil, NewValidationError("eventId", "must not be empty")
	}
	ev := Event{
		ID:          eventID,
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
	}
	if input.Date != "" && input.StartTime != "" {
		start, end, err := input.Resolve(loc)
		if err != nil {
			return nil, err
		}
		ev.Start = start
		ev.End = end
	}
	var updated *Event
	err := s.provider(ctx, userID, instrumentation.OperationUpdate, func(client ProviderClient) error {
		var updateErr error
		updated, updateErr = client.UpdateEvent(ctx, ev, loc.String())
		return updateErr
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(userID)
	s.dropClient(userID)
	return updated, nil
}

// DeleteEvent removes the event and invalidates the user's cached ranges.
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if eventID == "" {
		return NewValidationError("eventId", "must not be empty")
	}
	err := s.provider(ctx, userID, instrumentation.OperationDelete, func(client ProviderClient) error {
		return client.DeleteEvent(ctx, eventID)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.dropClient(userID)
	return nil
}

// provider runs op against the user's provider client with rate
// limiting, a single retry on transient failures, and error
// classification. Access failures also drop the cached client handle so
// a later call after re-linking starts clean.
func (s *Service) provider(ctx context.Context, userID, operation string, op func(ProviderClient) error) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, operation)
	defer span.End()

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	if err := s.limiterFor(userID).Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	logger := logging.WithOperation(s.logger, "calendar."+operation)

	started := time.Now()
	err = classifyError(op(client))
	if errors.Is(err, ErrProviderTransient) {
		logger.WarnContext(ctx, "transient provider failure, retrying",
			logging.UserHash(userID),
			logging.Err(err))
		if sleepErr := s.sleep(ctx, transientRetryDelay); sleepErr != nil {
			return sleepErr
		}
		err = classifyError(op(client))
	}

	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
		instrumentation.SetSpanError(span, err)
		if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotConnected) {
			s.dropClient(userID)
		}
		logger.ErrorContext(ctx, "calendar operation failed",
			logging.UserHash(userID),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(started))
	return err
}

func (s *Service) clientFor(ctx context.Context, userID string) (ProviderClient, error) {
	s.mu.Lock()
	client, ok := s.clients[userID]
	s.mu.Unlock()
	if ok {
		return client, nil
	}
	client, err := s.factory(ctx, userID)
	if err != nil {
		return nil, classifyError(err)
	}
	s.mu.Lock()
	s.clients[userID] = client
	s.mu.Unlock()
	return client, nil
}

func (s *Service) dropClient(userID string) {
	s.mu.Lock()
	delete(s.clients, userID)
	s.mu.Unlock()
}

func (s *Service) limiterFor(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[userID] = limiter
	}
	return limiter
}
