package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chatplan/chatplan/internal/calendar"
	"github.com/chatplan/chatplan/internal/google"
	"github.com/chatplan/chatplan/internal/instrumentation"
	"github.com/chatplan/chatplan/internal/llm"
	"github.com/chatplan/chatplan/internal/orchestrator"
	"github.com/chatplan/chatplan/internal/schedule"
	"github.com/chatplan/chatplan/internal/tools"
)

// AppConfig configures the application wiring.
type AppConfig struct {
	// TokenDir is where per-user OAuth tokens live. Empty uses the
	// default cache directory.
	TokenDir string

	// Model configures the language-model client. A zero value uses
	// the OpenAI defaults with the key from the environment.
	Model llm.OpenAIConfig

	// Orchestrator tunes the tool-calling loop.
	Orchestrator orchestrator.Config

	// Instrumentation is the otel provider; nil leaves metrics and
	// tracing unconfigured.
	Instrumentation *instrumentation.Provider

	// Logger is the application logger; nil uses slog.Default().
	Logger *slog.Logger
}

// AppContext holds the wired application: every component the serve
// and chat commands need, built once and shared.
type AppContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokens       google.TokenStore
	calendar     *calendar.Service
	finder       *schedule.Finder
	detector     *schedule.Detector
	registry     *tools.Registry
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewAppContext wires the full component graph from config.
func NewAppContext(ctx context.Context, cfg AppConfig) (*AppContext, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics *instrumentation.Metrics
	if cfg.Instrumentation != nil {
		metrics = cfg.Instrumentation.Metrics()
	}

	tokens := google.NewFileTokenStore(cfg.TokenDir)

	shutdownCtx, cancel := context.WithCancel(ctx)

	factory := func(ctx context.Context, userID string) (calendar.ProviderClient, error) {
		return calendar.NewClientWithMetrics(ctx, tokens, userID, metrics)
	}
	calendarSvc := calendar.NewService(factory, calendar.NewEventCache(calendar.DefaultCacheTTL),
		calendar.WithLogger(logger),
		calendar.WithMetrics(metrics),
	)

	finder := schedule.NewFinder(calendarSvc, schedule.WithFinderLogger(logger))
	detector := schedule.NewDetector(calendarSvc, finder, logger)

	registry := tools.NewRegistry(
		tools.WithRegistryLogger(logger),
		tools.WithRegistryMetrics(metrics),
	)
	if err := tools.RegisterCalendarTools(registry, calendarSvc, detector); err != nil {
		cancel()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	model := llm.NewOpenAIClient(cfg.Model)
	orch := orchestrator.New(model, registry,
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	)

	return &AppContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		tokens:       tokens,
		calendar:     calendarSvc,
		finder:       finder,
		detector:     detector,
		registry:     registry,
		orchestrator: orch,
		logger:       logger,
	}, nil
}

// Context returns the application lifetime context.
func (a *AppContext) Context() context.Context {
	return a.ctx
}

// TokenStore returns the per-user OAuth token store.
func (a *AppContext) TokenStore() google.TokenStore {
	return a.tokens
}

// Calendar returns the calendar access layer.
func (a *AppContext) Calendar() *calendar.Service {
	return a.calendar
}

// Detector returns the conflict detection service.
func (a *AppContext) Detector() *schedule.Detector {
	return a.detector
}

// Registry returns the tool registry.
func (a *AppContext) Registry() *tools.Registry {
	return a.registry
}

// Orchestrator returns the tool-calling loop driver.
func (a *AppContext) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Logger returns the application logger.
func (a *AppContext) Logger() *slog.Logger {
	return a.logger
}

// IsShutdown returns whether the application has been shut down.
func (a *AppContext) IsShutdown() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shutdown
}

// Shutdown cancels the application context. Safe to call twice.
func (a *AppContext) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shutdown {
		return nil
	}

	a.shutdown = true
	a.cancel()
	return nil
}
