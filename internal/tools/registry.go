package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatplan/chatplan/internal/instrumentation"
	"github.com/chatplan/chatplan/internal/llm"
	"github.com/chatplan/chatplan/internal/logging"
)

// Name identifies a registered tool. Keeping it a distinct type forces
// registration and dispatch through the known constants.
type Name string

// The scheduling tool set.
const (
	GetCalendarEvents   Name = "getCalendarEvents"
	CreateCalendarEvent Name = "createCalendarEvent"
	DetectConflicts     Name = "detectConflicts"
)

// UserContext identifies the user a tool call acts for and the
// timezone their dates and clock times resolve in.
type UserContext struct {
	UserID   string
	Location *time.Location
}

// Result is the structured outcome of a tool call. Tool handlers never
// return Go errors; failures are carried here so the orchestration
// loop can feed them back to the model as data.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// OK wraps data in a success result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failure result. Hint tells the model what to do about
// the failure.
func Fail(hint, format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...), Hint: hint}
}

// Handler executes one tool call. Args is the decoded JSON object from
// the model; handlers validate it before acting.
type Handler func(ctx context.Context, uc UserContext, args map[string]any) Result

// Definition pairs a tool schema with its handler.
type Definition struct {
	Tool    mcp.Tool
	Handler Handler
}

// Registry holds the tool set and dispatches calls by name.
type Registry struct {
	defs    map[Name]Definition
	order   []Name
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithRegistryMetrics attaches instrumentation to tool dispatch.
func WithRegistryMetrics(m *instrumentation.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		defs:   make(map[Name]Definition),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool definition. Registering the same name twice is
// a programming error and fails loudly at startup.
func (r *Registry) Register(name Name, def Definition) error {
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []Name {
	return append([]Name(nil), r.order...)
}

// Schemas returns the MCP tool schemas in registration order.
func (r *Registry) Schemas() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].Tool)
	}
	return out
}

// LLMSchemas returns the tool set in the shape the model client needs.
func (r *Registry) LLMSchemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		out = append(out, llm.ToolSchema{
			Name:        def.Tool.Name,
			Description: def.Tool.Description,
			Parameters:  def.Tool.InputSchema,
		})
	}
	return out
}

// Execute runs the named tool. Unknown names, handler panics, and
// handler failures all come back as failure Results so the caller can
// hand them to the model instead of crashing the loop.
func (r *Registry) Execute(ctx context.Context, name string, uc UserContext, args map[string]any) (result Result) {
	def, ok := r.defs[Name(name)]
	if !ok {
		return Fail("use one of the listed tools", "unknown tool %q", name)
	}

	ctx, span := instrumentation.StartToolSpan(ctx, name)
	defer span.End()

	logger := logging.WithTool(r.logger, name)

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "tool handler panicked",
				logging.UserHash(uc.UserID),
				slog.Any("panic", rec))
			result = Fail("report this to the operator", "tool %s failed internally", name)
		}
		status := logging.StatusSuccess
		if !result.Success {
			status = logging.StatusError
			instrumentation.SetSpanError(span, fmt.Errorf("%s", result.Error))
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		r.metrics.RecordToolInvocationForUser(ctx, name, status,
			instrumentation.ExtractUserDomain(uc.UserID), time.Since(started))
		logger.DebugContext(ctx, "tool executed",
			logging.UserHash(uc.UserID),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, time.Since(started)))
	}()

	return def.Handler(ctx, uc, args)
}

// decodeArgs maps a loosely-typed argument object onto a typed struct
// via a JSON round trip, so handlers work with validated fields instead
// of raw maps.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}
