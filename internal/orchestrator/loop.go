// Package orchestrator runs the bounded tool-calling loop that answers
// a scheduling request: ask the model for a decision, execute the
// tools it requests, feed the results back, and repeat until a final
// reply or the iteration cap.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatplan/chatplan/internal/instrumentation"
	"github.com/chatplan/chatplan/internal/llm"
	"github.com/chatplan/chatplan/internal/logging"
	"github.com/chatplan/chatplan/internal/tools"
)

// DefaultMaxIterations bounds how many model turns one run may take.
const DefaultMaxIterations = 5

// capFallbackReply is used when the cap is hit and the model never
// produced any usable text.
const capFallbackReply = "Sorry, I couldn't finish working on that request. Could you try rephrasing it?"

const defaultSystemPrompt = `You are a scheduling assistant with access to the user's calendar.
Today is %s and the user's timezone is %s.
Use the tools to check the calendar before answering questions about availability,
and check for conflicts with detectConflicts before creating events unless the user
explicitly asked to book regardless. Dates are YYYY-MM-DD and times are HH:MM in
the user's timezone. Reply to the user in plain, friendly language.`

// Config tunes a loop run.
type Config struct {
	// MaxIterations caps model turns per run; zero means
	// DefaultMaxIterations.
	MaxIterations int

	// SystemPrompt overrides the built-in guidance when non-empty. It
	// is used verbatim, so include any date or timezone context it
	// needs.
	SystemPrompt string
}

// Outcome is the result of a completed run.
type Outcome struct {
	// Reply is the natural-language answer for the user.
	Reply string

	// ToolsCalled lists every executed tool in call order.
	ToolsCalled []string

	// CapReached is true when the reply was forced by the iteration
	// cap rather than chosen by the model.
	CapReached bool
}

// Orchestrator drives the model/tool loop against a tool registry.
type Orchestrator struct {
	model    llm.Client
	registry *tools.Registry
	cfg      Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the default loop configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator using model for decisions and registry
// for tool execution.
func New(model llm.Client, registry *tools.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:    model,
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.MaxIterations <= 0 {
		o.cfg.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Run answers one user message. history is the prior conversation (may
// be nil); timezone is the user's IANA zone name. Tool failures are
// fed back to the model as data and never abort the run; only a model
// failure or a malformed timezone is a top-level error.
func (o *Orchestrator) Run(ctx context.Context, userID, message string, history []llm.Message, timezone string) (*Outcome, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
	}
	uc := tools.UserContext{UserID: userID, Location: loc}

	runID := uuid.NewString()
	logger := logging.WithUser(o.logger, userID).With(logging.Run(runID))
	started := o.now()

	ctx, span := instrumentation.StartOrchestrationSpan(ctx, runID)
	defer span.End()

	msgs := append(append([]llm.Message(nil), history...), llm.Message{
		Role:    llm.RoleUser,
		Content: message,
	})
	req := llm.Request{
		System: o.systemPrompt(loc),
		Tools:  o.registry.LLMSchemas(),
	}

	outcome := &Outcome{}
	lastContent := ""
	for round := 1; round <= o.cfg.MaxIterations; round++ {
		req.Messages = msgs
		turn, err := o.model.Complete(ctx, req)
		if err != nil {
			instrumentation.SetSpanError(span, err)
			o.recordRun(ctx, logging.StatusError, round, started)
			return nil, fmt.Errorf("model turn %d: %w", round, err)
		}
		if turn.Content != "" {
			lastContent = turn.Content
		}

		if !turn.RequestsTools() {
			outcome.Reply = turn.Content
			o.recordRun(ctx, logging.StatusSuccess, round, started)
			return outcome, nil
		}
		if round == o.cfg.MaxIterations {
			break
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   turn.Content,
			ToolCalls: turn.ToolCalls,
		})
		// Tools run sequentially in the order the model asked for
		// them, so a later call sees the effects of an earlier one.
		for _, call := range turn.ToolCalls {
			msgs = append(msgs, o.executeCall(ctx, logger, uc, call, outcome))
		}
	}

	// Cap reached while the model still wanted tools: force a terminal
	// reply from the best content seen so far.
	outcome.CapReached = true
	outcome.Reply = lastContent
	if outcome.Reply == "" {
		outcome.Reply = capFallbackReply
	}
	logger.WarnContext(ctx, "iteration cap reached",
		logging.Operation("orchestrate"),
		slog.Int("rounds", o.cfg.MaxIterations),
		slog.Int("tools_called", len(outcome.ToolsCalled)))
	o.metrics.RecordIterationCap(ctx)
	o.recordRun(ctx, logging.StatusSuccess, o.cfg.MaxIterations, started)
	return outcome, nil
}

// executeCall runs one requested tool and wraps its structured result
// as a tool message for the next model turn.
func (o *Orchestrator) executeCall(ctx context.Context, logger *slog.Logger, uc tools.UserContext, call llm.ToolCall, outcome *Outcome) llm.Message {
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	var result tools.Result
	var args map[string]any
	if err := json.Unmarshal(argsOrEmpty(call.Arguments), &args); err != nil {
		result = tools.Fail("produce a JSON object of tool arguments", "malformed tool arguments: %v", err)
	} else {
		result = o.registry.Execute(ctx, call.Name, uc, args)
	}
	outcome.ToolsCalled = append(outcome.ToolsCalled, call.Name)

	if !result.Success {
		logger.InfoContext(ctx, "tool call failed",
			logging.Tool(call.Name),
			slog.String("tool_error", result.Error))
	}

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{"success":false,"error":"tool result could not be encoded"}`)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: callID,
		Content:    string(payload),
	}
}

// argsOrEmpty treats a model turn with no argument payload as an empty
// object instead of a decode failure.
func argsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func (o *Orchestrator) systemPrompt(loc *time.Location) string {
	if o.cfg.SystemPrompt != "" {
		return o.cfg.SystemPrompt
	}
	today := o.now().In(loc).Format("Monday, January 2, 2006")
	return fmt.Sprintf(defaultSystemPrompt, today, loc.String())
}

func (o *Orchestrator) recordRun(ctx context.Context, status string, rounds int, started time.Time) {
	o.metrics.RecordOrchestrationRun(ctx, status, rounds, o.now().Sub(started))
}
