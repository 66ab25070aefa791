package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/chatplan/chatplan/internal/instrumentation"
	"github.com/chatplan/chatplan/internal/llm"
	"github.com/chatplan/chatplan/internal/orchestrator"
	"github.com/chatplan/chatplan/internal/server"
	"github.com/chatplan/chatplan/internal/tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode     bool
		tokenDir      string
		modelName     string
		modelBaseURL  string
		maxIterations int
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing calendar and
scheduling tools for AI assistants.

The server speaks MCP over stdio. Logs go to stderr so they never mix
with the protocol stream.

Google Calendar access:
  Users link their calendar with the auth command before the tools can
  read or write events. Client credentials come from GOOGLE_CLIENT_ID
  and GOOGLE_CLIENT_SECRET env vars.

Language model:
  The scheduleAssistant tool drives an OpenAI-compatible chat endpoint.
  Set OPENAI_API_KEY, and use --model / --model-base-url to point at a
  different model or a compatible local endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			return runServe(debugMode, tokenDir, modelName, modelBaseURL, maxIterations, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&tokenDir, "token-dir", "", "Directory for per-user OAuth tokens (default: user cache directory)")
	cmd.Flags().StringVar(&modelName, "model", "", "Model name for the assistant (default: gpt-4o-mini). Can also use CHATPLAN_MODEL env var.")
	cmd.Flags().StringVar(&modelBaseURL, "model-base-url", "", "Base URL of an OpenAI-compatible chat-completions API. Can also use CHATPLAN_MODEL_BASE_URL env var.")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Maximum model turns per assistant run (default: 5)")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, tokenDir, modelName, modelBaseURL string, maxIterations int, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode)
	slog.SetDefault(logger)

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	app, err := server.NewAppContext(shutdownCtx, server.AppConfig{
		TokenDir:        tokenDir,
		Model:           modelConfig(modelName, modelBaseURL),
		Orchestrator:    orchestrator.Config{MaxIterations: maxIterations},
		Instrumentation: provider,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create application context: %w", err)
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			logger.Error("application shutdown failed", "error", err)
		}
	}()

	// Start the metrics server if enabled. It lives on its own port so
	// it never interferes with the stdio protocol stream.
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		health := server.NewHealthChecker(app)
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
			Health:                  health,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "addr", metricsServer.Addr())
	}
	defer func() {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("chatplan", version,
		mcpserver.WithToolCapabilities(true),
	)

	// Calendar tools plus the conversational entry point
	app.Registry().AddMCPTools(mcpSrv)
	mcpSrv.AddTool(scheduleAssistantTool(), scheduleAssistantHandler(app))

	return runStdioServer(shutdownCtx, mcpSrv)
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

// scheduleAssistantTool is the conversational entry point: a single tool
// that runs the whole assistant loop against the user's calendar.
func scheduleAssistantTool() mcp.Tool {
	return mcp.NewTool("scheduleAssistant",
		mcp.WithDescription("Send a natural-language scheduling request to the assistant. "+
			"It can check for conflicts, suggest free slots, and create calendar events."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's request, e.g. 'book an hour with Dana on Thursday afternoon'"),
		),
		mcp.WithString("userId",
			mcp.Description("Which linked calendar account to act on (default: 'default')"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone for interpreting times, e.g. 'America/New_York' (default: UTC)"),
		),
	)
}

func scheduleAssistantHandler(app *server.AppContext) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		message, _ := args["message"].(string)
		if message == "" {
			return mcp.NewToolResultError("message is required"), nil
		}
		userID, _ := args["userId"].(string)
		if userID == "" {
			userID = tools.DefaultUserID
		}
		timezone, _ := args["timezone"].(string)

		outcome, err := app.Orchestrator().Run(ctx, userID, message, nil, timezone)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("assistant run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(outcome.Reply), nil
	}
}

// modelConfig builds the model client config from flags with env
// fallbacks. The API key only ever comes from the environment.
func modelConfig(modelName, modelBaseURL string) llm.OpenAIConfig {
	if modelName == "" {
		modelName = os.Getenv("CHATPLAN_MODEL")
	}
	if modelBaseURL == "" {
		modelBaseURL = os.Getenv("CHATPLAN_MODEL_BASE_URL")
	}
	return llm.OpenAIConfig{
		BaseURL: modelBaseURL,
		Model:   modelName,
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
}

// newLogger builds the application logger. Output goes to stderr so it
// never mixes with the MCP stdio stream.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
