package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatplan/chatplan/internal/orchestrator"
	"github.com/chatplan/chatplan/internal/server"
	"github.com/chatplan/chatplan/internal/tools"
)

func newChatCmd() *cobra.Command {
	var (
		debugMode     bool
		tokenDir      string
		userID        string
		timezone      string
		modelName     string
		modelBaseURL  string
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Run a single scheduling-assistant request from the CLI",
		Long: `Send one natural-language request to the scheduling assistant and
print its reply.

Examples:
  chatplan chat "do I have anything tomorrow afternoon?"
  chatplan chat --timezone Europe/Berlin "book lunch with Sam on Friday at noon"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return runChat(debugMode, tokenDir, userID, timezone, modelName, modelBaseURL, maxIterations, message)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&tokenDir, "token-dir", "", "Directory for per-user OAuth tokens (default: user cache directory)")
	cmd.Flags().StringVar(&userID, "user", tools.DefaultUserID, "Which linked calendar account to act on")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for interpreting times, e.g. 'America/New_York' (default: UTC)")
	cmd.Flags().StringVar(&modelName, "model", "", "Model name for the assistant (default: gpt-4o-mini). Can also use CHATPLAN_MODEL env var.")
	cmd.Flags().StringVar(&modelBaseURL, "model-base-url", "", "Base URL of an OpenAI-compatible chat-completions API. Can also use CHATPLAN_MODEL_BASE_URL env var.")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Maximum model turns per assistant run (default: 5)")

	return cmd
}

func runChat(debugMode bool, tokenDir, userID, timezone, modelName, modelBaseURL string, maxIterations int, message string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode)

	app, err := server.NewAppContext(ctx, server.AppConfig{
		TokenDir:     tokenDir,
		Model:        modelConfig(modelName, modelBaseURL),
		Orchestrator: orchestrator.Config{MaxIterations: maxIterations},
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create application context: %w", err)
	}
	defer func() {
		_ = app.Shutdown()
	}()

	outcome, err := app.Orchestrator().Run(ctx, userID, message, nil, timezone)
	if err != nil {
		return fmt.Errorf("assistant run failed: %w", err)
	}

	fmt.Println(outcome.Reply)
	return nil
}
