package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatplan/chatplan/internal/google"
	"github.com/chatplan/chatplan/internal/tools"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Link a Google account for calendar access",
		Long: `Link a Google account so the assistant can read and write its calendar.

Linking is a two-step flow:
  1. chatplan auth url            prints the consent URL to visit
  2. chatplan auth code <code>    exchanges the pasted authorization code

Client credentials come from GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET
env vars. Use --user to link more than one account (e.g. work, personal).`,
	}

	cmd.AddCommand(newAuthURLCmd())
	cmd.AddCommand(newAuthCodeCmd())
	return cmd
}

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Google consent URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("GOOGLE_CLIENT_ID") == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID is not set")
			}
			fmt.Println("Visit the URL below, grant access, and run 'chatplan auth code <code>' with the code Google shows you:")
			fmt.Println()
			fmt.Println(google.AuthURL())
			return nil
		},
	}
}

func newAuthCodeCmd() *cobra.Command {
	var (
		userID   string
		tokenDir string
	)

	cmd := &cobra.Command{
		Use:   "code <authorization-code>",
		Short: "Exchange an authorization code and store the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := google.NewFileTokenStore(tokenDir)
			if err := google.ExchangeCode(context.Background(), store, userID, args[0]); err != nil {
				return err
			}
			fmt.Printf("Calendar linked for user %q\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", tools.DefaultUserID, "Name to store the linked account under")
	cmd.Flags().StringVar(&tokenDir, "token-dir", "", "Directory for per-user OAuth tokens (default: user cache directory)")
	return cmd
}
