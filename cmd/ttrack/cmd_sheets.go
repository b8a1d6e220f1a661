package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	gsheet "timetracker/internal/sheets/google"
)

func newSheetsAuthCmd() *cobra.Command {
	var clientFile, tokenFile, port string
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize the worker's Google Sheets mirror with your Google account",
		Long: `Runs the OAuth consent flow for an installed-app client and saves the
token. Add http://localhost:<port>/callback to the client's redirect URIs,
then point the worker at both files with GOOGLE_OAUTH_CLIENT_FILE and
GOOGLE_OAUTH_TOKEN_FILE.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientJSON, err := os.ReadFile(clientFile)
			if err != nil {
				return fmt.Errorf("read client file: %w", err)
			}
			cfg, err := gsheet.OAuthConfig(clientJSON)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			tok, err := gsheet.Authorize(ctx, cfg, port, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientFile, "client", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON downloaded from the Cloud console")
	cmd.Flags().StringVar(&tokenFile, "token", envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json"), "Where to save the token")
	cmd.Flags().StringVar(&port, "port", envOr("OAUTH_REDIRECT_PORT", "8085"), "Loopback port for the redirect")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
