package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/opsdesk/internal/auth"
	"github.com/spec-kit/opsdesk/internal/config"
)

func newTokenCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token carrying an actor display name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "display name recorded as the history actor")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
