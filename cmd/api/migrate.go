package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/spec-kit/opsdesk/internal/config"
	"github.com/spec-kit/opsdesk/internal/observability"
	"github.com/spec-kit/opsdesk/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				log.Fatalf("failed to init logger: %v", err)
			}
			defer logger.Sync() //nolint:errcheck

			if dsn == "" {
				dsn = cfg.Postgres.DSN
			}
			if dsn == "" {
				return fmt.Errorf("no postgres dsn: set POSTGRES_DSN or pass --dsn")
			}
			return persistence.RunMigrations(dsn, logger)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string (defaults to POSTGRES_DSN)")
	return cmd
}
