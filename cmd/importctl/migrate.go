package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/mohammadpnp/school-import/internal/config"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/migrations"
)

func newMigrateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	run := func(action func(cmd *cobra.Command, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}

			db, err := sql.Open("pgx", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return action(cmd, db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, db *sql.DB) error {
				if err := goose.UpContext(cmd.Context(), db, "."); err != nil {
					return fmt.Errorf("goose up: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, db *sql.DB) error {
				if err := goose.DownContext(cmd.Context(), db, "."); err != nil {
					return fmt.Errorf("goose down: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, db *sql.DB) error {
				if err := goose.StatusContext(cmd.Context(), db, "."); err != nil {
					return fmt.Errorf("goose status: %w", err)
				}
				return nil
			}),
		},
	)
	return cmd
}
