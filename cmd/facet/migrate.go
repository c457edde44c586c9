package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facet-db/facet/internal/cli/config"
	"github.com/facet-db/facet/internal/cli/ui"
	"github.com/facet-db/facet/internal/store/postgres"
	"github.com/facet-db/facet/internal/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long:  "Create the aggregate, document, and item tables for the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		switch cfg.Database.Driver {
		case "memory":
			ui.WriteError(os.Stderr, ui.MessageOptions{
				Problem: "the memory driver has nothing to migrate",
				Hints:   []string{"Set database.driver to sqlite or postgres in facet.yml"},
			})
			return fmt.Errorf("nothing to migrate")

		case "sqlite":
			return ui.WithSpinner(os.Stdout, "preparing sqlite database", false, func() error {
				s, err := sqlite.Open(cfg.Database.Path)
				if err != nil {
					return err
				}
				return s.Close()
			})

		case "postgres":
			return ui.WithSpinner(os.Stdout, "running postgres migrations", false, func() error {
				db, err := sql.Open("postgres", databaseURL(cfg))
				if err != nil {
					return fmt.Errorf("open postgres: %w", err)
				}
				defer db.Close()

				ctx := context.Background()
				if err := db.PingContext(ctx); err != nil {
					return fmt.Errorf("ping postgres: %w", err)
				}
				if err := postgres.NewAggregateStore(db).Migrate(ctx); err != nil {
					return err
				}
				return postgres.NewItemStore(db).Migrate(ctx)
			})
		}
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	},
}
