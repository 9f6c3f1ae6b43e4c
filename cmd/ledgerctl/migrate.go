package main

import (
	"github.com/pterm/pterm"
	"github.com/seaclub/backend/internal/app"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd, app.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			pterm.Success.Printf("Database %s is up to date\n", e.cfg.Database.Name)
			return nil
		},
	}
}
