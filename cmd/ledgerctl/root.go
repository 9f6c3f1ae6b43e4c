package main

import (
	"os"

	"github.com/seaclub/backend/internal/app"
	"github.com/seaclub/backend/internal/config"
	"github.com/seaclub/backend/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	ConfigFile string
	Verbose    bool
}

type env struct {
	flags *rootFlags
	cfg   *config.Config
	log   *logrus.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{flags: &rootFlags{}}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the member credit ledger",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.flags.ConfigFile)
			if err != nil {
				return err
			}
			e.cfg = cfg

			level := "warn"
			if e.flags.Verbose {
				level = cfg.Log.Level
			}
			e.log = logger.New(logger.Config{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&e.flags.ConfigFile, "config", "c", "", "config file (default .env)")
	cmd.PersistentFlags().BoolVarP(&e.flags.Verbose, "verbose", "v", false, "log at the configured level instead of warn")

	cmd.AddCommand(newMigrateCmd(e))
	cmd.AddCommand(newRecomputeCmd(e))
	cmd.AddCommand(newStatementCmd(e))
	cmd.AddCommand(newExportCmd(e))

	return cmd
}

// open connects to the ledger. The caller must Close the result.
func (e *env) open(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	return app.New(cmd.Context(), e.cfg, e.log, opts)
}
