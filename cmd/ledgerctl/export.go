package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/seaclub/backend/internal/app"
	"github.com/seaclub/backend/internal/export"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	Member     string
	Month      string
	Categories []string
	Out        string
	Format     string
}

func newExportCmd(e *env) *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a monthly statement to a CSV or XLSX file",
		Long: `Write a monthly statement to a file.

The format is taken from --format, or from the extension of --out when
--format is not given. CSV files start with a UTF-8 byte order mark.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := flags.Format
			if name == "" {
				name = strings.TrimPrefix(filepath.Ext(flags.Out), ".")
			}
			format, err := export.ParseFormat(name)
			if err != nil {
				return err
			}

			a, err := e.open(cmd, app.Options{Cache: true})
			if err != nil {
				return err
			}
			defer a.Close()

			var buf bytes.Buffer
			if err := a.Service.Export(cmd.Context(), &buf, flags.Member, flags.Month, flags.Categories, format); err != nil {
				return describe(err)
			}

			if err := os.WriteFile(flags.Out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", flags.Out, err)
			}
			pterm.Success.Printf("Wrote %s (%d bytes)\n", flags.Out, buf.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Member, "member", "m", "", "member id")
	cmd.Flags().StringVar(&flags.Month, "month", "", "month as YYYY-MM (default current month)")
	cmd.Flags().StringSliceVar(&flags.Categories, "category", nil, "categories to include (repeatable, default all)")
	cmd.Flags().StringVarP(&flags.Out, "out", "o", "", "output file")
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "", "csv or xlsx")
	cmd.MarkFlagRequired("member")
	cmd.MarkFlagRequired("out")

	return cmd
}
