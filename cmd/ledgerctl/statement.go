package main

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/seaclub/backend/internal/app"
	"github.com/seaclub/backend/internal/export"
	"github.com/spf13/cobra"
)

type statementFlags struct {
	Member string
	Month  string
}

func newStatementCmd(e *env) *cobra.Command {
	flags := &statementFlags{}

	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Show the monthly reconciliation of every category",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd, app.Options{Cache: true})
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.Service.Statement(cmd.Context(), flags.Member, flags.Month)
			if err != nil {
				return describe(err)
			}
			if len(recs) == 0 {
				pterm.Warning.Println("No categories to show")
				return nil
			}

			pterm.DefaultSection.Printf("Statement for %s, %s to %s", flags.Member,
				recs[0].StartDate.Format(export.DisplayDateLayout), recs[0].EndDate.Format(export.DisplayDateLayout))

			tableData := pterm.TableData{{"Category", "Opening", "Closing", "Increase", "Decrease", "Entries"}}
			for _, rec := range recs {
				c := rec.Category
				tableData = append(tableData, []string{
					c.Label(),
					export.FormatValue(c, rec.OpeningBalance),
					export.FormatValue(c, rec.ClosingBalance),
					pterm.Green(export.FormatValue(c, rec.TotalIncrease)),
					pterm.Red(export.FormatValue(c, rec.TotalDecrease)),
					strconv.Itoa(len(rec.Transactions)),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		},
	}

	cmd.Flags().StringVarP(&flags.Member, "member", "m", "", "member id")
	cmd.Flags().StringVar(&flags.Month, "month", "", "month as YYYY-MM (default current month)")
	cmd.MarkFlagRequired("member")

	return cmd
}
