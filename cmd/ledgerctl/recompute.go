package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/seaclub/backend/internal/app"
	"github.com/seaclub/backend/internal/export"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/spf13/cobra"
)

type recomputeFlags struct {
	Member   string
	Category string
	Repair   bool
}

type recomputeRunner struct {
	env   *env
	flags *recomputeFlags
}

func newRecomputeCmd(e *env) *cobra.Command {
	flags := &recomputeFlags{}

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Compare stored balances with the ledger history",
		Long: `Rebuild each balance as its seed plus the signed sum of live
transactions and report any difference from the stored value.

With --repair the stored balance is overwritten with the rebuilt value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &recomputeRunner{env: e, flags: flags}
			return runner.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&flags.Member, "member", "m", "", "member id")
	cmd.Flags().StringVar(&flags.Category, "category", "", "limit to one category")
	cmd.Flags().BoolVar(&flags.Repair, "repair", false, "overwrite drifted balances")
	cmd.MarkFlagRequired("member")

	return cmd
}

func (r *recomputeRunner) Run(cmd *cobra.Command) error {
	if r.flags.Category != "" {
		if _, err := models.ParseCategory(r.flags.Category); err != nil {
			return fmt.Errorf("invalid category %q", r.flags.Category)
		}
	}

	a, err := r.env.open(cmd, app.Options{Cache: r.flags.Repair, Events: r.flags.Repair})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var drifts []*ledger.Drift
	if r.flags.Repair {
		drifts, err = a.Service.RepairDrift(ctx, r.flags.Member, r.flags.Category)
	} else {
		drifts, err = a.Service.Drift(ctx, r.flags.Member)
	}
	if err != nil {
		return describe(err)
	}

	tableData := pterm.TableData{{"Category", "Stored", "Expected", "Drift"}}
	drifted := 0
	for _, d := range drifts {
		if r.flags.Category != "" && string(d.Category) != r.flags.Category {
			continue
		}
		status := pterm.Green("0")
		if !d.Consistent() {
			drifted++
			status = pterm.Red(fmt.Sprintf("%+d", d.Drift))
		}
		tableData = append(tableData, []string{
			d.Category.Label(),
			export.FormatValue(d.Category, d.Stored),
			export.FormatValue(d.Category, d.Expected),
			status,
		})
	}

	pterm.DefaultSection.Printf("Balance drift for %s", r.flags.Member)
	if err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Render(); err != nil {
		return err
	}

	switch {
	case drifted == 0:
		pterm.Success.Println("All balances match the ledger history")
	case r.flags.Repair:
		pterm.Success.Printf("Repaired %d balance(s)\n", drifted)
	default:
		pterm.Warning.Printf("%d balance(s) drifted; rerun with --repair to fix\n", drifted)
	}
	return nil
}

// describe turns ledger errors into operator-facing messages.
func describe(err error) error {
	var ve *ledger.ValidationError
	var nf *ledger.NotFoundError
	switch {
	case errors.As(err, &ve):
		return fmt.Errorf("invalid %s: %s", ve.Field, ve.Reason)
	case errors.As(err, &nf):
		return fmt.Errorf("%s %s not found", nf.Resource, nf.ID)
	default:
		return err
	}
}
