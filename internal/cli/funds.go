package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"demo-trader/internal/demo"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
)

// addFundsCommands adds funds management commands.
func addFundsCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newFundsCmd(app))
}

func newFundsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funds",
		Short: "Show segment balances",
		Long: `Show the demo account balances for the cash, equity and F&O segments.

Balances only change through ledger entries: order executions, manual
adjustments and transfers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			funds, err := svc.Funds(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(funds)
			}
			printFunds(output, funds)
			return nil
		},
	}

	cmd.AddCommand(newFundsAdjustCmd(app, "add <amount>", "Credit funds to a segment", demo.AdjustCredit))
	cmd.AddCommand(newFundsAdjustCmd(app, "withdraw <amount>", "Debit funds from a segment", demo.AdjustDebit))
	adjust := newFundsAdjustCmd(app, "adjust <amount>", "Apply a signed adjustment to a segment", demo.AdjustSigned)
	adjust.Example = "  demotrader funds adjust --segment fno -- -2500"
	cmd.AddCommand(adjust)
	cmd.AddCommand(newFundsTransferCmd(app))
	cmd.AddCommand(newFundsReconcileCmd(app))

	return cmd
}

func newFundsAdjustCmd(app *App, use, short string, kind demo.AdjustmentKind) *cobra.Command {
	var segment, remarks string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			amount, err := parseAmount("amount", args[0])
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			entry, err := svc.AdjustFunds(cmd.Context(), demo.FundsAdjustment{
				Segment: segment,
				Kind:    kind,
				Amount:  amount,
				Remarks: security.SanitizeText(remarks),
			})
			if err != nil {
				return err
			}
			funds, err := svc.Funds(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"entry": entry,
					"funds": funds,
				})
			}
			output.Success("✓ %s %s", entry.Type, output.PnL(entry.Amount))
			output.Printf("  Transaction: %s\n", entry.TransactionID)
			output.Printf("  %s balance: %s\n", segmentLabel(entry.Segment), output.Money(funds.Balance(entry.Segment)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&segment, "segment", "s", "cash", "segment (cash, equity, fno)")
	cmd.Flags().StringVar(&remarks, "remarks", "", "note stored with the ledger entry")
	return cmd
}

func newFundsTransferCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "transfer <from> <to> <amount>",
		Short:   "Move funds between segments",
		Example: "  demotrader funds transfer cash fno 50000",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			funds, err := svc.TransferFunds(cmd.Context(), args[0], args[1], amount)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(funds)
			}
			output.Success("✓ Transferred %s from %s to %s",
				output.Money(amount), strings.ToLower(args[0]), strings.ToLower(args[1]))
			printFunds(output, funds)
			return nil
		},
	}
}

func newFundsReconcileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Verify balances against the ledger and repair drift",
		Long: `Recompute every segment balance as its seed plus the sum of its ledger
entries, repair any drift and rebuild holdings from executed orders.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}

			table := NewTable(output, "SEGMENT", "SEED", "LEDGER", "EXPECTED", "STORED", "DRIFT")
			for _, d := range report.Segments {
				table.AddRow(
					segmentLabel(d.Segment),
					output.Money(d.Seed),
					output.PnL(d.Ledger),
					output.Money(d.Expected),
					output.Money(d.Stored),
					output.PnL(d.Drift),
				)
			}
			table.Render()
			output.Println()

			if report.Balanced() {
				output.Success("✓ Balances match the ledger")
			} else {
				output.Warning("Drift repaired")
			}
			output.Dim("Holdings: %d before, %d rebuilt", report.HoldingsBefore, report.HoldingsRebuilt)
			return nil
		},
	}
}

func printFunds(output *Output, funds models.Funds) {
	output.Box("Demo Funds", []string{
		fmt.Sprintf("Cash:    %s", output.Money(funds.Cash)),
		fmt.Sprintf("Equity:  %s", output.Money(funds.Equity)),
		fmt.Sprintf("F&O:     %s", output.Money(funds.FNO)),
		fmt.Sprintf("Total:   %s", output.Money(funds.Total)),
		fmt.Sprintf("Seed:    %s", output.Money(funds.Seed)),
		fmt.Sprintf("Updated: %s", FormatDateTime(funds.UpdatedAt)),
	})
}

func segmentLabel(seg models.Segment) string {
	switch seg {
	case models.SegmentCash:
		return "Cash"
	case models.SegmentEquity:
		return "Equity"
	case models.SegmentFNO:
		return "F&O"
	}
	return string(seg)
}
