package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"demo-trader/internal/demo"
	"demo-trader/pkg/utils"
)

// addPortfolioCommands adds holdings, ledger and reporting commands.
func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
}

func newHoldingsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show open positions with live valuation",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			holdings, err := svc.Holdings(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(holdings)
			}
			if len(holdings) == 0 {
				output.Dim("No holdings")
				return nil
			}

			table := NewTable(output, "SYMBOL", "EXCH", "QTY", "AVG", "LTP", "VALUE", "P&L")
			stale := false
			for _, h := range holdings {
				ltp := output.Money(h.CurrentPrice)
				if h.Stale {
					ltp += "*"
					stale = true
				}
				table.AddRow(
					h.Symbol,
					string(h.Exchange),
					utils.FormatQuantity(int64(h.Quantity)),
					output.Money(h.AveragePrice),
					ltp,
					output.Money(h.MarketValue),
					output.PnL(h.UnrealizedPnL),
				)
			}
			table.Render()
			if stale {
				output.Dim("* quote unavailable, valued at average price")
			}
			return nil
		},
	}
}

func newLedgerCmd(app *App) *cobra.Command {
	var q demo.LedgerQuery

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show ledger entries in chronological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := svc.Ledger(cmd.Context(), q)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Dim("No ledger entries")
				return nil
			}

			table := NewTable(output, "TIME", "TRANSACTION", "TYPE", "SEGMENT", "SYMBOL", "QTY", "AMOUNT")
			for _, e := range entries {
				qty := "-"
				if e.Quantity > 0 {
					qty = fmt.Sprintf("%s %d", output.Action(string(e.Action)), e.Quantity)
				}
				table.AddRow(
					FormatDateTime(e.Timestamp),
					TruncateString(e.TransactionID, 40),
					string(e.Type),
					segmentLabel(e.Segment),
					orDash(e.Symbol),
					qty,
					output.PnL(e.Amount),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&q.Segment, "segment", "s", "", "filter by segment (cash, equity, fno)")
	cmd.Flags().StringVar(&q.Symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&q.Type, "type", "", "filter by transaction type")
	cmd.Flags().StringVar(&q.OrderID, "order", "", "filter by order ID")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 0, "maximum entries to list (0 for all)")
	return cmd
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show account net worth",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			s, err := svc.PortfolioSummary(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(s)
			}
			pnl := output.PnL(s.TotalUnrealizedPnL)
			if s.InvestedValue.IsPositive() {
				pct := s.TotalUnrealizedPnL.Div(s.InvestedValue).Mul(decimal.NewFromInt(100))
				pnl += " " + utils.FormatPercent(pct)
			}
			output.Box("Portfolio Summary", []string{
				fmt.Sprintf("Funds:          %s", output.Money(s.Funds.Total)),
				fmt.Sprintf("Invested:       %s", output.Money(s.InvestedValue)),
				fmt.Sprintf("Holdings Value: %s", output.Money(s.HoldingsValue)),
				fmt.Sprintf("Unrealized P&L: %s", pnl),
				fmt.Sprintf("Net Worth:      %s (%s)", output.Money(s.NetWorth), utils.FormatCompact(s.NetWorth)),
				fmt.Sprintf("Holdings:       %d", s.HoldingsCount),
				fmt.Sprintf("Pending Orders: %d", s.PendingOrders),
			})
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:       "export <table>",
		Short:     "Export a table as CSV",
		Long:      "Export orders, ledger or holdings as CSV to stdout or --out.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: demo.Tables(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			data, err := svc.Export(cmd.Context(), strings.ToLower(args[0]))
			if err != nil {
				return err
			}

			if out == "" {
				if output.IsJSON() {
					return output.JSON(map[string]string{"table": args[0], "csv": data})
				}
				output.Printf("%s", data)
				return nil
			}
			if err := os.WriteFile(out, []byte(data), 0644); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"table": args[0], "path": out})
			}
			output.Success("✓ Exported %s to %s", args[0], out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write CSV to this file")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
