package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
}

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "Getting Started",
		commands: []string{
			"demotrader config path             # Where config.toml lives",
			"demotrader funds                   # Seeded with ₹10,00,000 cash",
			"demotrader watch                   # Default watch list",
		},
	},
	{
		title: "Trading",
		commands: []string{
			"demotrader buy RELIANCE 10         # Market order, fills at the quote",
			"demotrader buy TCS 5 --price 3500  # Limit order, stays pending",
			"demotrader orders --status pending # List pending orders",
			"demotrader order execute <id>      # Fill at the current quote",
			"demotrader order cancel <id>       # Cancel a pending order",
			"demotrader sell RELIANCE 5         # Reduce a position",
		},
	},
	{
		title: "Derivatives",
		commands: []string{
			"demotrader funds transfer cash fno 200000",
			"demotrader buy NIFTY24JANFUT 50 --exchange NFO --product futures --expiry 2024-01-25",
			"demotrader buy NIFTY24JAN21000CE 50 --exchange NFO --product options \\",
			"    --expiry 2024-01-25 --strike 21000 --option-type CE",
		},
	},
	{
		title: "Books",
		commands: []string{
			"demotrader holdings                # Positions with live P&L",
			"demotrader ledger --segment cash   # Every rupee that moved",
			"demotrader summary                 # Net worth",
			"demotrader export ledger -o l.csv  # CSV for a spreadsheet",
			"demotrader funds reconcile         # Check balances against the ledger",
		},
	},
	{
		title: "Server",
		commands: []string{
			"demotrader serve --addr :8080",
			"curl localhost:8080/api/demo/funds",
			"websocat ws://localhost:8080/api/demo/stream?topic=RELIANCE",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, w := range workflows {
				output.Info("%s", w.title)
				for _, c := range w.commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			output.Dim("Use 'demotrader <command> --help' for flags.")
			return nil
		},
	}
}
