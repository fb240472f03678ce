package cli

import (
	"time"

	"github.com/spf13/cobra"

	"demo-trader/internal/security"
	"demo-trader/pkg/utils"
)

// addWatchCommands adds market watch commands.
func addWatchCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the market watch list",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.WatchList(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(items)
			}

			now := time.Now()
			status := utils.GetMarketStatus(now)
			if status == utils.MarketOpen {
				output.Success("Market %s", status)
			} else {
				output.Warning("Market %s, opens %s", status, FormatDateTime(utils.NextMarketOpen(now)))
			}
			if len(items) == 0 {
				output.Dim("Watch list is empty")
				return nil
			}
			table := NewTable(output, "SYMBOL", "EXCH", "ADDED")
			for _, it := range items {
				table.AddRow(it.Symbol, string(it.Exchange), FormatDateTime(it.AddedAt))
			}
			table.Render()
			return nil
		},
	}

	var exchange string
	add := &cobra.Command{
		Use:   "add <symbol>",
		Short: "Add a symbol to the watch list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := security.ValidateSymbol(args[0]); err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.AddToWatch(cmd.Context(), exchange, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				items, err := svc.WatchList(cmd.Context())
				if err != nil {
					return err
				}
				return output.JSON(items)
			}
			output.Success("✓ Watching %s", args[0])
			return nil
		},
	}
	add.Flags().StringVarP(&exchange, "exchange", "e", "", "exchange (default from config)")

	remove := &cobra.Command{
		Use:     "remove <symbol>",
		Aliases: []string{"rm"},
		Short:   "Remove a symbol from the watch list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := svc.RemoveFromWatch(cmd.Context(), exchange, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"removed": removed})
			}
			if removed {
				output.Success("✓ Removed %s", args[0])
			} else {
				output.Dim("%s was not on the watch list", args[0])
			}
			return nil
		},
	}
	remove.Flags().StringVarP(&exchange, "exchange", "e", "", "exchange (default from config)")

	cmd.AddCommand(add, remove)
	return cmd
}
