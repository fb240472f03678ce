package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"demo-trader/internal/demo"
	"demo-trader/internal/models"
	"demo-trader/internal/security"
)

// addOrderCommands adds order placement and management commands.
func addOrderCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPlaceOrderCmd(app, models.ActionBuy))
	rootCmd.AddCommand(newPlaceOrderCmd(app, models.ActionSell))
	rootCmd.AddCommand(newOrderCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
}

func newPlaceOrderCmd(app *App, action models.Action) *cobra.Command {
	var (
		price      string
		exchange   string
		product    string
		orderType  string
		expiry     string
		strike     string
		optionType string
		remarks    string
	)

	verb := strings.ToLower(string(action))
	cmd := &cobra.Command{
		Use:   verb + " <symbol> <quantity>",
		Short: fmt.Sprintf("Place a simulated %s order", verb),
		Long: fmt.Sprintf(`Place a simulated %s order.

Without --price the order is a market order and fills immediately at the
current quote. With --price it is a limit order that stays pending until
executed or cancelled.`, verb),
		Example: fmt.Sprintf(`  demotrader %[1]s RELIANCE 10
  demotrader %[1]s TCS 5 --price 3500
  demotrader %[1]s NIFTY24JANFUT 50 --exchange NFO --product futures --expiry 2024-01-25`, verb),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := security.ValidateSymbol(args[0]); err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}

			req := demo.PlaceOrderRequest{
				Symbol:     args[0],
				Exchange:   exchange,
				Product:    product,
				Action:     string(action),
				OrderType:  orderType,
				Quantity:   qty,
				OptionType: optionType,
				Remarks:    security.SanitizeText(remarks),
			}
			if price != "" {
				if req.Price, err = parseAmount("price", price); err != nil {
					return err
				}
			}
			if req.OrderType == "" {
				req.OrderType = string(models.OrderTypeMarket)
				if price != "" {
					req.OrderType = string(models.OrderTypeLimit)
				}
			}
			if req.Expiry, err = parseDate("expiry", expiry); err != nil {
				return err
			}
			if strike != "" {
				k, err := parseAmount("strike", strike)
				if err != nil {
					return err
				}
				req.Strike = &k
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.PlaceOrder(cmd.Context(), req)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ %s", result.Message)
			output.Printf("  Order:  %s\n", result.OrderID)
			output.Printf("  Status: %s\n", output.Status(string(result.Status)))
			if result.ExecutionPrice != nil {
				output.Printf("  Price:  %s (%s)\n", output.Money(*result.ExecutionPrice), result.PriceSource)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&price, "price", "p", "", "limit price (omit for a market order)")
	cmd.Flags().StringVarP(&exchange, "exchange", "e", "", "exchange (NSE, BSE, NFO, BFO, MCX)")
	cmd.Flags().StringVar(&product, "product", "cash", "product (cash, futures, options)")
	cmd.Flags().StringVarP(&orderType, "type", "t", "", "order type (market, limit)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "derivative expiry (YYYY-MM-DD)")
	cmd.Flags().StringVar(&strike, "strike", "", "option strike price")
	cmd.Flags().StringVar(&optionType, "option-type", "", "option type (CE, PE)")
	cmd.Flags().StringVar(&remarks, "remarks", "", "note stored with the order")
	return cmd
}

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect and manage a single order",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <order_id>",
		Short: "Show order details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := security.ValidateOrderID(args[0]); err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			order, err := svc.Order(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(order)
			}
			printOrder(output, order)
			return nil
		},
	})

	var execPrice string
	execute := &cobra.Command{
		Use:   "execute <order_id>",
		Short: "Fill a pending order",
		Long: `Fill a pending order at --price, or at the current quote when no price
is given, falling back to the order's limit price.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := security.ValidateOrderID(args[0]); err != nil {
				return err
			}
			price := decimal.Zero
			if execPrice != "" {
				var err error
				if price, err = parseAmount("price", execPrice); err != nil {
					return err
				}
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			order, err := svc.ExecuteOrder(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(order)
			}
			output.Success("✓ Order %s executed", order.ID)
			printOrder(output, order)
			return nil
		},
	}
	execute.Flags().StringVarP(&execPrice, "price", "p", "", "execution price")
	cmd.AddCommand(execute)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <order_id>",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := security.ValidateOrderID(args[0]); err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			order, err := svc.CancelOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(order)
			}
			output.Success("✓ Order %s cancelled", order.ID)
			return nil
		},
	})

	return cmd
}

func newOrdersCmd(app *App) *cobra.Command {
	var q demo.OrderQuery

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}
			orders, err := svc.Orders(cmd.Context(), q)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders")
				return nil
			}

			table := NewTable(output, "ORDER ID", "TIME", "SYMBOL", "SIDE", "TYPE", "QTY", "PRICE", "FILL", "STATUS")
			for _, o := range orders {
				fill := "-"
				if o.ExecutionPrice != nil {
					fill = output.Money(*o.ExecutionPrice)
				}
				limit := "-"
				if o.Price.IsPositive() {
					limit = output.Money(o.Price)
				}
				table.AddRow(
					o.ID,
					FormatDateTime(o.CreatedAt),
					TruncateString(o.Symbol, 20),
					output.Action(string(o.Action)),
					string(o.Type),
					fmt.Sprintf("%d", o.Quantity),
					limit,
					fill,
					output.Status(string(o.Status)),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status (pending, executed, cancelled)")
	cmd.Flags().StringVar(&q.Symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&q.Action, "action", "", "filter by side (buy, sell)")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 50, "maximum orders to list (0 for all)")
	return cmd
}

func printOrder(output *Output, o *models.Order) {
	lines := []string{
		fmt.Sprintf("Symbol:   %s:%s", o.Exchange, o.Symbol),
		fmt.Sprintf("Product:  %s", o.Product),
		fmt.Sprintf("Side:     %s %d", output.Action(string(o.Action)), o.Quantity),
		fmt.Sprintf("Type:     %s", o.Type),
		fmt.Sprintf("Status:   %s", output.Status(string(o.Status))),
		fmt.Sprintf("Created:  %s", FormatDateTime(o.CreatedAt)),
	}
	if o.Price.IsPositive() {
		lines = append(lines, fmt.Sprintf("Limit:    %s", output.Money(o.Price)))
	}
	if o.ExecutionPrice != nil {
		lines = append(lines, fmt.Sprintf("Filled:   %s", output.Money(*o.ExecutionPrice)))
	}
	if o.ExecutedAt != nil {
		lines = append(lines, fmt.Sprintf("Executed: %s", FormatDateTime(*o.ExecutedAt)))
	}
	if o.Expiry != nil {
		lines = append(lines, fmt.Sprintf("Expiry:   %s", o.Expiry.Format("02-Jan-2006")))
	}
	if o.Strike != nil {
		lines = append(lines, fmt.Sprintf("Strike:   %s %s", o.Strike.String(), o.OptionType))
	}
	if o.Remarks != "" {
		lines = append(lines, fmt.Sprintf("Remarks:  %s", TruncateString(o.Remarks, 60)))
	}
	output.Box("Order "+o.ID, lines)
}
