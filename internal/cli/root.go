// Package cli provides the command-line interface for the demo trading
// account.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"demo-trader/internal/config"
	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/security"
)

// Version information, overridden at link time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{}
	rootCmd := NewRootCmd(app)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		reportError(rootCmd, err)
		return 1
	}
	return 0
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "demotrader",
		Short: "Demo trading account simulator",
		Long: `demotrader simulates a brokerage account for the Indian markets.

Orders are filled against live Kite quotes when credentials are configured,
or against the offline price table otherwise. Every rupee that moves is
recorded in an append-only ledger.

Use 'demotrader serve' to expose the account over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/demo-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	addCoreCommands(rootCmd, app)
	addFundsCommands(rootCmd, app)
	addOrderCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	addWatchCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))
	addHelpCommands(rootCmd)

	return rootCmd
}

// load reads configuration and builds the logger once per invocation.
func (a *App) load(cmd *cobra.Command) error {
	if a.Config != nil {
		return nil
	}
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	a.Config = cfg
	a.Logger = newLogger(cfg, debug, debug || cmd.Name() == "serve")
	a.Logger.Debug().Str("config_dir", cfg.Dir).Str("command", cmd.CommandPath()).Msg("Configuration loaded")
	return nil
}

func reportError(cmd *cobra.Command, err error) {
	jsonMode, _ := cmd.PersistentFlags().GetBool("json")
	if jsonMode {
		output := &Output{writer: cmd.OutOrStdout(), jsonMode: true}
		output.JSON(map[string]interface{}{
			"success": false,
			"error": map[string]string{
				"code":    apperrors.Kind(err),
				"message": err.Error(),
			},
		})
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error: %v", err))
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("demotrader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := maskedConfig(app.Config)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			return showConfig(output, cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

// maskedConfig returns a copy of cfg that is safe to print.
func maskedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	z := &c.Credentials.Zerodha
	z.APIKey = security.MaskCredential(z.APIKey)
	z.APISecret = security.MaskCredential(z.APISecret)
	z.AccessToken = security.MaskCredential(z.AccessToken)
	return &c
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Demo Account")
	output.Printf("  Database:         %s\n", cfg.Demo.DBPath)
	output.Printf("  Seed Cash:        %s\n", output.Money(decimal.NewFromFloat(cfg.Demo.SeedCash)))
	output.Printf("  Default Exchange: %s\n", cfg.Demo.DefaultExchange)
	output.Printf("  Quote Timeout:    %s\n", cfg.Demo.QuoteTimeout)
	output.Printf("  Allow Short:      %v\n", cfg.Demo.AllowShort)
	output.Printf("  Market Hours:     %v\n", cfg.Demo.EnforceMarketHours)
	output.Printf("  Offline Quotes:   %d\n", len(cfg.Demo.Quotes))
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:          %s\n", cfg.Server.Addr)
	output.Printf("  Read Timeout:     %s\n", cfg.Server.ReadTimeout)
	output.Printf("  Write Timeout:    %s\n", cfg.Server.WriteTimeout)
	output.Println()

	output.Bold("Security")
	output.Printf("  Read Only:        %v\n", cfg.Security.ReadOnlyMode)
	output.Printf("  Audit Log:        %v\n", cfg.Security.AuditEnabled)
	output.Printf("  Audit Dir:        %s\n", cfg.Security.AuditDir)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Log.Level)
	output.Printf("  File:             %v\n", cfg.Log.File)
	output.Printf("  Path:             %s\n", cfg.Log.Path)
	output.Println()

	output.Bold("Zerodha")
	if cfg.Credentials.Zerodha.APIKey == "" {
		output.Dim("  Not configured, using offline quotes")
		return nil
	}
	output.Printf("  API Key:          %s\n", cfg.Credentials.Zerodha.APIKey)
	output.Printf("  Access Token:     %s\n", cfg.Credentials.Zerodha.AccessToken)
	output.Printf("  User ID:          %s\n", cfg.Credentials.Zerodha.UserID)
	return nil
}
