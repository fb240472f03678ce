package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Demo Trader Configuration

[demo]
# Starting virtual cash, applied once on first run
seed_cash = 1000000.0
# Upper bound on a live quote lookup before falling back
quote_timeout = "2s"
# Allow sells beyond the held quantity (negative holdings)
allow_short = false
# Reject new orders outside 09:20-15:15 IST, Mon-Fri
enforce_market_hours = false
default_exchange = "NSE"

# Offline prices used when no broker is configured
[demo.quotes]
# RELIANCE = 2500.0

# Lot sizes for derivative symbols (equities default to 1)
[demo.lot_sizes]
# "NFO:NIFTY" = 75
# "NFO:BANKNIFTY" = 30

[server]
addr = "127.0.0.1:8080"

[security]
# Block every mutating operation
read_only_mode = false
# Write an audit trail of trading actions
audit_enabled = true

[log]
level = "info"
file = true

[ui]
color_enabled = true
date_format = "02-Jan-2006"
time_format = "15:04:05"
`

const credentialsTemplate = `# Demo Trader Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# Live quotes and lot sizes are fetched from Kite when api_key and access_token are set.

[zerodha]
api_key = ""
api_secret = ""
access_token = ""
user_id = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
