// Command demotrader runs the demo trading account CLI and server.
package main

import (
	"os"

	"demo-trader/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
