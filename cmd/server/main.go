/*
main.go - Application entry point

PURPOSE:
  contribd runs the contribution engine. Commands:

    contribd serve --config contrib.toml   HTTP API + event relays
    contribd calc 240000 --year 2018       one-off bracket computation

STARTUP SEQUENCE (serve):
  1. Load configuration (defaults, TOML file, environment)
  2. Build the calculator registry (fails fast when empty)
  3. Open the SQLite event log and read model
  4. Start one relay per shard for the read model, and for Kafka when
     brokers are configured
  5. Start the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Stop relays
  4. Close Kafka client and database

SEE ALSO:
  - config/config.go: configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Event log
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "contribd",
	Short:         "Contributor income and social contribution engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML configuration file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
