package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrecon/internal/config"
	"docrecon/internal/logger"
)

var version = "1.0.0"

// cfg is set by Execute before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docrecon",
	Short: "Ingest procurement documents and reconcile purchase orders",
	Long: `docrecon ingests purchase orders, supplier invoices and goods received
notes from inbound storage channels, extracts them with a document-AI
service, stores them in PostgreSQL and periodically reconciles every open
purchase order line against its invoices and receipts.

Run "docrecon serve" for the long-running poller and matching scheduler,
or use the individual commands for one-off work.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docrecon executed")

		fmt.Println("Welcome to docrecon!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

// Execute runs the CLI with the loaded configuration.
func Execute(c *config.Config) {
	log := logger.WithComponent("cmd")
	cfg = c

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
