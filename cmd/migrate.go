package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrecon/internal/logger"
	"docrecon/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `Apply the embedded schema to DATABASE_URL. Safe to run repeatedly.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().IntP("timeout", "t", 60, "Timeout in seconds")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}

	fmt.Println("Schema is up to date")
	return nil
}
