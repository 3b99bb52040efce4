package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrecon/internal/logger"
	"docrecon/internal/matching"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run one reconciliation cycle over open purchase orders",
	Long: `Reconcile every purchase order that is not yet fully matched against its
invoices and, for suppliers on 3-way matching, its goods received notes.

Suppliers without a configured policy use MATCH_DEFAULT_3WAY,
MATCH_DEFAULT_QTY_VARIANCE_PCT and MATCH_DEFAULT_PRICE_VARIANCE.`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().IntP("timeout", "t", 300, "Cycle timeout in seconds")
}

func runMatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("match-cmd")

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	engine := matching.NewEngine(repo, cfg.DefaultPolicy())

	report, err := engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("matching cycle failed: %w", err)
	}

	fmt.Printf("Run:               %s\n", report.RunID)
	fmt.Printf("Purchase orders:   %d\n", report.Candidates)
	fmt.Printf("Matched:           %d\n", report.Matched)
	fmt.Printf("Partially matched: %d\n", report.PartiallyMatched)
	fmt.Printf("Exceptions:        %d\n", report.Exceptions)
	fmt.Printf("Failed:            %d\n", report.Failed)
	fmt.Printf("Duration:          %s\n", report.Duration)

	if report.Failed > 0 {
		return fmt.Errorf("%d purchase order(s) could not be evaluated", report.Failed)
	}
	return nil
}
