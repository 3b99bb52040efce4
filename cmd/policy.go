package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage supplier matching policies",
}

var policySetCmd = &cobra.Command{
	Use:   "set <supplier>",
	Short: "Set the matching policy of a supplier",
	Long: `Set 2-way or 3-way matching and the variance tolerances for a supplier.
The supplier is created if it does not exist yet.`,
	Example: `  docrecon policy set "Acme Supplies" --three-way --qty-pct 2.5 --price-abs 0.10`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPolicySet,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policySetCmd)

	policySetCmd.Flags().Bool("three-way", false, "Require goods received notes (3-way matching)")
	policySetCmd.Flags().String("qty-pct", "5", "Quantity variance tolerance in percent")
	policySetCmd.Flags().String("price-abs", "0.50", "Absolute unit price variance tolerance")
	policySetCmd.Flags().IntP("timeout", "t", 30, "Timeout in seconds")
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("policy")

	threeWay, _ := cmd.Flags().GetBool("three-way")
	qtyRaw, _ := cmd.Flags().GetString("qty-pct")
	priceRaw, _ := cmd.Flags().GetString("price-abs")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	qty, err := decimal.NewFromString(qtyRaw)
	if err != nil {
		return fmt.Errorf("invalid --qty-pct %q: %w", qtyRaw, err)
	}
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return fmt.Errorf("invalid --price-abs %q: %w", priceRaw, err)
	}

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	policy := models.MatchingPolicy{
		Is3WayMatching:        threeWay,
		QuantityVariancePct:   qty,
		PriceVarianceAbsolute: price,
	}
	if err := repo.SetSupplierPolicy(ctx, args[0], policy); err != nil {
		return err
	}

	mode := "2-way"
	if threeWay {
		mode = "3-way"
	}
	fmt.Printf("%s: %s matching, quantity ±%s%%, price ±%s\n", args[0], mode, qty, price)
	return nil
}
