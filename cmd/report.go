package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrecon/internal/logger"
	"docrecon/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export exception lines to Google Sheets",
	Long: `Append every purchase order line in Exception state to the configured
worksheet, creating it with a header row on first use.

Environment Variables:
  GOOGLE_SHEET_URL               - Target spreadsheet
  GOOGLE_SHEET_WORKSHEET         - Worksheet name (default: Exceptions)
  GOOGLE_APPLICATION_CREDENTIALS - Service account key file
  GOOGLE_CREDENTIALS             - Inline service account JSON`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("worksheet", "", "Worksheet name (overrides GOOGLE_SHEET_WORKSHEET)")
	reportCmd.Flags().IntP("timeout", "t", 120, "Timeout in seconds")
}

func runReport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report-cmd")

	worksheet, _ := cmd.Flags().GetString("worksheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}

	if err := cfg.RequireSheets(); err != nil {
		return err
	}

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	exporter, err := report.NewSheetsExporter(ctx, cfg.GoogleSheetURL, worksheet, report.Credentials{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}

	n, err := exporter.Export(ctx, repo)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d line(s) to %s\n", n, worksheet)
	return nil
}
