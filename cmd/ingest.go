package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrecon/internal/ingest"
	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [channel] [file]",
	Short: "Ingest inbound documents from the storage channels",
	Long: `Ingest one file, or every file currently waiting in the inbound channels.

Channels: purchaseorder, invoice, grndata

Each file is analyzed, extracted and stored. Stored files are archived under
their organisation, duplicates under "duplicate" and unusable files under
"invalid". Files that fail for transient reasons stay in place.

Environment Variables:
  DATABASE_URL       - PostgreSQL connection string
  ANALYZER           - documentai, vision or pdftext (default: documentai)
  STORAGE_BACKEND    - gcs or local (default: local)
  GCS_SOURCE_BUCKET  - Inbound bucket (gcs backend)
  GCS_ARCHIVE_BUCKET - Archive bucket (gcs backend)
  LOCAL_INBOX_DIR    - Inbound directory (local backend)
  LOCAL_ARCHIVE_DIR  - Archive directory (local backend)`,
	Example: `  docrecon ingest invoice INV-1.pdf
  docrecon ingest --all`,
	Args: cobra.MaximumNArgs(2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("all", false, "Ingest every file waiting in every channel")
	ingestCmd.Flags().IntP("timeout", "t", 600, "Processing timeout in seconds")
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ingest-cmd")

	all, _ := cmd.Flags().GetBool("all")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if !all && len(args) != 2 {
		return fmt.Errorf("expected <channel> <file>, or --all")
	}

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	p, err := createPipeline(ctx, log)
	if err != nil {
		return err
	}
	defer p.close()

	if all {
		poller := ingest.NewPoller(p.ingestor, p.bucket, cfg.PollInterval)
		report := poller.PollOnce(ctx)

		fmt.Printf("Stored: %d, duplicates: %d, invalid: %d, failed: %d\n",
			report.Stored, report.Duplicates, report.Invalid, report.Failed)
		if report.Failed > 0 {
			return fmt.Errorf("%d file(s) failed and were left in place", report.Failed)
		}
		return nil
	}

	channel, err := models.ParseChannel(args[0])
	if err != nil {
		return err
	}

	out, err := p.ingestor.Process(ctx, channel, args[1])
	if err != nil {
		log.Error().
			Err(err).
			Str("channel", string(channel)).
			Str("file", args[1]).
			Msg("Ingestion failed")
		return err
	}

	printOutcome(out)
	return nil
}

func printOutcome(out ingest.Outcome) {
	fmt.Printf("File:     %s/%s\n", out.Channel, out.FileName)
	fmt.Printf("Status:   %s\n", out.Status)
	if out.ReasonCode != "" {
		fmt.Printf("Reason:   %s\n", out.ReasonCode)
	}
	if out.Number != "" {
		fmt.Printf("Document: %s %s (id %d)\n", out.Org, out.Number, out.DocumentID)
	}
	fmt.Printf("Archive:  %s\n", out.ArchiveURI)
}
