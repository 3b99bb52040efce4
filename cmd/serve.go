package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docrecon/internal/ingest"
	"docrecon/internal/logger"
	"docrecon/internal/matching"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inbound poller and the matching scheduler",
	Long: `Poll every inbound channel every POLL_INTERVAL and run a reconciliation
cycle every MATCH_INTERVAL until interrupted with SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	ctx, cancel := createContext(0, log)
	defer cancel()

	p, err := createPipeline(ctx, log)
	if err != nil {
		return err
	}
	defer p.close()

	poller := ingest.NewPoller(p.ingestor, p.bucket, cfg.PollInterval)
	scheduler := matching.NewScheduler(matching.NewEngine(p.repo, cfg.DefaultPolicy()), cfg.MatchInterval)

	log.Info().
		Str("analyzer", cfg.Analyzer).
		Str("storage", cfg.StorageBackend).
		Dur("poll_interval", cfg.PollInterval).
		Dur("match_interval", cfg.MatchInterval).
		Msg("Starting services")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return err
	}

	log.Info().Msg("Services stopped")
	return nil
}
