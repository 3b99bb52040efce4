package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"docrecon/internal/analyzer"
	"docrecon/internal/extraction"
	"docrecon/internal/ingest"
	"docrecon/internal/storage"
	"docrecon/internal/store"
)

// createContext returns a context cancelled on SIGINT or SIGTERM. A positive
// timeoutSecs also bounds it in time.
func createContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// openRepository connects to PostgreSQL. The returned func closes the pool.
func openRepository(ctx context.Context) (*store.Repository, func(), error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store.NewRepository(pool), pool.Close, nil
}

func credentials() analyzer.Credentials {
	return analyzer.Credentials{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	}
}

// createAnalyzer builds the configured analyzer behind the rate limiter.
func createAnalyzer(ctx context.Context, log zerolog.Logger) (analyzer.Analyzer, func(), error) {
	if err := cfg.RequireAnalyzer(); err != nil {
		return nil, nil, err
	}

	var (
		a       analyzer.Analyzer
		closeFn = func() {}
	)

	switch cfg.Analyzer {
	case "vision":
		v, err := analyzer.NewVisionAnalyzer(ctx, credentials())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vision analyzer: %w", err)
		}
		a = v
		closeFn = func() {
			if err := v.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close vision analyzer")
			}
		}
	case "pdftext":
		a = analyzer.NewTextAnalyzer()
	default:
		daConfig := analyzer.DefaultConfig()
		daConfig.ProjectID = cfg.GoogleCloudProject
		daConfig.Location = cfg.GoogleCloudLocation
		daConfig.ProcessorID = cfg.DocumentAIProcessorID
		daConfig.ProcessorVersion = cfg.DocumentAIProcessorVersion
		daConfig.Credentials = credentials()

		da, err := analyzer.NewDocumentAIAnalyzer(ctx, daConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create document AI analyzer: %w", err)
		}
		a = da
		closeFn = func() {
			if err := da.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close document AI analyzer")
			}
		}
	}

	log.Debug().
		Str("analyzer", cfg.Analyzer).
		Float64("rate_per_sec", cfg.AnalyzerRatePerSec).
		Msg("Analyzer created")

	return analyzer.RateLimited(a, cfg.AnalyzerRatePerSec, 1), closeFn, nil
}

// createBucket opens the configured storage backend.
func createBucket(ctx context.Context, log zerolog.Logger) (storage.Bucket, func(), error) {
	if err := cfg.RequireStorage(); err != nil {
		return nil, nil, err
	}

	if cfg.StorageBackend == "gcs" {
		b, err := storage.NewGCSBucket(ctx, cfg.GCSSourceBucket, cfg.GCSArchiveBucket, credentials().ClientOptions()...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open GCS buckets: %w", err)
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close storage client")
			}
		}, nil
	}

	return storage.NewLocalBucket(cfg.LocalInboxDir, cfg.LocalArchiveDir), func() {}, nil
}

func retryPolicy() ingest.RetryPolicy {
	policy := ingest.DefaultRetryPolicy()
	policy.Attempts = cfg.RetryAttempts
	policy.Initial = cfg.RetryInitialDelay
	policy.Max = cfg.RetryMaxDelay
	return policy
}

// pipeline bundles everything the ingest side needs.
type pipeline struct {
	bucket   storage.Bucket
	ingestor *ingest.Ingestor
	repo     *store.Repository
	close    func()
}

func createPipeline(ctx context.Context, log zerolog.Logger) (*pipeline, error) {
	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return nil, err
	}

	a, closeAnalyzer, err := createAnalyzer(ctx, log)
	if err != nil {
		closeRepo()
		return nil, err
	}

	bucket, closeBucket, err := createBucket(ctx, log)
	if err != nil {
		closeAnalyzer()
		closeRepo()
		return nil, err
	}

	return &pipeline{
		bucket:   bucket,
		ingestor: ingest.NewIngestor(bucket, a, extraction.DefaultRegistry(), repo, retryPolicy()),
		repo:     repo,
		close: func() {
			closeBucket()
			closeAnalyzer()
			closeRepo()
		},
	}, nil
}
