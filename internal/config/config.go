package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

type Config struct {
	// Database Configuration
	DatabaseURL string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	GoogleCredentialsJSON      string
	GoogleCredentialsFile      string

	// Analyzer Configuration
	Analyzer          string // documentai, vision, pdftext
	AnalyzerRatePerSec float64

	// Inbound channels and archive
	StorageBackend   string // gcs, local
	GCSSourceBucket  string
	GCSArchiveBucket string
	LocalInboxDir    string
	LocalArchiveDir  string

	// Scheduling
	MatchInterval time.Duration
	PollInterval  time.Duration

	// Retry around the document-AI call
	RetryAttempts     int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Matching policy used when a supplier has none configured
	DefaultThreeWay         bool
	DefaultQtyVariancePct   decimal.Decimal
	DefaultPriceVarianceAbs decimal.Decimal

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. Only values that are
// malformed fail here; required values are checked per command with the
// Require* methods.
func Load() (*Config, error) {
	config := &Config{
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleCredentialsJSON:      getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		Analyzer:                   strings.ToLower(getEnv("ANALYZER", "documentai")),
		StorageBackend:             strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		GCSSourceBucket:            getEnv("GCS_SOURCE_BUCKET", ""),
		GCSArchiveBucket:           getEnv("GCS_ARCHIVE_BUCKET", ""),
		LocalInboxDir:              getEnv("LOCAL_INBOX_DIR", "./inbox"),
		LocalArchiveDir:            getEnv("LOCAL_ARCHIVE_DIR", "./archive"),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Exceptions"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	if config.AnalyzerRatePerSec, err = getFloat("ANALYZER_RATE_PER_SEC", 2); err != nil {
		return nil, err
	}
	if config.MatchInterval, err = getDuration("MATCH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.PollInterval, err = getDuration("POLL_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if config.RetryAttempts, err = getInt("RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if config.RetryInitialDelay, err = getDuration("RETRY_INITIAL_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if config.RetryMaxDelay, err = getDuration("RETRY_MAX_DELAY", time.Minute); err != nil {
		return nil, err
	}
	if config.DefaultThreeWay, err = getBool("MATCH_DEFAULT_3WAY", false); err != nil {
		return nil, err
	}
	if config.DefaultQtyVariancePct, err = getDecimal("MATCH_DEFAULT_QTY_VARIANCE_PCT", "5"); err != nil {
		return nil, err
	}
	if config.DefaultPriceVarianceAbs, err = getDecimal("MATCH_DEFAULT_PRICE_VARIANCE", "0.50"); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Analyzer {
	case "documentai", "vision", "pdftext":
	default:
		return fmt.Errorf("ANALYZER must be documentai, vision or pdftext, got %q", c.Analyzer)
	}
	switch c.StorageBackend {
	case "gcs", "local":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be gcs or local, got %q", c.StorageBackend)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}
	if c.AnalyzerRatePerSec <= 0 {
		return fmt.Errorf("ANALYZER_RATE_PER_SEC must be positive")
	}
	if c.MatchInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("MATCH_INTERVAL and POLL_INTERVAL must be positive")
	}
	if c.DefaultQtyVariancePct.IsNegative() || c.DefaultPriceVarianceAbs.IsNegative() {
		return fmt.Errorf("default matching variances must not be negative")
	}
	return nil
}

// RequireDatabase checks the settings needed by any command touching PostgreSQL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// RequireAnalyzer checks the settings of the selected document analyzer.
func (c *Config) RequireAnalyzer() error {
	if c.Analyzer != "documentai" {
		return nil
	}
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required")
	}
	return nil
}

// RequireStorage checks the settings of the selected storage backend.
func (c *Config) RequireStorage() error {
	if c.StorageBackend == "gcs" {
		if c.GCSSourceBucket == "" {
			return fmt.Errorf("GCS_SOURCE_BUCKET is required")
		}
		if c.GCSArchiveBucket == "" {
			return fmt.Errorf("GCS_ARCHIVE_BUCKET is required")
		}
		return nil
	}
	if c.LocalInboxDir == "" || c.LocalArchiveDir == "" {
		return fmt.Errorf("LOCAL_INBOX_DIR and LOCAL_ARCHIVE_DIR are required")
	}
	return nil
}

func (c *Config) RequireSheets() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	return nil
}

// DefaultPolicy returns the matching policy applied to suppliers without one.
func (c *Config) DefaultPolicy() models.MatchingPolicy {
	return models.MatchingPolicy{
		Is3WayMatching:        c.DefaultThreeWay,
		QuantityVariancePct:   c.DefaultQtyVariancePct,
		PriceVarianceAbsolute: c.DefaultPriceVarianceAbs,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return v, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	raw := getEnv(key, defaultValue)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	return v, nil
}
