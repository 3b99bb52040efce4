// Package ingest moves one inbound file through analysis, extraction and
// the dedup gate, and archives it according to the outcome.
//
// Invalid and duplicate files are archived with an audit row and are not an
// error. A file that was stored but never archived is archived on the next
// delivery rather than counted as a duplicate. Transient analyzer failures that outlast the retry budget, storage
// failures and persistence failures are returned and leave the file in its
// channel so the next poll redelivers it.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"

	"docrecon/internal/analyzer"
	"docrecon/internal/extraction"
	"docrecon/internal/logger"
	"docrecon/internal/storage"
	"docrecon/internal/store"
	"docrecon/pkg/models"
)

// Repository is the document store the ingestor writes to.
type Repository interface {
	Upsert(ctx context.Context, doc *models.Document) (int64, error)
	SetArchiveURI(ctx context.Context, channel models.Channel, id int64, uri string) error
	UnarchivedDocument(ctx context.Context, channel models.Channel, org, number, fileName string) (int64, bool, error)
	RecordFileAudit(ctx context.Context, audit models.FileAudit) error
}

// Status is the terminal state of a processed file.
type Status string

const (
	StatusStored    Status = "stored"
	StatusDuplicate Status = "duplicate"
	StatusInvalid   Status = "invalid"
)

// Outcome describes what happened to one file.
type Outcome struct {
	Channel    models.Channel
	FileName   string
	Status     Status
	ReasonCode string // set for duplicate and invalid files
	DocumentID int64
	Org        string
	Number     string
	ArchiveURI string
}

// RetryPolicy bounds the retries around the analyzer call.
type RetryPolicy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultRetryPolicy makes three attempts, starting at 5 seconds and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		Initial:    5 * time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

type Ingestor struct {
	bucket   storage.Bucket
	analyzer analyzer.Analyzer
	registry *extraction.Registry
	repo     Repository
	retry    RetryPolicy
	now      func() time.Time
	log      zerolog.Logger
}

func NewIngestor(bucket storage.Bucket, a analyzer.Analyzer, registry *extraction.Registry, repo Repository, retry RetryPolicy) *Ingestor {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	if retry.Multiplier < 1 {
		retry.Multiplier = 2
	}
	return &Ingestor{
		bucket:   bucket,
		analyzer: a,
		registry: registry,
		repo:     repo,
		retry:    retry,
		now:      time.Now,
		log:      logger.WithComponent("ingest"),
	}
}

// Process ingests the file name waiting in channel.
func (i *Ingestor) Process(ctx context.Context, channel models.Channel, name string) (Outcome, error) {
	log := logger.WithDocument("ingest", string(channel), name)
	out := Outcome{Channel: channel, FileName: name}

	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return i.reject(ctx, log, out, models.ReasonNotPDF, nil)
	}

	data, err := i.read(ctx, channel, name)
	if err != nil {
		return out, err
	}

	if _, err := analyzer.ValidatePDF(data); err != nil {
		reason := models.ReasonCorruptPDF
		if !errors.Is(err, analyzer.ErrInvalidPDF) {
			reason = models.ReasonMalformed
		}
		return i.reject(ctx, log, out, reason, err)
	}

	result, err := i.analyze(ctx, log, data)
	if err != nil {
		if reason, ok := rejectionForAnalysis(err); ok {
			return i.reject(ctx, log, out, reason, err)
		}
		return out, fmt.Errorf("analyze %s/%s: %w", channel, name, err)
	}

	doc, err := i.registry.Extract(channel, name, result)
	if err != nil {
		return i.reject(ctx, log, out, rejectionForExtraction(err), err)
	}
	stampReceived(doc, i.now())
	out.Org, out.Number = doc.Org(), doc.Number()

	id, err := i.repo.Upsert(ctx, doc)
	if errors.Is(err, store.ErrDuplicate) {
		// The same file may have been stored on an earlier pass whose
		// archive step failed. Finish that pass instead.
		stored, unarchived, lookupErr := i.repo.UnarchivedDocument(ctx, channel, doc.Org(), doc.Number(), doc.FileName)
		if lookupErr != nil {
			return out, fmt.Errorf("check stored %s/%s: %w", channel, name, lookupErr)
		}
		if !unarchived {
			return i.duplicate(ctx, log, out)
		}
		log.Info().Int64("id", stored).Msg("Document already stored, completing archive")
		id, err = stored, nil
	}
	if err != nil {
		return out, fmt.Errorf("store %s/%s: %w", channel, name, err)
	}
	out.DocumentID = id

	uri, err := i.bucket.Archive(ctx, channel, name, doc.Org())
	if err != nil {
		return out, fmt.Errorf("archive %s/%s: %w", channel, name, err)
	}
	out.ArchiveURI = uri

	if err := i.repo.SetArchiveURI(ctx, channel, id, uri); err != nil {
		return out, fmt.Errorf("record archive location of %s/%s: %w", channel, name, err)
	}

	out.Status = StatusStored
	log.Info().
		Str("org", out.Org).
		Str("number", out.Number).
		Int64("id", id).
		Str("archive_uri", uri).
		Msg("Document ingested")
	return out, nil
}

func (i *Ingestor) read(ctx context.Context, channel models.Channel, name string) ([]byte, error) {
	rc, err := i.bucket.Open(ctx, channel, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", channel, name, err)
	}
	return data, nil
}

// analyze calls the analyzer, retrying transient failures with exponential
// backoff until the attempt budget is spent.
func (i *Ingestor) analyze(ctx context.Context, log zerolog.Logger, data []byte) (*models.AnalyzeResult, error) {
	bo := gax.Backoff{
		Initial:    i.retry.Initial,
		Max:        i.retry.Max,
		Multiplier: i.retry.Multiplier,
	}

	for attempt := 1; ; attempt++ {
		result, err := i.analyzer.Analyze(ctx, bytes.NewReader(data))
		if err == nil {
			return result, nil
		}
		if !analyzer.IsTransient(err) {
			return nil, err
		}
		if attempt >= i.retry.Attempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		delay := bo.Pause()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Transient analysis failure, retrying")

		if err := gax.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (i *Ingestor) reject(ctx context.Context, log zerolog.Logger, out Outcome, reason string, cause error) (Outcome, error) {
	uri, err := i.bucket.Archive(ctx, out.Channel, out.FileName, storage.LabelInvalid)
	if err != nil {
		return out, fmt.Errorf("archive invalid file %s/%s: %w", out.Channel, out.FileName, err)
	}
	out.Status = StatusInvalid
	out.ReasonCode = reason
	out.ArchiveURI = uri

	if err := i.audit(ctx, out); err != nil {
		return out, err
	}

	log.Warn().
		Err(cause).
		Str("reason", reason).
		Str("archive_uri", uri).
		Msg("File rejected")
	return out, nil
}

func (i *Ingestor) duplicate(ctx context.Context, log zerolog.Logger, out Outcome) (Outcome, error) {
	uri, err := i.bucket.Archive(ctx, out.Channel, out.FileName, storage.LabelDuplicate)
	if err != nil {
		return out, fmt.Errorf("archive duplicate %s/%s: %w", out.Channel, out.FileName, err)
	}
	out.Status = StatusDuplicate
	out.ReasonCode = models.ReasonDuplicate
	out.ArchiveURI = uri

	if err := i.audit(ctx, out); err != nil {
		return out, err
	}

	log.Info().
		Str("org", out.Org).
		Str("number", out.Number).
		Str("archive_uri", uri).
		Msg("Duplicate document archived")
	return out, nil
}

func (i *Ingestor) audit(ctx context.Context, out Outcome) error {
	err := i.repo.RecordFileAudit(ctx, models.FileAudit{
		FileName:   out.FileName,
		Channel:    out.Channel,
		ReasonCode: out.ReasonCode,
		ArchiveURI: out.ArchiveURI,
		CreatedAt:  i.now(),
	})
	if err != nil {
		return fmt.Errorf("audit %s/%s: %w", out.Channel, out.FileName, err)
	}
	return nil
}

// rejectionForAnalysis reports whether an analyzer error means the document
// itself is unusable, and the audit reason to record.
func rejectionForAnalysis(err error) (string, bool) {
	switch {
	case errors.Is(err, analyzer.ErrInvalidPDF):
		return models.ReasonCorruptPDF, true
	case errors.Is(err, analyzer.ErrDocumentTooLarge),
		errors.Is(err, analyzer.ErrTooManyPages),
		errors.Is(err, analyzer.ErrEmptyDocument):
		return models.ReasonMalformed, true
	default:
		return "", false
	}
}

func rejectionForExtraction(err error) string {
	switch {
	case errors.Is(err, extraction.ErrInvalidFileType):
		return models.ReasonInvalidFileType
	case errors.Is(err, extraction.ErrUnresolvableOrg):
		return models.ReasonUnresolvedOrg
	default:
		return models.ReasonMalformed
	}
}

func stampReceived(doc *models.Document, now time.Time) {
	switch {
	case doc.Invoice != nil:
		doc.Invoice.ReceivedAt = now
		doc.Invoice.FileName = doc.FileName
	case doc.PurchaseOrder != nil:
		doc.PurchaseOrder.ReceivedAt = now
		doc.PurchaseOrder.FileName = doc.FileName
	case doc.GRN != nil:
		doc.GRN.ReceivedAt = now
		doc.GRN.FileName = doc.FileName
	}
}
