// Package analyzer sends inbound PDFs to a document-AI collaborator and
// returns the raw recognition result: full text, named fields and tables.
//
// Supported collaborators:
//   - Google Document AI (default): fields from entities and form fields,
//     tables from the layout parser.
//   - Google Cloud Vision: text-only DOCUMENT_TEXT_DETECTION, no fields or tables.
//   - TextAnalyzer: the embedded text layer of the PDF, read locally.
//
// Limits for synchronous processing:
//   - Maximum file size: 20MB
//   - Vision processes at most 5 pages per request
package analyzer

import (
	"context"
	"fmt"
	"io"
	"time"

	"google.golang.org/api/option"

	"docrecon/pkg/models"
)

// Analyzer turns a PDF into an AnalyzeResult.
type Analyzer interface {
	Analyze(ctx context.Context, pdf io.Reader) (*models.AnalyzeResult, error)
}

// Credentials selects how the Google clients authenticate. Inline JSON wins
// over a file; with neither, application default credentials are used.
type Credentials struct {
	JSON string
	File string
}

// ClientOptions returns the option set shared by every Google client.
func (c Credentials) ClientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}

// DocumentAIConfig holds configuration for Google Document AI processing.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	// Should match where your Document AI processor is created.
	Location string

	// ProcessorID is the Document AI processor ID.
	ProcessorID string

	// ProcessorVersion pins a processor version. Empty uses the default version.
	ProcessorVersion string

	// Timeout bounds a single ProcessDocument call. Default: 60 seconds.
	Timeout time.Duration

	Credentials Credentials
}

// DefaultConfig returns a DocumentAIConfig with sensible defaults.
func DefaultConfig() DocumentAIConfig {
	return DocumentAIConfig{
		Location: "us",
		Timeout:  60 * time.Second,
	}
}

// ProcessorName builds the fully qualified resource name of the processor.
func (c DocumentAIConfig) ProcessorName() string {
	if c.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.ProjectID, c.Location, c.ProcessorID)
}

func (c DocumentAIConfig) validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project ID is required", ErrInvalidConfiguration)
	}
	if c.ProcessorID == "" {
		return fmt.Errorf("%w: processor ID is required", ErrInvalidConfiguration)
	}
	return nil
}

// readPDF reads the whole document and runs the local structural checks
// shared by every analyzer.
func readPDF(op string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, WrapAnalysisError(op, err, "failed to read PDF data")
	}
	if _, err := ValidatePDF(data); err != nil {
		return nil, WrapAnalysisError(op, err, "")
	}
	return data, nil
}
