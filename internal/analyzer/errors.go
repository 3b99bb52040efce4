package analyzer

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common analysis errors
var (
	// ErrInvalidPDF is returned when the provided data is not a valid PDF document
	// or cannot be parsed.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrDocumentTooLarge is returned when the PDF exceeds size limits.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrTooManyPages is returned when the document exceeds the synchronous page limit.
	ErrTooManyPages = errors.New("document exceeds maximum page count")

	// ErrProcessingFailed is returned when the remote analysis fails for an
	// unclassified reason.
	ErrProcessingFailed = errors.New("document analysis failed")

	// ErrQuotaExceeded is returned when API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("document analysis quota exceeded")

	// ErrUnavailable is returned when the remote service cannot be reached.
	ErrUnavailable = errors.New("document analysis service unavailable")

	// ErrInvalidCredentials is returned when Google Cloud credentials are invalid
	// or do not have the necessary permissions.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrMissingCredentials is returned when Google Cloud credentials are not configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrInvalidConfiguration is returned when the analyzer configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid analyzer configuration")

	// ErrProcessorNotFound is returned when the specified Document AI processor
	// cannot be found or accessed.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrEmptyDocument is returned when no text could be recovered from the document.
	ErrEmptyDocument = errors.New("document contains no text")
)

// AnalysisError wraps errors with the operation that produced them.
type AnalysisError struct {
	// Op is the operation that failed (e.g., "Analyze", "ValidatePDF").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *AnalysisError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("analyzer: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("analyzer: %s failed: %v", e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func (e *AnalysisError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapAnalysisError wraps an error as an AnalysisError if it isn't already one.
func WrapAnalysisError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return err // Already wrapped
	}

	return &AnalysisError{Op: op, Err: err, Details: details}
}

// IsTransient reports whether err is worth retrying: quota exhaustion,
// service unavailability and per-call deadlines. Malformed documents and
// configuration problems are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyRPCError maps a gRPC status returned by a Google client onto the
// package sentinels.
func classifyRPCError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return WrapAnalysisError(op, context.Canceled, "analysis was canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapAnalysisError(op, context.DeadlineExceeded, "analysis timeout")
	}

	switch status.Code(err) {
	case codes.ResourceExhausted:
		return WrapAnalysisError(op, ErrQuotaExceeded, err.Error())
	case codes.Unavailable, codes.Aborted, codes.Internal:
		return WrapAnalysisError(op, ErrUnavailable, err.Error())
	case codes.DeadlineExceeded:
		return WrapAnalysisError(op, context.DeadlineExceeded, err.Error())
	case codes.PermissionDenied, codes.Unauthenticated:
		return WrapAnalysisError(op, ErrInvalidCredentials, err.Error())
	case codes.NotFound:
		return WrapAnalysisError(op, ErrProcessorNotFound, err.Error())
	case codes.InvalidArgument:
		return WrapAnalysisError(op, ErrInvalidPDF, "document format not supported or corrupted")
	default:
		return WrapAnalysisError(op, ErrProcessingFailed, err.Error())
	}
}
