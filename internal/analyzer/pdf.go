package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// MaxDocumentSizeBytes is the maximum document size for synchronous processing (20MB)
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// ValidatePDF checks the magic header and size ceiling, then parses the
// cross-reference structure. It returns the page count.
func ValidatePDF(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty file", ErrInvalidPDF)
	}
	if len(data) > MaxDocumentSizeBytes {
		return 0, fmt.Errorf("%w: file size %d bytes", ErrDocumentTooLarge, len(data))
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return 0, fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}

	r, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	n := r.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return n, nil
}

// openPDF parses data, converting parser panics on truncated input into ErrInvalidPDF.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return r, nil
}

// TextAnalyzer reads the embedded text layer of a PDF without calling any
// remote service. Scanned documents without a text layer yield ErrEmptyDocument.
// It produces FullText and PageCount only.
type TextAnalyzer struct {
	log zerolog.Logger
}

func NewTextAnalyzer() *TextAnalyzer {
	return &TextAnalyzer{log: logger.WithComponent("pdf-text")}
}

func (a *TextAnalyzer) Analyze(ctx context.Context, r io.Reader) (*models.AnalyzeResult, error) {
	const op = "TextAnalyze"

	data, err := readPDF(op, r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapAnalysisError(op, err, "")
	}

	reader, err := openPDF(data)
	if err != nil {
		return nil, WrapAnalysisError(op, err, "")
	}

	var text strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, WrapAnalysisError(op, ErrInvalidPDF, fmt.Sprintf("page %d: %v", i, err))
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			text.WriteString(strings.Join(words, " "))
			text.WriteString("\n")
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, WrapAnalysisError(op, ErrEmptyDocument, "no text layer")
	}

	a.log.Debug().Int("pages", pages).Msg("Read PDF text layer")

	return &models.AnalyzeResult{
		FullText:  text.String(),
		Fields:    map[string]models.FieldValue{},
		PageCount: pages,
	}, nil
}
