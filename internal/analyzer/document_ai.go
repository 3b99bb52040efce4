package analyzer

import (
	"context"
	"fmt"
	"io"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// lineItemColumns is the header row of the synthetic table built from
// line_item entities, in the order the extraction strategies expect.
var lineItemColumns = []string{"item code", "description", "qty", "unit price", "amount"}

var lineItemProperty = map[string]int{
	"line_item/product_code": 0,
	"line_item/description":  1,
	"line_item/quantity":     2,
	"line_item/unit_price":   3,
	"line_item/amount":       4,
}

// DocumentAIAnalyzer implements Analyzer using Google Document AI.
type DocumentAIAnalyzer struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIAnalyzer creates a Document AI client for the configured
// processor, using the regional endpoint for non-"us" locations.
func NewDocumentAIAnalyzer(ctx context.Context, config DocumentAIConfig) (*DocumentAIAnalyzer, error) {
	const op = "NewDocumentAIAnalyzer"

	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if err := config.validate(); err != nil {
		return nil, WrapAnalysisError(op, err, "")
	}

	clientOptions := config.Credentials.ClientOptions()
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if config.Credentials == (Credentials{}) {
			return nil, WrapAnalysisError(op, ErrMissingCredentials, err.Error())
		}
		return nil, WrapAnalysisError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIAnalyzer{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Analyze sends the PDF to the processor and converts the returned document.
func (a *DocumentAIAnalyzer) Analyze(ctx context.Context, r io.Reader) (*models.AnalyzeResult, error) {
	const op = "Analyze"

	pdfBytes, err := readPDF(op, r)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: a.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdfBytes,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := a.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, classifyRPCError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, WrapAnalysisError(op, ErrProcessingFailed, "no document in response")
	}

	result := ConvertDocument(resp.GetDocument())
	if strings.TrimSpace(result.FullText) == "" {
		return nil, WrapAnalysisError(op, ErrEmptyDocument, "")
	}

	a.log.Debug().
		Int("pages", result.PageCount).
		Int("fields", len(result.Fields)).
		Int("tables", len(result.Tables)).
		Msg("Document AI analysis completed")

	return result, nil
}

// Close closes the underlying Document AI client.
func (a *DocumentAIAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// ConvertDocument flattens a Document AI response: entities and form fields
// become named fields (highest confidence wins per key), page tables become
// tables with header rows first, and line_item entities become one extra
// table headed by lineItemColumns.
func ConvertDocument(doc *documentaipb.Document) *models.AnalyzeResult {
	text := []rune(doc.GetText())
	result := &models.AnalyzeResult{
		FullText:  doc.GetText(),
		Fields:    make(map[string]models.FieldValue),
		PageCount: len(doc.GetPages()),
	}

	var lineItems [][]string
	for _, entity := range doc.GetEntities() {
		if entity.GetType() == "line_item" {
			lineItems = append(lineItems, lineItemRow(entity))
			continue
		}
		putField(result.Fields, entity.GetType(), entity.GetMentionText(), entity.GetConfidence())
	}

	for _, page := range doc.GetPages() {
		for _, ff := range page.GetFormFields() {
			name := normalizeFieldName(anchorText(text, ff.GetFieldName()))
			if name == "" {
				continue
			}
			putField(result.Fields, name, anchorText(text, ff.GetFieldValue()), ff.GetFieldValue().GetConfidence())
		}

		for _, table := range page.GetTables() {
			var t models.Table
			row := 0
			for _, r := range append(append([]*documentaipb.Document_Page_Table_TableRow{}, table.GetHeaderRows()...), table.GetBodyRows()...) {
				col := 0
				for _, cell := range r.GetCells() {
					t.Cells = append(t.Cells, models.TableCell{
						RowIndex:    row,
						ColumnIndex: col,
						Content:     anchorText(text, cell.GetLayout()),
					})
					span := int(cell.GetColSpan())
					if span < 1 {
						span = 1
					}
					col += span
				}
				row++
			}
			if len(t.Cells) > 0 {
				result.Tables = append(result.Tables, t)
			}
		}
	}

	if len(lineItems) > 0 {
		result.Tables = append(result.Tables, rowsToTable(append([][]string{lineItemColumns}, lineItems...)))
	}

	return result
}

func lineItemRow(entity *documentaipb.Document_Entity) []string {
	row := make([]string, len(lineItemColumns))
	for _, prop := range entity.GetProperties() {
		if idx, ok := lineItemProperty[prop.GetType()]; ok {
			row[idx] = strings.TrimSpace(prop.GetMentionText())
		}
	}
	return row
}

func rowsToTable(rows [][]string) models.Table {
	var t models.Table
	for r, row := range rows {
		for c, content := range row {
			t.Cells = append(t.Cells, models.TableCell{RowIndex: r, ColumnIndex: c, Content: content})
		}
	}
	return t
}

func putField(fields map[string]models.FieldValue, key, value string, confidence float32) {
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if existing, ok := fields[key]; ok && existing.Confidence >= confidence {
		return
	}
	fields[key] = models.FieldValue{Content: value, Confidence: confidence}
}

// normalizeFieldName turns a printed form label ("PO No.:") into a field key ("po no").
func normalizeFieldName(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimRight(label, ":.# ")
	return strings.Join(strings.Fields(label), " ")
}

// anchorText resolves a layout's text anchor against the document text.
// Segment indexes count characters, not bytes.
func anchorText(text []rune, layout *documentaipb.Document_Page_Layout) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(string(text[start:end]))
	}
	return strings.TrimSpace(b.String())
}
