package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docrecon/internal/analyzer/analyzertest"
	"docrecon/pkg/models"
)

func TestValidatePDF(t *testing.T) {
	pages, err := ValidatePDF(analyzertest.MinimalPDF("Invoice", "Invoice No: INV-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidPDF},
		{"no header", []byte("hello world"), ErrInvalidPDF},
		{"truncated", []byte("%PDF-1.4\n1 0 obj\n<<"), ErrInvalidPDF},
		{"too large", append([]byte("%PDF"), make([]byte, MaxDocumentSizeBytes)...), ErrDocumentTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePDF(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"quota", classifyRPCError("Analyze", status.Error(codes.ResourceExhausted, "quota")), true},
		{"unavailable", classifyRPCError("Analyze", status.Error(codes.Unavailable, "down")), true},
		{"deadline", classifyRPCError("Analyze", context.DeadlineExceeded), true},
		{"grpc deadline", classifyRPCError("Analyze", status.Error(codes.DeadlineExceeded, "slow")), true},
		{"canceled", classifyRPCError("Analyze", context.Canceled), false},
		{"bad document", classifyRPCError("Analyze", status.Error(codes.InvalidArgument, "bad")), false},
		{"permission", classifyRPCError("Analyze", status.Error(codes.PermissionDenied, "no")), false},
		{"wrapped quota", fmt.Errorf("ingest: %w", WrapAnalysisError("Analyze", ErrQuotaExceeded, "")), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassifyRPCErrorKeepsSentinels(t *testing.T) {
	err := classifyRPCError("Analyze", status.Error(codes.NotFound, "processor"))
	assert.ErrorIs(t, err, ErrProcessorNotFound)

	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, "Analyze", analysisErr.Op)
}

func TestConvertDocument(t *testing.T) {
	text := "PO No: PO-100\nAcme Ltd\nDescription Qty\nWidget 10\n"
	at := func(s string) *documentaipb.Document_Page_Layout {
		start := bytes.Index([]byte(text), []byte(s))
		require.GreaterOrEqual(t, start, 0, s)
		return &documentaipb.Document_Page_Layout{
			Confidence: 0.9,
			TextAnchor: &documentaipb.Document_TextAnchor{
				TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
					{StartIndex: int64(start), EndIndex: int64(start + len(s))},
				},
			},
		}
	}
	cell := func(s string) *documentaipb.Document_Page_Table_TableCell {
		return &documentaipb.Document_Page_Table_TableCell{Layout: at(s)}
	}

	doc := &documentaipb.Document{
		Text: text,
		Entities: []*documentaipb.Document_Entity{
			{Type: "supplier_name", MentionText: "Acme", Confidence: 0.4},
			{Type: "supplier_name", MentionText: "Acme Ltd", Confidence: 0.95},
			{
				Type: "line_item",
				Properties: []*documentaipb.Document_Entity{
					{Type: "line_item/description", MentionText: "Widget"},
					{Type: "line_item/quantity", MentionText: "10"},
					{Type: "line_item/unit_price", MentionText: "2.50"},
				},
			},
		},
		Pages: []*documentaipb.Document_Page{
			{
				FormFields: []*documentaipb.Document_Page_FormField{
					{FieldName: at("PO No:"), FieldValue: at("PO-100")},
				},
				Tables: []*documentaipb.Document_Page_Table{
					{
						HeaderRows: []*documentaipb.Document_Page_Table_TableRow{
							{Cells: []*documentaipb.Document_Page_Table_TableCell{cell("Description"), cell("Qty")}},
						},
						BodyRows: []*documentaipb.Document_Page_Table_TableRow{
							{Cells: []*documentaipb.Document_Page_Table_TableCell{cell("Widget"), cell("10")}},
						},
					},
				},
			},
		},
	}

	result := ConvertDocument(doc)

	assert.Equal(t, text, result.FullText)
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, "Acme Ltd", result.Field("supplier_name"))
	assert.Equal(t, "PO-100", result.Field("po no"))

	require.Len(t, result.Tables, 2)
	assert.Equal(t, [][]string{{"Description", "Qty"}, {"Widget", "10"}}, result.Tables[0].Rows())

	items := result.Tables[1].Rows()
	require.Len(t, items, 2)
	assert.Equal(t, lineItemColumns, items[0])
	assert.Equal(t, []string{"", "Widget", "10", "2.50", ""}, items[1])
}

func TestRateLimitedHonoursContext(t *testing.T) {
	inner := &analyzertest.Analyzer{Result: &models.AnalyzeResult{FullText: "x"}}
	limited := RateLimited(inner, 0.001, 1)

	_, err := limited.Analyze(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Analyze(ctx, bytes.NewReader(nil))
	assert.Error(t, err)
	assert.Equal(t, 1, inner.CallCount())
}
