package analyzer

import (
	"context"
	"fmt"
	"io"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// MaxPagesSync is the maximum number of pages Vision handles in one synchronous request
const MaxPagesSync = 5

// VisionAnalyzer implements Analyzer using Google Cloud Vision text detection.
// It recovers text only, so extraction falls back to labelled patterns.
type VisionAnalyzer struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

func NewVisionAnalyzer(ctx context.Context, creds Credentials) (*VisionAnalyzer, error) {
	const op = "NewVisionAnalyzer"

	client, err := vision.NewImageAnnotatorClient(ctx, creds.ClientOptions()...)
	if err != nil {
		if creds == (Credentials{}) {
			return nil, WrapAnalysisError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapAnalysisError(op, err, "failed to create Vision client")
	}

	return &VisionAnalyzer{
		client: client,
		log:    logger.WithComponent("vision"),
	}, nil
}

func (v *VisionAnalyzer) Analyze(ctx context.Context, r io.Reader) (*models.AnalyzeResult, error) {
	const op = "VisionAnalyze"

	pdfBytes, err := readPDF(op, r)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, classifyRPCError(op, err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, WrapAnalysisError(op, ErrProcessingFailed, "no response from Vision API")
	}

	fileResp := resp.GetResponses()[0]
	if fileResp.GetError() != nil {
		return nil, WrapAnalysisError(op, ErrProcessingFailed, fmt.Sprintf("Vision API error: %s", fileResp.GetError().GetMessage()))
	}

	result, err := visionResult(fileResp)
	if err != nil {
		return nil, WrapAnalysisError(op, err, "")
	}

	v.log.Debug().Int("pages", result.PageCount).Msg("Vision text detection completed")
	return result, nil
}

func visionResult(fileResp *visionpb.AnnotateFileResponse) (*models.AnalyzeResult, error) {
	pages := fileResp.GetResponses()
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(pages) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(pages))
	}

	var text strings.Builder
	for i, page := range pages {
		if page.GetError() != nil {
			return nil, fmt.Errorf("%w: page %d: %s", ErrProcessingFailed, i+1, page.GetError().GetMessage())
		}
		if page.GetFullTextAnnotation() == nil {
			continue
		}
		if i > 0 {
			text.WriteString("\n")
		}
		text.WriteString(page.GetFullTextAnnotation().GetText())
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	return &models.AnalyzeResult{
		FullText:  text.String(),
		Fields:    map[string]models.FieldValue{},
		PageCount: len(pages),
	}, nil
}

// Close closes the underlying Vision client.
func (v *VisionAnalyzer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
