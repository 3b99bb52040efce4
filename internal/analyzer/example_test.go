package analyzer_test

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"docrecon/internal/analyzer"
	"docrecon/internal/analyzer/analyzertest"
)

// Example reads the embedded text layer of a PDF without any remote service.
func Example() {
	pdf := analyzertest.MinimalPDF("PURCHASE ORDER")

	result, err := analyzer.NewTextAnalyzer().Analyze(context.Background(), bytes.NewReader(pdf))
	if err != nil {
		log.Fatalf("Failed to analyze PDF: %v", err)
	}

	fmt.Printf("%d page(s):\n%s", result.PageCount, result.FullText)
}

// ExampleNewDocumentAIAnalyzer shows the Document AI setup used in production.
func ExampleNewDocumentAIAnalyzer() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	config := analyzer.DefaultConfig()
	config.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	config.ProcessorID = os.Getenv("DOCUMENT_AI_PROCESSOR_ID")
	config.Credentials = analyzer.Credentials{File: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")}

	da, err := analyzer.NewDocumentAIAnalyzer(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	defer da.Close()

	// At most two requests per second reach Document AI.
	a := analyzer.RateLimited(da, 2, 1)

	pdfFile, err := os.Open("sample_invoice.pdf")
	if err != nil {
		log.Fatalf("Failed to open PDF: %v", err)
	}
	defer pdfFile.Close()

	result, err := a.Analyze(ctx, pdfFile)
	if err != nil {
		log.Fatalf("Failed to analyze PDF: %v", err)
	}

	fmt.Printf("%d fields, %d tables\n", len(result.Fields), len(result.Tables))
}
