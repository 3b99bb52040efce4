// Package analyzertest provides PDF fixtures and a scripted Analyzer for tests.
package analyzertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"docrecon/pkg/models"
)

// MinimalPDF builds a well-formed single page PDF whose content stream
// prints lines in Helvetica. Cross-reference offsets are computed exactly.
func MinimalPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for _, l := range lines {
		l = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(l)
		fmt.Fprintf(&content, "(%s) Tj T*\n", l)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// Analyzer replays scripted results. Each call pops the next entry of Errors
// (nil entries succeed); once Errors is exhausted every call returns Result.
type Analyzer struct {
	mu     sync.Mutex
	Result *models.AnalyzeResult
	Errors []error
	Calls  int
}

func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) (*models.AnalyzeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Calls++
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	if len(a.Errors) > 0 {
		err := a.Errors[0]
		a.Errors = a.Errors[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.Result, nil
}

// CallCount returns how many times Analyze was invoked.
func (a *Analyzer) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Calls
}
