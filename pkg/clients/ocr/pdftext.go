package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor reads the embedded text layer of digitally produced PDF logs. Scanned
// PDFs without a text layer come back empty and should go through an image backend instead.
type PDFTextExtractor struct{}

// NewPDFTextExtractor returns a PDF text layer reader.
func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

// ExtractText implements Extractor.
func (PDFTextExtractor) ExtractText(ctx context.Context, data []byte, _ string) (string, error) {
	const op = "pdf text"

	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return "", &FormatError{Op: op, Detail: "missing PDF header"}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &FormatError{Op: op, Detail: fmt.Sprintf("open pdf: %v", err)}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &FormatError{Op: op, Detail: fmt.Sprintf("read text layer: %v", err)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

var _ Extractor = PDFTextExtractor{}
