// Package extract turns uploaded slide decks into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	pdfMIME   = "application/pdf"
	sniffSize = 3072
)

// PDFExtractor implements domain.TextExtractor for PDF documents.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

var _ domain.TextExtractor = (*PDFExtractor)(nil)

// ExtractBytes is Extract over an in-memory document.
func (e *PDFExtractor) ExtractBytes(ctx context.Context, doc []byte) (string, error) {
	return e.Extract(ctx, bytes.NewReader(doc), int64(len(doc)))
}

// Extract returns the plain text of every page, in page order.
// Anything that is not a readable PDF with at least some text fails with UNSUPPORTED_FORMAT.
func (e *PDFExtractor) Extract(ctx context.Context, doc io.ReaderAt, size int64) (text string, err error) {
	if size <= 0 {
		return "", domain.NewUnsupportedFormatError("document is empty", nil)
	}

	head := make([]byte, min(size, sniffSize))
	n, err := doc.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", domain.NewUnsupportedFormatError("failed to read document", err)
	}
	detected := mimetype.Detect(head[:n])
	if !detected.Is(pdfMIME) {
		return "", domain.NewUnsupportedFormatError(fmt.Sprintf("unsupported document type %s", detected.String()), nil).
			WithContext("detected_type", detected.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.NewUnsupportedFormatError("malformed PDF document", fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(doc, size)
	if err != nil {
		return "", domain.NewUnsupportedFormatError("malformed PDF document", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.NewUnsupportedFormatError("failed to extract text from PDF", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", domain.NewUnsupportedFormatError("failed to extract text from PDF", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", domain.NewUnsupportedFormatError("document contains no extractable text", nil)
	}

	logger.Get().Debug("Extracted document text",
		zap.Int("pages", reader.NumPage()),
		zap.Int("chars", len([]rune(text))),
	)
	return text, nil
}
