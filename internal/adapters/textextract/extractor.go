package textextract

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DocumentExtractor implements the TextExtractor port by dispatching on
// document type. Only PDF extraction is wired today; Word documents are
// recognised but reported as unsupported so the pipeline falls back to the
// email body instead of failing.
type DocumentExtractor struct {
	logger *zap.Logger
}

// NewDocumentExtractor creates a new document text extractor
func NewDocumentExtractor(logger *zap.Logger) *DocumentExtractor {
	return &DocumentExtractor{logger: logger}
}

// ExtractText extracts plain text from an attachment's raw bytes
func (e *DocumentExtractor) ExtractText(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch detectKind(filename, contentType) {
	case kindPDF:
		text, err := extractPDFText(content)
		if err != nil {
			e.logger.Warn("PDF text extraction failed",
				zap.String("filename", filename),
				zap.Error(err))
			return "", err
		}
		return text, nil
	case kindWord:
		// TODO: wire a docx parser once one lands in the stack.
		return "Word document text extraction not implemented", nil
	default:
		e.logger.Debug("Unrecognized document type",
			zap.String("filename", filename),
			zap.String("content_type", contentType))
		return "", nil
	}
}

type documentKind int

const (
	kindUnknown documentKind = iota
	kindPDF
	kindWord
)

// detectKind classifies a document by extension, with the content type as a
// tie-breaker for extension-less attachments.
func detectKind(filename, contentType string) documentKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return kindPDF
	case ".docx", ".doc":
		return kindWord
	}
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return kindPDF
	}
	if strings.Contains(strings.ToLower(contentType), "word") {
		return kindWord
	}
	return kindUnknown
}
