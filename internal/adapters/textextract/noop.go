package textextract

import "context"

// NoopExtractor satisfies the TextExtractor port without doing any work.
// With it installed the pipeline always falls back to the email body.
type NoopExtractor struct{}

// NewNoopExtractor creates a no-op text extractor
func NewNoopExtractor() *NoopExtractor {
	return &NoopExtractor{}
}

// ExtractText always reports no extractable text
func (e *NoopExtractor) ExtractText(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	return "", nil
}
