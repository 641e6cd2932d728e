package factory

import (
	"fmt"

	"github.com/kestrelpm/invoice-ingest/internal/adapters/textextract"
	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"go.uber.org/zap"
)

// TextExtractorFactory creates document text extractors
type TextExtractorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextExtractorFactory creates a new text extractor factory
func NewTextExtractorFactory(cfg *config.Config, logger *zap.Logger) *TextExtractorFactory {
	return &TextExtractorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextExtractor creates a text extractor based on the configuration
func (f *TextExtractorFactory) CreateTextExtractor() (core.TextExtractor, error) {
	engine := f.cfg.GetString("extract.engine")

	switch engine {
	case "pdfcpu":
		return textextract.NewDocumentExtractor(f.logger), nil
	case "none":
		return textextract.NewNoopExtractor(), nil
	default:
		return nil, fmt.Errorf("unsupported text extraction engine: %s", engine)
	}
}
