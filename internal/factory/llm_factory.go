package factory

import (
	"fmt"

	"github.com/kestrelpm/invoice-ingest/internal/adapters/bedrock"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/edgefn"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/gemini"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/openai"
	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/kestrelpm/invoice-ingest/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates LLM extraction clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration. The
// "none" provider returns nil, which runs the pipeline on heuristics alone.
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "edge":
		factory := edgefn.NewFactory(f.cfg, f.logger)
		return factory.CreateLLMClient()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger)
		return factory.CreateLLMClient()
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		factory := gemini.NewFactory(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			geminiCfg.MaxBodySize,
			f.logger,
		)
		return factory.CreateLLMClient()
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateLLMClient()
	case "none":
		f.logger.Warn("LLM enrichment disabled, running on heuristics only")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
