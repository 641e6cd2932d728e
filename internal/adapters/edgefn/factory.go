package edgefn

import (
	"fmt"

	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"go.uber.org/zap"
)

// Factory creates new instances of EdgeClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for EdgeClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new EdgeClient. Without an API key to forward
// there is nothing the edge function could call, so enrichment is disabled
// and the pipeline runs on heuristics alone.
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	if f.cfg.GetOpenAI().APIKey == "" {
		f.logger.Warn("No API key configured, edge extraction disabled")
		return nil, nil
	}

	supabaseCfg := f.cfg.GetSupabase()
	edgeCfg := f.cfg.GetEdge()

	if supabaseCfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required for the edge extraction provider")
	}

	return NewEdgeClient(
		supabaseCfg.URL,
		edgeCfg.Path,
		supabaseCfg.ServiceRoleKey,
		f.cfg.GetOpenAI().APIKey,
		edgeCfg.Timeout,
		f.logger,
	), nil
}
