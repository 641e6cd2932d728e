package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/adapters/dedup"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/postgres"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/storage"
	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/kestrelpm/invoice-ingest/internal/factory"
	"github.com/kestrelpm/invoice-ingest/internal/logging"
	"github.com/kestrelpm/invoice-ingest/internal/ports"
	"github.com/kestrelpm/invoice-ingest/internal/utils"
	"github.com/kestrelpm/invoice-ingest/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextExtractorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewReceiverFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register text extractor
	if err := container.Provide(func(f *factory.TextExtractorFactory) (core.TextExtractor, error) {
		return f.CreateTextExtractor()
	}); err != nil {
		return nil, err
	}

	// Register vendor cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.VendorCache, error) {
		return f.CreateVendorCache()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register blob store and uploader
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.BlobStore {
		supabaseCfg := cfg.GetSupabase()
		return storage.NewSupabaseStore(supabaseCfg.URL, supabaseCfg.ServiceRoleKey, supabaseCfg.Bucket, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, store core.BlobStore, logger *zap.Logger) *core.Uploader {
		supabaseCfg := cfg.GetSupabase()
		return core.NewUploader(store, logger, supabaseCfg.SignedURLTTL, supabaseCfg.PublicBucket, 30*time.Second)
	}); err != nil {
		return nil, err
	}

	// Register persistence. Without a DSN the service keeps invoices in
	// memory, which suits local development.
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.InvoiceStore, core.LogStore, error) {
		dsn := cfg.GetString("database.dsn")
		if dsn == "" {
			logger.Warn("No database DSN configured, using in-memory stores")
			return postgres.NewMemoryInvoiceStore(), postgres.NewMemoryLogStore(), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		invoices, err := postgres.NewInvoiceStore(ctx, pool, logger)
		if err != nil {
			return nil, nil, err
		}
		logs, err := postgres.NewLogStore(ctx, pool, logger)
		if err != nil {
			return nil, nil, err
		}
		return invoices, logs, nil
	}); err != nil {
		return nil, err
	}

	// Register heuristic field extractor
	if err := container.Provide(core.NewFieldExtractor); err != nil {
		return nil, err
	}

	// Register ingestion service with transport policies attached
	if err := container.Provide(buildService); err != nil {
		return nil, err
	}

	// Register receivers
	if err := container.Provide(func(f *factory.ReceiverFactory) ([]ports.Receiver, error) {
		return f.CreateReceivers()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

type serviceParams struct {
	dig.In

	Cfg          *config.Config
	Uploader     *core.Uploader
	TextExtract  core.TextExtractor
	LLM          core.LLMClient `optional:"true"`
	Fields       *core.FieldExtractor
	Invoices     core.InvoiceStore
	Logs         core.LogStore
	Cache        core.VendorCache
	CacheEnabled bool
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// buildService assembles the pipeline service and attaches the optional
// sender allowlist and dedup filter.
func buildService(p serviceParams) (*core.IngestService, error) {
	svc := core.NewIngestService(
		p.Uploader,
		p.TextExtract,
		p.LLM,
		p.Fields,
		p.Invoices,
		p.Logs,
		p.Cache,
		p.CacheEnabled,
		p.CacheTTL,
		p.Logger,
	)

	if domains := p.Cfg.GetStringSlice("senders.allowed_domains"); len(domains) > 0 {
		svc.SetSenderPolicy(whitelist.NewChecker(domains, p.Logger))
	}

	if p.Cfg.GetBool("dedup.enabled") {
		opt, err := redis.ParseURL(p.Cfg.GetString("dedup.redis_url"))
		if err != nil {
			return nil, err
		}
		ttl, err := p.Cfg.GetDuration("dedup.ttl")
		if err != nil {
			ttl = dedup.DefaultTTL
		}
		svc.SetDedupFilter(dedup.NewFilter(redis.NewClient(opt), ttl))
	}

	return svc, nil
}
