package factory

import (
	"github.com/kestrelpm/invoice-ingest/internal/adapters/httpapi"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/smtpingest"
	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/kestrelpm/invoice-ingest/internal/ports"
	"go.uber.org/zap"
)

// ReceiverFactory creates inbound email receivers based on configuration
type ReceiverFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.IngestService
}

// NewReceiverFactory creates a new receiver factory
func NewReceiverFactory(cfg *config.Config, logger *zap.Logger, service *core.IngestService) *ReceiverFactory {
	return &ReceiverFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateReceivers creates the configured set of receivers. The webhook
// server is always present; the SMTP listener is opt-in.
func (f *ReceiverFactory) CreateReceivers() ([]ports.Receiver, error) {
	serverCfg := f.cfg.GetServer()

	receivers := []ports.Receiver{
		httpapi.NewServer(serverCfg.ListenAddress, serverCfg.MaxUploadBytes, f.service, f.logger),
	}

	if serverCfg.SMTPEnabled {
		receivers = append(receivers, smtpingest.NewReceiver(f.service, f.logger, serverCfg.SMTPListenAddress))
	}

	return receivers, nil
}
