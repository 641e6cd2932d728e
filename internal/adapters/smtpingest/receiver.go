package smtpingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/mail"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

// Receiver accepts invoices over direct SMTP delivery, for deployments that
// point an MX record straight at this service instead of a webhook provider.
type Receiver struct {
	service    *core.IngestService
	logger     *zap.Logger
	listenAddr string
	server     *smtp.Server
}

// NewReceiver creates a new SMTP receiver
func NewReceiver(service *core.IngestService, logger *zap.Logger, listenAddr string) *Receiver {
	return &Receiver{
		service:    service,
		logger:     logger,
		listenAddr: listenAddr,
	}
}

// Start starts the SMTP listener
func (r *Receiver) Start() error {
	r.server = smtp.NewServer(&smtpBackend{receiver: r})

	r.server.Addr = r.listenAddr
	r.server.Domain = "localhost"
	r.server.ReadTimeout = 30 * time.Second
	r.server.WriteTimeout = 30 * time.Second
	r.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	r.server.MaxRecipients = 50
	r.server.AllowInsecureAuth = true

	r.logger.Info("SMTP receiver starting", zap.String("address", r.listenAddr))

	go func() {
		if err := r.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				r.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (r *Receiver) Stop() error {
	if r.server != nil {
		return r.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	receiver *Receiver
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		receiver:   b.receiver,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	receiver   *Receiver
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data, converting the raw message into the
// pipeline's normalized form and running ingestion synchronously so delivery
// status reflects the outcome.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.receiver.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.receiver.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:    554,
			Message: "unparseable message",
		}
	}

	email := emailFromMessage(msg, s.sender, s.recipients)

	requestID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	invoice, err := s.receiver.service.ProcessEmail(ctx, requestID, email)
	switch {
	case errors.Is(err, core.ErrSenderNotAllowed):
		return &smtp.SMTPError{
			Code:    550,
			Message: "sender not permitted",
		}
	case errors.Is(err, core.ErrDuplicateDelivery):
		// Accept so the sender does not keep retrying.
		return nil
	case err != nil:
		s.receiver.logger.Error("Failed to process email",
			zap.Error(err),
			zap.String("sender", s.sender),
			zap.String("request_id", requestID))
		return &smtp.SMTPError{
			Code:    451,
			Message: "temporary processing failure",
		}
	}

	s.receiver.logger.Info("Processed email",
		zap.String("from", email.From),
		zap.String("invoice_id", invoice.ID),
		zap.String("request_id", requestID))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
