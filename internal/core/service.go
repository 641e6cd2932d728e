package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/utils"
)

// ErrEmptyPayload is returned when a webhook request carries no email data at
// all. Handlers translate it to a 400 response.
var ErrEmptyPayload = errors.New("Empty email data")

// ErrSenderNotAllowed is returned when the sender's domain is outside the
// configured allowlist.
var ErrSenderNotAllowed = errors.New("sender not allowed")

// ErrDuplicateDelivery is returned when an email with an already-seen
// tracking number arrives again. The original delivery produced the invoice.
var ErrDuplicateDelivery = errors.New("duplicate delivery")

// pipelineFunction names this subsystem in durable log entries.
const pipelineFunction = "invoice-receiver"

// IngestService is the pipeline orchestrator. It sequences normalization,
// attachment validation and upload, content extraction, enrichment, heuristic
// fallback and persistence for one inbound request, logging every transition.
type IngestService struct {
	uploader     *Uploader
	textExtract  TextExtractor
	llm          LLMClient
	fields       *FieldExtractor
	invoices     InvoiceStore
	logs         LogStore
	cache        VendorCache
	cacheEnabled bool
	cacheTTL     time.Duration
	senders      SenderPolicy
	dedup        DedupFilter
	logger       *zap.Logger
	llmTimeout   time.Duration
	ocrTimeout   time.Duration
}

// NewIngestService creates a new ingestion pipeline service
func NewIngestService(
	uploader *Uploader,
	textExtract TextExtractor,
	llm LLMClient,
	fields *FieldExtractor,
	invoices InvoiceStore,
	logs LogStore,
	cache VendorCache,
	cacheEnabled bool,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		uploader:     uploader,
		textExtract:  textExtract,
		llm:          llm,
		fields:       fields,
		invoices:     invoices,
		logs:         logs,
		cache:        cache,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		logger:       logger,
		llmTimeout:   60 * time.Second,
		ocrTimeout:   60 * time.Second,
	}
}

// SetSenderPolicy installs an inbound sender allowlist. A nil policy
// accepts everything.
func (s *IngestService) SetSenderPolicy(p SenderPolicy) {
	s.senders = p
}

// SetDedupFilter installs a delivery deduplication filter. A nil filter
// processes every delivery.
func (s *IngestService) SetDedupFilter(d DedupFilter) {
	s.dedup = d
}

// ProcessPayload runs the full pipeline for one webhook request. payload is
// the decoded JSON body (nil for pure multipart submissions) and formAtts are
// attachments already extracted from multipart form parts. The returned
// invoice has been persisted; any returned error means no invoice exists.
func (s *IngestService) ProcessPayload(ctx context.Context, requestID string, payload map[string]any, formAtts []*Attachment) (*Invoice, error) {
	if len(payload) == 0 && len(formAtts) == 0 {
		s.logStep(ctx, requestID, "error", "Empty email data", nil)
		return nil, ErrEmptyPayload
	}

	email := NormalizeEmail(payload)
	if len(formAtts) > 0 {
		email.Attachments = append(formAtts, email.Attachments...)
	}

	s.logStep(ctx, requestID, "info", "Email normalized", map[string]any{
		"from":        email.From,
		"subject":     email.Subject,
		"attachments": len(email.Attachments),
		"tracking":    email.TrackingNumber,
	})

	return s.ProcessEmail(ctx, requestID, email)
}

// ProcessEmail runs the pipeline from a normalized email onwards. Exposed
// separately for transports that already produce an InboundEmail, such as the
// direct SMTP receiver.
func (s *IngestService) ProcessEmail(ctx context.Context, requestID string, email *InboundEmail) (*Invoice, error) {
	if s.senders != nil && !s.senders.IsAllowed(email.From) {
		s.logStep(ctx, requestID, "warn", "Sender rejected by allowlist", map[string]any{"from": email.From})
		return nil, ErrSenderNotAllowed
	}

	if s.dedup != nil && email.TrackingNumber != "" {
		isNew, err := s.dedup.IsNew(ctx, email.TrackingNumber)
		if err != nil {
			// Dedup backend trouble must not drop invoices; process anyway.
			s.logStep(ctx, requestID, "warn", "Dedup check failed", map[string]any{"error": err.Error()})
		} else if !isNew {
			s.logStep(ctx, requestID, "info", "Duplicate delivery suppressed", map[string]any{
				"tracking": email.TrackingNumber,
			})
			return nil, ErrDuplicateDelivery
		}
	}

	processed := s.processAttachments(ctx, requestID, email)

	content := s.selectContent(ctx, requestID, email, processed)

	analysis := s.enrich(ctx, requestID, email, content)

	heuristic := s.fields.ExtractFields(email.Subject, content, email.From)
	merged := mergeAnalysis(analysis, heuristic)
	s.logStep(ctx, requestID, "info", "Invoice fields resolved", map[string]any{
		"vendor":         merged.Vendor,
		"invoice_number": merged.InvoiceNumber,
		"amount":         merged.Amount,
		"model":          merged.ModelUsed,
	})

	invoice := s.buildInvoice(email, merged, content, processed)

	id, err := s.invoices.Insert(ctx, invoice)
	if err != nil {
		s.logStep(ctx, requestID, "error", "Invoice persistence failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("persist invoice: %w", err)
	}
	invoice.ID = id

	s.logStep(ctx, requestID, "info", "Invoice created", map[string]any{
		"invoice_id": id,
		"pdf_url":    invoice.PDFURL,
	})

	return invoice, nil
}

// processAttachments validates and uploads attachments in priority order,
// stopping at the first success. When every candidate fails but attachments
// existed, the highest-priority one is preserved with a best-effort
// unverified upload so the original artifact is not lost.
func (s *IngestService) processAttachments(ctx context.Context, requestID string, email *InboundEmail) *Attachment {
	if len(email.Attachments) == 0 {
		s.logStep(ctx, requestID, "info", "No attachments present", nil)
		return nil
	}

	sortAttachments(email.Attachments)

	for _, att := range email.Attachments {
		result := ValidateDocument(att)
		if !result.IsValid {
			s.logStep(ctx, requestID, "warn", "Attachment failed validation", map[string]any{
				"filename": att.Filename,
				"error":    result.ErrorMessage,
			})
			continue
		}

		url, err := s.uploader.Upload(ctx, att.Content, att.Filename, att.ContentType, result.Checksum)
		if err != nil {
			s.logStep(ctx, requestID, "warn", "Attachment upload failed", map[string]any{
				"filename": att.Filename,
				"error":    err.Error(),
			})
			continue
		}

		att.URL = url
		s.logStep(ctx, requestID, "info", "Attachment stored", map[string]any{
			"filename": att.Filename,
			"size":     att.Size,
			"checksum": result.Checksum,
		})
		return att
	}

	// Fallback: keep an artifact even though validation failed. The sorted
	// head is the most invoice-like candidate, which may differ from the
	// provider's original ordering.
	first := email.Attachments[0]
	if len(first.Content) == 0 {
		if decoded, ok := decodeEncoded(first.Encoded); ok {
			first.Content = decoded
		}
	}
	if len(first.Content) == 0 {
		s.logStep(ctx, requestID, "warn", "No attachment could be processed or preserved", nil)
		return nil
	}

	url, err := s.uploader.UploadRaw(ctx, first.Content, first.Filename, first.ContentType)
	if err != nil {
		s.logStep(ctx, requestID, "warn", "Fallback upload failed", map[string]any{
			"filename": first.Filename,
			"error":    err.Error(),
		})
		return nil
	}

	first.URL = url
	first.SourceDocument = "fallback-upload"
	s.logStep(ctx, requestID, "info", "Attachment preserved without validation", map[string]any{
		"filename": first.Filename,
	})
	return first
}

// selectContent applies the fallback content policy: extracted document text,
// else the email's plain text, else HTML with tags stripped, else the subject.
func (s *IngestService) selectContent(ctx context.Context, requestID string, email *InboundEmail, att *Attachment) string {
	if att != nil && len(att.Content) > 0 && att.SourceDocument == "" {
		ocrCtx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
		text, err := s.textExtract.ExtractText(ocrCtx, att.Content, att.Filename, att.ContentType)
		cancel()
		if err != nil {
			s.logStep(ctx, requestID, "warn", "Text extraction failed", map[string]any{
				"filename": att.Filename,
				"error":    err.Error(),
			})
		} else if strings.TrimSpace(text) != "" {
			s.logStep(ctx, requestID, "info", "Document text extracted", map[string]any{
				"filename": att.Filename,
				"chars":    len(text),
			})
			return text
		}
	}

	if strings.TrimSpace(email.Text) != "" {
		return email.Text
	}
	if strings.TrimSpace(email.HTML) != "" {
		return utils.StripHTML(email.HTML)
	}
	return email.Subject
}

// enrich calls the configured LLM backend. Every failure mode degrades to a
// nil result; enrichment never fails the request.
func (s *IngestService) enrich(ctx context.Context, requestID string, email *InboundEmail, content string) *InvoiceAnalysis {
	var analysis *InvoiceAnalysis

	if s.llm != nil {
		llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
		result, err := s.llm.ExtractInvoice(llmCtx, &ExtractionRequest{
			Content: content,
			Subject: email.Subject,
			From:    email.From,
		})
		cancel()
		if err != nil {
			s.logStep(ctx, requestID, "error", "LLM extraction failed", map[string]any{"error": err.Error()})
		} else {
			analysis = result
		}
	}

	if !s.cacheEnabled || s.cache == nil {
		return analysis
	}

	if analysis != nil && analysis.Vendor != "" {
		entry := &VendorCacheEntry{
			SenderEmail: email.From,
			Vendor:      analysis.Vendor,
			Confidence:  analysis.Confidence,
			LastSeen:    time.Now(),
			ExpiresAt:   time.Now().Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update vendor cache", zap.Error(err))
		}
		return analysis
	}

	// Vendor missing: a previous enrichment for this sender may have it.
	if entry, err := s.cache.Get(ctx, email.From); err == nil && entry != nil {
		s.logger.Debug("Vendor cache hit", zap.String("sender", email.From))
		if analysis == nil {
			analysis = &InvoiceAnalysis{ModelUsed: "cache", AnalyzedAt: time.Now()}
		}
		analysis.Vendor = entry.Vendor
	}

	return analysis
}

// buildInvoice assembles the persisted record, enforcing the invariants that
// status starts at pending, amount is non-negative and the due date never
// precedes the invoice date.
func (s *IngestService) buildInvoice(email *InboundEmail, analysis *InvoiceAnalysis, content string, att *Attachment) *Invoice {
	invoice := &Invoice{
		InvoiceNumber:  analysis.InvoiceNumber,
		Vendor:         analysis.Vendor,
		Amount:         analysis.Amount,
		InvoiceDate:    analysis.InvoiceDate,
		DueDate:        analysis.DueDate,
		Status:         StatusPending,
		HTMLContent:    email.HTML,
		EmailContent:   content,
		Description:    analysis.Description,
		TrackingNumber: email.TrackingNumber,
	}

	if invoice.Amount < 0 {
		invoice.Amount = 0
	}
	if invoice.Description == "" {
		invoice.Description = fmt.Sprintf("Invoice received by email from %s", email.From)
	}
	if att != nil {
		invoice.PDFURL = att.URL
	}

	invDate, errInv := time.Parse("2006-01-02", invoice.InvoiceDate)
	dueDate, errDue := time.Parse("2006-01-02", invoice.DueDate)
	if errInv == nil && (errDue != nil || dueDate.Before(invDate)) {
		invoice.DueDate = invDate.AddDate(0, 0, 30).Format("2006-01-02")
	}

	return invoice
}

// mergeAnalysis overlays LLM-derived fields onto the heuristic baseline.
// Heuristics always produce a complete record, so every field has a value.
func mergeAnalysis(ai, heuristic *InvoiceAnalysis) *InvoiceAnalysis {
	if ai == nil {
		return heuristic
	}
	merged := *heuristic
	merged.ModelUsed = ai.ModelUsed
	merged.Confidence = ai.Confidence
	merged.AnalyzedAt = ai.AnalyzedAt
	if ai.Vendor != "" {
		merged.Vendor = ai.Vendor
	}
	if ai.InvoiceNumber != "" {
		merged.InvoiceNumber = ai.InvoiceNumber
	}
	if ai.Amount > 0 {
		merged.Amount = ai.Amount
	}
	if ai.InvoiceDate != "" {
		merged.InvoiceDate = ai.InvoiceDate
	}
	if ai.DueDate != "" {
		merged.DueDate = ai.DueDate
	}
	if ai.Description != "" {
		merged.Description = ai.Description
	}
	return &merged
}

// sortAttachments orders candidates so PDF-typed, content-bearing
// attachments are tried first. The sort is stable to keep provider order
// among equals.
func sortAttachments(atts []*Attachment) {
	score := func(a *Attachment) int {
		n := 0
		if isPDF(a.ContentType) || strings.HasSuffix(strings.ToLower(a.Filename), ".pdf") {
			n += 2
		}
		if a.HasContent() {
			n++
		}
		return n
	}
	sort.SliceStable(atts, func(i, j int) bool {
		return score(atts[i]) > score(atts[j])
	})
}

// logStep writes a pipeline transition to both the console logger and the
// durable log store. Log sink failures are swallowed; observability must not
// break ingestion.
func (s *IngestService) logStep(ctx context.Context, requestID, level, message string, metadata map[string]any) {
	fields := []zap.Field{zap.String("request_id", requestID)}
	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}
	switch level {
	case "error":
		s.logger.Error(message, fields...)
	case "warn":
		s.logger.Warn(message, fields...)
	default:
		s.logger.Info(message, fields...)
	}

	if s.logs == nil {
		return
	}
	entry := &LogEntry{
		RequestID:    requestID,
		FunctionName: pipelineFunction,
		Timestamp:    time.Now(),
		Level:        level,
		Message:      message,
		Metadata:     metadata,
	}
	if err := s.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Durable log append failed", zap.Error(err))
	}
}
