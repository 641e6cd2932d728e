package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type memInvoiceStore struct {
	mu       sync.Mutex
	invoices []*Invoice
	fail     bool
}

func (s *memInvoiceStore) Insert(_ context.Context, inv *Invoice) (string, error) {
	if s.fail {
		return "", errors.New("connection refused")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *inv
	stored.ID = "inv-1"
	s.invoices = append(s.invoices, &stored)
	return stored.ID, nil
}

type memLogStore struct {
	mu      sync.Mutex
	entries []*LogEntry
}

func (s *memLogStore) Append(_ context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

type stubLLM struct {
	result *InvoiceAnalysis
	err    error
	called bool
}

func (l *stubLLM) ExtractInvoice(_ context.Context, _ *ExtractionRequest) (*InvoiceAnalysis, error) {
	l.called = true
	return l.result, l.err
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) ExtractText(_ context.Context, _ []byte, _, _ string) (string, error) {
	return e.text, e.err
}

type stubSenderPolicy struct{ allow bool }

func (p stubSenderPolicy) IsAllowed(string) bool { return p.allow }

type stubDedup struct{ seen bool }

func (d stubDedup) IsNew(_ context.Context, _ string) (bool, error) { return !d.seen, nil }

func newTestService(llm LLMClient, invoices InvoiceStore, logs LogStore) *IngestService {
	return NewIngestService(
		NewUploader(newFakeBlobStore(), zap.NewNop(), time.Hour, false, time.Second),
		&stubExtractor{},
		llm,
		NewFieldExtractor(zap.NewNop()),
		invoices,
		logs,
		nil,
		false,
		0,
		zap.NewNop(),
	)
}

func TestProcessPayloadEmpty(t *testing.T) {
	logs := &memLogStore{}
	svc := newTestService(nil, &memInvoiceStore{}, logs)

	_, err := svc.ProcessPayload(context.Background(), "req-1", nil, nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}

	_, err = svc.ProcessPayload(context.Background(), "req-2", map[string]any{}, nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}

	if len(logs.entries) == 0 {
		t.Error("rejection should still produce durable log entries")
	}
}

func TestProcessPayloadHeuristicsOnly(t *testing.T) {
	invoices := &memInvoiceStore{}
	svc := newTestService(&stubLLM{err: errors.New("model overloaded")}, invoices, &memLogStore{})

	payload := map[string]any{
		"from":    "billing@acme.com",
		"subject": "Invoice #A100 from Acme Corp - Total $250.00",
		"text":    "Please find the invoice attached.",
	}
	invoice, err := svc.ProcessPayload(context.Background(), "req-1", payload, nil)
	if err != nil {
		t.Fatalf("LLM failure must not fail the pipeline: %v", err)
	}

	if invoice.InvoiceNumber != "A100" {
		t.Errorf("invoice number = %q, want A100", invoice.InvoiceNumber)
	}
	if invoice.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q, want Acme Corp", invoice.Vendor)
	}
	if invoice.Amount != 250 {
		t.Errorf("amount = %v, want 250", invoice.Amount)
	}
	if invoice.Status != StatusPending {
		t.Errorf("status = %q, want pending", invoice.Status)
	}
	if len(invoices.invoices) != 1 {
		t.Fatalf("expected 1 persisted invoice, got %d", len(invoices.invoices))
	}
}

func TestProcessPayloadGenericBodyMarkup(t *testing.T) {
	svc := newTestService(nil, &memInvoiceStore{}, &memLogStore{})

	invoice, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "billing@acme.com",
		"subject": "Invoice #7",
		"body":    "<p>Total: $55.25</p>",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if invoice.HTMLContent != "<p>Total: $55.25</p>" {
		t.Errorf("html content = %q", invoice.HTMLContent)
	}
	if strings.Contains(invoice.EmailContent, "<") {
		t.Errorf("content = %q, markup should be stripped", invoice.EmailContent)
	}
	if invoice.Amount != 55.25 {
		t.Errorf("amount = %v, want 55.25 from stripped body", invoice.Amount)
	}
}

func TestProcessPayloadLLMOverridesHeuristics(t *testing.T) {
	llm := &stubLLM{result: &InvoiceAnalysis{
		Vendor:     "Acme Corporation Ltd",
		Amount:     199.99,
		Confidence: 0.95,
		ModelUsed:  "gpt-4o-mini",
		AnalyzedAt: time.Now(),
	}}
	invoices := &memInvoiceStore{}
	svc := newTestService(llm, invoices, &memLogStore{})

	payload := map[string]any{
		"from":    "billing@acme.com",
		"subject": "Invoice #A100",
	}
	invoice, err := svc.ProcessPayload(context.Background(), "req-1", payload, nil)
	if err != nil {
		t.Fatal(err)
	}

	if invoice.Vendor != "Acme Corporation Ltd" {
		t.Errorf("vendor = %q, LLM value should win", invoice.Vendor)
	}
	if invoice.Amount != 199.99 {
		t.Errorf("amount = %v, want 199.99", invoice.Amount)
	}
	// Fields the LLM left empty come from heuristics.
	if invoice.InvoiceNumber != "A100" {
		t.Errorf("invoice number = %q, heuristic value should fill the gap", invoice.InvoiceNumber)
	}
}

func TestProcessPayloadDueDateCoercion(t *testing.T) {
	llm := &stubLLM{result: &InvoiceAnalysis{
		Vendor:      "Acme",
		InvoiceDate: "2026-08-15",
		DueDate:     "2026-08-01", // before the invoice date
		ModelUsed:   "gpt-4o-mini",
	}}
	svc := newTestService(llm, &memInvoiceStore{}, &memLogStore{})

	invoice, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #1",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if invoice.DueDate != "2026-09-14" {
		t.Errorf("due date = %q, want invoice date +30d", invoice.DueDate)
	}
}

func TestProcessPayloadAttachmentUpload(t *testing.T) {
	invoices := &memInvoiceStore{}
	svc := newTestService(nil, invoices, &memLogStore{})

	atts := []*Attachment{{
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.4 real invoice"),
	}}
	invoice, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #77",
	}, atts)
	if err != nil {
		t.Fatal(err)
	}
	if invoice.PDFURL == "" {
		t.Error("validated attachment should set the PDF URL")
	}
}

func TestProcessPayloadMalformedPDFFallback(t *testing.T) {
	invoices := &memInvoiceStore{}
	svc := newTestService(nil, invoices, &memLogStore{})

	atts := []*Attachment{{
		Filename:    "broken.pdf",
		ContentType: "application/pdf",
		Content:     []byte("<html>this is not a pdf</html>"),
	}}
	invoice, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #5",
		"text":    "Amount: $10",
	}, atts)
	if err != nil {
		t.Fatalf("a malformed attachment must not fail the pipeline: %v", err)
	}
	if invoice.PDFURL == "" {
		t.Error("original artifact should be preserved by the fallback upload")
	}
	if invoice.Amount != 10 {
		t.Errorf("amount = %v, want 10 from email body", invoice.Amount)
	}
}

func TestProcessPayloadFallbackPrefersInvoiceLikeAttachment(t *testing.T) {
	invoices := &memInvoiceStore{}
	svc := newTestService(nil, invoices, &memLogStore{})

	// Provider order puts a contentless stub first; every candidate fails
	// validation, and the fallback preserves the most invoice-like one.
	atts := []*Attachment{
		{Filename: "terms.txt", ContentType: "text/plain"},
		{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("<html>not a pdf</html>")},
	}
	invoice, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #3",
	}, atts)
	if err != nil {
		t.Fatal(err)
	}

	if invoice.PDFURL == "" {
		t.Fatal("fallback should preserve an artifact")
	}
	if !strings.Contains(invoice.PDFURL, "invoice.pdf") {
		t.Errorf("pdf url = %q, want the content-bearing PDF candidate", invoice.PDFURL)
	}
}

func TestProcessPayloadPersistenceFailure(t *testing.T) {
	svc := newTestService(nil, &memInvoiceStore{fail: true}, &memLogStore{})

	_, err := svc.ProcessPayload(context.Background(), "req-1", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #1",
	}, nil)
	if err == nil {
		t.Fatal("persistence failure must fail the request")
	}
	if errors.Is(err, ErrEmptyPayload) {
		t.Error("persistence failure must be distinguishable from an empty payload")
	}
}

func TestProcessEmailSenderPolicy(t *testing.T) {
	svc := newTestService(nil, &memInvoiceStore{}, &memLogStore{})
	svc.SetSenderPolicy(stubSenderPolicy{allow: false})

	_, err := svc.ProcessEmail(context.Background(), "req-1", &InboundEmail{From: "a@b.com"})
	if !errors.Is(err, ErrSenderNotAllowed) {
		t.Fatalf("err = %v, want ErrSenderNotAllowed", err)
	}
}

func TestProcessEmailDedup(t *testing.T) {
	invoices := &memInvoiceStore{}
	svc := newTestService(nil, invoices, &memLogStore{})
	svc.SetDedupFilter(stubDedup{seen: true})

	_, err := svc.ProcessEmail(context.Background(), "req-1", &InboundEmail{
		From:           "a@b.com",
		TrackingNumber: "msg-1",
	})
	if !errors.Is(err, ErrDuplicateDelivery) {
		t.Fatalf("err = %v, want ErrDuplicateDelivery", err)
	}
	if len(invoices.invoices) != 0 {
		t.Error("duplicate must not create an invoice")
	}
}

func TestProcessPayloadDurableLogging(t *testing.T) {
	logs := &memLogStore{}
	svc := newTestService(nil, &memInvoiceStore{}, logs)

	_, err := svc.ProcessPayload(context.Background(), "req-42", map[string]any{
		"from":    "a@b.com",
		"subject": "Invoice #1",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(logs.entries) == 0 {
		t.Fatal("expected durable log entries")
	}
	var created bool
	for _, e := range logs.entries {
		if e.RequestID != "req-42" {
			t.Errorf("entry has request id %q", e.RequestID)
		}
		if e.FunctionName != "invoice-receiver" {
			t.Errorf("entry has function %q", e.FunctionName)
		}
		if strings.Contains(e.Message, "Invoice created") {
			created = true
		}
	}
	if !created {
		t.Error("expected an 'Invoice created' entry")
	}
}
