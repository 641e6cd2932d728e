package core

import (
	"time"
)

// InboundEmail represents a single normalized inbound email. It is built once
// per webhook request from the raw provider payload and discarded afterwards.
type InboundEmail struct {
	From           string
	To             string
	Subject        string
	HTML           string
	Text           string
	Attachments    []*Attachment
	TrackingNumber string
}

// Attachment represents an email attachment as it moves through the pipeline.
// Content starts out in whatever shape the provider sent (raw bytes, or a
// base64 string held in Encoded); the validator normalizes it to a byte
// buffer and the uploader annotates it with the final storage URL.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Encoded     string
	Size        int
	URL         string
	// SourceDocument is set when the attachment bytes were preserved via the
	// no-validation fallback upload rather than the verified path.
	SourceDocument string
}

// HasContent reports whether the attachment carries any payload at all.
func (a *Attachment) HasContent() bool {
	return len(a.Content) > 0 || a.Encoded != ""
}

// ValidationResult is the outcome of document validation.
type ValidationResult struct {
	IsValid      bool
	ErrorMessage string
	Checksum     string
}

// InvoiceStatus is the lifecycle state of a persisted invoice.
type InvoiceStatus string

const (
	StatusPending  InvoiceStatus = "pending"
	StatusApproved InvoiceStatus = "approved"
	StatusRejected InvoiceStatus = "rejected"
	StatusPaid     InvoiceStatus = "paid"
)

// Invoice is the persisted record produced by a successful pipeline run.
// Status always starts at pending; approval flows mutate it elsewhere.
type Invoice struct {
	ID             string        `json:"id"`
	InvoiceNumber  string        `json:"invoiceNumber"`
	Vendor         string        `json:"vendor"`
	Amount         float64       `json:"amount"`
	InvoiceDate    string        `json:"invoiceDate"`
	DueDate        string        `json:"dueDate"`
	Status         InvoiceStatus `json:"status"`
	PDFURL         string        `json:"pdfUrl,omitempty"`
	HTMLContent    string        `json:"htmlContent,omitempty"`
	EmailContent   string        `json:"emailContent,omitempty"`
	Description    string        `json:"description,omitempty"`
	TrackingNumber string        `json:"trackingNumber,omitempty"`
	AssociationID  string        `json:"associationId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// InvoiceAnalysis represents structured invoice fields derived from email
// content, either by an LLM extraction call or by the heuristic extractor.
type InvoiceAnalysis struct {
	Vendor        string
	InvoiceNumber string
	Amount        float64
	InvoiceDate   string
	DueDate       string
	Description   string
	Confidence    float64
	ModelUsed     string
	AnalyzedAt    time.Time
}

// LogEntry is a single durable pipeline log record, keyed by request id so an
// operator can reconstruct the full per-request timeline after the fact.
type LogEntry struct {
	RequestID    string
	FunctionName string
	Timestamp    time.Time
	Level        string
	Message      string
	Metadata     map[string]any
}

// VendorCacheEntry caches an LLM-derived vendor name per sender address so
// repeat senders do not need another enrichment round-trip.
type VendorCacheEntry struct {
	SenderEmail string
	Vendor      string
	Confidence  float64
	LastSeen    time.Time
	ExpiresAt   time.Time
}
