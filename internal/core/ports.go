package core

import (
	"context"
	"time"
)

// LLMClient defines the interface for structured invoice extraction backends
type LLMClient interface {
	// ExtractInvoice derives invoice fields from email content.
	// A nil result with a nil error means extraction is disabled or the
	// service declined to answer; callers fall back to heuristics.
	ExtractInvoice(ctx context.Context, req *ExtractionRequest) (*InvoiceAnalysis, error)
}

// ExtractionRequest carries the content handed to an LLM backend.
type ExtractionRequest struct {
	Content string
	Subject string
	From    string
}

// BlobStore defines the interface for the object storage service
type BlobStore interface {
	// Upload stores content under key with upsert semantics.
	Upload(ctx context.Context, key string, content []byte, contentType string) error

	// SignedURL returns a time-boxed read URL for the object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// PublicURL returns the public read URL for the object.
	PublicURL(key string) string

	// Fetch retrieves the object bytes back over HTTP.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Remove deletes the object.
	Remove(ctx context.Context, key string) error
}

// InvoiceStore persists invoice records.
type InvoiceStore interface {
	// Insert stores a new invoice and returns its assigned id.
	Insert(ctx context.Context, inv *Invoice) (string, error)
}

// LogStore is the durable sink for pipeline log entries.
type LogStore interface {
	// Append writes a log entry; failures must not affect the pipeline.
	Append(ctx context.Context, entry *LogEntry) error
}

// TextExtractor derives plain text from an attachment document.
type TextExtractor interface {
	// ExtractText returns the document's text, or "" when the format is
	// unsupported or recognition fails. It never fails the pipeline.
	ExtractText(ctx context.Context, content []byte, filename, contentType string) (string, error)
}

// SenderPolicy decides whether a sender address may submit invoices.
type SenderPolicy interface {
	// IsAllowed reports whether the sender address is acceptable.
	IsAllowed(from string) bool
}

// DedupFilter suppresses repeat deliveries of the same email.
type DedupFilter interface {
	// IsNew returns true if the tracking number has not been seen before,
	// marking it as seen atomically.
	IsNew(ctx context.Context, trackingNumber string) (bool, error)
}

// VendorCache caches enrichment-derived vendor names per sender.
type VendorCache interface {
	// Get retrieves a cached entry for a sender
	Get(ctx context.Context, senderEmail string) (*VendorCacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *VendorCacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, senderEmail string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
