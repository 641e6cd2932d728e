package postgres

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

// MemoryInvoiceStore is an in-memory InvoiceStore used for tests and for
// development without a database.
type MemoryInvoiceStore struct {
	mu       sync.Mutex
	Invoices []*core.Invoice
}

// NewMemoryInvoiceStore creates an empty in-memory invoice store.
func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{}
}

// Insert stores the invoice and assigns it a random id.
func (s *MemoryInvoiceStore) Insert(_ context.Context, inv *core.Invoice) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	stored := *inv
	stored.ID = id
	s.Invoices = append(s.Invoices, &stored)
	return id, nil
}

// MemoryLogStore is an in-memory LogStore counterpart to MemoryInvoiceStore.
type MemoryLogStore struct {
	mu      sync.Mutex
	Entries []*core.LogEntry
}

// NewMemoryLogStore creates an empty in-memory log store.
func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

// Append records the entry.
func (s *MemoryLogStore) Append(_ context.Context, entry *core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, entry)
	return nil
}

// ByRequest returns the entries logged for one request id, in append order.
func (s *MemoryLogStore) ByRequest(requestID string) []*core.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.LogEntry
	for _, e := range s.Entries {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}
