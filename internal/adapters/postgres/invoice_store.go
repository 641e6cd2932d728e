// Package postgres persists invoices and pipeline logs in the Supabase
// Postgres database via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

const invoiceSchema = `
	CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		invoice_number TEXT NOT NULL,
		vendor TEXT NOT NULL DEFAULT '',
		amount NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
		invoice_date DATE,
		due_date DATE,
		status TEXT NOT NULL DEFAULT 'pending',
		pdf_url TEXT,
		html_content TEXT,
		email_content TEXT,
		description TEXT,
		tracking_number TEXT,
		association_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// InvoiceStore is a Postgres implementation of the InvoiceStore interface
type InvoiceStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewInvoiceStore creates the invoices table if needed and returns the store.
func NewInvoiceStore(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*InvoiceStore, error) {
	if _, err := pool.Exec(ctx, invoiceSchema); err != nil {
		return nil, fmt.Errorf("create invoices table: %w", err)
	}
	return &InvoiceStore{pool: pool, logger: logger}, nil
}

// Insert stores a new invoice and returns its assigned id.
func (s *InvoiceStore) Insert(ctx context.Context, inv *core.Invoice) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			invoice_number, vendor, amount, invoice_date, due_date, status,
			pdf_url, html_content, email_content, description,
			tracking_number, association_id
		)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, NULLIF($5, '')::date, $6,
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
			NULLIF($11, ''), NULLIF($12, ''))
		RETURNING id
	`,
		inv.InvoiceNumber, inv.Vendor, inv.Amount, inv.InvoiceDate, inv.DueDate,
		string(inv.Status), inv.PDFURL, inv.HTMLContent, inv.EmailContent,
		inv.Description, inv.TrackingNumber, inv.AssociationID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert invoice: %w", err)
	}

	s.logger.Debug("Invoice row inserted", zap.String("id", id))
	return id, nil
}
