package edgefn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

func TestEdgeExtractInvoice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/process-document-ai" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}

		var req edgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ContentType != "invoice" {
			t.Errorf("contentType = %q", req.ContentType)
		}
		if req.Metadata["subject"] != "Invoice #1" {
			t.Errorf("metadata subject = %q", req.Metadata["subject"])
		}
		if req.APIKey != "forwarded-key" {
			t.Errorf("apiKey = %q", req.APIKey)
		}

		_, _ = w.Write([]byte(`{
			"success": true,
			"confidence": 0.92,
			"extractedData": {
				"vendor": "Acme Corp",
				"invoiceNumber": "INV-1",
				"amount": "1,234.56",
				"invoiceDate": "2026-08-01",
				"dueDate": "2026-08-31",
				"description": "Widgets"
			}
		}`))
	}))
	defer ts.Close()

	client := NewEdgeClient(ts.URL, "/functions/v1/process-document-ai", "service-key", "forwarded-key", 5*time.Second, zap.NewNop())
	analysis, err := client.ExtractInvoice(context.Background(), &core.ExtractionRequest{
		Content: "invoice body",
		Subject: "Invoice #1",
		From:    "billing@acme.com",
	})
	if err != nil {
		t.Fatal(err)
	}

	if analysis.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q", analysis.Vendor)
	}
	if analysis.InvoiceNumber != "INV-1" {
		t.Errorf("invoice number = %q", analysis.InvoiceNumber)
	}
	if analysis.Amount != 1234.56 {
		t.Errorf("amount = %v, string amount should be normalized", analysis.Amount)
	}
	if analysis.Confidence != 0.92 {
		t.Errorf("confidence = %v", analysis.Confidence)
	}
	if analysis.ModelUsed != "edge-function" {
		t.Errorf("model = %q", analysis.ModelUsed)
	}
}

func TestEdgeExtractInvoiceNumericAmount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"extractedData":{"vendor":"Acme","amount":42.5}}`))
	}))
	defer ts.Close()

	client := NewEdgeClient(ts.URL, "/fn", "k", "", 5*time.Second, zap.NewNop())
	analysis, err := client.ExtractInvoice(context.Background(), &core.ExtractionRequest{Content: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if analysis.Amount != 42.5 {
		t.Errorf("amount = %v", analysis.Amount)
	}
}

func TestEdgeExtractInvoiceFunctionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"model unavailable"}`))
	}))
	defer ts.Close()

	client := NewEdgeClient(ts.URL, "/fn", "k", "", 5*time.Second, zap.NewNop())
	_, err := client.ExtractInvoice(context.Background(), &core.ExtractionRequest{Content: "x"})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("err = %v, want function error surfaced", err)
	}
}

func TestEdgeExtractInvoiceHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewEdgeClient(ts.URL, "/fn", "bad-key", "", 5*time.Second, zap.NewNop())
	_, err := client.ExtractInvoice(context.Background(), &core.ExtractionRequest{Content: "x"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want status error", err)
	}
}
