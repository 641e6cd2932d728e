package core

import (
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestExtractFieldsFromSubject(t *testing.T) {
	e := NewFieldExtractor(zap.NewNop())

	a := e.ExtractFields("Invoice #A100 from Acme Corp - Total $250.00", "", "billing@acme.com")
	if a.InvoiceNumber != "A100" {
		t.Errorf("invoice number = %q, want A100", a.InvoiceNumber)
	}
	if a.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q, want Acme Corp", a.Vendor)
	}
	if a.Amount != 250.00 {
		t.Errorf("amount = %v, want 250", a.Amount)
	}
}

func TestExtractFieldsInvoiceCode(t *testing.T) {
	e := NewFieldExtractor(zap.NewNop())

	a := e.ExtractFields("Invoice INV-9001", "", "ap@vendor.io")
	if a.InvoiceNumber != "INV-9001" {
		t.Errorf("invoice number = %q, want INV-9001", a.InvoiceNumber)
	}
}

func TestExtractFieldsBodyFallback(t *testing.T) {
	e := NewFieldExtractor(zap.NewNop())

	a := e.ExtractFields("Your statement", "Please pay invoice number: 778-X. Amount: $99.50", "ap@vendor.io")
	if a.InvoiceNumber != "778-X" {
		t.Errorf("invoice number = %q, want 778-X", a.InvoiceNumber)
	}
	if a.Amount != 99.50 {
		t.Errorf("amount = %v, want 99.5", a.Amount)
	}
}

func TestExtractFieldsAmountVariants(t *testing.T) {
	e := NewFieldExtractor(zap.NewNop())

	cases := []struct {
		text string
		want float64
	}{
		{"pay $1,234.56 now", 1234.56},
		{"Amount: 45.00", 45},
		{"Total: $12", 12},
		{"500 USD due", 500},
	}
	for _, tc := range cases {
		a := e.ExtractFields("", tc.text, "x@y.com")
		if a.Amount != tc.want {
			t.Errorf("%q: amount = %v, want %v", tc.text, a.Amount, tc.want)
		}
	}
}

func TestExtractFieldsDeterministicDefaults(t *testing.T) {
	e := NewFieldExtractor(zap.NewNop())

	a := e.ExtractFields("hello", "nothing useful here", "billing@acmecorp.com")
	if a.Vendor != "ACMECORP" {
		t.Errorf("vendor = %q, want ACMECORP", a.Vendor)
	}
	if ok, _ := regexp.MatchString(`^INV-\d{6}$`, a.InvoiceNumber); !ok {
		t.Errorf("synthesized invoice number = %q, want INV-<6 digits>", a.InvoiceNumber)
	}
	if a.Amount != 0 {
		t.Errorf("amount = %v, want 0", a.Amount)
	}

	today := time.Now().Format("2006-01-02")
	if a.InvoiceDate != today {
		t.Errorf("invoice date = %q, want %q", a.InvoiceDate, today)
	}
	due := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	if a.DueDate != due {
		t.Errorf("due date = %q, want %q", a.DueDate, due)
	}
	if a.ModelUsed != "heuristic" {
		t.Errorf("model = %q", a.ModelUsed)
	}
}

func TestVendorFromAddress(t *testing.T) {
	cases := []struct {
		from string
		want string
	}{
		{"billing@acmecorp.com", "ACMECORP"},
		{"Jane Doe <jane@widgets.co.uk>", "WIDGETS"},
		{"not-an-address", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := vendorFromAddress(tc.from); got != tc.want {
			t.Errorf("vendorFromAddress(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"250", 250},
		{"USD 99.9", 99.9},
		{"", 0},
		{"no digits", 0},
	}
	for _, tc := range cases {
		if got := NormalizeAmount(tc.in); got != tc.want {
			t.Errorf("NormalizeAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
