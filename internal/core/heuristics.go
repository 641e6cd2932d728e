package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// extractRule pairs a pattern with the field it fills. Rules are evaluated in
// order against the subject first, then body text; the first match wins.
// Keeping them in flat tables makes coverage unit-testable pattern by pattern.
type extractRule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(*InvoiceAnalysis, string)
}

var vendorSubjectRules = []extractRule{
	{
		name:    "from_company",
		pattern: regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z0-9][A-Za-z0-9 &.,'-]*?)(?:\s*[-–|]|$)`),
		apply:   func(a *InvoiceAnalysis, m string) { a.Vendor = strings.TrimSpace(m) },
	},
	{
		name:    "company_invoice",
		pattern: regexp.MustCompile(`(?i)^([A-Za-z][A-Za-z0-9 &.'-]*?)\s+invoice\b`),
		apply:   func(a *InvoiceAnalysis, m string) { a.Vendor = strings.TrimSpace(m) },
	},
}

var invoiceNumberRules = []extractRule{
	{
		name:    "invoice_hash",
		pattern: regexp.MustCompile(`(?i)invoice\s*#\s*([A-Za-z0-9-]+)`),
		apply:   func(a *InvoiceAnalysis, m string) { a.InvoiceNumber = m },
	},
	{
		name:    "invoice_number_label",
		pattern: regexp.MustCompile(`(?i)invoice\s+(?:number|no\.?)[:\s]+([A-Za-z0-9-]+)`),
		apply:   func(a *InvoiceAnalysis, m string) { a.InvoiceNumber = m },
	},
	{
		name:    "invoice_code",
		pattern: regexp.MustCompile(`(?i)\binvoice\s+((?:[A-Za-z]+-)?\d[A-Za-z0-9-]*)`),
		apply:   func(a *InvoiceAnalysis, m string) { a.InvoiceNumber = m },
	},
	{
		name:    "order_hash",
		pattern: regexp.MustCompile(`(?i)order\s*#\s*([A-Za-z0-9-]+)`),
		apply:   func(a *InvoiceAnalysis, m string) { a.InvoiceNumber = m },
	},
	{
		name:    "bare_hash",
		pattern: regexp.MustCompile(`#([A-Za-z0-9][A-Za-z0-9-]{2,})`),
		apply:   func(a *InvoiceAnalysis, m string) { a.InvoiceNumber = m },
	},
}

var amountRules = []extractRule{
	{
		name:    "dollar_prefixed",
		pattern: regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{1,2})?)`),
		apply:   setAmount,
	},
	{
		name:    "amount_label",
		pattern: regexp.MustCompile(`(?i)amount[:\s]+\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		apply:   setAmount,
	},
	{
		name:    "total_label",
		pattern: regexp.MustCompile(`(?i)total[:\s]+\$?\s*([\d,]+(?:\.\d{1,2})?)`),
		apply:   setAmount,
	},
	{
		name:    "usd_suffixed",
		pattern: regexp.MustCompile(`(?i)([\d,]+(?:\.\d{1,2})?)\s*USD`),
		apply:   setAmount,
	},
}

func setAmount(a *InvoiceAnalysis, m string) {
	if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64); err == nil && v >= 0 {
		a.Amount = v
	}
}

var emailDomainPattern = regexp.MustCompile(`[\w.+%-]+@([\w-]+)(?:\.[\w.-]+)?`)

// FieldExtractor derives invoice fields from subject and body text with
// regex heuristics. It is the deterministic fallback for when LLM enrichment
// is unavailable or fails, and always produces a usable (if coarse) result.
type FieldExtractor struct {
	logger *zap.Logger
}

// NewFieldExtractor creates a new heuristic field extractor
func NewFieldExtractor(logger *zap.Logger) *FieldExtractor {
	return &FieldExtractor{logger: logger}
}

// ExtractFields produces invoice fields from the subject, body text and
// sender address. Defaults are deterministic: amount 0, vendor from the
// sender domain, synthesized INV-<6 digits> invoice number, invoice date =
// today and due date = +30 days as ISO date-only strings.
func (e *FieldExtractor) ExtractFields(subject, textContent, from string) *InvoiceAnalysis {
	analysis := &InvoiceAnalysis{
		ModelUsed:  "heuristic",
		AnalyzedAt: time.Now(),
	}

	analysis.Vendor = vendorFromAddress(from)
	applyFirst(vendorSubjectRules, analysis, subject)

	if !applyFirst(invoiceNumberRules, analysis, subject) {
		applyFirst(invoiceNumberRules, analysis, textContent)
	}
	if analysis.InvoiceNumber == "" {
		analysis.InvoiceNumber = synthesizeInvoiceNumber()
	}

	if !applyFirst(amountRules, analysis, subject) {
		applyFirst(amountRules, analysis, textContent)
	}

	now := time.Now()
	analysis.InvoiceDate = now.Format("2006-01-02")
	analysis.DueDate = now.AddDate(0, 0, 30).Format("2006-01-02")

	e.logger.Debug("Heuristic extraction complete",
		zap.String("vendor", analysis.Vendor),
		zap.String("invoice_number", analysis.InvoiceNumber),
		zap.Float64("amount", analysis.Amount))

	return analysis
}

// applyFirst runs rules in order against text and applies the first match.
func applyFirst(rules []extractRule, analysis *InvoiceAnalysis, text string) bool {
	if text == "" {
		return false
	}
	for _, rule := range rules {
		if m := rule.pattern.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			rule.apply(analysis, m[1])
			return true
		}
	}
	return false
}

// vendorFromAddress derives a vendor name from the sender's email domain:
// the label before the TLD, uppercased. "billing@acmecorp.com" -> "ACMECORP".
func vendorFromAddress(from string) string {
	m := emailDomainPattern.FindStringSubmatch(from)
	if len(m) < 2 {
		return ""
	}
	return strings.ToUpper(m[1])
}

// synthesizeInvoiceNumber builds "INV-" + the last 6 digits of the current
// unix timestamp. Unique enough per request; not meant to be stable.
func synthesizeInvoiceNumber() string {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	return "INV-" + ts[len(ts)-6:]
}

// NormalizeAmount converts a currency-formatted string such as "$1,234.56"
// to its numeric value by stripping everything outside [0-9.-] first.
// Returns 0 for unparseable input.
func NormalizeAmount(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
