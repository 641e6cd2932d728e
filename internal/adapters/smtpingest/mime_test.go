package smtpingest

import (
	"encoding/base64"
	"io"
	"net/mail"
	"strings"
	"testing"
)

func parseMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestEmailFromMessagePlain(t *testing.T) {
	raw := "From: billing@acme.com\r\n" +
		"To: invoices@kestrel.dev\r\n" +
		"Subject: Invoice #42\r\n" +
		"Message-Id: <abc123@acme.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Amount due: $100\r\n"

	email := emailFromMessage(parseMessage(t, raw), "envelope@acme.com", []string{"invoices@kestrel.dev"})

	if email.From != "billing@acme.com" {
		t.Errorf("from = %q, header should win over envelope", email.From)
	}
	if email.Subject != "Invoice #42" {
		t.Errorf("subject = %q", email.Subject)
	}
	if email.TrackingNumber != "abc123@acme.com" {
		t.Errorf("tracking = %q", email.TrackingNumber)
	}
	if !strings.Contains(email.Text, "Amount due: $100") {
		t.Errorf("text = %q", email.Text)
	}
	if len(email.Attachments) != 0 {
		t.Errorf("attachments = %d, want 0", len(email.Attachments))
	}
}

func TestEmailFromMessageMultipart(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake invoice")
	raw := "From: billing@acme.com\r\n" +
		"Subject: Invoice INV-7\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain body\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML body</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf; name=invoice.pdf\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"Content-Disposition: attachment; filename=invoice.pdf\r\n" +
		"\r\n" +
		base64.StdEncoding.EncodeToString(pdf) + "\r\n" +
		"--outer--\r\n"

	email := emailFromMessage(parseMessage(t, raw), "envelope@acme.com", nil)

	if !strings.Contains(email.Text, "Plain body") {
		t.Errorf("text = %q", email.Text)
	}
	if !strings.Contains(email.HTML, "HTML body") {
		t.Errorf("html = %q", email.HTML)
	}
	if len(email.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(email.Attachments))
	}
	att := email.Attachments[0]
	if att.Filename != "invoice.pdf" {
		t.Errorf("filename = %q", att.Filename)
	}
	if att.ContentType != "application/pdf" {
		t.Errorf("content type = %q", att.ContentType)
	}
	if string(att.Content) != string(pdf) {
		t.Errorf("content = %q, base64 body should be decoded", att.Content)
	}
	// No Message-Id header, so a tracking number is synthesized.
	if email.TrackingNumber == "" {
		t.Error("tracking number should be synthesized")
	}
}

func TestEmailFromMessageEncodedSubject(t *testing.T) {
	raw := "From: billing@acme.com\r\n" +
		"Subject: =?utf-8?q?Facture_n=C2=BA_12?=\r\n" +
		"\r\n" +
		"body\r\n"

	email := emailFromMessage(parseMessage(t, raw), "", nil)
	if email.Subject != "Facture nº 12" {
		t.Errorf("subject = %q", email.Subject)
	}
}

func TestDecodeTransferEncodingQuotedPrintable(t *testing.T) {
	r := decodeTransferEncoding(strings.NewReader("Caf=C3=A9=0D=0A"), "quoted-printable")
	decoded, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(decoded), "Café") {
		t.Errorf("decoded = %q", decoded)
	}
}

func TestDecodeCharsetLatin1(t *testing.T) {
	// "Café" in ISO-8859-1.
	got := decodeCharset([]byte{0x43, 0x61, 0x66, 0xE9}, "iso-8859-1")
	if got != "Café" {
		t.Errorf("decoded = %q", got)
	}
}

func TestPartFilenamePrefersDisposition(t *testing.T) {
	got := partFilename(map[string]string{"name": "ct-name.pdf"}, `attachment; filename="disp-name.pdf"`)
	if got != "disp-name.pdf" {
		t.Errorf("filename = %q", got)
	}
	got = partFilename(map[string]string{"name": "ct-name.pdf"}, "")
	if got != "ct-name.pdf" {
		t.Errorf("filename = %q", got)
	}
}
