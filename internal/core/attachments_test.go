package core

import (
	"encoding/base64"
	"testing"
)

func TestExtractAttachmentsArray(t *testing.T) {
	payload := map[string]any{
		"attachments": []any{
			map[string]any{
				"filename":    "invoice.pdf",
				"contentType": "application/pdf",
				"content":     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
			},
		},
	}
	atts := ExtractAttachments(payload)
	if len(atts) != 1 {
		t.Fatalf("got %d attachments, want 1", len(atts))
	}
	if atts[0].Filename != "invoice.pdf" || atts[0].ContentType != "application/pdf" {
		t.Errorf("unexpected attachment: %+v", atts[0])
	}
	if atts[0].Encoded == "" {
		t.Error("base64 content should be kept in Encoded")
	}
}

func TestExtractAttachmentsSingularObject(t *testing.T) {
	payload := map[string]any{
		"attachment": map[string]any{
			"name": "doc.pdf",
			"data": "JVBERg==",
		},
	}
	atts := ExtractAttachments(payload)
	if len(atts) != 1 || atts[0].Filename != "doc.pdf" {
		t.Fatalf("unexpected result: %+v", atts)
	}
}

func TestExtractAttachmentsJSONString(t *testing.T) {
	payload := map[string]any{
		"attachments": `[{"filename":"a.pdf","content":"JVBERg=="}]`,
	}
	atts := ExtractAttachments(payload)
	if len(atts) != 1 || atts[0].Filename != "a.pdf" {
		t.Fatalf("unexpected result: %+v", atts)
	}
}

func TestExtractAttachmentsNestedEmail(t *testing.T) {
	payload := map[string]any{
		"email": map[string]any{
			"attachments": []any{
				map[string]any{"filename": "n.pdf", "content": "JVBERg=="},
			},
		},
	}
	atts := ExtractAttachments(payload)
	if len(atts) != 1 || atts[0].Filename != "n.pdf" {
		t.Fatalf("unexpected result: %+v", atts)
	}
}

func TestExtractAttachmentsHeuristicScan(t *testing.T) {
	payload := map[string]any{
		"files": []any{
			map[string]any{"fileName": "scan.pdf", "type": "application/pdf", "data": "JVBERg=="},
		},
	}
	atts := ExtractAttachments(payload)
	if len(atts) != 1 || atts[0].Filename != "scan.pdf" {
		t.Fatalf("heuristic scan failed: %+v", atts)
	}
}

func TestExtractAttachmentsIgnoresNonAttachmentArrays(t *testing.T) {
	payload := map[string]any{
		"tags": []any{map[string]any{"label": "important"}},
	}
	if atts := ExtractAttachments(payload); len(atts) != 0 {
		t.Fatalf("expected no attachments, got %+v", atts)
	}
}

func TestExtractAttachmentsNoAttachments(t *testing.T) {
	if atts := ExtractAttachments(map[string]any{"subject": "hi"}); len(atts) != 0 {
		t.Fatalf("expected empty result, got %+v", atts)
	}
	if atts := ExtractAttachments(nil); atts != nil {
		t.Fatalf("expected nil for nil payload, got %+v", atts)
	}
}

func TestDecodeBase64ContentVariants(t *testing.T) {
	want := []byte("%PDF-1.4 test")

	variants := []string{
		base64.StdEncoding.EncodeToString(want),
		base64.RawStdEncoding.EncodeToString(want),
		base64.URLEncoding.EncodeToString(want),
		base64.RawURLEncoding.EncodeToString(want),
	}
	for _, v := range variants {
		got, ok := DecodeBase64Content(v)
		if !ok {
			t.Errorf("failed to decode %q", v)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("decoded %q, want %q", got, want)
		}
	}

	if _, ok := DecodeBase64Content("not~~base64!!"); ok {
		t.Error("expected failure for invalid base64")
	}
}
