package core

import (
	"encoding/base64"
	"encoding/json"
)

// ExtractAttachments locates attachment data within a raw provider payload
// regardless of provider-specific field naming. It tries, in priority order:
// an "attachments" array, an "Attachments" array, a singular "attachment"
// object, a JSON-string-encoded "attachments" field, a nested
// "email.attachments", and finally a heuristic scan of all top-level fields
// for an array whose elements look like attachments. It returns an empty
// slice (never an error) when nothing matches; "no attachments" is a common,
// valid case.
func ExtractAttachments(payload map[string]any) []*Attachment {
	if payload == nil {
		return nil
	}

	for _, key := range []string{"attachments", "Attachments"} {
		if arr, ok := payload[key].([]any); ok {
			if atts := decodeAttachmentList(arr); len(atts) > 0 {
				return atts
			}
		}
	}

	for _, key := range []string{"attachment", "Attachment"} {
		if obj, ok := payload[key].(map[string]any); ok {
			if att := decodeAttachment(obj); att != nil {
				return []*Attachment{att}
			}
		}
	}

	// Some providers JSON-encode the attachment list into a string field.
	if s, ok := payload["attachments"].(string); ok && s != "" {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			if atts := decodeAttachmentList(arr); len(atts) > 0 {
				return atts
			}
		}
	}

	if email, ok := payload["email"].(map[string]any); ok {
		if arr, ok := email["attachments"].([]any); ok {
			if atts := decodeAttachmentList(arr); len(atts) > 0 {
				return atts
			}
		}
	}

	// Last resort: scan every top-level array for attachment-shaped elements.
	for _, v := range payload {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		first, ok := arr[0].(map[string]any)
		if !ok {
			continue
		}
		if looksLikeAttachment(first) {
			if atts := decodeAttachmentList(arr); len(atts) > 0 {
				return atts
			}
		}
	}

	return nil
}

func looksLikeAttachment(m map[string]any) bool {
	score := 0
	for _, k := range []string{"filename", "fileName", "name", "content", "data", "contentType", "content_type", "type"} {
		if _, ok := m[k]; ok {
			score++
		}
	}
	return score >= 2
}

func decodeAttachmentList(arr []any) []*Attachment {
	var atts []*Attachment
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if att := decodeAttachment(obj); att != nil {
			atts = append(atts, att)
		}
	}
	return atts
}

// decodeAttachment maps one attachment-like object onto an Attachment.
// Content may arrive as a base64 string (kept in Encoded for the validator to
// decode) or as a raw byte slice. Returns nil for objects with no usable
// identity or payload.
func decodeAttachment(obj map[string]any) *Attachment {
	att := &Attachment{}

	for _, k := range []string{"filename", "fileName", "file_name", "name", "Name"} {
		if s, ok := obj[k].(string); ok && s != "" {
			att.Filename = s
			break
		}
	}
	for _, k := range []string{"contentType", "content_type", "content-type", "type", "Type"} {
		if s, ok := obj[k].(string); ok && s != "" {
			att.ContentType = s
			break
		}
	}

	for _, k := range []string{"content", "Content", "data", "Data", "content_b64"} {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				att.Encoded = v
			}
		case []byte:
			att.Content = v
		}
		if att.HasContent() {
			break
		}
	}

	switch v := obj["size"].(type) {
	case float64:
		att.Size = int(v)
	case int:
		att.Size = v
	}

	if att.Filename == "" && !att.HasContent() {
		return nil
	}
	return att
}

// DecodeBase64Content decodes s as standard or URL-safe base64, tolerating
// missing padding. ok is false when s is not valid base64.
func DecodeBase64Content(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
