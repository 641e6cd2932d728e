package core

import (
	"fmt"
	"strings"
	"time"
)

// Field name cascades tried in order against provider payloads. Different
// email-to-webhook providers disagree on casing and naming; first non-empty
// match wins.
var (
	fromKeys     = []string{"from", "From", "sender", "Sender", "envelope_from"}
	toKeys       = []string{"to", "To", "recipient", "Recipient", "envelope_to"}
	subjectKeys  = []string{"subject", "Subject"}
	htmlKeys     = []string{"html", "Html", "HTML", "body_html", "body-html", "body", "Body"}
	textKeys     = []string{"text", "Text", "plain", "Plain", "body_plain", "body-plain"}
	trackingKeys = []string{"message_id", "messageId", "Message-Id", "MessageID", "sg_message_id", "tracking_number"}
)

// NormalizeEmail maps an arbitrary provider payload onto a canonical
// InboundEmail. It is a total function: for any input, including nil and
// deeply malformed maps, it returns a well-formed record with empty string
// fields and a synthesized tracking number rather than failing.
func NormalizeEmail(payload map[string]any) *InboundEmail {
	email := &InboundEmail{}

	if payload != nil {
		// Some providers nest the envelope inside a "headers" object.
		if headers, ok := payload["headers"].(map[string]any); ok {
			email.Subject = stringField(headers, subjectKeys)
			email.From = stringField(headers, fromKeys)
			email.To = stringField(headers, toKeys)
		}

		if email.From == "" {
			email.From = stringField(payload, fromKeys)
		}
		if email.To == "" {
			email.To = stringField(payload, toKeys)
		}
		if email.Subject == "" {
			email.Subject = stringField(payload, subjectKeys)
		}

		email.HTML = stringField(payload, htmlKeys)
		email.Text = stringField(payload, textKeys)
		email.TrackingNumber = stringField(payload, trackingKeys)
		email.Attachments = ExtractAttachments(payload)
	}

	if email.TrackingNumber == "" {
		email.TrackingNumber = SynthesizeTrackingNumber()
	}

	return email
}

// SynthesizeTrackingNumber produces a tracking number for deliveries that
// arrived without one.
func SynthesizeTrackingNumber() string {
	return fmt.Sprintf("email-%d", time.Now().UnixMilli())
}

// stringField returns the first non-empty string value among the candidate
// keys. Non-string values are ignored.
func stringField(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}
