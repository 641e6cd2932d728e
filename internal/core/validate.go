package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// pdfMagic is the mandatory signature for PDF content (hex 25504446).
var pdfMagic = []byte("%PDF")

// base64Pattern matches content that is plausibly base64 text rather than raw
// binary that happens to have arrived as a string.
var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)

// ValidateDocument normalizes an attachment's content to a byte buffer,
// verifies the binary signature for PDFs, and computes a SHA-256 checksum for
// later upload round-trip verification. Corrupted or mislabeled PDF content
// must never reach storage, so a signature mismatch is a hard failure.
// The attachment is mutated in place: Content is set to the decoded bytes.
func ValidateDocument(att *Attachment) ValidationResult {
	if att == nil || !att.HasContent() {
		return ValidationResult{ErrorMessage: "attachment has no content"}
	}

	if len(att.Content) == 0 {
		decoded, ok := decodeEncoded(att.Encoded)
		if !ok {
			return ValidationResult{ErrorMessage: fmt.Sprintf("attachment %s: content is not decodable", att.Filename)}
		}
		att.Content = decoded
	}
	att.Size = len(att.Content)

	if isPDF(att.ContentType) {
		if len(att.Content) < 4 || !bytes.Equal(att.Content[:4], pdfMagic) {
			return ValidationResult{
				ErrorMessage: fmt.Sprintf("attachment %s: declared application/pdf but content does not start with %%PDF", att.Filename),
			}
		}
	}

	sum := sha256.Sum256(att.Content)
	return ValidationResult{
		IsValid:  true,
		Checksum: hex.EncodeToString(sum[:]),
	}
}

// decodeEncoded turns string-shaped content into bytes. Data-URI prefixes are
// stripped; base64-looking strings are decoded; anything else is taken as
// literal text content.
func decodeEncoded(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}

	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)

	if base64Pattern.MatchString(compact) {
		if b, ok := DecodeBase64Content(compact); ok {
			return b, true
		}
	}

	return []byte(s), true
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isPDF(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}
