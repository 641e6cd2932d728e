package smtpingest

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

// emailFromMessage flattens a parsed RFC 5322 message into the pipeline's
// inbound form: plain and HTML bodies plus decoded attachments.
func emailFromMessage(msg *mail.Message, sender string, recipients []string) *core.InboundEmail {
	email := &core.InboundEmail{
		From: sender,
	}
	if len(recipients) > 0 {
		email.To = recipients[0]
	}

	if from := msg.Header.Get("From"); from != "" {
		email.From = from
	}
	email.Subject = decodeHeader(msg.Header.Get("Subject"))
	if id := strings.Trim(msg.Header.Get("Message-Id"), "<> "); id != "" {
		email.TrackingNumber = id
	}

	walkPart(msg.Body, msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), "", email, 0)

	if email.TrackingNumber == "" {
		email.TrackingNumber = core.SynthesizeTrackingNumber()
	}
	return email
}

// walkPart recursively descends multipart bodies, collecting text, HTML and
// attachments. Depth is bounded to keep hostile nesting cheap.
func walkPart(body io.Reader, contentType, cte, disposition string, email *core.InboundEmail, depth int) {
	if depth > 8 {
		return
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
		params = nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary, ok := params["boundary"]
		if !ok {
			return
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			walkPart(part,
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part.Header.Get("Content-Disposition"),
				email, depth+1)
		}
	}

	data, err := io.ReadAll(decodeTransferEncoding(body, cte))
	if err != nil {
		return
	}

	filename := partFilename(params, disposition)
	isAttachment := filename != "" || strings.Contains(strings.ToLower(disposition), "attachment")

	if isAttachment {
		if filename == "" {
			filename = "attachment"
		}
		email.Attachments = append(email.Attachments, &core.Attachment{
			Filename:    filename,
			ContentType: mediaType,
			Content:     data,
			Size:        len(data),
		})
		return
	}

	text := decodeCharset(data, params["charset"])
	switch {
	case strings.Contains(mediaType, "text/html"):
		if email.HTML == "" {
			email.HTML = text
		}
	case strings.HasPrefix(mediaType, "text/"):
		if email.Text != "" {
			email.Text += "\n"
		}
		email.Text += text
	}
}

// decodeTransferEncoding unwraps base64 and quoted-printable bodies.
func decodeTransferEncoding(r io.Reader, cte string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// decodeCharset converts text in a declared charset to UTF-8, returning the
// input unchanged when the charset is unknown.
func decodeCharset(data []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// decodeHeader decodes RFC 2047 encoded-words in a header value.
func decodeHeader(value string) string {
	dec := mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, err
			}
			return enc.NewDecoder().Reader(input), nil
		},
	}
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// partFilename resolves a part's filename from either the disposition or the
// content type parameters.
func partFilename(ctParams map[string]string, disposition string) string {
	if disposition != "" {
		if _, dParams, err := mime.ParseMediaType(disposition); err == nil {
			if name := dParams["filename"]; name != "" {
				return decodeHeader(name)
			}
		}
	}
	if name := ctParams["name"]; name != "" {
		return decodeHeader(name)
	}
	return ""
}
