package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

type invoiceResponse struct {
	Success   bool          `json:"success"`
	InvoiceID string        `json:"invoiceId,omitempty"`
	Invoice   *core.Invoice `json:"invoice,omitempty"`
	Duplicate bool          `json:"duplicate,omitempty"`
	Error     string        `json:"error,omitempty"`
	Details   string        `json:"details,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// attachmentDetail is the positional metadata some providers post alongside
// multipart file parts, as attachment_details[0], attachment_details[1], ...
type attachmentDetail struct {
	Filename    string `json:"filename"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Type        string `json:"type"`
}

// handleInvoiceReceiver accepts one email delivery, either as a JSON payload
// or as a multipart form, runs the pipeline and reports the created invoice.
func (s *Server) handleInvoiceReceiver(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	payload, formAtts, err := s.parseRequest(r)
	if err != nil {
		logger.Warn("Malformed webhook request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, invoiceResponse{
			Success: false,
			Error:   "invalid request payload",
			Details: err.Error(),
		})
		return
	}

	invoice, err := s.service.ProcessPayload(r.Context(), requestID, payload, formAtts)
	switch {
	case errors.Is(err, core.ErrEmptyPayload):
		writeJSON(w, http.StatusBadRequest, invoiceResponse{
			Success: false,
			Error:   core.ErrEmptyPayload.Error(),
			Details: "request contained no email fields and no attachments",
		})
	case errors.Is(err, core.ErrSenderNotAllowed):
		writeJSON(w, http.StatusForbidden, invoiceResponse{
			Success: false,
			Error:   "sender not allowed",
		})
	case errors.Is(err, core.ErrDuplicateDelivery):
		writeJSON(w, http.StatusOK, invoiceResponse{
			Success:   true,
			Duplicate: true,
		})
	case err != nil:
		logger.Error("Pipeline failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, invoiceResponse{
			Success: false,
			Error:   "failed to process email",
		})
	default:
		writeJSON(w, http.StatusCreated, invoiceResponse{
			Success:   true,
			InvoiceID: invoice.ID,
			Invoice:   invoice,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// parseRequest decodes either content type into the pipeline's inputs: a
// payload map of email fields and any attachments posted as file parts.
// The body is buffered so that when the declared mode fails to parse, the
// alternate mode gets a chance before the request is rejected; providers
// occasionally mislabel the content type.
func (s *Server) parseRequest(r *http.Request) (map[string]any, []*core.Attachment, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadBytes))
	if err != nil {
		return nil, nil, err
	}

	mediaType := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		payload, atts, err := s.parseMultipart(r, body)
		if err == nil {
			return payload, atts, nil
		}
		if payload, jsonErr := parseJSONBody(body); jsonErr == nil {
			return payload, nil, nil
		}
		return nil, nil, err
	}

	payload, err := parseJSONBody(body)
	if err == nil {
		return payload, nil, nil
	}
	if payload, atts, mpErr := s.parseMultipart(r, body); mpErr == nil {
		return payload, atts, nil
	}
	return nil, nil, err
}

func parseJSONBody(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Server) parseMultipart(r *http.Request, body []byte) (map[string]any, []*core.Attachment, error) {
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, nil, err
	}

	payload := map[string]any{}
	details := map[int]attachmentDetail{}
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		if idx, ok := detailIndex(key); ok {
			var d attachmentDetail
			if err := json.Unmarshal([]byte(values[0]), &d); err == nil {
				details[idx] = d
			}
			continue
		}
		payload[key] = values[0]
	}

	// File part keys vary by provider (attachment1, attachments[], ...) so
	// anything attachment-ish counts. Keys are sorted to keep the pairing
	// with attachment_details stable.
	var fileKeys []string
	for key := range r.MultipartForm.File {
		if strings.Contains(strings.ToLower(key), "attachment") {
			fileKeys = append(fileKeys, key)
		}
	}
	sort.Strings(fileKeys)

	var atts []*core.Attachment
	for _, key := range fileKeys {
		for _, fh := range r.MultipartForm.File[key] {
			f, err := fh.Open()
			if err != nil {
				return nil, nil, err
			}
			content, err := io.ReadAll(io.LimitReader(f, s.maxUploadBytes))
			f.Close()
			if err != nil {
				return nil, nil, err
			}

			att := &core.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Content:     content,
				Size:        len(content),
			}
			if d, ok := details[len(atts)]; ok {
				if name := firstNonEmpty(d.Filename, d.Name); name != "" {
					att.Filename = name
				}
				if ct := firstNonEmpty(d.ContentType, d.Type); ct != "" {
					att.ContentType = ct
				}
			}
			atts = append(atts, att)
		}
	}

	return payload, atts, nil
}

// detailIndex parses keys of the form attachment_details[N]
func detailIndex(key string) (int, bool) {
	const prefix = "attachment_details["
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") {
		return 0, false
	}
	n := 0
	digits := key[len(prefix) : len(key)-1]
	if digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
