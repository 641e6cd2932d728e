package edgefn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kestrelpm/invoice-ingest/internal/core"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// EdgeClient is an implementation of the LLMClient interface that delegates
// extraction to a deployed Supabase edge function. The function holds the
// prompt and talks to the model provider itself, so this side only ships
// content and credentials.
type EdgeClient struct {
	baseURL    string
	path       string
	serviceKey string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type edgeRequest struct {
	Content     string            `json:"content"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
	APIKey      string            `json:"apiKey,omitempty"`
}

type edgeResponse struct {
	Success       bool    `json:"success"`
	Error         string  `json:"error"`
	Confidence    float64 `json:"confidence"`
	ExtractedData struct {
		Vendor        string `json:"vendor"`
		InvoiceNumber string `json:"invoiceNumber"`
		Amount        any    `json:"amount"`
		InvoiceDate   string `json:"invoiceDate"`
		DueDate       string `json:"dueDate"`
		Description   string `json:"description"`
	} `json:"extractedData"`
}

// NewEdgeClient creates a new edge function client
func NewEdgeClient(baseURL, path, serviceKey, apiKey string, timeout time.Duration, logger *zap.Logger) *EdgeClient {
	return &EdgeClient{
		baseURL:    baseURL,
		path:       path,
		serviceKey: serviceKey,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ExtractInvoice sends email content to the edge function and maps its
// answer onto an InvoiceAnalysis
func (c *EdgeClient) ExtractInvoice(ctx context.Context, req *core.ExtractionRequest) (*core.InvoiceAnalysis, error) {
	body, err := json.Marshal(edgeRequest{
		Content:     req.Content,
		ContentType: "invoice",
		Metadata: map[string]string{
			"subject": req.Subject,
			"from":    req.From,
		},
		APIKey: c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge function request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create edge function request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.serviceKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call edge function: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read edge function response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			// Separate log line so an operator can tell a bad service-role
			// key apart from a failing extraction.
			c.logger.Warn("Edge function rejected credentials",
				zap.Int("status", resp.StatusCode))
		}
		return nil, fmt.Errorf("edge function returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var edge edgeResponse
	if err := json.Unmarshal(respBody, &edge); err != nil {
		return nil, fmt.Errorf("failed to parse edge function response: %w", err)
	}
	if !edge.Success {
		return nil, fmt.Errorf("edge function extraction failed: %s", edge.Error)
	}

	amount := 0.0
	switch v := edge.ExtractedData.Amount.(type) {
	case float64:
		amount = v
	case string:
		amount = core.NormalizeAmount(v)
	}

	return &core.InvoiceAnalysis{
		Vendor:        edge.ExtractedData.Vendor,
		InvoiceNumber: edge.ExtractedData.InvoiceNumber,
		Amount:        amount,
		InvoiceDate:   edge.ExtractedData.InvoiceDate,
		DueDate:       edge.ExtractedData.DueDate,
		Description:   edge.ExtractedData.Description,
		Confidence:    edge.Confidence,
		ModelUsed:     "edge-function",
		AnalyzedAt:    time.Now(),
	}, nil
}
