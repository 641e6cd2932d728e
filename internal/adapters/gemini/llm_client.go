package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	modelName    string
	maxTokens    int
	temperature  float32
	topP         float32
	maxBodySize  int
	logger       *zap.Logger
	promptFormat string
}

// invoiceExtractionResponse represents the structured response from the LLM
type invoiceExtractionResponse struct {
	Vendor        string  `json:"vendor"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        any     `json:"amount"`
	InvoiceDate   string  `json:"invoice_date"`
	DueDate       string  `json:"due_date"`
	Description   string  `json:"description"`
	Confidence    float64 `json:"confidence"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:      client,
		model:       model,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxBodySize: maxBodySize,
		logger:      logger,
		promptFormat: `You are an invoice data extraction system. Analyze the following email and extract the invoice fields.
Respond with a JSON object containing:
- vendor: string (the billing company name, empty string if unknown)
- invoice_number: string (the invoice or order number, empty string if unknown)
- amount: number (the total amount due, 0 if unknown)
- invoice_date: string (ISO date YYYY-MM-DD, empty string if unknown)
- due_date: string (ISO date YYYY-MM-DD, empty string if unknown)
- description: string (one line describing what is being billed)
- confidence: number between 0 and 1 (how confident you are in the extraction)

Email:
From: %s
Subject: %s
Content:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// truncateBody truncates the email content if it exceeds the maximum size
func (c *GeminiClient) truncateBody(body string) string {
	if c.maxBodySize <= 0 || len(body) <= c.maxBodySize {
		return body
	}

	truncated := body[:c.maxBodySize]
	c.logger.Debug("Email content truncated",
		zap.Int("original_size", len(body)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", c.maxBodySize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// ExtractInvoice derives invoice fields from email content
func (c *GeminiClient) ExtractInvoice(ctx context.Context, req *core.ExtractionRequest) (*core.InvoiceAnalysis, error) {
	prompt := fmt.Sprintf(c.promptFormat, req.From, req.Subject, c.truncateBody(req.Content))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	var extraction invoiceExtractionResponse
	if err := json.Unmarshal([]byte(responseText), &extraction); err != nil {
		// The model occasionally wraps the object in prose or a code fence.
		jsonStart := -1
		jsonEnd := -1
		for i := 0; i < len(responseText); i++ {
			if responseText[i] == '{' {
				jsonStart = i
				break
			}
		}
		for i := len(responseText) - 1; i >= 0; i-- {
			if responseText[i] == '}' {
				jsonEnd = i + 1
				break
			}
		}

		if jsonStart < 0 || jsonStart >= jsonEnd {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &extraction); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	amount := 0.0
	switch v := extraction.Amount.(type) {
	case float64:
		amount = v
	case string:
		amount = core.NormalizeAmount(v)
	}

	return &core.InvoiceAnalysis{
		Vendor:        extraction.Vendor,
		InvoiceNumber: extraction.InvoiceNumber,
		Amount:        amount,
		InvoiceDate:   extraction.InvoiceDate,
		DueDate:       extraction.DueDate,
		Description:   extraction.Description,
		Confidence:    extraction.Confidence,
		ModelUsed:     c.modelName,
		AnalyzedAt:    time.Now(),
	}, nil
}
