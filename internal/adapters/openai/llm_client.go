package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client       *openai.Client
	modelName    string
	maxTokens    int
	temperature  float32
	topP         float32
	maxBodySize  int
	logger       *zap.Logger
	promptFormat string
}

// invoiceExtractionResponse represents the structured response from the LLM.
// Amount is decoded loosely because models sometimes answer with a
// currency-formatted string despite the instructions.
type invoiceExtractionResponse struct {
	Vendor        string  `json:"vendor"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        any     `json:"amount"`
	InvoiceDate   string  `json:"invoice_date"`
	DueDate       string  `json:"due_date"`
	Description   string  `json:"description"`
	Confidence    float64 `json:"confidence"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
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
	}
}

// truncateBody truncates the email content if it exceeds the maximum size
func (c *OpenAIClient) truncateBody(body string) string {
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
func (c *OpenAIClient) ExtractInvoice(ctx context.Context, req *core.ExtractionRequest) (*core.InvoiceAnalysis, error) {
	prompt := fmt.Sprintf(c.promptFormat, req.From, req.Subject, c.truncateBody(req.Content))

	chatReq := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an invoice data extraction system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	responseFormat := openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	chatReq.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	extraction, err := parseExtractionResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.InvoiceAnalysis{
		Vendor:        extraction.Vendor,
		InvoiceNumber: extraction.InvoiceNumber,
		Amount:        normalizeAmount(extraction.Amount),
		InvoiceDate:   extraction.InvoiceDate,
		DueDate:       extraction.DueDate,
		Description:   extraction.Description,
		Confidence:    extraction.Confidence,
		ModelUsed:     c.modelName,
		AnalyzedAt:    time.Now(),
	}, nil
}

// parseExtractionResponse decodes the LLM's JSON answer, tolerating prose
// wrapped around the object.
func parseExtractionResponse(responseText string) (*invoiceExtractionResponse, error) {
	var extraction invoiceExtractionResponse
	if err := json.Unmarshal([]byte(responseText), &extraction); err == nil {
		return &extraction, nil
	}

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
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &extraction, nil
}

// normalizeAmount accepts the number or currency-string shapes models produce.
func normalizeAmount(v any) float64 {
	switch amount := v.(type) {
	case float64:
		return amount
	case string:
		return core.NormalizeAmount(amount)
	default:
		return 0
	}
}
