package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/adapters/postgres"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/storage"
	"github.com/kestrelpm/invoice-ingest/internal/adapters/textextract"
	"github.com/kestrelpm/invoice-ingest/internal/config"
	"github.com/kestrelpm/invoice-ingest/internal/core"
	"github.com/kestrelpm/invoice-ingest/internal/factory"
	"github.com/kestrelpm/invoice-ingest/internal/logging"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "none", "LLM provider (none, edge, openai, gemini, bedrock)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 8192, "Maximum email content size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Input flags
	inputFile  = flag.String("file", "", "Input file, webhook JSON or raw email (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	// Initialize LLM client
	textProcessorFactory := factory.NewTextProcessorFactory(logger)
	llmFactory := factory.NewLLMFactory(cfg, logger, textProcessorFactory.CreateTextProcessor())
	llmClient, err := llmFactory.CreateLLMClient()
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Read the input
	var input []byte
	if *inputFile != "" {
		input, err = os.ReadFile(*inputFile)
		if err != nil {
			logger.Fatal("Failed to read input file", zap.Error(err), zap.String("file", *inputFile))
		}
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		input, err = io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			logger.Fatal("Failed to read stdin", zap.Error(err))
		}
		logger.Info("Reading email from stdin")
	}

	// Assemble an offline pipeline: in-memory persistence, no uploads.
	invoices := postgres.NewMemoryInvoiceStore()
	logs := postgres.NewMemoryLogStore()
	service := core.NewIngestService(
		core.NewUploader(storage.NewMemoryStore(), logger, time.Hour, false, 10*time.Second),
		textextract.NewDocumentExtractor(logger),
		llmClient,
		core.NewFieldExtractor(logger),
		invoices,
		logs,
		nil,
		false,
		0,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	requestID := uuid.NewString()

	var invoice *core.Invoice
	var payload map[string]any
	if json.Unmarshal(input, &payload) == nil {
		invoice, err = service.ProcessPayload(ctx, requestID, payload, nil)
	} else {
		invoice, err = service.ProcessEmail(ctx, requestID, emailFromRaw(input))
	}
	if err != nil {
		logger.Fatal("Extraction failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(invoice, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode invoice", zap.Error(err))
	}
	fmt.Println(string(out))
}

// emailFromRaw builds an inbound email from a raw RFC 5322 message. The CLI
// path keeps this deliberately simple: headers plus the undecoded body.
func emailFromRaw(raw []byte) *core.InboundEmail {
	email := &core.InboundEmail{}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		email.Text = string(raw)
		email.TrackingNumber = core.SynthesizeTrackingNumber()
		return email
	}

	email.From = msg.Header.Get("From")
	email.To = msg.Header.Get("To")
	email.Subject = msg.Header.Get("Subject")
	email.TrackingNumber = core.SynthesizeTrackingNumber()

	if body, err := io.ReadAll(msg.Body); err == nil {
		email.Text = string(body)
	}

	return email
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	return config.NewFromViper(v)
}
