package config

import "time"

// ServerConfig represents the configuration for the inbound receivers
type ServerConfig struct {
	ListenAddress     string
	MaxUploadBytes    int64
	SMTPEnabled       bool
	SMTPListenAddress string
}

// SupabaseConfig represents the configuration for storage and the edge proxy
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	PublicBucket   bool
	SignedURLTTL   time.Duration
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:     c.GetString("server.listen_address"),
		MaxUploadBytes:    c.GetInt64("server.max_upload_bytes"),
		SMTPEnabled:       c.GetBool("server.smtp_enabled"),
		SMTPListenAddress: c.GetString("server.smtp_listen_address"),
	}
}

// GetSupabase returns the Supabase configuration
func (c *Config) GetSupabase() SupabaseConfig {
	ttl, err := c.GetDuration("supabase.signed_url_ttl")
	if err != nil {
		ttl = time.Hour
	}
	return SupabaseConfig{
		URL:            c.GetString("supabase.url"),
		ServiceRoleKey: c.GetString("supabase.service_role_key"),
		Bucket:         c.GetString("supabase.bucket"),
		PublicBucket:   c.GetBool("supabase.public_bucket"),
		SignedURLTTL:   ttl,
	}
}

// EdgeConfig represents the configuration for the extraction edge function
type EdgeConfig struct {
	Path    string
	Timeout time.Duration
}

// GetEdge returns the edge function configuration
func (c *Config) GetEdge() EdgeConfig {
	timeout, err := c.GetDuration("edge.timeout")
	if err != nil {
		timeout = 60 * time.Second
	}
	return EdgeConfig{
		Path:    c.GetString("edge.path"),
		Timeout: timeout,
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}
