package llm

import (
	"fmt"
	"time"
)

// Config holds the configuration for an OpenAI-compatible chat endpoint.
// The same shape serves the generation model and the grading model; the
// grader usually shares credentials and only overrides Model.
//
// Environment Variables (read by internal/config):
// - LLM_API_KEY: API key for the provider (required)
// - LLM_API_URL: API base URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name (default: openai/gpt-4o)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2000)
// - LLM_TEMPERATURE: Temperature for generation (default: 0)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
type Config struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	APIURL      string  `json:"api_url" yaml:"api_url"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Timeout     int     `json:"timeout" yaml:"timeout"`
	SiteURL     string  `json:"site_url" yaml:"site_url"`
	AppName     string  `json:"app_name" yaml:"app_name"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the extra headers sent with every request.
// Authorization is handled by the OpenAI client itself.
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}

// WithModel returns a copy of the config pointing at another model.
func (c Config) WithModel(model string) Config {
	if model != "" {
		c.Model = model
	}
	return c
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
