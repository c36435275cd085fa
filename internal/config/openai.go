package config

import (
	"fmt"
	"time"

	"mock-interview/internal/api"
)

// DefaultGeneratorURL is the OpenAI-compatible endpoint questions are generated with.
const DefaultGeneratorURL = api.DefaultURL

// GeneratorConfig configures the chat-completions client used for question generation.
type GeneratorConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Configured reports whether an API key is set. Without one the fallback bank is used.
func (c *GeneratorConfig) Configured() bool {
	return c.APIKey != ""
}

// ValidateConfig checks the values a configured client would send.
func (c *GeneratorConfig) ValidateConfig() error {
	if c.Model == "" {
		return fmt.Errorf("QUESTION_MODEL is required")
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("QUESTION_MAX_TOKENS must be positive")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("QUESTION_TEMPERATURE must be between 0 and 2")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("QUESTION_TIMEOUT must be positive")
	}

	return nil
}

// APIConfig converts to the client's injected configuration.
func (c *GeneratorConfig) APIConfig() api.Config {
	return api.Config{
		URL:         c.URL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// GetModelInfo returns the model settings for logs and the metrics endpoint.
func (c *GeneratorConfig) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model":       c.Model,
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
		"configured":  c.Configured(),
	}
}
