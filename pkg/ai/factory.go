package ai

import "time"

// defaultTimeout bounds every completion call when no timeout is
// configured.
const defaultTimeout = 60 * time.Second

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini" or "ollama"

	// Gemini config
	GeminiAPIKey string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"

	// Timeout caps each completion call; a timed-out call fails as a
	// retryable upstream error.
	Timeout time.Duration
}

// NewClient creates a Client based on the config
// This is the factory function - switch AI provider by changing config.Provider
func NewClient(cfg Config) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(cfg.GeminiAPIKey, cfg.Timeout)

	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Timeout)

	default:
		// Default to Gemini if API key is available, otherwise Ollama
		if cfg.GeminiAPIKey != "" {
			return NewGeminiClient(cfg.GeminiAPIKey, cfg.Timeout)
		}
		return NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Timeout)
	}
}
