package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Client is the narrow contract the pipeline has on the language-model
// backend: one prompt in, one text completion out. Prompt construction
// and output-schema validation belong to the callers.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// ExtractJSON pulls the first JSON object or array out of a model
// completion, tolerating markdown code fences and surrounding prose.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	text = strings.TrimSpace(text)

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	start := objStart
	end := strings.LastIndex(text, "}")
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		end = strings.LastIndex(text, "]")
	}
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}

// DecodeJSON extracts and unmarshals a JSON payload from a completion.
func DecodeJSON(text string, v interface{}) error {
	payload := ExtractJSON(text)
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("failed to parse model output: %w", err)
	}
	return nil
}
