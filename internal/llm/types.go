package llm

import "context"

// Provider identifies a hosted completion API.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const defaultMaxOutputTokens = 8192

// ImageData is an inline image attached to a completion request.
type ImageData struct {
	MIME  string
	Bytes []byte
}

// CompletionRequest carries one prompt, and optionally one image, to a provider.
type CompletionRequest struct {
	System      string
	User        string
	Image       *ImageData
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the raw model reply plus usage accounting.
type CompletionResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer issues a single completion call to a hosted model.
// This is the only boundary allowed to talk to the LLM network API.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Provider() Provider
	Model() string
}
