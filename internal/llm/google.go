package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GoogleClient implements Completer for Google Gemini
type GoogleClient struct {
	apiKey      string
	model       string
	httpClient  *http.Client
	baseURL     string
	maxTokens   int
	temperature float64
}

// NewGoogleClient creates a new Google Gemini client
func NewGoogleClient(apiKey, model string) *GoogleClient {
	return &GoogleClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		maxTokens:  defaultMaxOutputTokens,
	}
}

// Google API request/response types
type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *googleInlineData `json:"inline_data,omitempty"`
}

type googleInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleResponse struct {
	Candidates    []googleCandidate `json:"candidates"`
	UsageMetadata googleUsage       `json:"usageMetadata"`
}

type googleCandidate struct {
	Content googleContent `json:"content"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Complete sends a request to Google Gemini
func (c *GoogleClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	parts := []googlePart{{Text: req.User}}
	if req.Image != nil {
		parts = append(parts, googlePart{
			InlineData: &googleInlineData{
				MIMEType: req.Image.MIME,
				Data:     base64.StdEncoding.EncodeToString(req.Image.Bytes),
			},
		})
	}

	reqBody := googleRequest{
		Contents: []googleContent{{Role: "user", Parts: parts}},
		GenerationConfig: googleGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if req.System != "" {
		reqBody.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.System}}}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromStatus(resp.StatusCode, resp.Header.Get("Retry-After"), body)
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(googleResp.Candidates) == 0 {
		return nil, fmt.Errorf("no response candidates")
	}

	text := ""
	for _, part := range googleResp.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &CompletionResponse{
		Text:         text,
		Model:        c.model,
		InputTokens:  googleResp.UsageMetadata.PromptTokenCount,
		OutputTokens: googleResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// Provider returns the provider name
func (c *GoogleClient) Provider() Provider {
	return ProviderGemini
}

// Model returns the model name
func (c *GoogleClient) Model() string {
	return c.model
}
