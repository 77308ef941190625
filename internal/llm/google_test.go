package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleComplete_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.URL.Path, "/models/test-model:generateContent")

		var req googleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "user", req.Contents[0].Role)
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, 0.1, req.GenerationConfig.Temperature)

		resp := googleResponse{
			Candidates: []googleCandidate{{
				Content: googleContent{Parts: []googlePart{{Text: `{"foods":["apple"]}`}}},
			}},
			UsageMetadata: googleUsage{PromptTokenCount: 100, CandidatesTokenCount: 50},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	resp, err := c.Complete(context.Background(), CompletionRequest{
		System:      "system prompt",
		User:        "user prompt",
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"foods":["apple"]}`, resp.Text)
	assert.Equal(t, 100, resp.InputTokens)
	assert.Equal(t, 50, resp.OutputTokens)
	assert.Equal(t, "test-model", resp.Model)
}

func TestGoogleComplete_SendsInlineImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req googleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents[0].Parts, 2)
		inline := req.Contents[0].Parts[1].InlineData
		require.NotNil(t, inline)
		assert.Equal(t, "image/jpeg", inline.MIMEType)
		assert.NotEmpty(t, inline.Data)

		resp := googleResponse{Candidates: []googleCandidate{{
			Content: googleContent{Parts: []googlePart{{Text: "ok"}}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(context.Background(), CompletionRequest{
		User:  "what is this",
		Image: &ImageData{MIME: "image/jpeg", Bytes: []byte{0xff, 0xd8, 0xff}},
	})
	require.NoError(t, err)
}

func TestGoogleComplete_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	var rateLimit *RateLimitError
	require.ErrorAs(t, err, &rateLimit)
	assert.Equal(t, int64(2), int64(rateLimit.RetryAfter.Seconds()))
	assert.True(t, Retryable(err))
}

func TestGoogleComplete_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
	assert.True(t, Retryable(err))
}

func TestGoogleComplete_BadRequestNotRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid image"}`))
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func TestGoogleComplete_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(googleResponse{})
	}))
	defer ts.Close()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response candidates")
}

func TestGoogleComplete_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &GoogleClient{apiKey: "test-key", baseURL: ts.URL, model: "test-model", httpClient: ts.Client()}
	_, err := c.Complete(ctx, CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.False(t, Retryable(err))
}
