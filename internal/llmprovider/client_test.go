package llmprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicodeaudit/auditor/internal/ratelimiter"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	cfg := Config{
		Name:             "qwen",
		BaseURL:          baseURL,
		APIKey:           "k",
		SupportedModels:  []string{"qwen-max"},
		MaxContextTokens: map[string]int{"qwen-max": 1_000_000},
		MaxRetries:       2,
	}
	limiter := ratelimiter.NewAdaptive(ratelimiter.Config{RPM: 1000, TPM: 1_000_000, WindowSeconds: 60})
	return New(cfg, limiter, http.DefaultClient)
}

func TestValidateRequestRejectsEmptyMessages(t *testing.T) {
	err := validateRequest(ChatRequest{Model: "qwen-max"}, 1000)
	assert.Error(t, err)
}

func TestValidateRequestRejectsBadTemperature(t *testing.T) {
	err := validateRequest(ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 3,
	}, 1000)
	assert.Error(t, err)
}

func TestEstimateTokensApproximatesCharsOverFour(t *testing.T) {
	got := estimateTokens([]Message{{Content: "abcdefgh"}})
	assert.Equal(t, 2, got)
}

func TestBackoffDelayClassifiesByStatus(t *testing.T) {
	assert.Equal(t, backoffBase*4, backoffDelay(classBadGateway, 1))
	assert.Equal(t, backoffBase*5, backoffDelay(classServiceUnavailable, 1))
	assert.Equal(t, maxRetryDelay, backoffDelay(classBadGateway, 10))
}

func TestChatCompletionSuccessParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := wireResponse{Model: "qwen-max"}
		resp.Choices = append(resp.Choices, struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		}{FinishReason: "stop"})
		resp.Choices[0].Message.Content = "hello"
		resp.Usage.TotalTokens = 42
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	out, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:    "qwen-max",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		TopP:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, 42, out.Usage.TotalTokens)
}

func TestChatCompletionUnsupportedModelRejected(t *testing.T) {
	p := newTestProvider(t, "http://unused.invalid")
	_, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:    "unsupported-model",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}

func TestChatCompletionAuthFailureNonRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:    "qwen-max",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}
