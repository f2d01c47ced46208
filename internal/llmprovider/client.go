package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aicodeaudit/auditor/internal/auditerr"
	"github.com/aicodeaudit/auditor/internal/masking"
	"github.com/aicodeaudit/auditor/internal/ratelimiter"
)

// Config binds a Provider to one HTTP endpoint and its API secret.
type Config struct {
	Name             string
	BaseURL          string
	APIKey           string
	SupportedModels  []string
	MaxContextTokens map[string]int
	MaxRetries       int
}

// Provider is the HTTP client to one LLM backend (spec §4.D). Circuit
// breaker admission/recording is exclusively the LLM Manager's Dispatch
// responsibility (spec §4.E) — the Provider only touches the rate
// limiter, recording actual usage on success and an error on failure.
type Provider struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimiter.Adaptive
	mask    *masking.Service
}

// New builds a Provider bound to cfg, guarded by limiter (the circuit
// breaker for this provider is owned and applied by the LLM Manager).
func New(cfg Config, limiter *ratelimiter.Adaptive, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Provider{cfg: cfg, http: httpClient, limiter: limiter, mask: masking.New()}
}

// Name reports the provider's configured identifier.
func (p *Provider) Name() string { return p.cfg.Name }

// SupportsModel reports whether model is in this provider's catalog.
func (p *Provider) SupportsModel(model string) bool {
	return slices.Contains(p.cfg.SupportedModels, model)
}

// classifiedBackoff adapts our per-status backoff schedule to the
// backoff.BackOff interface so the retry loop can reuse
// cenkalti/backoff's ctx-aware Retry driver instead of a hand-rolled
// for-loop, while keeping spec §4.D's exact per-status multipliers.
type classifiedBackoff struct {
	attempt int
	class   statusClass
}

func (c *classifiedBackoff) NextBackOff() time.Duration {
	d := backoffDelay(c.class, c.attempt)
	c.attempt++
	return d
}

func (c *classifiedBackoff) Reset() { c.attempt = 0 }

// ChatCompletion executes spec §4.D's seven-step pipeline: validate,
// estimate tokens, acquire through the rate limiter, POST, classify the
// response, retry on retryable failures with classified backoff, and
// record usage/error back into the limiter. Circuit breaker admission
// and recording happen one level up, in the LLM Manager's Dispatch.
func (p *Provider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("provider %s does not support model %s", p.cfg.Name, req.Model))
	}

	if err := validateRequest(req, p.cfg.MaxContextTokens[req.Model]); err != nil {
		return nil, err
	}

	estimated := estimateTokens(req.Messages)

	if !p.limiter.AcquireWithEstimation(ctx, estimated) {
		return nil, auditerr.New(auditerr.ErrRateLimited, true, fmt.Errorf("rate limit could not be acquired for provider %s", p.cfg.Name))
	}

	var resp *ChatResponse
	cb := &classifiedBackoff{}

	op := func() error {
		start := time.Now()
		r, class, err := p.doRequest(ctx, req)
		if err != nil {
			cb.class = class
			if !isRetryable(class, err) {
				return backoff.Permanent(err)
			}
			return err
		}
		r.ResponseTime = time.Since(start).Seconds()
		resp = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(cb, uint64(p.cfg.MaxRetries)), ctx)
	retryErr := backoff.Retry(op, bo)
	if retryErr != nil {
		p.limiter.RecordError()
		return nil, unwrapPermanent(retryErr)
	}

	p.limiter.RecordActualUsage(resp.Usage.TotalTokens)
	return resp, nil
}

// ValidateAPIKey issues a minimal chat_completion probe to confirm the
// configured key is accepted by the provider, without consuming a full
// rate-limit token budget the way a real analysis request would.
func (p *Provider) ValidateAPIKey(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("provider %s has no API key configured", p.cfg.Name))
	}
	if len(p.cfg.SupportedModels) == 0 {
		return auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("provider %s has no supported models configured", p.cfg.Name))
	}

	_, _, err := p.doRequest(ctx, ChatRequest{
		Model:     p.cfg.SupportedModels[0],
		Messages:  []Message{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// Close releases the provider's underlying HTTP transport. Safe to call
// on a Provider sharing the package-level default client; only closes
// idle connections, matching net/http.Client's own lifecycle contract.
func (p *Provider) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if ok := asPermanent(err, &perm); ok {
		return perm.Err
	}
	return err
}

func asPermanent(err error, target **backoff.PermanentError) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*backoff.PermanentError); ok {
		*target = pe
		return true
	}
	return false
}

func isRetryable(class statusClass, err error) bool {
	return auditerr.IsRetryable(err)
}

// doRequest issues one HTTP POST attempt and classifies the outcome per
// spec §4.D step 5.
func (p *Provider) doRequest(ctx context.Context, req ChatRequest) (*ChatResponse, statusClass, error) {
	payload := map[string]any{
		"model":             req.Model,
		"messages":          toWireMessages(req.Messages),
		"temperature":       req.Temperature,
		"max_tokens":        req.MaxTokens,
		"top_p":             req.TopP,
		"frequency_penalty": req.FrequencyPenalty,
		"presence_penalty":  req.PresencePenalty,
		"stream":            req.Stream,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, classGeneric, auditerr.New(auditerr.ErrValidation, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, classGeneric, auditerr.New(auditerr.ErrIO, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		class := classifyStatus(0, isTimeoutErr(err))
		return nil, class, auditerr.New(auditerr.ErrServer, true, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classGeneric, auditerr.New(auditerr.ErrIO, true, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		return parseResponse(raw, req.Model)
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, classGeneric, auditerr.New(auditerr.ErrAuthentication, false, fmt.Errorf("authentication failed: %s", p.mask.Mask(string(raw))))
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, classGeneric, auditerr.New(auditerr.ErrRateLimited, true, fmt.Errorf("rate limited by provider: %s", p.mask.Mask(string(raw))))
	case httpResp.StatusCode >= 500:
		class := classifyStatus(httpResp.StatusCode, false)
		return nil, class, auditerr.New(auditerr.ErrServer, true, fmt.Errorf("server error %d: %s", httpResp.StatusCode, p.mask.Mask(string(raw))))
	default:
		return nil, classGeneric, auditerr.New(auditerr.ErrServer, false, fmt.Errorf("api error %d: %s", httpResp.StatusCode, p.mask.Mask(string(raw))))
	}
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

func toWireMessages(msgs []Message) []map[string]string {
	out := make([]map[string]string, len(msgs))
	for i, m := range msgs {
		out[i] = map[string]string{"role": string(m.Role), "content": m.Content}
	}
	return out
}

// wireResponse mirrors the OpenAI-shaped chat-completion response body.
type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseResponse(raw []byte, requestedModel string) (*ChatResponse, statusClass, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, classGeneric, auditerr.New(auditerr.ErrParse, false, fmt.Errorf("parsing chat completion response: %w", err))
	}
	if len(wire.Choices) == 0 {
		return nil, classGeneric, auditerr.New(auditerr.ErrParse, false, fmt.Errorf("response has no choices"))
	}

	model := wire.Model
	if model == "" {
		model = requestedModel
	}

	return &ChatResponse{
		Content:      wire.Choices[0].Message.Content,
		Model:        model,
		FinishReason: wire.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}, classGeneric, nil
}
