// Package llmprovider implements the HTTP client to one LLM backend
// (spec §4.D): request validation, token estimation, rate-limited and
// circuit-breaker-guarded dispatch, classified retry with per-status
// backoff, and response parsing. Grounded on the teacher's
// ConversationMessage/Role shapes (pkg/llm, pkg/agent/llm_client.go)
// adapted from gRPC/protobuf transport to direct OpenAI-shaped HTTP, and
// on the Provider interface documented in the llm package reference
// (other_examples 7a5fd605 BaSui01-agentflow).
package llmprovider

// Role identifies the speaker of one conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a chat-completion call (spec §4.D step 1).
type ChatRequest struct {
	Model           string
	Messages        []Message
	Temperature     float64
	TopP            float64
	MaxTokens       int
	FrequencyPenalty float64
	PresencePenalty  float64
	Stream           bool
}

// Usage reports token accounting for one completed call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the parsed result of a successful completion call.
type ChatResponse struct {
	Content      string
	Model        string
	Usage        Usage
	FinishReason string
	ResponseTime float64 // seconds
}

// HealthStatus reports whether a provider currently appears reachable.
type HealthStatus struct {
	Healthy bool
	Detail  string
}
