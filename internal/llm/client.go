// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"time"
)

// Message roles mirror the chat-completion wire protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrToolsUnsupported is returned by providers that cannot honor a tool
// catalog. Callers that need tool calling must construct an OpenAI-backed
// client.
var ErrToolsUnsupported = errors.New("provider does not support tool calling")

// ErrNotConfigured is returned when a tenant has no usable AI credential.
// There is deliberately no fallback to a shared key.
var ErrNotConfigured = errors.New("tenant AI is not configured")

// ChatMessage represents a chat message for the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-result message back to the request.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name is the tool name on tool-result messages.
	Name string `json:"name,omitempty"`
}

// ToolDef declares one callable tool in the catalog sent to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32

	// Tools, when non-empty, offers the model a function-calling catalog.
	Tools []ToolDef
	// ForceJSON requests a structured-JSON-only response mode.
	ForceJSON bool
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// SupportsTools reports whether the provider honors tool catalogs.
	SupportsTools() bool
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider. The timeout bounds
// each individual completion call; zero disables the per-call deadline.
func NewClient(provider Provider, apiKey string, timeout time.Duration) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, timeout)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, timeout)
	default:
		return NewOpenAIClient(apiKey, timeout)
	}
}
