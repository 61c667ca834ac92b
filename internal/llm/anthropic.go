package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/solacrm/backend/pkg/metrics"
)

// jsonOnlyInstruction enforces forced-JSON mode on a provider with no native
// response-format switch.
const jsonOnlyInstruction = "Respond with a single valid JSON object and nothing else: no prose around it, no markdown fences."

// AnthropicClient is the Anthropic LLM client. It supports plain-text and
// forced-JSON completions; tool catalogs are rejected with
// ErrToolsUnsupported, so surfaces that dispatch tools must be configured
// with an OpenAI credential.
type AnthropicClient struct {
	client  *anthropic.Client
	timeout time.Duration
}

// NewAnthropicClient creates a new Anthropic client. Each completion call
// carries its own deadline.
func NewAnthropicClient(apiKey string, timeout time.Duration) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		timeout: timeout,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// SupportsTools reports tool-calling capability.
func (c *AnthropicClient) SupportsTools() bool { return false }

// flattenForAnthropic rewrites a chat transcript for the messages endpoint,
// which takes alternating user/assistant turns: system content (plus the
// JSON-only instruction when forced) is folded into the first user turn.
func flattenForAnthropic(msgs []ChatMessage, forceJSON bool) []ChatMessage {
	var system string
	if forceJSON {
		system = jsonOnlyInstruction
	}

	out := make([]ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		content := msg.Content
		if system != "" && len(out) == 0 && msg.Role == RoleUser {
			content = system + "\n\n" + content
			system = ""
		}
		out = append(out, ChatMessage{Role: msg.Role, Content: content})
	}
	return out
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if len(req.Tools) > 0 {
		return nil, ErrToolsUnsupported
	}

	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	flat := flattenForAnthropic(req.Messages, req.ForceJSON)
	messages := make([]anthropic.MessageParam, 0, len(flat))
	for _, msg := range flat {
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		})
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	})
	if err != nil {
		metrics.RecordLLMCall(c.Name(), model, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	out := &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	metrics.RecordLLMCall(c.Name(), model, "ok", time.Since(start).Seconds(), out.TokensIn, out.TokensOut)
	return out, nil
}
