package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/model"
)

const (
	// StreamName is the audit stream for AI turns and actions.
	StreamName = "AI_AUDIT"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "ai"
)

// TurnEvent records one completed conversational turn.
type TurnEvent struct {
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	Surface        string    `json:"surface"`
	UserMessage    string    `json:"user_message"`
	Assistant      string    `json:"assistant_message"`
	ToolCalls      int       `json:"tool_calls"`
	Model          string    `json:"model"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	LatencyMs      int64     `json:"latency_ms"`
	At             time.Time `json:"at"`
}

// ActionEvent records one executed (or rejected) CRM action.
type ActionEvent struct {
	TenantID       string           `json:"tenant_id"`
	ConversationID string           `json:"conversation_id"`
	ActionType     model.ActionType `json:"action_type"`
	Success        bool             `json:"success"`
	Error          string           `json:"error,omitempty"`
	At             time.Time        `json:"at"`
}

func turnSubject(tenantID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.turn", SubjectPrefix, tenantID, conversationID)
}

func actionSubject(tenantID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.action", SubjectPrefix, tenantID, conversationID)
}

func (c *Client) ensureStream(ctx context.Context) error {
	if _, err := c.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "AI turn and action audit events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishTurn records a completed turn. Failures are logged and swallowed.
func (c *Client) PublishTurn(ctx context.Context, ev TurnEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	c.publish(ctx, turnSubject(ev.TenantID, ev.ConversationID), ev)
}

// PublishAction records an action outcome. Failures are logged and swallowed.
func (c *Client) PublishAction(ctx context.Context, ev ActionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	c.publish(ctx, actionSubject(ev.TenantID, ev.ConversationID), ev)
}

func (c *Client) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn("audit event encode failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		c.log.Warn("audit event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
