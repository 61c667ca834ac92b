// Package orchestrator runs the per-turn control loops for both surfaces:
// compose, invoke, dispatch tools or actions, persist, audit.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/actions"
	"github.com/solacrm/backend/internal/convstore"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/events"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/prompt"
	"github.com/solacrm/backend/internal/tools"
	"github.com/solacrm/backend/pkg/logger"
)

// End users never see raw errors; failures collapse to these messages.
const (
	apologyMessage       = "I'm sorry, something went wrong while preparing your answer. Please try again in a moment."
	notConfiguredMessage = "The AI assistant is not set up for this workspace yet. Please ask an administrator to configure it."
)

// summarizeTimeout bounds the background summarization that runs after a
// turn's response has been sent.
const summarizeTimeout = 60 * time.Second

// ClientProvider yields the LLM client for a tenant. *llm.Factory satisfies it.
type ClientProvider interface {
	ForTenant(cfg model.TenantAIConfig) (llm.Client, error)
}

// AuditPublisher records turn and action events. *events.Client satisfies it.
type AuditPublisher interface {
	PublishTurn(ctx context.Context, ev events.TurnEvent)
	PublishAction(ctx context.Context, ev events.ActionEvent)
}

// Deps are the collaborators shared by both surface orchestrators.
type Deps struct {
	LLMs          ClientProvider
	Conversations *convstore.Store
	CRM           crm.Store
	Registry      *tools.Registry
	Composer      *prompt.Composer
	Retriever     tools.KnowledgeSearcher
	Executor      *actions.Executor
	Events        AuditPublisher // nil disables audit publishing
	Log           *logger.Logger
}

// Input is one user turn.
type Input struct {
	Tenant  model.TenantAIConfig
	OwnerID string
	Message string
}

// Output is the assistant's reply for one turn.
type Output struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// historyMessages converts the stored window into the LLM message list. The
// summary, when present, leads as a system message every turn.
func historyMessages(summary string, msgs []model.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(msgs)+1)
	if summary != "" {
		out = append(out, llm.ChatMessage{
			Role:    llm.RoleSystem,
			Content: "Summary of the earlier conversation:\n" + summary,
		})
	}
	for _, m := range msgs {
		out = append(out, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// lastUserMessage returns the most recent user message in the window.
func lastUserMessage(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func auditJSON(records []model.FunctionCallRecord) []byte {
	if len(records) == 0 {
		return nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil
	}
	return raw
}

// summarizeAsync compacts history after the response has gone out. The turn's
// context is usually cancelled by then, so it runs under its own deadline.
func summarizeAsync(d Deps, convID string, client llm.Client, modelName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
		defer cancel()
		d.Conversations.SummarizeIfNeeded(ctx, convID, client, modelName)
	}()
}

func publishTurn(ctx context.Context, d Deps, ev events.TurnEvent) {
	if d.Events == nil {
		return
	}
	d.Events.PublishTurn(ctx, ev)
}

func publishAction(ctx context.Context, d Deps, ev events.ActionEvent) {
	if d.Events == nil {
		return
	}
	d.Events.PublishAction(ctx, ev)
}

func logTurnError(log *logger.Logger, surface model.Surface, tenantID string, err error) {
	log.Error("turn failed",
		zap.String("surface", string(surface)),
		zap.String("tenant_id", tenantID),
		zap.Error(err))
}
