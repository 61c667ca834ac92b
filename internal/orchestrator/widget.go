package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/actions"
	"github.com/solacrm/backend/internal/events"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/prompt"
	"github.com/solacrm/backend/pkg/metrics"
)

// Widget orchestrates the external chat surface: structured JSON envelopes,
// sanitized actions and server-side confirmation gating.
type Widget struct {
	d Deps
}

func NewWidget(d Deps) *Widget {
	return &Widget{d: d}
}

// Respond runs one widget turn.
func (w *Widget) Respond(ctx context.Context, in Input) (Output, error) {
	start := time.Now()

	client, err := w.d.LLMs.ForTenant(in.Tenant)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Output{Message: notConfiguredMessage}, nil
		}
		return Output{}, err
	}

	conv, err := w.d.Conversations.GetOrCreate(ctx, in.Tenant.TenantID, in.OwnerID, model.SurfaceWidget)
	if err != nil {
		return Output{}, fmt.Errorf("load conversation: %w", err)
	}

	// A recorded pending action is the server's memory of "summary was
	// presented, awaiting confirmation". It survives exactly one turn: an
	// affirmative executes it, anything else drops it and the conversation
	// moves on.
	pending, err := w.d.Conversations.TakePendingAction(ctx, conv.ID)
	if err != nil {
		return Output{}, fmt.Errorf("load pending action: %w", err)
	}
	if pending != nil && isAffirmative(in.Message) {
		return w.executePending(ctx, conv, in, client, pending, start)
	}

	summary, window, err := w.d.Conversations.Window(ctx, conv.ID)
	if err != nil {
		return Output{}, fmt.Errorf("load window: %w", err)
	}

	stages, err := w.d.CRM.PipelineStages(ctx, in.Tenant.TenantID)
	if err != nil {
		w.d.Log.Warn("pipeline stages unavailable for prompt",
			zap.String("tenant_id", in.Tenant.TenantID), zap.Error(err))
	}

	var passages []model.RetrievedPassage
	if w.d.Retriever != nil {
		passages = w.d.Retriever.Retrieve(ctx, in.Tenant, in.Message)
	}

	system := w.d.Composer.Widget(prompt.WidgetInput{
		Tenant:         in.Tenant,
		Stages:         stages,
		Passages:       passages,
		AllowedActions: in.Tenant.AllowedActions,
	})

	messages := []llm.ChatMessage{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, historyMessages(summary, window)...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: in.Message})

	resp, err := client.Complete(ctx, &llm.CompletionRequest{
		Model:       in.Tenant.Model,
		Messages:    messages,
		MaxTokens:   in.Tenant.MaxTokens,
		Temperature: in.Tenant.Temperature,
		ForceJSON:   true,
	})
	if err != nil {
		logTurnError(w.d.Log, model.SurfaceWidget, in.Tenant.TenantID, err)
		metrics.TurnDuration.WithLabelValues("widget", "error").Observe(time.Since(start).Seconds())
		return Output{ConversationID: conv.ID, Message: apologyMessage}, nil
	}

	env := ParseEnvelope(resp.Content)
	action := primaryAction(env.Actions, in.Tenant)
	reply := env.Message

	if action.Type != model.ActionNone {
		reply = w.handleAction(ctx, conv, in, action, env.Message, lastUserMessage(window))
	}

	if err := w.d.Conversations.Append(ctx, conv, model.RoleUser, in.Message, nil); err != nil {
		return Output{}, fmt.Errorf("persist user message: %w", err)
	}
	if err := w.d.Conversations.Append(ctx, conv, model.RoleAssistant, reply, nil); err != nil {
		return Output{}, fmt.Errorf("persist assistant message: %w", err)
	}

	publishTurn(ctx, w.d, events.TurnEvent{
		TenantID:       in.Tenant.TenantID,
		ConversationID: conv.ID,
		Surface:        string(model.SurfaceWidget),
		UserMessage:    in.Message,
		Assistant:      reply,
		Model:          resp.Model,
		TokensIn:       resp.TokensIn,
		TokensOut:      resp.TokensOut,
		LatencyMs:      time.Since(start).Milliseconds(),
	})

	summarizeAsync(w.d, conv.ID, client, in.Tenant.Model)
	metrics.TurnDuration.WithLabelValues("widget", "ok").Observe(time.Since(start).Seconds())

	return Output{ConversationID: conv.ID, Message: reply}, nil
}

// handleAction gates a model-proposed action. The user must have asked for it
// in their own words, and execution waits for an affirmative on a recorded
// pending action unless this very message is the confirmation.
func (w *Widget) handleAction(ctx context.Context, conv *model.Conversation, in Input, action model.Action, envelopeMessage, priorUserMessage string) string {
	if !requestedAction(in.Message, priorUserMessage, action.Type) {
		w.d.Log.Warn("dropped unrequested action",
			zap.String("tenant_id", in.Tenant.TenantID),
			zap.String("conversation_id", conv.ID),
			zap.String("action_type", string(action.Type)))
		return envelopeMessage
	}

	if isAffirmative(in.Message) {
		return w.execute(ctx, conv, in, action, envelopeMessage)
	}

	// Not yet confirmed: record it and let the model's summary question go
	// out. The next affirmative turn executes the recorded copy, regardless
	// of what the model emits then.
	err := w.d.Conversations.SetPendingAction(ctx, conv.ID, &model.PendingAction{
		Type:      action.Type,
		Data:      action.DraftJSON(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		w.d.Log.Error("record pending action failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	return envelopeMessage
}

// executePending runs the confirmed action without a model round trip; the
// user's "yes" refers to the summary already on record.
func (w *Widget) executePending(ctx context.Context, conv *model.Conversation, in Input, client llm.Client, pending *model.PendingAction, start time.Time) (Output, error) {
	action, err := actionFromPending(pending)
	if err != nil {
		w.d.Log.Warn("unreadable pending action",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		return Output{ConversationID: conv.ID, Message: apologyMessage}, nil
	}

	reply := w.execute(ctx, conv, in, action, "")

	if err := w.d.Conversations.Append(ctx, conv, model.RoleUser, in.Message, nil); err != nil {
		return Output{}, fmt.Errorf("persist user message: %w", err)
	}
	if err := w.d.Conversations.Append(ctx, conv, model.RoleAssistant, reply, nil); err != nil {
		return Output{}, fmt.Errorf("persist assistant message: %w", err)
	}

	publishTurn(ctx, w.d, events.TurnEvent{
		TenantID:       in.Tenant.TenantID,
		ConversationID: conv.ID,
		Surface:        string(model.SurfaceWidget),
		UserMessage:    in.Message,
		Assistant:      reply,
		LatencyMs:      time.Since(start).Milliseconds(),
	})

	summarizeAsync(w.d, conv.ID, client, in.Tenant.Model)
	metrics.TurnDuration.WithLabelValues("widget", "ok").Observe(time.Since(start).Seconds())

	return Output{ConversationID: conv.ID, Message: reply}, nil
}

// execute runs the action and reports the outcome conversationally.
func (w *Widget) execute(ctx context.Context, conv *model.Conversation, in Input, action model.Action, envelopeMessage string) string {
	result := w.d.Executor.Execute(ctx, action, actions.Context{
		Tenant:             in.Tenant,
		Surface:            model.SurfaceWidget,
		UserID:             in.OwnerID,
		CalendarCredential: in.Tenant.CalendarCredential,
	})

	publishAction(ctx, w.d, events.ActionEvent{
		TenantID:       in.Tenant.TenantID,
		ConversationID: conv.ID,
		ActionType:     action.Type,
		Success:        result.Success,
		Error:          result.Err,
	})

	if !result.Success {
		// Usually a missing required field; ask for it instead of erroring.
		return fmt.Sprintf("I couldn't finish that just yet: %s. Could you share the missing details?", result.Err)
	}
	if envelopeMessage != "" {
		return envelopeMessage
	}
	return successMessage(action, result)
}

func actionFromPending(p *model.PendingAction) (model.Action, error) {
	wire, err := json.Marshal(map[string]any{
		"type": p.Type,
		"data": json.RawMessage(p.Data),
	})
	if err != nil {
		return model.Action{}, err
	}
	var action model.Action
	if err := json.Unmarshal(wire, &action); err != nil {
		return model.Action{}, err
	}
	if action.Type == model.ActionNone {
		return model.Action{}, fmt.Errorf("pending action has no type")
	}
	return action, nil
}

func successMessage(action model.Action, result actions.Result) string {
	switch action.Type {
	case model.ActionCreateAppointment:
		when := ""
		if s, ok := result.Data["start_time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				when = " for " + t.Format("Monday, 2 January at 3:04 PM")
			}
		}
		return fmt.Sprintf("All set! Your appointment is booked%s. You'll receive a confirmation by email.", when)
	case model.ActionCreateTask:
		title, _ := result.Data["title"].(string)
		return fmt.Sprintf("Done — I've created the task %q for the team.", title)
	case model.ActionCreateLead:
		name, _ := result.Data["name"].(string)
		return fmt.Sprintf("Thanks %s, your details are saved. Someone from the team will reach out shortly.", strings.TrimSpace(name))
	}
	return "Done!"
}
