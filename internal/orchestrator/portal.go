package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/events"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/prompt"
	"github.com/solacrm/backend/internal/tools"
	"github.com/solacrm/backend/pkg/metrics"
)

// Tool rounds per turn before the loop is cut off.
const (
	maxRoundsFull    = 3
	maxRoundsMinimal = 2
)

// Portal orchestrates the internal-operator surface: free-text answers
// grounded by tool calls against the tenant's CRM data.
type Portal struct {
	d Deps
}

func NewPortal(d Deps) *Portal {
	return &Portal{d: d}
}

// Respond runs one portal turn.
func (p *Portal) Respond(ctx context.Context, in Input) (Output, error) {
	start := time.Now()

	client, err := p.d.LLMs.ForTenant(in.Tenant)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Output{Message: notConfiguredMessage}, nil
		}
		return Output{}, err
	}

	conv, err := p.d.Conversations.GetOrCreate(ctx, in.Tenant.TenantID, in.OwnerID, model.SurfacePortal)
	if err != nil {
		return Output{}, fmt.Errorf("load conversation: %w", err)
	}

	summary, window, err := p.d.Conversations.Window(ctx, conv.ID)
	if err != nil {
		return Output{}, fmt.Errorf("load window: %w", err)
	}

	// Stage and snapshot metadata are prompt garnish; failed lookups degrade
	// silently.
	stages, err := p.d.CRM.PipelineStages(ctx, in.Tenant.TenantID)
	if err != nil {
		p.d.Log.Warn("pipeline stages unavailable for prompt",
			zap.String("tenant_id", in.Tenant.TenantID), zap.Error(err))
	}
	var snapshot *crm.Stats
	if st, err := p.d.CRM.Stats(ctx, in.Tenant.TenantID); err != nil {
		p.d.Log.Warn("workspace snapshot unavailable for prompt",
			zap.String("tenant_id", in.Tenant.TenantID), zap.Error(err))
	} else {
		snapshot = &st
	}

	catalog := tools.Catalog(in.Tenant.Mode)
	system := p.d.Composer.Portal(prompt.PortalInput{
		Tenant: in.Tenant,
		Stats:  snapshot,
		Stages: stages,
		Tools:  catalog,
	})

	toolDefs := make([]llm.ToolDef, len(catalog))
	for i, s := range catalog {
		toolDefs[i] = llm.ToolDef{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}

	messages := []llm.ChatMessage{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, historyMessages(summary, window)...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: in.Message})

	maxRounds := maxRoundsFull
	if in.Tenant.Mode == model.AIModeMinimal {
		maxRounds = maxRoundsMinimal
	}

	caller := tools.Caller{Tenant: in.Tenant, UserID: in.OwnerID}

	var (
		final   string
		audit   []model.FunctionCallRecord
		tokens  struct{ in, out int }
		llmName string
	)

	for round := 0; ; round++ {
		req := &llm.CompletionRequest{
			Model:       in.Tenant.Model,
			Messages:    messages,
			MaxTokens:   in.Tenant.MaxTokens,
			Temperature: in.Tenant.Temperature,
		}
		if round < maxRounds {
			req.Tools = toolDefs
		}

		resp, err := client.Complete(ctx, req)
		if err != nil {
			logTurnError(p.d.Log, model.SurfacePortal, in.Tenant.TenantID, err)
			metrics.TurnDuration.WithLabelValues("portal", "error").Observe(time.Since(start).Seconds())
			return Output{ConversationID: conv.ID, Message: apologyMessage}, nil
		}
		tokens.in += resp.TokensIn
		tokens.out += resp.TokensOut
		llmName = resp.Model

		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			break
		}

		// Every call in the batch runs; a failing tool reports its error
		// payload instead of aborting the round.
		assistant := llm.ChatMessage{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistant)

		for _, call := range resp.ToolCalls {
			result := p.d.Registry.Execute(ctx, call.Name, json.RawMessage(call.Arguments), caller)
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    string(result),
				ToolCallID: call.ID,
				Name:       call.Name,
			})
			audit = append(audit, auditRecord(call, result))
		}
	}

	if err := p.d.Conversations.Append(ctx, conv, model.RoleUser, in.Message, nil); err != nil {
		return Output{}, fmt.Errorf("persist user message: %w", err)
	}
	if err := p.d.Conversations.Append(ctx, conv, model.RoleAssistant, final, auditJSON(audit)); err != nil {
		return Output{}, fmt.Errorf("persist assistant message: %w", err)
	}

	publishTurn(ctx, p.d, events.TurnEvent{
		TenantID:       in.Tenant.TenantID,
		ConversationID: conv.ID,
		Surface:        string(model.SurfacePortal),
		UserMessage:    in.Message,
		Assistant:      final,
		ToolCalls:      len(audit),
		Model:          llmName,
		TokensIn:       tokens.in,
		TokensOut:      tokens.out,
		LatencyMs:      time.Since(start).Milliseconds(),
	})

	summarizeAsync(p.d, conv.ID, client, in.Tenant.Model)
	metrics.TurnDuration.WithLabelValues("portal", "ok").Observe(time.Since(start).Seconds())

	return Output{ConversationID: conv.ID, Message: final}, nil
}

func auditRecord(call llm.ToolCall, result json.RawMessage) model.FunctionCallRecord {
	rec := model.FunctionCallRecord{Name: call.Name, Arguments: call.Arguments}

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result, &probe); err == nil && probe.Error != "" {
		rec.Error = probe.Error
	} else {
		rec.Result = string(result)
	}
	return rec
}
