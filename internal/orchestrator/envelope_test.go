package orchestrator

import (
	"testing"

	"github.com/solacrm/backend/internal/model"
)

func TestParseEnvelopeRawJSON(t *testing.T) {
	env := ParseEnvelope(`{"message":"Hi there","actions":[{"type":"none"}],"metadata":{}}`)
	if env.Message != "Hi there" {
		t.Errorf("message = %q", env.Message)
	}
	if len(env.Actions) != 1 || env.Actions[0].Type != model.ActionNone {
		t.Errorf("actions = %+v", env.Actions)
	}
}

func TestParseEnvelopeFenced(t *testing.T) {
	raw := "```json\n{\"message\":\"Booked!\",\"actions\":[{\"type\":\"create_task\",\"data\":{\"title\":\"Call back\"}}]}\n```"
	env := ParseEnvelope(raw)
	if env.Message != "Booked!" {
		t.Errorf("message = %q", env.Message)
	}
	if env.Actions[0].Type != model.ActionCreateTask || env.Actions[0].Task.Title != "Call back" {
		t.Errorf("actions = %+v", env.Actions)
	}
}

func TestParseEnvelopePlainTextFallsBack(t *testing.T) {
	env := ParseEnvelope("Sure, happy to help with that.")
	if env.Message != "Sure, happy to help with that." {
		t.Errorf("message = %q", env.Message)
	}
	if len(env.Actions) != 1 || env.Actions[0].Type != model.ActionNone {
		t.Errorf("fallback must carry a none action, got %+v", env.Actions)
	}
}

func TestParseEnvelopeBrokenJSONFallsBack(t *testing.T) {
	raw := `{"message":"unterminated`
	env := ParseEnvelope(raw)
	if env.Message != raw {
		t.Errorf("broken JSON must be wrapped verbatim, got %q", env.Message)
	}
	if env.Actions[0].Type != model.ActionNone {
		t.Errorf("actions = %+v", env.Actions)
	}
}

func TestParseEnvelopeUnknownActionTypeDecodesToNone(t *testing.T) {
	env := ParseEnvelope(`{"message":"ok","actions":[{"type":"drop_database"}]}`)
	if env.Actions[0].Type != model.ActionNone {
		t.Errorf("unknown type must map to none, got %+v", env.Actions[0])
	}
}

func TestPrimaryActionSanitization(t *testing.T) {
	tenant := model.TenantAIConfig{
		AllowedActions: []model.ActionType{model.ActionCreateLead},
	}

	got := primaryAction([]model.Action{
		{Type: model.ActionNone},
		{Type: model.ActionCreateTask, Task: &model.TaskDraft{Title: "disallowed"}},
		{Type: model.ActionCreateLead, Lead: &model.LeadDraft{Name: "Priya"}},
		{Type: model.ActionCreateLead, Lead: &model.LeadDraft{Name: "second, ignored"}},
	}, tenant)

	if got.Type != model.ActionCreateLead || got.Lead.Name != "Priya" {
		t.Errorf("primary = %+v", got)
	}

	open := model.TenantAIConfig{}
	if got := primaryAction([]model.Action{{Type: model.ActionNone}}, open); got.Type != model.ActionNone {
		t.Errorf("none-only list must stay none, got %+v", got)
	}
}
