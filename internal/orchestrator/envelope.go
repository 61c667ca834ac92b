package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/solacrm/backend/internal/model"
)

// Envelope is the structured output contract for the widget surface.
type Envelope struct {
	Message  string          `json:"message"`
	Actions  []model.Action  `json:"actions"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// ParseEnvelope decodes model output with a fixed recovery ladder: parse the
// raw text, then strip a markdown fence and parse again, then wrap the raw
// text as a plain message with no action. A turn never fails on bad output.
func ParseEnvelope(raw string) Envelope {
	trimmed := strings.TrimSpace(raw)

	if env, ok := tryParse(trimmed); ok {
		return env
	}

	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		if env, ok := tryParse(m[1]); ok {
			return env
		}
	}

	return Envelope{
		Message: trimmed,
		Actions: []model.Action{{Type: model.ActionNone}},
	}
}

func tryParse(s string) (Envelope, bool) {
	if !strings.HasPrefix(s, "{") {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Envelope{}, false
	}
	if env.Message == "" && len(env.Actions) == 0 {
		// A JSON object that isn't our envelope at all.
		return Envelope{}, false
	}
	if len(env.Actions) == 0 {
		env.Actions = []model.Action{{Type: model.ActionNone}}
	}
	return env, true
}

// primaryAction sanitizes the parsed action list: only the first action the
// tenant allows is honored, everything else is ignored.
func primaryAction(acts []model.Action, tenant model.TenantAIConfig) model.Action {
	for _, a := range acts {
		if a.Type == model.ActionNone {
			continue
		}
		if !tenant.ActionAllowed(a.Type) {
			continue
		}
		return a
	}
	return model.Action{Type: model.ActionNone}
}
