package orchestrator

import (
	"strings"

	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/prompt"
)

// requestedAction reports whether the user themselves asked for the action,
// in the current or the immediately prior user message, using the action's
// trigger vocabulary. Topical inference by the model is not enough.
func requestedAction(current, prior string, t model.ActionType) bool {
	return mentionsTrigger(current, t) || mentionsTrigger(prior, t)
}

func mentionsTrigger(text string, t model.ActionType) bool {
	lower := strings.ToLower(text)
	for _, phrase := range prompt.TriggerPhrases(t) {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var affirmatives = []string{
	"yes", "yep", "yeah", "yup", "sure", "ok", "okay",
	"confirm", "confirmed", "correct", "go ahead", "do it",
	"sounds good", "looks good", "that's right", "thats right",
	"please do", "book it", "create it",
}

var negations = []string{"no", "not", "don't", "dont", "cancel", "wait", "stop", "change"}

// isAffirmative reports whether a message confirms a previously presented
// summary. Deliberately conservative: any negation word vetoes.
func isAffirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
	for _, w := range words {
		for _, n := range negations {
			if w == n {
				return false
			}
		}
	}

	for _, a := range affirmatives {
		if lower == a || lower == a+"!" || lower == a+"." {
			return true
		}
	}
	// Short messages that contain an affirmative phrase ("yes please",
	// "ok go ahead") count; long messages are treated as new content.
	if len(words) <= 4 {
		for _, a := range affirmatives {
			if strings.Contains(lower, a) {
				return true
			}
		}
	}
	return false
}
