package orchestrator

import (
	"testing"

	"github.com/solacrm/backend/internal/model"
)

func TestIsAffirmative(t *testing.T) {
	yes := []string{
		"yes", "Yes!", "yep", "sure", "ok", "Okay.", "confirm",
		"go ahead", "yes please", "ok go ahead", "sounds good", "book it",
	}
	for _, s := range yes {
		if !isAffirmative(s) {
			t.Errorf("%q should be affirmative", s)
		}
	}

	no := []string{
		"", "no", "not yet", "don't do it", "yes but change the time",
		"wait", "cancel that", "what about pricing?",
		"yes I'd also like to know about your pricing plans and whether you integrate",
	}
	for _, s := range no {
		if isAffirmative(s) {
			t.Errorf("%q should not be affirmative", s)
		}
	}
}

func TestRequestedActionUsesTriggerVocabulary(t *testing.T) {
	if !requestedAction("Can you book a demo for me?", "", model.ActionCreateAppointment) {
		t.Error("explicit request in current message should pass")
	}
	if !requestedAction("Priya, priya@x.com", "I'd like to book a demo", model.ActionCreateAppointment) {
		t.Error("explicit request in prior message should pass")
	}
	if requestedAction("Your product looks interesting", "Tell me about demos", model.ActionCreateAppointment) {
		t.Error("topical mention alone must not count as a request")
	}
	if requestedAction("book a demo", "", model.ActionCreateLead) {
		t.Error("trigger vocabulary is per action type")
	}
}
