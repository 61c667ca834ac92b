package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType is the closed vocabulary of side-effecting CRM actions the model
// may propose.
type ActionType string

const (
	ActionNone              ActionType = "none"
	ActionCreateAppointment ActionType = "create_appointment"
	ActionCreateTask        ActionType = "create_task"
	ActionCreateLead        ActionType = "create_lead"
)

// KnownActionTypes lists every non-none action type.
var KnownActionTypes = []ActionType{ActionCreateAppointment, ActionCreateTask, ActionCreateLead}

// AppointmentDraft carries the fields gathered for a create_appointment action.
// Date and Time stay as the user's natural-language strings until the executor
// resolves them against the business clock.
type AppointmentDraft struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Title    string `json:"title,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Kind     string `json:"kind,omitempty"` // demo|call|meeting
	Notes    string `json:"notes,omitempty"`
}

// TaskDraft carries the fields gathered for a create_task action.
type TaskDraft struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	DueTime     string `json:"due_time,omitempty"`
}

// LeadDraft carries the fields gathered for a create_lead action. Phone is
// stored byte-for-byte as provided; downstream messaging depends on the exact
// string.
type LeadDraft struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Source  string `json:"source,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Action is the tagged union produced by parsing model output. Exactly one of
// the variant pointers is set for a non-none type.
type Action struct {
	Type       ActionType
	Confidence float64

	Appointment *AppointmentDraft
	Task        *TaskDraft
	Lead        *LeadDraft
}

// actionWire is the JSON shape the model emits: {type, data, confidence}.
type actionWire struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Confidence float64         `json:"confidence"`
}

// UnmarshalJSON decodes the wire shape into the tagged union. Unknown types
// decode to ActionNone rather than erroring so one bad element cannot fail a
// whole envelope.
func (a *Action) UnmarshalJSON(b []byte) error {
	var w actionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*a = Action{Type: ActionNone, Confidence: w.Confidence}

	switch ActionType(strings.ToLower(strings.TrimSpace(w.Type))) {
	case ActionCreateAppointment:
		d := &AppointmentDraft{}
		if len(w.Data) > 0 {
			if err := json.Unmarshal(w.Data, d); err != nil {
				return fmt.Errorf("invalid appointment data: %w", err)
			}
		}
		a.Type = ActionCreateAppointment
		a.Appointment = d
	case ActionCreateTask:
		d := &TaskDraft{}
		if len(w.Data) > 0 {
			if err := json.Unmarshal(w.Data, d); err != nil {
				return fmt.Errorf("invalid task data: %w", err)
			}
		}
		a.Type = ActionCreateTask
		a.Task = d
	case ActionCreateLead:
		d := &LeadDraft{}
		if len(w.Data) > 0 {
			if err := json.Unmarshal(w.Data, d); err != nil {
				return fmt.Errorf("invalid lead data: %w", err)
			}
		}
		a.Type = ActionCreateLead
		a.Lead = d
	}

	return nil
}

// MarshalJSON re-encodes the union in the wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	var data any
	switch a.Type {
	case ActionCreateAppointment:
		data = a.Appointment
	case ActionCreateTask:
		data = a.Task
	case ActionCreateLead:
		data = a.Lead
	}
	return json.Marshal(actionWire{
		Type:       string(a.Type),
		Data:       mustRaw(data),
		Confidence: a.Confidence,
	})
}

func mustRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// DraftJSON returns the serialized variant payload, used when recording a
// pending action.
func (a Action) DraftJSON() json.RawMessage {
	switch a.Type {
	case ActionCreateAppointment:
		return mustRaw(a.Appointment)
	case ActionCreateTask:
		return mustRaw(a.Task)
	case ActionCreateLead:
		return mustRaw(a.Lead)
	}
	return nil
}
