// Package model defines data structures for the AI orchestration layer.
package model

import (
	"encoding/json"
	"time"
)

// Surface identifies the conversational entry point.
type Surface string

const (
	// SurfacePortal is the internal CRM operator surface with full tool access.
	SurfacePortal Surface = "portal"
	// SurfaceWidget is the external chat-widget surface with the structured
	// action protocol.
	SurfaceWidget Surface = "widget"
)

// Conversation is one thread of AI dialogue, keyed by (tenant, owner, surface).
// For the portal surface the owner is a CRM user; for the widget surface it is
// a contact thread.
type Conversation struct {
	ID       string  `gorm:"primaryKey;size:36" json:"id"`
	TenantID string  `gorm:"size:64;not null;index:idx_conv_owner,priority:1" json:"tenant_id"`
	OwnerID  string  `gorm:"size:64;not null;index:idx_conv_owner,priority:2" json:"owner_id"`
	Surface  Surface `gorm:"size:16;not null;index:idx_conv_owner,priority:3" json:"surface"`

	// Summary is the rolling natural-language summary of pruned history.
	Summary string `gorm:"type:text" json:"summary,omitempty"`

	// MessageCount is the total number of messages ever appended, not the
	// current row count. It only drives the summarization trigger.
	MessageCount int `gorm:"not null;default:0" json:"message_count"`

	// PendingAction holds the serialized action awaiting user confirmation,
	// empty when none is pending.
	PendingAction []byte `gorm:"type:text" json:"-"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName maps the model to its table.
func (Conversation) TableName() string { return "ai_conversations" }

// PendingAction is the server-side record of a to-be-confirmed action. It is
// written when the model presents a summary for confirmation and consumed on
// the next affirmative user turn.
type PendingAction struct {
	Type      ActionType      `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}
