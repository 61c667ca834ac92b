package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation message. Immutable once written; rows are
// only removed when summarization prunes a prefix or the conversation is
// cleared.
type Message struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string `gorm:"size:36;not null;index" json:"conversation_id"`
	TenantID       string `gorm:"size:64;not null;index" json:"tenant_id"`

	Role    Role   `gorm:"size:16;not null" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`

	// FunctionCalls is the JSON audit record of tool invocations performed
	// while producing an assistant message. Empty for other roles.
	FunctionCalls []byte `gorm:"type:text" json:"function_calls,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName maps the model to its table.
func (Message) TableName() string { return "ai_messages" }

// FunctionCallRecord is one entry of the Message.FunctionCalls audit payload.
type FunctionCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}
