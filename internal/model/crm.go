package model

import (
	"time"
)

// CRM entities mirror the relational schema owned by the CRUD layer. The AI
// core reads them through the tool registry and writes them through the action
// executor; everything else about their lifecycle lives outside this service.

// Lead is a sales lead.
type Lead struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Name    string `gorm:"size:256;not null" json:"name"`
	Email   string `gorm:"size:256" json:"email"`
	Phone   string `gorm:"size:64" json:"phone"`
	Company string `gorm:"size:256" json:"company,omitempty"`
	Source  string `gorm:"size:64" json:"source,omitempty"`
	Status  string `gorm:"size:32;default:'new'" json:"status"`
	Notes   string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Lead) TableName() string { return "leads" }

// Contact is an addressable person attached to a tenant.
type Contact struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Name    string `gorm:"size:256;not null" json:"name"`
	Email   string `gorm:"size:256" json:"email"`
	Phone   string `gorm:"size:64" json:"phone"`
	Company string `gorm:"size:256" json:"company,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// PipelineStage is a tenant-configurable step in the sales pipeline. Stages
// are referenced by slug; no fixed enum exists.
type PipelineStage struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`

	Name     string `gorm:"size:128;not null" json:"name"`
	Slug     string `gorm:"size:128;not null" json:"slug"`
	Position int    `gorm:"not null;default:0" json:"position"`

	CreatedAt time.Time `json:"created_at"`
}

func (PipelineStage) TableName() string { return "pipeline_stages" }

// Deal is an opportunity in the pipeline.
type Deal struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Title     string  `gorm:"size:256;not null" json:"title"`
	Value     float64 `gorm:"not null;default:0" json:"value"`
	StageID   string  `gorm:"size:36;index" json:"stage_id"`
	ContactID string  `gorm:"size:36;index" json:"contact_id,omitempty"`

	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Deal) TableName() string { return "deals" }

// Task is a to-do item.
type Task struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Title       string `gorm:"size:256;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Priority    string `gorm:"size:16;default:'medium'" json:"priority"`
	Status      string `gorm:"size:32;default:'pending'" json:"status"`

	DueDate   *time.Time `gorm:"index" json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// Invoice is a billing record. The AI core only reads aggregate/list views of
// invoices; billing math is out of scope.
type Invoice struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Number       string  `gorm:"size:64" json:"number"`
	CustomerName string  `gorm:"size:256" json:"customer_name"`
	Amount       float64 `gorm:"not null;default:0" json:"amount"`
	Status       string  `gorm:"size:32;default:'draft'" json:"status"`

	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

// CalendarEvent is an appointment record. ExternalID/Synced track best-effort
// sync to the external calendar provider; the local row is authoritative.
type CalendarEvent struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID   string `gorm:"size:64;index" json:"user_id"`

	Title       string `gorm:"size:256;not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Location    string `gorm:"size:256" json:"location,omitempty"`
	Attendees   string `gorm:"type:text" json:"attendees,omitempty"`

	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`

	ExternalID string `gorm:"size:128" json:"external_id,omitempty"`
	Synced     bool   `gorm:"not null;default:false" json:"synced"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CalendarEvent) TableName() string { return "calendar_events" }
