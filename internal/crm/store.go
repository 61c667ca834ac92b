// Package crm exposes the typed CRUD operations the AI core needs from the
// relational layer. The schema and its full CRUD surface are owned elsewhere;
// this package carries only filter/sort/aggregate reads plus the three writes
// the action executor performs.
package crm

import (
	"context"
	"time"

	"github.com/solacrm/backend/internal/model"
)

// ListOptions describes a scoped query. TenantID is always supplied
// separately and is mandatory; these options can only narrow further.
type ListOptions struct {
	// UserID additionally scopes results to one CRM user when set.
	UserID string

	// Equals are exact-match column filters.
	Equals map[string]any

	// Contains are case-insensitive substring filters.
	Contains map[string]string

	// DateField with From/To applies a half-open [From, To) range filter.
	DateField string
	From      time.Time
	To        time.Time

	SortBy   string
	SortDesc bool

	Limit int
}

// GroupRow is one bucket of a group-by aggregation.
type GroupRow struct {
	Key   string  `json:"key"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

// Stats summarizes a tenant's database for prompt context.
type Stats struct {
	Leads         int64   `json:"leads"`
	Contacts      int64   `json:"contacts"`
	Deals         int64   `json:"deals"`
	Tasks         int64   `json:"tasks"`
	Invoices      int64   `json:"invoices"`
	PipelineValue float64 `json:"pipeline_value"`
}

// Store is the CRUD collaborator interface. Every operation scopes by tenant;
// a missing scope filter here is a data-leak bug, not an optimization issue.
type Store interface {
	Leads(ctx context.Context, tenantID string, opts ListOptions) ([]model.Lead, error)
	Contacts(ctx context.Context, tenantID string, opts ListOptions) ([]model.Contact, error)
	Deals(ctx context.Context, tenantID string, opts ListOptions) ([]model.Deal, error)
	Tasks(ctx context.Context, tenantID string, opts ListOptions) ([]model.Task, error)
	Invoices(ctx context.Context, tenantID string, opts ListOptions) ([]model.Invoice, error)
	CalendarEvents(ctx context.Context, tenantID string, opts ListOptions) ([]model.CalendarEvent, error)

	PipelineStages(ctx context.Context, tenantID string) ([]model.PipelineStage, error)

	// DealsByStage returns deal count and value summed per stage id.
	DealsByStage(ctx context.Context, tenantID string) ([]GroupRow, error)
	// InvoicesByStatus returns invoice count and amount summed per status.
	InvoicesByStatus(ctx context.Context, tenantID string) ([]GroupRow, error)

	Stats(ctx context.Context, tenantID string) (Stats, error)

	CreateLead(ctx context.Context, lead *model.Lead) error
	CreateTask(ctx context.Context, task *model.Task) error
	CreateCalendarEvent(ctx context.Context, event *model.CalendarEvent) error
	MarkEventSynced(ctx context.Context, tenantID, eventID, externalID string) error
}
