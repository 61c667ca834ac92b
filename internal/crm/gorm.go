package crm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

// columnRe allowlists filter/sort identifiers before they reach SQL.
var columnRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// GormStore implements Store on a gorm database handle.
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewGormStore creates a Store backed by the given database.
func NewGormStore(db *gorm.DB, log *logger.Logger) *GormStore {
	return &GormStore{db: db, log: log.WithComponent("crm_store")}
}

// AutoMigrate creates the CRM tables. The production schema is owned by the
// CRUD layer's migrations; this exists for tests and local development.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Lead{},
		&model.Contact{},
		&model.PipelineStage{},
		&model.Deal{},
		&model.Task{},
		&model.Invoice{},
		&model.CalendarEvent{},
	)
}

func (s *GormStore) scoped(ctx context.Context, tenantID string, opts ListOptions) (*gorm.DB, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}

	for col, v := range opts.Equals {
		if !columnRe.MatchString(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}
		q = q.Where(col+" = ?", v)
	}
	for col, sub := range opts.Contains {
		if !columnRe.MatchString(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}
		q = q.Where("LOWER("+col+") LIKE ?", "%"+strings.ToLower(sub)+"%")
	}

	if opts.DateField != "" {
		if !columnRe.MatchString(opts.DateField) {
			return nil, fmt.Errorf("invalid date column %q", opts.DateField)
		}
		if !opts.From.IsZero() {
			q = q.Where(opts.DateField+" >= ?", opts.From)
		}
		if !opts.To.IsZero() {
			q = q.Where(opts.DateField+" < ?", opts.To)
		}
	}

	if opts.SortBy != "" {
		if !columnRe.MatchString(opts.SortBy) {
			return nil, fmt.Errorf("invalid sort column %q", opts.SortBy)
		}
		dir := "ASC"
		if opts.SortDesc {
			dir = "DESC"
		}
		q = q.Order(opts.SortBy + " " + dir)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	return q.Limit(limit), nil
}

func listRows[T any](s *GormStore, ctx context.Context, tenantID string, opts ListOptions) ([]T, error) {
	q, err := s.scoped(ctx, tenantID, opts)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Leads(ctx context.Context, tenantID string, opts ListOptions) ([]model.Lead, error) {
	return listRows[model.Lead](s, ctx, tenantID, opts)
}

func (s *GormStore) Contacts(ctx context.Context, tenantID string, opts ListOptions) ([]model.Contact, error) {
	return listRows[model.Contact](s, ctx, tenantID, opts)
}

func (s *GormStore) Deals(ctx context.Context, tenantID string, opts ListOptions) ([]model.Deal, error) {
	return listRows[model.Deal](s, ctx, tenantID, opts)
}

func (s *GormStore) Tasks(ctx context.Context, tenantID string, opts ListOptions) ([]model.Task, error) {
	return listRows[model.Task](s, ctx, tenantID, opts)
}

func (s *GormStore) Invoices(ctx context.Context, tenantID string, opts ListOptions) ([]model.Invoice, error) {
	return listRows[model.Invoice](s, ctx, tenantID, opts)
}

func (s *GormStore) CalendarEvents(ctx context.Context, tenantID string, opts ListOptions) ([]model.CalendarEvent, error) {
	return listRows[model.CalendarEvent](s, ctx, tenantID, opts)
}

func (s *GormStore) PipelineStages(ctx context.Context, tenantID string) ([]model.PipelineStage, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	var out []model.PipelineStage
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) DealsByStage(ctx context.Context, tenantID string) ([]GroupRow, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	var out []GroupRow
	err := s.db.WithContext(ctx).
		Model(&model.Deal{}).
		Select("stage_id AS key, COUNT(*) AS count, COALESCE(SUM(value), 0) AS sum").
		Where("tenant_id = ?", tenantID).
		Group("stage_id").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) InvoicesByStatus(ctx context.Context, tenantID string) ([]GroupRow, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	var out []GroupRow
	err := s.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Select("status AS key, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS sum").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Stats(ctx context.Context, tenantID string) (Stats, error) {
	var st Stats
	if tenantID == "" {
		return st, fmt.Errorf("tenant id is required")
	}

	counts := []struct {
		dst  *int64
		mdl  any
	}{
		{&st.Leads, &model.Lead{}},
		{&st.Contacts, &model.Contact{}},
		{&st.Deals, &model.Deal{}},
		{&st.Tasks, &model.Task{}},
		{&st.Invoices, &model.Invoice{}},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.mdl).
			Where("tenant_id = ?", tenantID).
			Count(c.dst).Error; err != nil {
			return st, err
		}
	}

	err := s.db.WithContext(ctx).Model(&model.Deal{}).
		Where("tenant_id = ?", tenantID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&st.PipelineValue).Error
	if err != nil {
		return st, err
	}
	return st, nil
}

func (s *GormStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	return s.db.WithContext(ctx).Create(lead).Error
}

func (s *GormStore) CreateTask(ctx context.Context, task *model.Task) error {
	if task.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *GormStore) CreateCalendarEvent(ctx context.Context, event *model.CalendarEvent) error {
	if event.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *GormStore) MarkEventSynced(ctx context.Context, tenantID, eventID, externalID string) error {
	return s.db.WithContext(ctx).Model(&model.CalendarEvent{}).
		Where("tenant_id = ? AND id = ?", tenantID, eventID).
		Updates(map[string]any{
			"external_id": externalID,
			"synced":      true,
			"updated_at":  time.Now().UTC(),
		}).Error
}
