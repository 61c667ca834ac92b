// Package tenants loads per-tenant AI configuration. The rows are written by
// the admin surface outside this service; this side only reads.
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/solacrm/backend/internal/model"
)

// Row is the persisted shape of a tenant's AI configuration.
type Row struct {
	TenantID string `gorm:"primaryKey;size:64"`

	Provider    string  `gorm:"size:32;default:'openai'"`
	APIKey      string  `gorm:"size:256"`
	Model       string  `gorm:"size:128"`
	Temperature float32 `gorm:"default:0.7"`
	MaxTokens   int     `gorm:"default:2048"`

	CompanyName string `gorm:"size:256"`
	Mode        string `gorm:"size:16;default:'full'"`
	Enabled     bool   `gorm:"not null;default:false"`

	// AllowedActions is a JSON array of action type strings; empty means all.
	AllowedActions []byte `gorm:"type:text"`

	RetrievalAPIKey    string `gorm:"size:256"`
	RetrievalIndexHost string `gorm:"size:256"`

	CalendarCredential string `gorm:"size:512"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Row) TableName() string { return "ai_tenant_configs" }

// Store reads tenant AI configuration.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the config table, for tests and local development.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Row{})
}

// Get returns the tenant's AI configuration. A missing row reads as a
// disabled tenant, which downstream turns into the "not configured" reply.
func (s *Store) Get(ctx context.Context, tenantID string) (model.TenantAIConfig, error) {
	if tenantID == "" {
		return model.TenantAIConfig{}, fmt.Errorf("tenant id is required")
	}

	var row Row
	err := s.db.WithContext(ctx).First(&row, "tenant_id = ?", tenantID).Error
	if err == gorm.ErrRecordNotFound {
		return model.TenantAIConfig{TenantID: tenantID}, nil
	}
	if err != nil {
		return model.TenantAIConfig{}, err
	}

	cfg := model.TenantAIConfig{
		TenantID:           row.TenantID,
		Provider:           row.Provider,
		APIKey:             row.APIKey,
		Model:              row.Model,
		Temperature:        row.Temperature,
		MaxTokens:          row.MaxTokens,
		CompanyName:        row.CompanyName,
		Mode:               model.AIMode(row.Mode),
		Enabled:            row.Enabled,
		RetrievalAPIKey:    row.RetrievalAPIKey,
		RetrievalIndexHost: row.RetrievalIndexHost,
		CalendarCredential: row.CalendarCredential,
	}
	if len(row.AllowedActions) > 0 {
		if err := json.Unmarshal(row.AllowedActions, &cfg.AllowedActions); err != nil {
			return model.TenantAIConfig{}, fmt.Errorf("tenant %s has corrupt allowed_actions: %w", tenantID, err)
		}
	}
	return cfg, nil
}
