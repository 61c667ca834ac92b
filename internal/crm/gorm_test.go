package crm

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

func testStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(db, logger.NewNop())
}

func seedLead(t *testing.T, s *GormStore, tenantID, name, email string, createdAt time.Time) model.Lead {
	t.Helper()
	lead := model.Lead{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     name,
		Email:    email,
		Status:   "new",
	}
	if err := s.CreateLead(context.Background(), &lead); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	if !createdAt.IsZero() {
		if err := s.db.Model(&model.Lead{}).Where("id = ?", lead.ID).
			Update("created_at", createdAt).Error; err != nil {
			t.Fatalf("backdate lead: %v", err)
		}
	}
	return lead
}

func TestLeadsScopedByTenant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedLead(t, s, "tenant-a", "Asha", "asha@a.example", time.Time{})
	seedLead(t, s, "tenant-a", "Arun", "arun@a.example", time.Time{})
	seedLead(t, s, "tenant-b", "Bela", "bela@b.example", time.Time{})

	got, err := s.Leads(ctx, "tenant-a", ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 leads for tenant-a, got %d", len(got))
	}
	for _, l := range got {
		if l.TenantID != "tenant-a" {
			t.Errorf("leaked lead from tenant %q", l.TenantID)
		}
	}

	if _, err := s.Leads(ctx, "", ListOptions{}); err == nil {
		t.Error("empty tenant id should be rejected")
	}
}

func TestContainsFilterCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedLead(t, s, "t1", "Priya Sharma", "priya@x.example", time.Time{})
	seedLead(t, s, "t1", "Rahul Verma", "rahul@x.example", time.Time{})

	got, err := s.Leads(ctx, "t1", ListOptions{Contains: map[string]string{"name": "PRIYA"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Priya Sharma" {
		t.Fatalf("substring filter failed: %+v", got)
	}
}

func TestDateRangeFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedLead(t, s, "t1", "Old", "old@x.example", old)
	seedLead(t, s, "t1", "Recent", "recent@x.example", recent)

	got, err := s.Leads(ctx, "t1", ListOptions{
		DateField: "created_at",
		From:      time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Recent" {
		t.Fatalf("date filter failed: %+v", got)
	}
}

func TestRejectsUnsafeColumns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Leads(ctx, "t1", ListOptions{SortBy: "name; DROP TABLE leads"}); err == nil {
		t.Error("unsafe sort column should be rejected")
	}
	if _, err := s.Leads(ctx, "t1", ListOptions{Equals: map[string]any{"1=1 --": "x"}}); err == nil {
		t.Error("unsafe filter column should be rejected")
	}
}

func TestDealsByStageAggregation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mk := func(stage string, value float64) {
		d := model.Deal{
			ID:       uuid.NewString(),
			TenantID: "t1",
			Title:    "deal",
			Value:    value,
			StageID:  stage,
		}
		if err := s.db.Create(&d).Error; err != nil {
			t.Fatal(err)
		}
	}
	mk("stage-won", 1000)
	mk("stage-won", 500)
	mk("stage-new", 250)

	rows, err := s.DealsByStage(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	byKey := map[string]GroupRow{}
	for _, r := range rows {
		byKey[r.Key] = r
	}
	if byKey["stage-won"].Count != 2 || byKey["stage-won"].Sum != 1500 {
		t.Errorf("stage-won aggregate = %+v", byKey["stage-won"])
	}
	if byKey["stage-new"].Count != 1 {
		t.Errorf("stage-new aggregate = %+v", byKey["stage-new"])
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedLead(t, s, "t1", "A", "a@x.example", time.Time{})
	if err := s.CreateTask(ctx, &model.Task{ID: uuid.NewString(), TenantID: "t1", Title: "call"}); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Leads != 1 || st.Tasks != 1 {
		t.Errorf("stats = %+v", st)
	}
}
