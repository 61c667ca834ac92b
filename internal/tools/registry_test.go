package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/websearch"
	"github.com/solacrm/backend/pkg/logger"
)

// fakeStore records the options each query received and returns canned rows.
type fakeStore struct {
	crm.Store

	lastOpts crm.ListOptions
	deals    []model.Deal
	stages   []model.PipelineStage
	byStage  []crm.GroupRow
}

func (f *fakeStore) Deals(_ context.Context, _ string, opts crm.ListOptions) ([]model.Deal, error) {
	f.lastOpts = opts
	return f.deals, nil
}

func (f *fakeStore) Leads(_ context.Context, _ string, opts crm.ListOptions) ([]model.Lead, error) {
	f.lastOpts = opts
	return nil, nil
}

func (f *fakeStore) PipelineStages(context.Context, string) ([]model.PipelineStage, error) {
	return f.stages, nil
}

func (f *fakeStore) DealsByStage(context.Context, string) ([]crm.GroupRow, error) {
	return f.byStage, nil
}

type noKnowledge struct{}

func (noKnowledge) Retrieve(context.Context, model.TenantAIConfig, string) []model.RetrievedPassage {
	return nil
}

type noWeb struct{}

func (noWeb) Search(context.Context, string) ([]websearch.Result, error) { return nil, nil }

func testRegistry(store *fakeStore) *Registry {
	clk := clock.NewFixed(
		time.Date(2025, 6, 18, 14, 0, 0, 0, clock.DefaultLocation),
		clock.DefaultLocation,
	)
	return NewRegistry(store, noKnowledge{}, noWeb{}, clk, logger.NewNop())
}

func testCaller() Caller {
	return Caller{Tenant: model.TenantAIConfig{TenantID: "t1", Mode: model.AIModeFull}}
}

func TestUnknownToolReturnsErrorPayload(t *testing.T) {
	r := testRegistry(&fakeStore{})
	raw := r.Execute(context.Background(), "delete_everything", nil, testCaller())

	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["error"] != "Unknown tool: delete_everything" {
		t.Errorf("payload = %v", payload)
	}
}

func TestLimitClamping(t *testing.T) {
	store := &fakeStore{}
	r := testRegistry(store)

	cases := []struct {
		args string
		want int
	}{
		{`{"limit": -5}`, 1},
		{`{"limit": 0}`, 1},
		{`{"limit": 7}`, 7},
		{`{"limit": 100000}`, 100},
		{`{}`, defaultLimit},
	}
	for _, tc := range cases {
		r.Execute(context.Background(), ToolQueryLeads, json.RawMessage(tc.args), testCaller())
		if store.lastOpts.Limit != tc.want {
			t.Errorf("args %s: limit = %d, want %d", tc.args, store.lastOpts.Limit, tc.want)
		}
	}
}

func TestStageAllMeansNoFilter(t *testing.T) {
	store := &fakeStore{
		stages: []model.PipelineStage{{ID: "s1", Name: "Negotiation", Slug: "negotiation"}},
	}
	r := testRegistry(store)

	r.Execute(context.Background(), ToolQueryDeals, json.RawMessage(`{"stage":"all"}`), testCaller())
	if store.lastOpts.Equals != nil {
		t.Errorf(`stage:"all" must not filter, got %v`, store.lastOpts.Equals)
	}

	r.Execute(context.Background(), ToolQueryDeals, json.RawMessage(`{}`), testCaller())
	if store.lastOpts.Equals != nil {
		t.Errorf("omitted stage must not filter, got %v", store.lastOpts.Equals)
	}

	r.Execute(context.Background(), ToolQueryDeals, json.RawMessage(`{"stage":"Negotiation"}`), testCaller())
	if store.lastOpts.Equals["stage_id"] != "s1" {
		t.Errorf("named stage must resolve to its id, got %v", store.lastOpts.Equals)
	}
}

func TestUnknownStageIsErrorPayload(t *testing.T) {
	store := &fakeStore{stages: []model.PipelineStage{{ID: "s1", Slug: "new"}}}
	r := testRegistry(store)

	raw := r.Execute(context.Background(), ToolQueryDeals, json.RawMessage(`{"stage":"bogus"}`), testCaller())
	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload["error"], "bogus") {
		t.Errorf("payload = %v", payload)
	}
}

func TestPeriodResolvedViaClock(t *testing.T) {
	store := &fakeStore{}
	r := testRegistry(store)

	r.Execute(context.Background(), ToolQueryLeads, json.RawMessage(`{"period":"this week"}`), testCaller())

	if store.lastOpts.DateField != "created_at" {
		t.Fatalf("date field = %q", store.lastOpts.DateField)
	}
	// 2025-06-18 is a Wednesday; the business week starts Monday 16th.
	wantFrom := time.Date(2025, 6, 16, 0, 0, 0, 0, clock.DefaultLocation)
	if !store.lastOpts.From.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", store.lastOpts.From, wantFrom)
	}
}

func TestWonDealsUsesSlugSemantics(t *testing.T) {
	store := &fakeStore{
		stages: []model.PipelineStage{
			{ID: "s1", Slug: "closed-won"},
			{ID: "s2", Slug: "closed-lost"},
			{ID: "s3", Slug: "new"},
		},
		byStage: []crm.GroupRow{
			{Key: "s1", Count: 2, Sum: 5000},
			{Key: "s2", Count: 1, Sum: 700},
			{Key: "s3", Count: 4, Sum: 100},
		},
	}
	r := testRegistry(store)

	raw := r.Execute(context.Background(), ToolCRMAnalytics, json.RawMessage(`{"metric":"won_deals"}`), testCaller())
	var out struct {
		Count      int64   `json:"count"`
		TotalValue float64 `json:"total_value"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || out.TotalValue != 5000 {
		t.Errorf("won_deals = %+v", out)
	}
}

func TestCatalogModeFiltering(t *testing.T) {
	full := Catalog(model.AIModeFull)
	minimal := Catalog(model.AIModeMinimal)

	hasWeb := func(specs []Spec) bool {
		for _, s := range specs {
			if s.Name == ToolWebSearch {
				return true
			}
		}
		return false
	}
	if !hasWeb(full) {
		t.Error("full catalog must include web search")
	}
	if hasWeb(minimal) {
		t.Error("minimal catalog must exclude web search")
	}
	if len(full) != len(minimal)+1 {
		t.Errorf("full=%d minimal=%d", len(full), len(minimal))
	}
}
