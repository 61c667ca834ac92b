package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/tools"
)

func testComposer() *Composer {
	clk := clock.NewFixed(
		time.Date(2025, 6, 18, 14, 30, 0, 0, clock.DefaultLocation),
		clock.DefaultLocation,
	)
	return NewComposer(clk)
}

func TestPortalPromptContents(t *testing.T) {
	c := testComposer()
	out := c.Portal(PortalInput{
		Tenant: model.TenantAIConfig{CompanyName: "Acme Fasteners", Mode: model.AIModeFull},
		Stages: []model.PipelineStage{
			{Name: "New", Slug: "new"},
			{Name: "Closed Won", Slug: "closed-won"},
		},
		Tools: tools.Catalog(model.AIModeFull),
	})

	for _, want := range []string{
		"2025-06-18 14:30",
		"Wednesday, 18 June 2025",
		"Acme Fasteners",
		"Closed Won (slug: closed-won)",
		"query_deals",
		"web_search",
		"Never fabricate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("portal prompt missing %q", want)
		}
	}
}

func TestPortalPromptIncludesWorkspaceSnapshot(t *testing.T) {
	c := testComposer()
	out := c.Portal(PortalInput{
		Tenant: model.TenantAIConfig{CompanyName: "Acme"},
		Stats: &crm.Stats{
			Leads: 12, Contacts: 4, Deals: 7,
			Tasks: 3, Invoices: 5, PipelineValue: 50000,
		},
	})

	if !strings.Contains(out, "12 leads, 4 contacts, 7 deals (total pipeline value 50000.00), 3 tasks, 5 invoices") {
		t.Errorf("snapshot missing from prompt:\n%s", out)
	}

	// A failed lookup leaves the prompt snapshot-free rather than lying.
	bare := c.Portal(PortalInput{Tenant: model.TenantAIConfig{}})
	if strings.Contains(bare, "Workspace snapshot") {
		t.Error("snapshot line must be absent when stats are unavailable")
	}
}

func TestPortalMinimalModeOmitsWebSearch(t *testing.T) {
	c := testComposer()
	out := c.Portal(PortalInput{
		Tenant: model.TenantAIConfig{Mode: model.AIModeMinimal},
		Tools:  tools.Catalog(model.AIModeMinimal),
	})

	if strings.Contains(out, "- web_search") {
		t.Error("minimal prompt must not advertise web search")
	}
	if !strings.Contains(out, "Web search is not available") {
		t.Error("minimal prompt should state the limitation")
	}
}

func TestKnowledgeBlockOnlyWithPassages(t *testing.T) {
	c := testComposer()

	bare := c.Portal(PortalInput{Tenant: model.TenantAIConfig{}})
	if strings.Contains(bare, knowledgeOpen) {
		t.Error("knowledge block must be absent without passages")
	}

	grounded := c.Widget(WidgetInput{
		Tenant: model.TenantAIConfig{},
		Passages: []model.RetrievedPassage{
			{Content: "We offer a 30-day refund window.", FileName: "faq.pdf"},
		},
	})
	if !strings.Contains(grounded, knowledgeOpen) || !strings.Contains(grounded, knowledgeClose) {
		t.Error("knowledge block must be delimited")
	}
	if !strings.Contains(grounded, "30-day refund window") {
		t.Error("passage content missing")
	}
}

func TestWidgetPromptDeclaresEnvelopeAndProtocol(t *testing.T) {
	c := testComposer()
	out := c.Widget(WidgetInput{Tenant: model.TenantAIConfig{CompanyName: "Acme"}})

	for _, want := range []string{
		`{"message"`,
		`"actions"`,
		"create_appointment",
		"create_task",
		"create_lead",
		"book a demo",
		"add me as a lead",
		"GATHER AND CONFIRM",
		"EXECUTE ON CONFIRMATION ONLY",
		"name, email and phone",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("widget prompt missing %q", want)
		}
	}
}

func TestWidgetPromptHonorsAllowedActions(t *testing.T) {
	c := testComposer()
	out := c.Widget(WidgetInput{
		Tenant:         model.TenantAIConfig{},
		AllowedActions: []model.ActionType{model.ActionCreateLead},
	})

	if strings.Contains(out, "- create_appointment") {
		t.Error("disallowed action advertised")
	}
	if !strings.Contains(out, "- create_lead") {
		t.Error("allowed action missing")
	}
}
