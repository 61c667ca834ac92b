// Package prompt builds the per-turn system prompts for both conversational
// surfaces.
package prompt

import (
	"fmt"
	"strings"

	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/tools"
)

const knowledgeOpen = "=== KNOWLEDGE BASE ==="
const knowledgeClose = "=== END KNOWLEDGE BASE ==="

// Composer renders system prompts. The clock is injected so prompts carry the
// business-timezone date, not the server's.
type Composer struct {
	clk clock.Policy
}

func NewComposer(clk clock.Policy) *Composer {
	return &Composer{clk: clk}
}

// PortalInput carries everything the portal prompt mentions. Tools must be
// exactly the catalog passed to the LLM for this turn; advertising anything
// else teaches the model to request unavailable calls.
type PortalInput struct {
	Tenant   model.TenantAIConfig
	Stats    *crm.Stats // nil when the snapshot lookup failed
	Stages   []model.PipelineStage
	Tools    []tools.Spec
	Passages []model.RetrievedPassage
}

// WidgetInput carries everything the widget prompt mentions.
type WidgetInput struct {
	Tenant         model.TenantAIConfig
	Stages         []model.PipelineStage
	Passages       []model.RetrievedPassage
	AllowedActions []model.ActionType
}

func (c *Composer) header(company string) string {
	now := c.clk.Now()
	if company == "" {
		company = "this company"
	}
	return fmt.Sprintf(
		"Current date and time: %s (%s).\nYou are the CRM assistant for %s.",
		now.Format("2006-01-02 15:04"),
		now.Format("Monday, 2 January 2006, 3:04 PM"),
		company,
	)
}

func writeSnapshot(b *strings.Builder, st *crm.Stats) {
	if st == nil {
		return
	}
	fmt.Fprintf(b,
		"\n\nWorkspace snapshot: %d leads, %d contacts, %d deals (total pipeline value %.2f), %d tasks, %d invoices. Use this for orientation only; answer counting questions with the matching tool.",
		st.Leads, st.Contacts, st.Deals, st.PipelineValue, st.Tasks, st.Invoices)
}

func writeStages(b *strings.Builder, stages []model.PipelineStage) {
	if len(stages) == 0 {
		return
	}
	b.WriteString("\n\nPipeline stages for this workspace, in order:\n")
	for _, s := range stages {
		fmt.Fprintf(b, "- %s (slug: %s)\n", s.Name, s.Slug)
	}
	b.WriteString("Stage names are workspace-specific; always refer to them by these names.")
}

func writeKnowledge(b *strings.Builder, passages []model.RetrievedPassage) {
	if len(passages) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(knowledgeOpen)
	b.WriteString("\nUse the following passages from the company's knowledge base when they answer the user's question. Do not invent facts beyond them.\n")
	for i, p := range passages {
		src := p.FileName
		if p.Sheet != "" {
			src += " / " + p.Sheet
		}
		if src == "" {
			src = "knowledge base"
		}
		fmt.Fprintf(b, "\n[%d] (%s)\n%s\n", i+1, src, p.Content)
	}
	b.WriteString(knowledgeClose)
}

// Portal renders the internal-operator prompt.
func (c *Composer) Portal(in PortalInput) string {
	var b strings.Builder
	b.WriteString(c.header(in.Tenant.CompanyName))
	b.WriteString("\n\nYou help internal team members query and understand their CRM data: leads, contacts, deals, tasks, invoices and calendar events.")

	writeSnapshot(&b, in.Stats)
	writeStages(&b, in.Stages)

	if len(in.Tools) > 0 {
		b.WriteString("\n\nYou have these tools:\n")
		for _, t := range in.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		b.WriteString("\nAlways answer questions about CRM data by calling the matching tool. Never fabricate records, counts or amounts; if a tool returns an error, tell the user what failed. All data you can see belongs to this workspace only.")
	}

	if in.Tenant.Mode == model.AIModeMinimal {
		b.WriteString("\n\nWeb search is not available in this workspace. If asked about information outside the CRM, say you cannot look it up.")
	} else {
		b.WriteString("\n\nFor questions about the outside world, you may use web_search.")
	}

	writeKnowledge(&b, in.Passages)

	b.WriteString("\n\nBe concise and factual. Format lists and amounts clearly.")
	return b.String()
}

// actionVocabulary is the closed trigger vocabulary for each action type. The
// widget prompt declares it verbatim and the confirmation gate checks the
// user's own words against the same list.
var actionVocabulary = map[model.ActionType][]string{
	model.ActionCreateAppointment: {
		"book a demo", "book a meeting", "book a call",
		"schedule a demo", "schedule a meeting", "schedule a call",
		"set up a meeting", "set up a call", "make an appointment",
	},
	model.ActionCreateTask: {
		"create a task", "add a task", "make a task", "remind",
	},
	model.ActionCreateLead: {
		"add me as a lead", "create a lead", "register me",
		"sign me up", "add my details",
	},
}

// TriggerPhrases returns the trigger vocabulary for an action type.
func TriggerPhrases(t model.ActionType) []string {
	return actionVocabulary[t]
}

var actionFieldSummary = map[model.ActionType]string{
	model.ActionCreateAppointment: "name, email, date, time (plus optional phone and notes)",
	model.ActionCreateTask:        "title and description (plus optional priority and due date)",
	model.ActionCreateLead:        "name, email and phone",
}

// Widget renders the external chat-widget prompt with the structured envelope
// and the two-step confirmation protocol.
func (c *Composer) Widget(in WidgetInput) string {
	allowed := in.AllowedActions
	if len(allowed) == 0 {
		allowed = model.KnownActionTypes
	}

	var b strings.Builder
	b.WriteString(c.header(in.Tenant.CompanyName))
	b.WriteString("\n\nYou chat with website visitors on behalf of the company. You answer questions about the company using the knowledge base below and you can carry out a small set of actions for the visitor.")

	writeStages(&b, in.Stages)
	writeKnowledge(&b, in.Passages)

	b.WriteString("\n\nEvery reply you produce MUST be a single JSON object of this exact shape, with no surrounding text and no markdown fences:\n")
	b.WriteString(`{"message": "<what you say to the visitor>", "actions": [{"type": "<action type>", "data": {...}, "confidence": <0..1>}], "metadata": {}}`)
	b.WriteString("\n\nThe only allowed action types are:\n- none\n")
	for _, t := range allowed {
		phrases := actionVocabulary[t]
		fmt.Fprintf(&b, "- %s — only when the visitor explicitly asks using phrases like %q\n", t, strings.Join(phrases, `", "`))
	}
	b.WriteString("\nWhen you are not executing an action, actions must be exactly [{\"type\": \"none\"}]. Never include more than one action.\n")

	b.WriteString("\nAction protocol, to be followed strictly in two steps:\n")
	b.WriteString("1. GATHER AND CONFIRM. When the visitor asks for an action, collect the required fields over as many turns as needed")
	b.WriteString(" — ")
	first := true
	for _, t := range allowed {
		if !first {
			b.WriteString("; ")
		}
		first = false
		fmt.Fprintf(&b, "%s needs %s", t, actionFieldSummary[t])
	}
	b.WriteString(". Once every required field is known, repeat the full details back and ask the visitor to confirm. In this step actions stays [{\"type\": \"none\"}].\n")
	b.WriteString("2. EXECUTE ON CONFIRMATION ONLY. Only after the visitor answers your summary affirmatively (for example \"yes\", \"confirm\", \"go ahead\") do you emit the action with its complete data object. Never emit a non-none action in the same turn in which you first collected the details, never invent field values, and never execute without an explicit request from the visitor in their own words.\n")

	b.WriteString("\nIf the visitor asks for anything outside your abilities, say so politely. Keep messages short and friendly.")
	return b.String()
}
