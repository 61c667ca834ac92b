// Package tools declares the data-query operations the LLM may request and
// dispatches them against the CRM store.
package tools

import (
	"github.com/solacrm/backend/internal/model"
)

// Spec is the declarative metadata for one callable tool. Parameters follow
// the JSON-schema subset the chat-completions API accepts.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

const (
	ToolQueryLeads          = "query_leads"
	ToolQueryContacts       = "query_contacts"
	ToolQueryDeals          = "query_deals"
	ToolQueryTasks          = "query_tasks"
	ToolQueryInvoices       = "query_invoices"
	ToolQueryCalendarEvents = "query_calendar_events"
	ToolGetPipelineStages   = "get_pipeline_stages"
	ToolCRMAnalytics        = "crm_analytics"
	ToolSearchKnowledgeBase = "search_knowledge_base"
	ToolWebSearch           = "web_search"
)

func obj(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func strEnum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

var periodProp = str(`Relative period such as "today", "this week", "last week", "this month", "last month" or "last 30 days". Omit for all time.`)

var limitProp = intProp("Maximum rows to return, 1-100. Defaults to 20.")

var fullCatalog = []Spec{
	{
		Name:        ToolQueryLeads,
		Description: "List the tenant's leads, optionally filtered by status, source, name or period.",
		Parameters: obj(map[string]any{
			"status": str("Lead status to filter by, e.g. new, contacted, qualified."),
			"source": str("Lead source to filter by."),
			"search": str("Case-insensitive substring of the lead name."),
			"period": periodProp,
			"limit":  limitProp,
		}),
	},
	{
		Name:        ToolQueryContacts,
		Description: "List the tenant's contacts, optionally filtered by name or period.",
		Parameters: obj(map[string]any{
			"search": str("Case-insensitive substring of the contact name."),
			"period": periodProp,
			"limit":  limitProp,
		}),
	},
	{
		Name:        ToolQueryDeals,
		Description: "List the tenant's deals, optionally filtered by pipeline stage or period.",
		Parameters: obj(map[string]any{
			"stage":  str(`Pipeline stage name or slug. Use "all" or omit for every stage.`),
			"period": periodProp,
			"limit":  limitProp,
		}),
	},
	{
		Name:        ToolQueryTasks,
		Description: "List the tenant's tasks, optionally filtered by status, priority or due period.",
		Parameters: obj(map[string]any{
			"status":   str("Task status to filter by, e.g. open, done."),
			"priority": strEnum("Task priority to filter by.", "low", "medium", "high"),
			"due":      str(`Due-date period such as "today" or "this week".`),
			"limit":    limitProp,
		}),
	},
	{
		Name:        ToolQueryInvoices,
		Description: "List the tenant's invoices, optionally filtered by status or period.",
		Parameters: obj(map[string]any{
			"status": str("Invoice status to filter by, e.g. draft, sent, paid, overdue."),
			"period": periodProp,
			"limit":  limitProp,
		}),
	},
	{
		Name:        ToolQueryCalendarEvents,
		Description: "List the tenant's calendar events, optionally within a period.",
		Parameters: obj(map[string]any{
			"period": periodProp,
			"limit":  limitProp,
		}),
	},
	{
		Name:        ToolGetPipelineStages,
		Description: "List the tenant's pipeline stages in order, with names and slugs.",
		Parameters:  obj(map[string]any{}),
	},
	{
		Name:        ToolCRMAnalytics,
		Description: "Aggregate CRM metrics: overall summary, deals grouped by stage, invoices grouped by status, or won/lost deal totals.",
		Parameters: obj(map[string]any{
			"metric": strEnum("Which aggregate to compute.",
				"summary", "deals_by_stage", "invoices_by_status", "won_deals", "lost_deals"),
		}, "metric"),
	},
	{
		Name:        ToolSearchKnowledgeBase,
		Description: "Search the tenant's uploaded knowledge base for passages relevant to a question.",
		Parameters: obj(map[string]any{
			"query": str("The question or phrase to search for."),
		}, "query"),
	},
	{
		Name:        ToolWebSearch,
		Description: "Search the public web for current information not present in the CRM or knowledge base.",
		Parameters: obj(map[string]any{
			"query": str("The search query."),
		}, "query"),
	},
}

// minimalExclusions are tools withheld from minimal-mode tenants.
var minimalExclusions = map[string]bool{
	ToolWebSearch: true,
}

// Catalog returns the tool list for a mode. The returned slice is what gets
// advertised in the system prompt and what gets passed to the LLM; the two
// must never diverge.
func Catalog(mode model.AIMode) []Spec {
	if mode != model.AIModeMinimal {
		return fullCatalog
	}
	out := make([]Spec, 0, len(fullCatalog))
	for _, s := range fullCatalog {
		if minimalExclusions[s.Name] {
			continue
		}
		out = append(out, s)
	}
	return out
}
