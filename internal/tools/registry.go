package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/websearch"
	"github.com/solacrm/backend/pkg/logger"
	"github.com/solacrm/backend/pkg/metrics"
)

const defaultLimit = 20

// Caller identifies who a tool call runs on behalf of. Every handler scopes
// its query by Caller.Tenant.TenantID.
type Caller struct {
	Tenant model.TenantAIConfig
	UserID string
}

// KnowledgeSearcher is the retrieval collaborator.
type KnowledgeSearcher interface {
	Retrieve(ctx context.Context, tenant model.TenantAIConfig, query string) []model.RetrievedPassage
}

// WebSearcher is the public-web search collaborator.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

type handler func(ctx context.Context, args json.RawMessage, caller Caller) (any, error)

// Registry dispatches named tool calls. Failures never propagate past
// Execute; they come back as {"error": ...} payloads the model can read.
type Registry struct {
	store     crm.Store
	knowledge KnowledgeSearcher
	web       WebSearcher
	clk       clock.Policy
	log       *logger.Logger

	handlers map[string]handler
}

// NewRegistry wires the full handler table.
func NewRegistry(store crm.Store, knowledge KnowledgeSearcher, web WebSearcher, clk clock.Policy, log *logger.Logger) *Registry {
	r := &Registry{
		store:     store,
		knowledge: knowledge,
		web:       web,
		clk:       clk,
		log:       log.WithComponent("tools"),
	}
	r.handlers = map[string]handler{
		ToolQueryLeads:          r.queryLeads,
		ToolQueryContacts:       r.queryContacts,
		ToolQueryDeals:          r.queryDeals,
		ToolQueryTasks:          r.queryTasks,
		ToolQueryInvoices:       r.queryInvoices,
		ToolQueryCalendarEvents: r.queryCalendarEvents,
		ToolGetPipelineStages:   r.getPipelineStages,
		ToolCRMAnalytics:        r.crmAnalytics,
		ToolSearchKnowledgeBase: r.searchKnowledgeBase,
		ToolWebSearch:           r.webSearch,
	}
	return r
}

// Execute runs one named tool call and always returns a JSON payload.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, caller Caller) json.RawMessage {
	h, ok := r.handlers[name]
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(name, "unknown").Inc()
		return errPayload(fmt.Sprintf("Unknown tool: %s", name))
	}

	result, err := h(ctx, args, caller)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		r.log.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("tenant_id", caller.Tenant.TenantID),
			zap.Error(err))
		return errPayload(err.Error())
	}

	raw, err := json.Marshal(result)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		return errPayload(fmt.Sprintf("encode %s result: %v", name, err))
	}
	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
	return raw
}

func errPayload(msg string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return raw
}

// clampLimit bounds a requested row limit to [1, 100]. A nil limit means the
// caller did not ask, and gets the default.
func clampLimit(requested *int) int {
	if requested == nil {
		return defaultLimit
	}
	n := *requested
	if n < 1 {
		n = 1
	}
	if n > 100 {
		n = 100
	}
	return n
}

// periodRange resolves a relative period token. Empty and "all" mean
// unbounded.
func (r *Registry) periodRange(period string) (opts crm.ListOptions, err error) {
	period = strings.TrimSpace(strings.ToLower(period))
	if period == "" || period == "all" || period == "all time" {
		return opts, nil
	}
	from, to, rerr := r.clk.RangeFor(period)
	if rerr != nil {
		return opts, fmt.Errorf("unrecognized period %q", period)
	}
	opts.DateField = "created_at"
	opts.From = from
	opts.To = to
	return opts, nil
}

func decodeArgs[T any](args json.RawMessage) (T, error) {
	var out T
	if len(args) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(args, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %v", err)
	}
	return out, nil
}

// ---- query handlers ----

type leadArgs struct {
	Status string `json:"status"`
	Source string `json:"source"`
	Search string `json:"search"`
	Period string `json:"period"`
	Limit  *int   `json:"limit"`
}

func (r *Registry) queryLeads(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[leadArgs](raw)
	if err != nil {
		return nil, err
	}
	opts, err := r.periodRange(args.Period)
	if err != nil {
		return nil, err
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "created_at"
	opts.SortDesc = true
	if args.Status != "" {
		opts.Equals = map[string]any{"status": strings.ToLower(args.Status)}
	}
	if args.Source != "" {
		if opts.Equals == nil {
			opts.Equals = map[string]any{}
		}
		opts.Equals["source"] = strings.ToLower(args.Source)
	}
	if args.Search != "" {
		opts.Contains = map[string]string{"name": args.Search}
	}
	return r.store.Leads(ctx, caller.Tenant.TenantID, opts)
}

type contactArgs struct {
	Search string `json:"search"`
	Period string `json:"period"`
	Limit  *int   `json:"limit"`
}

func (r *Registry) queryContacts(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[contactArgs](raw)
	if err != nil {
		return nil, err
	}
	opts, err := r.periodRange(args.Period)
	if err != nil {
		return nil, err
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "created_at"
	opts.SortDesc = true
	if args.Search != "" {
		opts.Contains = map[string]string{"name": args.Search}
	}
	return r.store.Contacts(ctx, caller.Tenant.TenantID, opts)
}

type dealArgs struct {
	Stage  string `json:"stage"`
	Period string `json:"period"`
	Limit  *int   `json:"limit"`
}

func (r *Registry) queryDeals(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[dealArgs](raw)
	if err != nil {
		return nil, err
	}
	opts, err := r.periodRange(args.Period)
	if err != nil {
		return nil, err
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "created_at"
	opts.SortDesc = true

	// "all" is a filter the model likes to send; it means no filter.
	stage := strings.TrimSpace(strings.ToLower(args.Stage))
	if stage != "" && stage != "all" {
		stageID, err := r.resolveStage(ctx, caller.Tenant.TenantID, stage)
		if err != nil {
			return nil, err
		}
		opts.Equals = map[string]any{"stage_id": stageID}
	}
	return r.store.Deals(ctx, caller.Tenant.TenantID, opts)
}

// resolveStage maps a stage name or slug onto the tenant's stage id. Stages
// are tenant-customizable, so this is a lookup, never a constant.
func (r *Registry) resolveStage(ctx context.Context, tenantID, nameOrSlug string) (string, error) {
	stages, err := r.store.PipelineStages(ctx, tenantID)
	if err != nil {
		return "", err
	}
	for _, s := range stages {
		if strings.EqualFold(s.Slug, nameOrSlug) || strings.EqualFold(s.Name, nameOrSlug) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline stage %q", nameOrSlug)
}

type taskArgs struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Due      string `json:"due"`
	Limit    *int   `json:"limit"`
}

func (r *Registry) queryTasks(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[taskArgs](raw)
	if err != nil {
		return nil, err
	}
	var opts crm.ListOptions
	if due := strings.TrimSpace(strings.ToLower(args.Due)); due != "" && due != "all" {
		from, to, rerr := r.clk.RangeFor(due)
		if rerr != nil {
			return nil, fmt.Errorf("unrecognized period %q", args.Due)
		}
		opts.DateField = "due_date"
		opts.From = from
		opts.To = to
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "due_date"
	if args.Status != "" {
		opts.Equals = map[string]any{"status": strings.ToLower(args.Status)}
	}
	if args.Priority != "" {
		if opts.Equals == nil {
			opts.Equals = map[string]any{}
		}
		opts.Equals["priority"] = strings.ToLower(args.Priority)
	}
	return r.store.Tasks(ctx, caller.Tenant.TenantID, opts)
}

type invoiceArgs struct {
	Status string `json:"status"`
	Period string `json:"period"`
	Limit  *int   `json:"limit"`
}

func (r *Registry) queryInvoices(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[invoiceArgs](raw)
	if err != nil {
		return nil, err
	}
	opts, err := r.periodRange(args.Period)
	if err != nil {
		return nil, err
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "created_at"
	opts.SortDesc = true
	if args.Status != "" {
		opts.Equals = map[string]any{"status": strings.ToLower(args.Status)}
	}
	return r.store.Invoices(ctx, caller.Tenant.TenantID, opts)
}

type eventArgs struct {
	Period string `json:"period"`
	Limit  *int   `json:"limit"`
}

func (r *Registry) queryCalendarEvents(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[eventArgs](raw)
	if err != nil {
		return nil, err
	}
	var opts crm.ListOptions
	if p := strings.TrimSpace(strings.ToLower(args.Period)); p != "" && p != "all" {
		from, to, rerr := r.clk.RangeFor(p)
		if rerr != nil {
			return nil, fmt.Errorf("unrecognized period %q", args.Period)
		}
		opts.DateField = "start_time"
		opts.From = from
		opts.To = to
	}
	opts.Limit = clampLimit(args.Limit)
	opts.SortBy = "start_time"
	return r.store.CalendarEvents(ctx, caller.Tenant.TenantID, opts)
}

func (r *Registry) getPipelineStages(ctx context.Context, _ json.RawMessage, caller Caller) (any, error) {
	return r.store.PipelineStages(ctx, caller.Tenant.TenantID)
}

type analyticsArgs struct {
	Metric string `json:"metric"`
}

func (r *Registry) crmAnalytics(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[analyticsArgs](raw)
	if err != nil {
		return nil, err
	}
	tenantID := caller.Tenant.TenantID

	switch strings.ToLower(args.Metric) {
	case "summary", "":
		return r.store.Stats(ctx, tenantID)
	case "deals_by_stage":
		return r.store.DealsByStage(ctx, tenantID)
	case "invoices_by_status":
		return r.store.InvoicesByStatus(ctx, tenantID)
	case "won_deals":
		return r.semanticStageTotal(ctx, tenantID, "won")
	case "lost_deals":
		return r.semanticStageTotal(ctx, tenantID, "lost")
	default:
		return nil, fmt.Errorf("unknown metric %q", args.Metric)
	}
}

// semanticStageTotal sums deal buckets whose stage slug contains the given
// category word. Stage ids differ per tenant; the slug is the only stable
// signal for "won"/"lost" semantics.
func (r *Registry) semanticStageTotal(ctx context.Context, tenantID, category string) (any, error) {
	stages, err := r.store.PipelineStages(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	matching := map[string]bool{}
	for _, s := range stages {
		if strings.Contains(strings.ToLower(s.Slug), category) {
			matching[s.ID] = true
		}
	}

	rows, err := r.store.DealsByStage(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var count int64
	var sum float64
	for _, row := range rows {
		if matching[row.Key] {
			count += row.Count
			sum += row.Sum
		}
	}
	return map[string]any{"category": category, "count": count, "total_value": sum}, nil
}

type searchArgs struct {
	Query string `json:"query"`
}

func (r *Registry) searchKnowledgeBase(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	args, err := decodeArgs[searchArgs](raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	passages := r.knowledge.Retrieve(ctx, caller.Tenant, args.Query)
	return map[string]any{"passages": passages}, nil
}

func (r *Registry) webSearch(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
	if caller.Tenant.Mode == model.AIModeMinimal {
		return nil, fmt.Errorf("Unknown tool: %s", ToolWebSearch)
	}
	args, err := decodeArgs[searchArgs](raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	results, err := r.web.Search(ctx, args.Query)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %v", err)
	}
	return map[string]any{"results": results}, nil
}
