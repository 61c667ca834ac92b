// Package actions validates and executes the side-effecting CRM actions the
// widget assistant proposes. The executor's field-completeness checks are the
// hard backstop behind the conversational confirmation protocol.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/calendar"
	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
	"github.com/solacrm/backend/pkg/metrics"
)

// Context carries who an action executes for.
type Context struct {
	Tenant  model.TenantAIConfig
	Surface model.Surface
	UserID  string

	// CalendarCredential enables best-effort external sync when set.
	CalendarCredential string
}

// Result is the stable outcome shape for every action type.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Err     string         `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// Executor performs validated writes against the CRM store.
type Executor struct {
	store    crm.Store
	provider calendar.Provider
	clk      clock.Policy
	log      *logger.Logger
}

func NewExecutor(store crm.Store, provider calendar.Provider, clk clock.Policy, log *logger.Logger) *Executor {
	return &Executor{
		store:    store,
		provider: provider,
		clk:      clk,
		log:      log.WithComponent("actions"),
	}
}

// Execute runs one action. Validation failures come back as unsuccessful
// Results, never as errors; an error return means the store itself failed.
func (e *Executor) Execute(ctx context.Context, action model.Action, actx Context) Result {
	var res Result
	switch action.Type {
	case model.ActionNone:
		res = Result{Success: true}
	case model.ActionCreateAppointment:
		res = e.createAppointment(ctx, action.Appointment, actx)
	case model.ActionCreateTask:
		res = e.createTask(ctx, action.Task, actx)
	case model.ActionCreateLead:
		res = e.createLead(ctx, action.Lead, actx)
	default:
		res = failure("unsupported action type %q", action.Type)
	}

	outcome := "ok"
	if !res.Success {
		outcome = "rejected"
	}
	metrics.ActionsTotal.WithLabelValues(string(action.Type), outcome).Inc()
	return res
}

func (e *Executor) createAppointment(ctx context.Context, d *model.AppointmentDraft, actx Context) Result {
	if d == nil {
		return failure("appointment details are missing")
	}
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(d.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(d.Time) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return failure("appointment is missing required fields: %s", strings.Join(missing, ", "))
	}

	day, err := e.clk.ResolveDate(d.Date)
	if err != nil {
		return failure("could not understand the date %q", d.Date)
	}
	start, err := e.clk.ResolveTime(day, d.Time)
	if err != nil {
		return failure("could not understand the time %q", d.Time)
	}

	duration := e.appointmentDuration(d, actx.Surface)
	end := start.Add(time.Duration(duration) * time.Minute)

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = appointmentTitle(d)
	}

	event := &model.CalendarEvent{
		ID:          uuid.NewString(),
		TenantID:    actx.Tenant.TenantID,
		UserID:      actx.UserID,
		Title:       title,
		Description: d.Notes,
		Attendees:   d.Email,
		StartTime:   start,
		EndTime:     end,
	}
	if err := e.store.CreateCalendarEvent(ctx, event); err != nil {
		e.log.Error("create appointment failed",
			zap.String("tenant_id", actx.Tenant.TenantID), zap.Error(err))
		return failure("could not save the appointment")
	}

	synced := e.syncEvent(ctx, event, actx)

	return Result{
		Success: true,
		Data: map[string]any{
			"event_id":   event.ID,
			"title":      event.Title,
			"start_time": start.Format(time.RFC3339),
			"end_time":   end.Format(time.RFC3339),
			"duration":   duration,
			"synced":     synced,
		},
	}
}

// appointmentDuration picks the event length. The portal default is an hour;
// the widget books shorter slots for demos and calls.
func (e *Executor) appointmentDuration(d *model.AppointmentDraft, surface model.Surface) int {
	if d.Duration > 0 {
		return d.Duration
	}
	if surface != model.SurfaceWidget {
		return 60
	}
	switch strings.ToLower(strings.TrimSpace(d.Kind)) {
	case "demo", "call":
		return 30
	default:
		return 60
	}
}

func appointmentTitle(d *model.AppointmentDraft) string {
	kind := strings.TrimSpace(d.Kind)
	if kind == "" {
		kind = "Meeting"
	} else {
		kind = strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
	}
	return fmt.Sprintf("%s with %s", kind, strings.TrimSpace(d.Name))
}

// syncEvent pushes the event to the external calendar. Failure leaves the
// authoritative local row in place and only reports synced=false.
func (e *Executor) syncEvent(ctx context.Context, event *model.CalendarEvent, actx Context) bool {
	if e.provider == nil || actx.CalendarCredential == "" {
		return false
	}
	externalID, err := e.provider.CreateEvent(ctx, actx.CalendarCredential, calendar.Event{
		Title:       event.Title,
		Description: event.Description,
		Attendees:   strings.Split(event.Attendees, ","),
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	})
	if err != nil {
		e.log.Warn("calendar sync failed, event kept locally",
			zap.String("tenant_id", event.TenantID),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return false
	}
	if err := e.store.MarkEventSynced(ctx, event.TenantID, event.ID, externalID); err != nil {
		e.log.Warn("could not record calendar sync",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	return true
}

func (e *Executor) createTask(ctx context.Context, d *model.TaskDraft, actx Context) Result {
	if d == nil {
		return failure("task details are missing")
	}
	if strings.TrimSpace(d.Title) == "" {
		return failure("task is missing required fields: title")
	}
	if actx.Surface == model.SurfaceWidget && strings.TrimSpace(d.Description) == "" {
		return failure("task is missing required fields: description")
	}

	priority := strings.ToLower(strings.TrimSpace(d.Priority))
	switch priority {
	case "low", "medium", "high":
	default:
		priority = "medium"
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		TenantID:    actx.Tenant.TenantID,
		UserID:      actx.UserID,
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Priority:    priority,
		Status:      "pending",
	}

	if strings.TrimSpace(d.DueDate) != "" {
		day, err := e.clk.ResolveDate(d.DueDate)
		if err != nil {
			return failure("could not understand the due date %q", d.DueDate)
		}
		due := day
		if strings.TrimSpace(d.DueTime) != "" {
			due, err = e.clk.ResolveTime(day, d.DueTime)
			if err != nil {
				return failure("could not understand the due time %q", d.DueTime)
			}
		}
		task.DueDate = &due
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		e.log.Error("create task failed",
			zap.String("tenant_id", actx.Tenant.TenantID), zap.Error(err))
		return failure("could not save the task")
	}

	data := map[string]any{
		"task_id":  task.ID,
		"title":    task.Title,
		"priority": task.Priority,
	}
	if task.DueDate != nil {
		data["due_date"] = task.DueDate.Format(time.RFC3339)
	}
	return Result{Success: true, Data: data}
}

func (e *Executor) createLead(ctx context.Context, d *model.LeadDraft, actx Context) Result {
	if d == nil {
		return failure("lead details are missing")
	}
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Email) == "" {
		missing = append(missing, "email")
	}
	if actx.Surface == model.SurfaceWidget && strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return failure("lead is missing required fields: %s", strings.Join(missing, ", "))
	}

	source := strings.TrimSpace(d.Source)
	if source == "" && actx.Surface == model.SurfaceWidget {
		source = "chat-widget"
	}

	lead := &model.Lead{
		ID:       uuid.NewString(),
		TenantID: actx.Tenant.TenantID,
		UserID:   actx.UserID,
		Name:     strings.TrimSpace(d.Name),
		Email:    strings.TrimSpace(d.Email),
		// The exact string the user typed; downstream messaging matches on it.
		Phone:   d.Phone,
		Company: strings.TrimSpace(d.Company),
		Source:  source,
		Status:  "new",
		Notes:   d.Notes,
	}
	if err := e.store.CreateLead(ctx, lead); err != nil {
		e.log.Error("create lead failed",
			zap.String("tenant_id", actx.Tenant.TenantID), zap.Error(err))
		return failure("could not save the lead")
	}

	return Result{
		Success: true,
		Data: map[string]any{
			"lead_id": lead.ID,
			"name":    lead.Name,
			"email":   lead.Email,
			"phone":   lead.Phone,
		},
	}
}
