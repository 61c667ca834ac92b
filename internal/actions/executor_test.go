package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/solacrm/backend/internal/calendar"
	"github.com/solacrm/backend/internal/clock"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

type fakeStore struct {
	crm.Store

	lead   *model.Lead
	task   *model.Task
	event  *model.CalendarEvent
	synced bool
}

func (f *fakeStore) CreateLead(_ context.Context, l *model.Lead) error {
	f.lead = l
	return nil
}

func (f *fakeStore) CreateTask(_ context.Context, t *model.Task) error {
	f.task = t
	return nil
}

func (f *fakeStore) CreateCalendarEvent(_ context.Context, e *model.CalendarEvent) error {
	f.event = e
	return nil
}

func (f *fakeStore) MarkEventSynced(context.Context, string, string, string) error {
	f.synced = true
	return nil
}

type fakeProvider struct {
	err    error
	called bool
}

func (f *fakeProvider) CreateEvent(context.Context, string, calendar.Event) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return "ext-123", nil
}

func testExecutor(store *fakeStore, provider calendar.Provider) *Executor {
	clk := clock.NewFixed(
		time.Date(2025, 6, 18, 10, 0, 0, 0, clock.DefaultLocation), // Wednesday
		clock.DefaultLocation,
	)
	return NewExecutor(store, provider, clk, logger.NewNop())
}

func widgetCtx() Context {
	return Context{
		Tenant:             model.TenantAIConfig{TenantID: "t1"},
		Surface:            model.SurfaceWidget,
		CalendarCredential: "cal-token",
	}
}

func TestAppointmentResolvesRelativeDateAndTime(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(store, &fakeProvider{})

	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateAppointment,
		Appointment: &model.AppointmentDraft{
			Name:  "Priya",
			Email: "priya@example.com",
			Date:  "tomorrow",
			Time:  "3pm",
			Kind:  "demo",
		},
	}, widgetCtx())

	if !res.Success {
		t.Fatalf("execute failed: %s", res.Err)
	}
	want := time.Date(2025, 6, 19, 15, 0, 0, 0, clock.DefaultLocation)
	if !store.event.StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", store.event.StartTime, want)
	}
	if got := store.event.EndTime.Sub(store.event.StartTime); got != 30*time.Minute {
		t.Errorf("widget demo duration = %v, want 30m", got)
	}
	if res.Data["synced"] != true {
		t.Errorf("expected synced=true, data=%v", res.Data)
	}
}

func TestAppointmentPortalDefaultDuration(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(store, nil)

	actx := widgetCtx()
	actx.Surface = model.SurfacePortal
	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateAppointment,
		Appointment: &model.AppointmentDraft{
			Name: "Priya", Email: "p@example.com", Date: "2025-07-01", Time: "10:00",
		},
	}, actx)

	if !res.Success {
		t.Fatalf("execute failed: %s", res.Err)
	}
	if got := store.event.EndTime.Sub(store.event.StartTime); got != time.Hour {
		t.Errorf("portal duration = %v, want 1h", got)
	}
}

func TestAppointmentRejectsMissingFields(t *testing.T) {
	e := testExecutor(&fakeStore{}, nil)

	res := e.Execute(context.Background(), model.Action{
		Type:        model.ActionCreateAppointment,
		Appointment: &model.AppointmentDraft{Name: "Priya", Email: "p@example.com", Date: "tomorrow"},
	}, widgetCtx())

	if res.Success {
		t.Fatal("missing time must not create an event")
	}
	if !strings.Contains(res.Err, "time") {
		t.Errorf("error should name the missing field: %q", res.Err)
	}
}

func TestAppointmentSurvivesCalendarSyncFailure(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{err: errors.New("bridge down")}
	e := testExecutor(store, provider)

	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateAppointment,
		Appointment: &model.AppointmentDraft{
			Name: "Priya", Email: "p@example.com", Date: "tomorrow", Time: "10am",
		},
	}, widgetCtx())

	if !res.Success {
		t.Fatalf("local create must win over sync failure: %s", res.Err)
	}
	if !provider.called {
		t.Error("sync should have been attempted")
	}
	if res.Data["synced"] != false {
		t.Errorf("sync failure must be reported, data=%v", res.Data)
	}
	if store.event == nil {
		t.Fatal("local event row missing")
	}
}

func TestTaskRequiresDescriptionOnWidget(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(store, nil)

	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateTask,
		Task: &model.TaskDraft{Title: "Follow up"},
	}, widgetCtx())
	if res.Success {
		t.Fatal("widget task without description must be rejected")
	}

	actx := widgetCtx()
	actx.Surface = model.SurfacePortal
	res = e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateTask,
		Task: &model.TaskDraft{Title: "Follow up", DueDate: "next friday", DueTime: "9am"},
	}, actx)
	if !res.Success {
		t.Fatalf("portal task: %s", res.Err)
	}
	if store.task.Priority != "medium" {
		t.Errorf("priority default = %q", store.task.Priority)
	}
	wantDue := time.Date(2025, 6, 20, 9, 0, 0, 0, clock.DefaultLocation)
	if store.task.DueDate == nil || !store.task.DueDate.Equal(wantDue) {
		t.Errorf("due = %v, want %v", store.task.DueDate, wantDue)
	}
}

func TestLeadRequiresPhoneOnWidget(t *testing.T) {
	e := testExecutor(&fakeStore{}, nil)

	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateLead,
		Lead: &model.LeadDraft{Name: "Priya", Email: "p@example.com"},
	}, widgetCtx())
	if res.Success {
		t.Fatal("widget lead without phone must be rejected")
	}
	if !strings.Contains(res.Err, "phone") {
		t.Errorf("error should name the missing field: %q", res.Err)
	}
}

func TestLeadPhoneStoredVerbatim(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(store, nil)

	const typed = " +91 (98765) 43210 "
	res := e.Execute(context.Background(), model.Action{
		Type: model.ActionCreateLead,
		Lead: &model.LeadDraft{Name: "Priya", Email: "p@example.com", Phone: typed},
	}, widgetCtx())

	if !res.Success {
		t.Fatalf("execute failed: %s", res.Err)
	}
	if store.lead.Phone != typed {
		t.Errorf("phone normalized: %q != %q", store.lead.Phone, typed)
	}
	if store.lead.Source != "chat-widget" {
		t.Errorf("widget lead source = %q", store.lead.Source)
	}
}

func TestNoneActionSucceedsWithoutWrites(t *testing.T) {
	store := &fakeStore{}
	e := testExecutor(store, nil)

	res := e.Execute(context.Background(), model.Action{Type: model.ActionNone}, widgetCtx())
	if !res.Success {
		t.Fatal("none action must succeed")
	}
	if store.lead != nil || store.task != nil || store.event != nil {
		t.Error("none action must not write")
	}
}
