package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/calendar"
	"github.com/solacrm/backend/internal/crm"
	"github.com/solacrm/backend/internal/extractor"
	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/middleware"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
)

// ExtractHandler handles transcript extraction.
type ExtractHandler struct {
	extractor     *extractor.Extractor
	llms          *llm.Factory
	crmStore      crm.Store
	calendar      calendar.Provider // nil disables external sync
	tenantConfigs TenantConfigSource
	logger        *logger.Logger
}

// NewExtractHandler creates a new transcript extraction handler.
func NewExtractHandler(
	ex *extractor.Extractor,
	llms *llm.Factory,
	crmStore crm.Store,
	provider calendar.Provider,
	tenantConfigs TenantConfigSource,
	log *logger.Logger,
) *ExtractHandler {
	return &ExtractHandler{
		extractor:     ex,
		llms:          llms,
		crmStore:      crmStore,
		calendar:      provider,
		tenantConfigs: tenantConfigs,
		logger:        log,
	}
}

type extractRequest struct {
	Transcript   string   `json:"transcript"`
	CallDate     string   `json:"call_date"`
	Participants []string `json:"participants,omitempty"`

	// CreateEvent books the proposed meeting directly when the extraction
	// finds an agreed slot.
	CreateEvent bool `json:"create_event,omitempty"`
}

type extractResponse struct {
	Proposal model.MeetingProposal `json:"proposal"`
	EventID  string                `json:"event_id,omitempty"`
	Synced   bool                  `json:"synced,omitempty"`
}

// Extract handles POST /api/v1/ai/transcript/extract
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	userID := middleware.GetUserID(ctx)

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTranscript(req.Transcript); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	callDate, err := time.Parse(time.RFC3339, req.CallDate)
	if err != nil {
		callDate, err = time.Parse("2006-01-02", req.CallDate)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "call_date must be RFC3339 or YYYY-MM-DD")
		return
	}

	tenant, err := h.tenantConfigs.Get(ctx, tenantID)
	if err != nil {
		h.logger.Error("load tenant config", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	client, err := h.llms.ForTenant(tenant)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			writeError(w, http.StatusConflict, "AI is not configured for this workspace")
			return
		}
		h.logger.Error("build llm client", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	proposal, err := h.extractor.Extract(ctx, client, tenant.Model, req.Transcript, extractor.CallContext{
		CallDate:     callDate,
		Participants: req.Participants,
	})
	if err != nil {
		h.logger.Error("transcript extraction failed", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	resp := extractResponse{Proposal: proposal}

	if req.CreateEvent && proposal.Agreed {
		event, err := h.extractor.ToCalendarEvent(proposal, tenantID, userID)
		if err != nil {
			h.logger.Warn("proposal not bookable", zap.String("tenant_id", tenantID), zap.Error(err))
		} else if err := h.crmStore.CreateCalendarEvent(ctx, event); err != nil {
			h.logger.Error("create event from proposal", zap.String("tenant_id", tenantID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		} else {
			resp.EventID = event.ID
			resp.Synced = h.syncEvent(ctx, tenant, event)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// syncEvent pushes the booked meeting to the tenant's external calendar.
// Failure leaves the authoritative local row in place and only reports
// synced=false.
func (h *ExtractHandler) syncEvent(ctx context.Context, tenant model.TenantAIConfig, event *model.CalendarEvent) bool {
	if h.calendar == nil || tenant.CalendarCredential == "" {
		return false
	}
	externalID, err := h.calendar.CreateEvent(ctx, tenant.CalendarCredential, calendar.Event{
		Title:       event.Title,
		Description: event.Description,
		Attendees:   strings.Split(event.Attendees, ","),
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	})
	if err != nil {
		h.logger.Warn("calendar sync failed, event kept locally",
			zap.String("tenant_id", event.TenantID),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return false
	}
	if err := h.crmStore.MarkEventSynced(ctx, event.TenantID, event.ID, externalID); err != nil {
		h.logger.Warn("could not record calendar sync",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	return true
}
