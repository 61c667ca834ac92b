package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/solacrm/backend/internal/convstore"
	"github.com/solacrm/backend/internal/middleware"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/internal/orchestrator"
	"github.com/solacrm/backend/pkg/logger"
)

// TenantConfigSource resolves a tenant's AI configuration.
type TenantConfigSource interface {
	Get(ctx context.Context, tenantID string) (model.TenantAIConfig, error)
}

// ChatHandler handles the conversational endpoints for both surfaces.
type ChatHandler struct {
	portal        *orchestrator.Portal
	widget        *orchestrator.Widget
	conversations *convstore.Store
	tenantConfigs TenantConfigSource
	logger        *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	portal *orchestrator.Portal,
	widget *orchestrator.Widget,
	conversations *convstore.Store,
	tenantConfigs TenantConfigSource,
	log *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		portal:        portal,
		widget:        widget,
		conversations: conversations,
		tenantConfigs: tenantConfigs,
		logger:        log,
	}
}

type chatRequest struct {
	Message string `json:"message"`

	// OwnerID identifies the widget visitor's thread. Ignored on the portal
	// surface, where the thread belongs to the authenticated user.
	OwnerID string `json:"owner_id,omitempty"`
}

// PortalChat handles POST /api/v1/ai/portal/chat
func (h *ChatHandler) PortalChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	userID := middleware.GetUserID(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.tenantConfigs.Get(ctx, tenantID)
	if err != nil {
		h.logger.Error("load tenant config", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out, err := h.portal.Respond(ctx, orchestrator.Input{
		Tenant:  tenant,
		OwnerID: userID,
		Message: req.Message,
	})
	if err != nil {
		h.logger.Error("portal turn failed", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// WidgetChat handles POST /api/v1/ai/widget/chat
func (h *ChatHandler) WidgetChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateOwnerID(req.OwnerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.tenantConfigs.Get(ctx, tenantID)
	if err != nil {
		h.logger.Error("load tenant config", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out, err := h.widget.Respond(ctx, orchestrator.Input{
		Tenant:  tenant,
		OwnerID: req.OwnerID,
		Message: req.Message,
	})
	if err != nil {
		h.logger.Error("widget turn failed", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// ClearConversation handles DELETE /api/v1/ai/conversations/{owner}
func (h *ChatHandler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	ownerID := chi.URLParam(r, "owner")

	if err := middleware.ValidateOwnerID(ownerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	surface := model.Surface(r.URL.Query().Get("surface"))
	if surface == "" {
		surface = model.SurfacePortal
	}
	if surface != model.SurfacePortal && surface != model.SurfaceWidget {
		writeError(w, http.StatusBadRequest, "invalid surface")
		return
	}

	if err := h.conversations.Clear(ctx, tenantID, ownerID, surface); err != nil {
		h.logger.Error("clear conversation failed",
			zap.String("tenant_id", tenantID),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
