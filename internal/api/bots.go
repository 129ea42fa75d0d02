package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/go-chi/chi/v5"
)

// startBotResponse reports the outcome of a start request. QRCode is
// empty when the transport produced no handshake code within the wait
// bound (a previously-authorized tenant reconnecting silently, or a code
// still on its way).
type startBotResponse struct {
	TenantID string `json:"tenantId"`
	Status   string `json:"status"`
	QRCode   string `json:"qrCode,omitempty"`
}

// StartBot starts a tenant's bot and races the handshake-code
// notification against the configured wait bound. Missing the bound is
// not a failure: the session keeps connecting in the background.
func (h *Handler) StartBot(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	running, err := h.mgr.Start(r.Context(), tenantID)
	if err != nil {
		fail(w, err)
		return
	}

	var qrCode string
	select {
	case qrCode = <-running.QR():
		slog.Info("Handshake code delivered to caller", "tenant_id", tenantID)
	case <-time.After(h.cfg.QRWait):
		slog.Info("No handshake code within bound, still connecting", "tenant_id", tenantID)
	case <-r.Context().Done():
	}

	ok(w, http.StatusOK, startBotResponse{
		TenantID: tenantID,
		Status:   "initializing",
		QRCode:   qrCode,
	}, "bot started for tenant "+tenantID)
}

// StopBot stops a tenant's bot.
func (h *Handler) StopBot(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	if err := h.mgr.Stop(r.Context(), tenantID); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, nil, "bot stopped for tenant "+tenantID)
}

// botStatus joins persisted tenant/session state with live liveness from
// the running-client table.
type botStatus struct {
	TenantID   string              `json:"tenantId"`
	TenantName string              `json:"tenantName"`
	Status     domain.TenantStatus `json:"status"`
	Flow       string              `json:"flow"`
	IsActive   bool                `json:"isActive"`
	Session    *domain.Session     `json:"session"`
}

// BotStatus returns the bot status for one tenant.
func (h *Handler) BotStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	tenant, err := h.repo.GetTenant(r.Context(), tenantID)
	if err != nil {
		fail(w, err)
		return
	}

	view := h.tenantView(r, tenant)
	ok(w, http.StatusOK, botStatus{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Status:     tenant.Status,
		Flow:       tenant.Flow,
		IsActive:   h.mgr.IsRunning(tenant.ID),
		Session:    view.Session,
	}, "")
}

// AllBotStatus returns the bot status of every registered tenant.
func (h *Handler) AllBotStatus(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.ListTenants(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	statuses := make([]botStatus, 0, len(tenants))
	for _, tenant := range tenants {
		view := h.tenantView(r, tenant)
		statuses = append(statuses, botStatus{
			TenantID:   tenant.ID,
			TenantName: tenant.Name,
			Status:     tenant.Status,
			Flow:       tenant.Flow,
			IsActive:   h.mgr.IsRunning(tenant.ID),
			Session:    view.Session,
		})
	}
	ok(w, http.StatusOK, statuses, "")
}
