package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

// tenantView is a tenant joined with its persisted session metadata.
type tenantView struct {
	*domain.Tenant
	Session *domain.Session `json:"session"`
}

func (h *Handler) tenantView(r *http.Request, t *domain.Tenant) tenantView {
	sess, err := h.repo.GetSession(r.Context(), t.ID)
	if err != nil {
		sess = nil
	}
	return tenantView{Tenant: t, Session: sess}
}

// ListTenants returns all registered tenants.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.ListTenants(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, tenants, "")
}

type createTenantRequest struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Phone  string            `json:"phone"`
	Flow   string            `json:"flow"`
	Config map[string]string `json:"config"`
}

// CreateTenant registers a new tenant.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, fmt.Errorf("invalid request body: %w", errdefs.ErrInvalidArgument))
		return
	}

	tenant := &domain.Tenant{
		ID:     req.ID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Flow:   req.Flow,
		Config: req.Config,
	}
	if err := h.repo.CreateTenant(r.Context(), tenant); err != nil {
		fail(w, err)
		return
	}

	created, err := h.repo.GetTenant(r.Context(), req.ID)
	if err != nil {
		fail(w, err)
		return
	}
	slog.Info("Tenant registered", "tenant_id", req.ID, "flow", created.Flow)
	ok(w, http.StatusCreated, created, "tenant registered")
}

// GetTenant returns one tenant with its session metadata.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	tenant, err := h.repo.GetTenant(r.Context(), tenantID)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, h.tenantView(r, tenant), "")
}

type updateTenantRequest struct {
	Name   *string           `json:"name"`
	Email  *string           `json:"email"`
	Phone  *string           `json:"phone"`
	Flow   *string           `json:"flow"`
	Config map[string]string `json:"config"`
}

// UpdateTenant merges a partial update into a tenant.
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, fmt.Errorf("invalid request body: %w", errdefs.ErrInvalidArgument))
		return
	}

	updated, err := h.repo.UpdateTenant(r.Context(), tenantID, domain.TenantUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Flow:   req.Flow,
		Config: req.Config,
	})
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, updated, "tenant updated")
}

// DeleteTenant removes a tenant, force-stopping its bot first.
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	if err := h.mgr.Stop(r.Context(), tenantID); err != nil && !errdefs.IsNotFound(err) {
		fail(w, err)
		return
	}
	if err := h.repo.DeleteTenant(r.Context(), tenantID); err != nil {
		fail(w, err)
		return
	}
	slog.Info("Tenant deleted", "tenant_id", tenantID)
	ok(w, http.StatusOK, nil, "tenant deleted")
}

type changeFlowRequest struct {
	FlowName string `json:"flowName"`
}

// ChangeFlow switches the flow a tenant's bot will use on its next start.
func (h *Handler) ChangeFlow(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req changeFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FlowName == "" {
		fail(w, fmt.Errorf("flowName is required: %w", errdefs.ErrInvalidArgument))
		return
	}

	updated, err := h.repo.UpdateTenant(r.Context(), tenantID, domain.TenantUpdate{Flow: &req.FlowName})
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, updated, "flow changed to "+req.FlowName)
}

// TenantMessages returns a tenant's recent inbound messages from the
// journal, newest first.
func (h *Handler) TenantMessages(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	if _, err := h.repo.GetTenant(r.Context(), tenantID); err != nil {
		fail(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.journal.Recent(r.Context(), tenantID, limit)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, entries, "")
}

// ListFlows returns the metadata of all registered flows.
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.repo.ListFlows(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, flows, "")
}
