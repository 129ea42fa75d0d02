// Package api provides the HTTP handlers for the RIZZO API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ArcanaCorp/RIZZO/internal/bot"
	"github.com/ArcanaCorp/RIZZO/internal/config"
	"github.com/ArcanaCorp/RIZZO/internal/journal"
	"github.com/ArcanaCorp/RIZZO/internal/store"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

// Handler translates REST calls onto the core contracts: the store for
// tenant data, the bot manager for session lifecycle.
type Handler struct {
	repo    store.Repository
	mgr     *bot.Manager
	journal *journal.Journal
	cfg     *config.Config
}

// NewHandler creates a new Handler with its core dependencies.
func NewHandler(repo store.Repository, mgr *bot.Manager, jrnl *journal.Journal, cfg *config.Config) *Handler {
	return &Handler{repo: repo, mgr: mgr, journal: jrnl, cfg: cfg}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/info", h.Info)

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.ListTenants)
			r.Post("/", h.CreateTenant)
			r.Route("/{tenantID}", func(r chi.Router) {
				r.Get("/", h.GetTenant)
				r.Put("/", h.UpdateTenant)
				r.Delete("/", h.DeleteTenant)
				r.Post("/flow", h.ChangeFlow)
				r.Get("/messages", h.TenantMessages)
			})
		})

		r.Route("/bots", func(r chi.Router) {
			r.Get("/status/all", h.AllBotStatus)
			r.Post("/{tenantID}/start", h.StartBot)
			r.Post("/{tenantID}/stop", h.StopBot)
			r.Get("/{tenantID}/status", h.BotStatus)
		})

		r.Get("/flows", h.ListFlows)
	})
}

// envelope is the uniform API response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes an envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"success":false,"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// ok writes a success envelope.
func ok(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// fail maps a core error onto a transport status code.
func fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errdefs.IsNotFound(err):
		status = http.StatusNotFound
	case errdefs.IsConflict(err):
		status = http.StatusConflict
	case errdefs.IsInvalidArgument(err):
		status = http.StatusBadRequest
	case errdefs.IsUnavailable(err):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// Info returns service identification for the dashboard.
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	ok(w, http.StatusOK, map[string]string{
		"name":        "RIZZO - WhatsApp Bot Manager",
		"version":     "2.0.0",
		"description": "Plataforma para gestionar múltiples bots de WhatsApp",
	}, "")
}
