// Package flow provides the conversational flow engine: a registry of
// named handlers and the built-in flows shipped with the platform.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/containerd/errdefs"
)

// DefaultName is the flow every unresolved name falls back to. The system
// cannot serve any tenant without it.
const DefaultName = "default"

// Context is the opaque per-message handle passed to handlers. It exposes
// the origin chat-thread id so replies and chat state land on the right
// conversation.
type Context interface {
	ChatID() string
}

// Handler is one conversational flow. Given inbound text, the message
// context and the owning tenant, it returns a reply ("" means no reply).
// Handlers own their tenant's chat state; the engine never touches it.
type Handler func(ctx context.Context, text string, msg Context, tenantID string) (string, error)

// Registry maps flow names to handlers. Flows register themselves at
// startup; adding a flow never requires engine changes.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty flow registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a flow name, replacing any previous binding.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Resolve returns the handler registered under name, falling back to the
// default flow for unknown names. Resolution fails only when even the
// default flow is unregistered.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[name]; ok {
		return h, nil
	}
	if h, ok := r.handlers[DefaultName]; ok {
		slog.Warn("Flow not registered, falling back to default", "flow", name)
		return h, nil
	}
	return nil, fmt.Errorf("flow %s unregistered and no default flow available: %w", name, errdefs.ErrNotFound)
}

// normalize lowers and trims inbound text before intent matching.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// containsAny reports whether t contains any of the given substrings.
func containsAny(t string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// allDigits reports whether s is a non-empty run of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
