// Package bot owns the tenant session lifecycle: it starts and stops one
// transport client per tenant, multiplexes their lifecycle events and is
// the single authority on which bots are live right now.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ArcanaCorp/RIZZO/internal/config"
	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/flow"
	"github.com/ArcanaCorp/RIZZO/internal/journal"
	"github.com/ArcanaCorp/RIZZO/internal/store"
	"github.com/ArcanaCorp/RIZZO/internal/transport"
	"github.com/containerd/errdefs"
)

const messageBuffer = 128

// Manager supervises the set of live transport clients, one per tenant.
// The running table below is the authoritative liveness source; persisted
// session records are metadata only.
type Manager struct {
	repo    store.Repository
	flows   *flow.Registry
	journal *journal.Journal // optional
	factory transport.Factory
	cfg     *config.Config

	mu      sync.RWMutex
	running map[string]*Running
}

// NewManager creates a manager with an empty running table.
func NewManager(repo store.Repository, flows *flow.Registry, jrnl *journal.Journal, factory transport.Factory, cfg *config.Config) *Manager {
	return &Manager{
		repo:    repo,
		flows:   flows,
		journal: jrnl,
		factory: factory,
		cfg:     cfg,
		running: make(map[string]*Running),
	}
}

// Running is the live in-memory state for one tenant's bot. It is the
// only place a transport handle is ever held.
type Running struct {
	tenantID string
	client   transport.Client
	handler  flow.Handler
	mgr      *Manager

	qrOnce sync.Once
	qrCh   chan string

	msgs     chan transport.Message
	done     chan struct{}
	stopOnce sync.Once
}

// QR returns the one-shot handshake-code notification. It yields at most
// one code per connection attempt; a previously-authorized tenant may
// reconnect without ever emitting one, so callers should race this
// against their own timeout.
func (r *Running) QR() <-chan string {
	return r.qrCh
}

// Start brings up the bot for a tenant: resolves its flow, constructs a
// transport client bound to the tenant's local storage path, persists a
// starting session record and begins the connection handshake. It does
// not wait for the handshake code.
func (m *Manager) Start(ctx context.Context, tenantID string) (*Running, error) {
	tenant, err := m.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	handler, err := m.flows.Resolve(tenant.Flow)
	if err != nil {
		return nil, err
	}

	r := &Running{
		tenantID: tenantID,
		handler:  handler,
		mgr:      m,
		qrCh:     make(chan string, 1),
		msgs:     make(chan transport.Message, messageBuffer),
		done:     make(chan struct{}),
	}

	client, err := m.factory(transport.Config{
		TenantID:   tenantID,
		DataPath:   m.cfg.ClientPath(tenantID),
		GatewayURL: m.cfg.GatewayURL,
	}, transport.Handlers{
		OnQR:           r.onQR,
		OnReady:        r.onReady,
		OnMessage:      r.onMessage,
		OnDisconnected: r.onDisconnected,
		OnError:        r.onError,
	})
	if err != nil {
		return nil, fmt.Errorf("construct transport client for %s: %w", tenantID, err)
	}
	r.client = client

	// Claim the slot before any connection work so two concurrent starts
	// cannot both win.
	m.mu.Lock()
	if _, exists := m.running[tenantID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("bot already running for tenant %s: %w", tenantID, errdefs.ErrConflict)
	}
	m.running[tenantID] = r
	m.mu.Unlock()

	if err := m.repo.CreateSession(ctx, &domain.Session{
		TenantID: tenantID,
		Status:   domain.SessionStarting,
	}); err != nil {
		m.drop(tenantID, r)
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		m.drop(tenantID, r)
		if removeErr := m.repo.RemoveSession(ctx, tenantID); removeErr != nil {
			slog.Error("Failed to remove session after aborted start", "tenant_id", tenantID, "error", removeErr)
		}
		return nil, fmt.Errorf("connect transport for %s: %v: %w", tenantID, err, errdefs.ErrUnavailable)
	}

	go r.loop()

	slog.Info("Bot starting", "tenant_id", tenantID, "flow", tenant.Flow)
	return r, nil
}

// Stop tears down a tenant's bot: bounded-grace transport teardown, the
// session record removed, the tenant marked inactive. The live handle is
// dropped even when teardown fails, so no zombie entry survives.
func (m *Manager) Stop(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	r, ok := m.running[tenantID]
	if ok {
		delete(m.running, tenantID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no running bot for tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}

	r.halt()

	graceCtx, cancel := context.WithTimeout(ctx, m.cfg.StopGrace)
	defer cancel()
	if err := r.client.Destroy(graceCtx); err != nil {
		slog.Warn("Transport teardown failed, dropping handle anyway", "tenant_id", tenantID, "error", err)
	}

	if err := m.repo.RemoveSession(ctx, tenantID); err != nil {
		return err
	}
	status := domain.TenantInactive
	if _, err := m.repo.UpdateTenant(ctx, tenantID, domain.TenantUpdate{Status: &status}); err != nil && !errdefs.IsNotFound(err) {
		return err
	}

	slog.Info("Bot stopped", "tenant_id", tenantID)
	return nil
}

// StopAll sequentially stops every running bot. Used at process shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	for _, tenantID := range m.ListRunning() {
		if err := m.Stop(ctx, tenantID); err != nil && !errdefs.IsNotFound(err) {
			slog.Error("Failed to stop bot during shutdown", "tenant_id", tenantID, "error", err)
		}
	}
}

// IsRunning reports whether a live handle exists for the tenant. Reads
// only the running table, never persisted session metadata.
func (m *Manager) IsRunning(tenantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.running[tenantID]
	return ok
}

// ListRunning returns the ids of all tenants with a live handle.
func (m *Manager) ListRunning() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.running))
	for id := range m.running {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// drop removes the running entry if it still points at r. Both explicit
// stop and unsolicited disconnect funnel through here, so a disconnect
// racing a stop cannot evict a newer bot.
func (m *Manager) drop(tenantID string, r *Running) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.running[tenantID]
	if !ok || current != r {
		return false
	}
	delete(m.running, tenantID)
	return true
}

// halt stops the message loop. Safe to call more than once.
func (r *Running) halt() {
	r.stopOnce.Do(func() { close(r.done) })
}

// loop consumes the tenant's inbound messages serially. One goroutine
// per tenant: chat-state writes for this tenant never interleave, and a
// slow flow handler cannot stall any other tenant.
func (r *Running) loop() {
	for {
		select {
		case msg := <-r.msgs:
			r.handle(msg)
		case <-r.done:
			return
		}
	}
}

// handle dispatches one message through the tenant's flow. A handler
// failure is logged and the session lives on.
func (r *Running) handle(msg transport.Message) {
	ctx := context.Background()
	slog.Info("Message received", "tenant_id", r.tenantID, "chat_id", msg.ChatID())

	if r.mgr.journal != nil {
		err := r.mgr.journal.Append(ctx, journal.Entry{
			TenantID:   r.tenantID,
			ChatID:     msg.ChatID(),
			Body:       msg.Body,
			ReceivedAt: msg.Timestamp,
		})
		if err != nil {
			slog.Warn("Failed to journal message", "tenant_id", r.tenantID, "error", err)
		}
	}

	reply, err := r.handler(ctx, msg.Body, msg, r.tenantID)
	if err != nil {
		slog.Error("Flow handler failed", "tenant_id", r.tenantID, "chat_id", msg.ChatID(), "error", err)
		return
	}
	if reply == "" {
		return
	}

	if err := r.client.Send(ctx, msg.ChatID(), reply); err != nil {
		slog.Error("Failed to send reply", "tenant_id", r.tenantID, "chat_id", msg.ChatID(), "error", err)
		return
	}
	slog.Info("Reply sent", "tenant_id", r.tenantID, "chat_id", msg.ChatID())
}

// onQR persists the handshake code and signals the one-shot notification.
// Rotated codes keep updating the record but never re-signal a consumed
// notification.
func (r *Running) onQR(code string) {
	ctx := context.Background()
	if _, err := r.mgr.repo.UpdateSession(ctx, r.tenantID, domain.SessionUpdate{QRCode: &code}); err != nil {
		slog.Error("Failed to persist handshake code", "tenant_id", r.tenantID, "error", err)
	}

	r.qrOnce.Do(func() { r.qrCh <- code })
	slog.Info("Handshake code received", "tenant_id", r.tenantID)
}

func (r *Running) onReady() {
	ctx := context.Background()
	active := domain.TenantActive
	if _, err := r.mgr.repo.UpdateTenant(ctx, r.tenantID, domain.TenantUpdate{Status: &active}); err != nil {
		slog.Error("Failed to mark tenant active", "tenant_id", r.tenantID, "error", err)
	}

	connected := domain.SessionConnected
	yes := true
	if _, err := r.mgr.repo.UpdateSession(ctx, r.tenantID, domain.SessionUpdate{Status: &connected, Connected: &yes}); err != nil {
		slog.Error("Failed to mark session connected", "tenant_id", r.tenantID, "error", err)
	}

	slog.Info("Bot connected", "tenant_id", r.tenantID)
}

// onMessage enqueues the message for the tenant's serial loop. Blocks the
// tenant's own event stream when the buffer is full; other tenants are
// unaffected.
func (r *Running) onMessage(msg transport.Message) {
	select {
	case r.msgs <- msg:
	case <-r.done:
	}
}

// onDisconnected handles an unsolicited connection loss: the handle is
// dropped, the tenant goes inactive and the session record stays behind
// marked disconnected.
func (r *Running) onDisconnected() {
	if !r.mgr.drop(r.tenantID, r) {
		// An explicit stop already claimed the teardown.
		return
	}
	r.halt()

	ctx := context.Background()
	inactive := domain.TenantInactive
	if _, err := r.mgr.repo.UpdateTenant(ctx, r.tenantID, domain.TenantUpdate{Status: &inactive}); err != nil && !errdefs.IsNotFound(err) {
		slog.Error("Failed to mark tenant inactive", "tenant_id", r.tenantID, "error", err)
	}

	disconnected := domain.SessionDisconnected
	no := false
	if _, err := r.mgr.repo.UpdateSession(ctx, r.tenantID, domain.SessionUpdate{Status: &disconnected, Connected: &no}); err != nil && !errdefs.IsNotFound(err) {
		slog.Error("Failed to mark session disconnected", "tenant_id", r.tenantID, "error", err)
	}

	slog.Info("Bot disconnected", "tenant_id", r.tenantID)
}

func (r *Running) onError(err error) {
	slog.Error("Transport error", "tenant_id", r.tenantID, "error", err)
}
