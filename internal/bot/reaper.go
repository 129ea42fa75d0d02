package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/containerd/errdefs"
)

const reaperInterval = 10 * time.Minute

// Reconcile aligns persisted session metadata with the running table
// after a process restart: no live handle can have survived, so every
// session record still claiming a connection is downgraded and its
// tenant marked inactive.
func (m *Manager) Reconcile(ctx context.Context) error {
	tenants, err := m.repo.ListTenants(ctx)
	if err != nil {
		return err
	}

	reconciled := 0
	for _, t := range tenants {
		if m.IsRunning(t.ID) {
			continue
		}

		sess, err := m.repo.GetSession(ctx, t.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return err
		}

		if sess.Status != domain.SessionDisconnected || sess.Connected {
			disconnected := domain.SessionDisconnected
			no := false
			if _, err := m.repo.UpdateSession(ctx, t.ID, domain.SessionUpdate{Status: &disconnected, Connected: &no}); err != nil {
				return err
			}
			reconciled++
		}

		if t.Status == domain.TenantActive {
			inactive := domain.TenantInactive
			if _, err := m.repo.UpdateTenant(ctx, t.ID, domain.TenantUpdate{Status: &inactive}); err != nil {
				return err
			}
		}
	}

	if reconciled > 0 {
		slog.Info("Reconciled stale session records", "count", reconciled)
	}
	return nil
}

// StartReaper runs a background sweep that removes session records whose
// tenant has no live handle and whose last activity is older than the
// configured TTL. Crash leftovers aside, such records are junk.
func (m *Manager) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(reaperInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", reaperInterval, "ttl", m.cfg.SessionTTL)

		for {
			select {
			case <-ticker.C:
				m.reapOrphanedSessions(ctx)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) reapOrphanedSessions(ctx context.Context) {
	tenants, err := m.repo.ListTenants(ctx)
	if err != nil {
		slog.Error("Reaper failed to list tenants", "error", err)
		return
	}

	reaped := 0
	for _, t := range tenants {
		if m.IsRunning(t.ID) {
			continue
		}

		sess, err := m.repo.GetSession(ctx, t.ID)
		if err != nil {
			continue
		}
		if time.Since(sess.LastActivity) < m.cfg.SessionTTL {
			continue
		}

		if err := m.repo.RemoveSession(ctx, t.ID); err != nil {
			slog.Warn("Reaper failed to remove session record", "tenant_id", t.ID, "error", err)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		slog.Info("Reaped orphaned session records", "count", reaped)
	}
}
