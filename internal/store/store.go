// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
)

// Repository defines the interface for persisting tenants, sessions and
// flow metadata. Mutating calls are durable before they return: a
// successful return means the backing document reflects the change.
type Repository interface {
	// CreateTenant registers a new tenant. Returns a conflict error when
	// the id is already taken.
	CreateTenant(ctx context.Context, t *domain.Tenant) error

	// GetTenant retrieves a tenant by id. Returns a not-found error when
	// the tenant is unregistered.
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)

	// ListTenants returns all registered tenants.
	ListTenants(ctx context.Context) ([]*domain.Tenant, error)

	// UpdateTenant merges a partial update into an existing tenant and
	// returns the updated record.
	UpdateTenant(ctx context.Context, tenantID string, upd domain.TenantUpdate) (*domain.Tenant, error)

	// DeleteTenant removes a tenant and any session record it owns.
	DeleteTenant(ctx context.Context, tenantID string) error

	// CreateSession stores the session record for a tenant, replacing any
	// previous record for the same tenant.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves the session record for a tenant.
	GetSession(ctx context.Context, tenantID string) (*domain.Session, error)

	// UpdateSession merges a partial update into a tenant's session record
	// and returns the updated record.
	UpdateSession(ctx context.Context, tenantID string, upd domain.SessionUpdate) (*domain.Session, error)

	// RemoveSession deletes a tenant's session record. Removing an absent
	// record is a no-op, so disconnect and stop may race freely.
	RemoveSession(ctx context.Context, tenantID string) error

	// RegisterFlow stores discovery metadata for a flow name.
	RegisterFlow(ctx context.Context, info domain.FlowInfo) error

	// ListFlows returns the metadata of all registered flows.
	ListFlows(ctx context.Context) ([]*domain.FlowInfo, error)
}
