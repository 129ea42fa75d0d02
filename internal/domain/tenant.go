// Package domain defines the core data model: tenants, sessions and
// per-chat conversation state.
package domain

import "time"

// TenantStatus describes whether a tenant's bot is currently serving chats.
type TenantStatus string

const (
	TenantInactive TenantStatus = "inactive"
	TenantActive   TenantStatus = "active"
)

// Tenant represents one registered bot owner. The ID is caller-supplied,
// unique and immutable after creation.
type Tenant struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Flow      string            `json:"flow"`
	Status    TenantStatus      `json:"status"`
	Config    map[string]string `json:"config,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// TenantUpdate is a partial tenant mutation. Nil fields are left unchanged.
type TenantUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Flow   *string
	Status *TenantStatus
	Config map[string]string
}

// Apply merges the update into the tenant. Config entries are merged
// key-by-key rather than replaced wholesale.
func (u TenantUpdate) Apply(t *Tenant) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Email != nil {
		t.Email = *u.Email
	}
	if u.Phone != nil {
		t.Phone = *u.Phone
	}
	if u.Flow != nil {
		t.Flow = *u.Flow
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Config != nil {
		if t.Config == nil {
			t.Config = make(map[string]string, len(u.Config))
		}
		for k, v := range u.Config {
			t.Config[k] = v
		}
	}
}

// FlowInfo is the discovery metadata registered for a conversational flow.
// The executable handler is resolved by name through the flow engine,
// never stored here.
type FlowInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
