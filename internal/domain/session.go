package domain

import "time"

// SessionStatus tracks a connection attempt from handshake to teardown.
type SessionStatus string

const (
	SessionStarting     SessionStatus = "starting"
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
)

// Session holds the persisted, serializable metadata for one tenant's
// current or most recent connection attempt. It must never reference the
// live transport client; the running-client table inside the bot manager
// is the only owner of connection handles.
type Session struct {
	TenantID     string               `json:"tenantId"`
	Status       SessionStatus        `json:"status"`
	QRCode       string               `json:"qrCode,omitempty"`
	Connected    bool                 `json:"connected"`
	StartedAt    time.Time            `json:"startedAt"`
	LastActivity time.Time            `json:"lastActivity"`
	Chats        map[string]ChatState `json:"chats,omitempty"`
}

// ChatState is the per chat-thread conversational cursor. An empty State
// means no multi-turn dialog is pending.
type ChatState struct {
	State string            `json:"state,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Idle reports whether no waiting-state is pending for the chat.
func (c ChatState) Idle() bool {
	return c.State == ""
}

// SessionUpdate is a partial session mutation. Nil fields are left
// unchanged; Chats replaces the whole chat-state map when non-nil.
type SessionUpdate struct {
	Status    *SessionStatus
	QRCode    *string
	Connected *bool
	Chats     map[string]ChatState
}

// Apply merges the update into the session and bumps LastActivity.
func (u SessionUpdate) Apply(s *Session) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.QRCode != nil {
		s.QRCode = *u.QRCode
	}
	if u.Connected != nil {
		s.Connected = *u.Connected
	}
	if u.Chats != nil {
		s.Chats = u.Chats
	}
	s.LastActivity = time.Now().UTC()
}
