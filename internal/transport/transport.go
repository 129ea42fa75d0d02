// Package transport defines the capability contract between the bot
// manager and a messaging transport: connect, emit lifecycle events, send.
// Any implementation exposing this surface can drive a tenant's bot.
package transport

import (
	"context"
	"time"
)

// Message is one inbound chat message delivered by the transport.
type Message struct {
	ID        string    `json:"id,omitempty"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ChatID returns the originating chat-thread id, which is where replies
// and chat state belong.
func (m Message) ChatID() string { return m.From }

// Handlers carries the lifecycle callbacks a client dispatches. Nil
// entries are skipped.
type Handlers struct {
	// OnQR fires when the transport emits a handshake code. It may fire
	// again if the transport rotates the code.
	OnQR func(code string)

	// OnReady fires once the connection is authorized and serving.
	OnReady func()

	// OnMessage fires for every inbound chat message.
	OnMessage func(msg Message)

	// OnDisconnected fires on an unsolicited connection loss, never after
	// an explicit Destroy.
	OnDisconnected func()

	// OnError fires for transport-level errors that do not end the
	// connection.
	OnError func(err error)
}

// Config binds a client to one tenant.
type Config struct {
	// TenantID scopes the connection on the remote end.
	TenantID string

	// DataPath is the tenant-scoped local directory the transport uses for
	// its own authentication persistence. The core only constructs the
	// path and never reads its contents.
	DataPath string

	// GatewayURL is the base URL of the messaging bridge.
	GatewayURL string
}

// Client is one tenant's live transport connection.
type Client interface {
	// Connect begins the connection handshake. It returns once the attempt
	// is underway; authorization progress arrives through Handlers.
	Connect(ctx context.Context) error

	// Send delivers text to a chat thread.
	Send(ctx context.Context, chatID, text string) error

	// Destroy tears the connection down. It is safe to call on a client
	// that never finished connecting.
	Destroy(ctx context.Context) error
}

// Factory constructs a client for one tenant. The bot manager depends on
// this instead of a concrete implementation so tests can inject fakes.
type Factory func(cfg Config, handlers Handlers) (Client, error)
