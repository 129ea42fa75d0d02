// Package gateway implements the transport capability over a WebSocket
// connection to an external WhatsApp bridge. The bridge owns the wire
// protocol and the browser session; this client only speaks a small JSON
// event/command framing with it.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// frame is the JSON envelope for both bridge events and client commands.
type frame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Code      string    `json:"code,omitempty"`
	ChatID    string    `json:"chatId,omitempty"`
	Body      string    `json:"body,omitempty"`
	DataPath  string    `json:"dataPath,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Bridge event and command types.
const (
	evQR           = "qr"
	evReady        = "ready"
	evMessage      = "message"
	evDisconnected = "disconnected"
	evError        = "error"

	cmdInit   = "init"
	cmdSend   = "send"
	cmdLogout = "logout"
)

// Client is one tenant's WebSocket connection to the bridge.
type Client struct {
	cfg      transport.Config
	handlers transport.Handlers

	writeMu   sync.Mutex
	conn      *websocket.Conn
	destroyed atomic.Bool
}

// New constructs an unconnected bridge client. It matches
// transport.Factory.
func New(cfg transport.Config, handlers transport.Handlers) (transport.Client, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("gateway: missing gateway URL")
	}
	if cfg.TenantID == "" {
		return nil, errors.New("gateway: missing tenant id")
	}
	return &Client{cfg: cfg, handlers: handlers}, nil
}

// Connect dials the bridge, announces the tenant and starts the event
// read loop. Authorization progress (QR, ready) arrives asynchronously.
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := c.endpoint()
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	c.conn = conn

	init := frame{
		Type:     cmdInit,
		ID:       uuid.NewString(),
		DataPath: c.cfg.DataPath,
	}
	if err := c.write(ctx, init); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "init failed")
		return fmt.Errorf("announce tenant: %w", err)
	}

	go c.readLoop()
	slog.Info("Bridge connection established", "tenant_id", c.cfg.TenantID)
	return nil
}

func (c *Client) endpoint() (string, error) {
	base, err := url.Parse(c.cfg.GatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway URL: %w", err)
	}
	base = base.JoinPath("ws")
	q := base.Query()
	q.Set("tenant", c.cfg.TenantID)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// readLoop consumes bridge events until the connection drops. Events for
// one tenant arrive serially on this goroutine.
func (c *Client) readLoop() {
	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if !c.destroyed.Load() {
				slog.Info("Bridge connection lost", "tenant_id", c.cfg.TenantID, "error", err)
				if c.handlers.OnDisconnected != nil {
					c.handlers.OnDisconnected()
				}
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("Dropping malformed bridge frame", "tenant_id", c.cfg.TenantID, "error", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	switch f.Type {
	case evQR:
		if c.handlers.OnQR != nil {
			c.handlers.OnQR(f.Code)
		}
	case evReady:
		if c.handlers.OnReady != nil {
			c.handlers.OnReady()
		}
	case evMessage:
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(transport.Message{
				ID:        f.ID,
				From:      f.ChatID,
				Body:      f.Body,
				Timestamp: f.Timestamp,
			})
		}
	case evDisconnected:
		if !c.destroyed.Load() && c.handlers.OnDisconnected != nil {
			c.handlers.OnDisconnected()
		}
	case evError:
		if c.handlers.OnError != nil {
			c.handlers.OnError(errors.New(f.Error))
		}
	default:
		slog.Debug("Ignoring unknown bridge event", "tenant_id", c.cfg.TenantID, "type", f.Type)
	}
}

// Send delivers text to a chat thread through the bridge.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	if c.conn == nil {
		return errors.New("gateway: not connected")
	}
	return c.write(ctx, frame{
		Type:   cmdSend,
		ID:     uuid.NewString(),
		ChatID: chatID,
		Body:   text,
	})
}

// write serializes one frame onto the connection. The websocket allows a
// single concurrent writer, so writes take a mutex.
func (c *Client) write(ctx context.Context, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Destroy logs the tenant out of the bridge (best effort) and closes the
// connection. Suppresses the disconnect callback: an explicit teardown is
// not an unsolicited connection loss.
func (c *Client) Destroy(ctx context.Context) error {
	c.destroyed.Store(true)
	if c.conn == nil {
		return nil
	}

	if err := c.write(ctx, frame{Type: cmdLogout, ID: uuid.NewString()}); err != nil {
		slog.Debug("Logout command failed during teardown", "tenant_id", c.cfg.TenantID, "error", err)
	}
	if err := c.conn.Close(websocket.StatusNormalClosure, "bot stopped"); err != nil {
		return fmt.Errorf("close bridge connection: %w", err)
	}
	return nil
}
