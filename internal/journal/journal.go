// Package journal persists every inbound chat message to SQLite so
// operators can audit what each tenant's bot received.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// Entry is one journaled inbound message.
type Entry struct {
	TenantID   string    `json:"tenantId"`
	ChatID     string    `json:"chatId"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Journal is a SQLite-backed inbound message log.
type Journal struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the journal database at dbPath.
func NewSQLite(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	// WAL keeps appends from blocking readers.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		body TEXT NOT NULL,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_tenant ON messages(tenant_id, received_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append records one inbound message, retrying briefly when the database
// is locked by a concurrent writer.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	query := `INSERT INTO messages (tenant_id, chat_id, body, received_at) VALUES (?, ?, ?, ?)`

	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		_, err = j.db.ExecContext(ctx, query, e.TenantID, e.ChatID, e.Body, e.ReceivedAt.Unix())
		if err == nil {
			return nil
		}
		if !isBusy(err) || attempt == busyRetries-1 {
			break
		}
		delay := busyBaseDelay * time.Duration(1<<attempt)
		slog.Debug("Journal append hit a locked database, retrying",
			"tenant_id", e.TenantID, "attempt", attempt+1, "delay", delay)
		time.Sleep(delay)
	}
	return fmt.Errorf("append message for %s: %w", e.TenantID, err)
}

// Recent returns up to limit messages for a tenant, newest first.
func (j *Journal) Recent(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT tenant_id, chat_id, body, received_at
		FROM messages WHERE tenant_id = ?
		ORDER BY received_at DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var receivedAt int64
		if err := rows.Scan(&e.TenantID, &e.ChatID, &e.Body, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		e.ReceivedAt = time.Unix(receivedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// isBusy matches SQLite's two concurrency error shapes.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
