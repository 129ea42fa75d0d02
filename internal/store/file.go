package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/containerd/errdefs"
)

// liveHandleFields are keys that must never appear in a persisted session
// record. They can only show up in a corrupted or hand-edited snapshot.
var liveHandleFields = []string{"botInstance", "client"}

// document is the single persisted JSON snapshot.
type document struct {
	Tenants  map[string]*domain.Tenant   `json:"tenants"`
	Flows    map[string]*domain.FlowInfo `json:"flows"`
	Sessions map[string]*domain.Session  `json:"sessions"`
}

// FileStore implements Repository on top of one JSON document. Every
// mutation rewrites the whole document to disk before returning; a single
// mutex keeps one in-process writer at a time.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  document
}

// NewFile opens (or initializes) the JSON document at path. A missing file
// yields an empty document persisted immediately; an unreadable or corrupt
// file is an error the caller should treat as fatal.
func NewFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = document{
			Tenants:  make(map[string]*domain.Tenant),
			Flows:    make(map[string]*domain.FlowInfo),
			Sessions: make(map[string]*domain.Session),
		}
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	// Sessions are decoded field-by-field so records polluted with a live
	// client handle can be detected and stripped.
	var onDisk struct {
		Tenants  map[string]*domain.Tenant   `json:"tenants"`
		Flows    map[string]*domain.FlowInfo `json:"flows"`
		Sessions map[string]json.RawMessage  `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	s.doc = document{
		Tenants:  onDisk.Tenants,
		Flows:    onDisk.Flows,
		Sessions: make(map[string]*domain.Session, len(onDisk.Sessions)),
	}
	if s.doc.Tenants == nil {
		s.doc.Tenants = make(map[string]*domain.Tenant)
	}
	if s.doc.Flows == nil {
		s.doc.Flows = make(map[string]*domain.FlowInfo)
	}

	sanitized := false
	for id, blob := range onDisk.Sessions {
		sess, dirty, err := sanitizeSession(blob)
		if err != nil {
			return fmt.Errorf("parse session %s: %w", id, err)
		}
		if dirty {
			slog.Warn("Stripped live-handle field from persisted session", "tenant_id", id)
			sanitized = true
		}
		if sess.TenantID == "" {
			sess.TenantID = id
		}
		s.doc.Sessions[id] = sess
	}

	if sanitized {
		return s.save()
	}
	return nil
}

// sanitizeSession decodes one session record, reporting whether a
// live-handle-shaped field had to be stripped. A stripped record gets its
// connected flag coerced to true: a handle was only ever stored while the
// bot was live.
func sanitizeSession(blob json.RawMessage) (*domain.Session, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return nil, false, err
	}

	var sess domain.Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, false, err
	}

	for _, key := range liveHandleFields {
		if _, ok := fields[key]; ok {
			sess.Connected = true
			return &sess, true, nil
		}
	}
	return &sess, false, nil
}

// save serializes the full document and writes it durably: temp file,
// fsync, rename. Callers hold s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp document: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// CreateTenant registers a new tenant.
func (s *FileStore) CreateTenant(_ context.Context, t *domain.Tenant) error {
	if t.ID == "" || t.Name == "" || t.Email == "" || t.Phone == "" {
		return fmt.Errorf("tenant requires id, name, email and phone: %w", errdefs.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Tenants[t.ID]; exists {
		return fmt.Errorf("tenant %s already exists: %w", t.ID, errdefs.ErrConflict)
	}

	stored := cloneTenant(t)
	if stored.Flow == "" {
		stored.Flow = "default"
	}
	if stored.Status == "" {
		stored.Status = domain.TenantInactive
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.doc.Tenants[t.ID] = stored
	return s.save()
}

// GetTenant retrieves a tenant by id.
func (s *FileStore) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.doc.Tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}
	return cloneTenant(t), nil
}

// ListTenants returns all registered tenants ordered by id.
func (s *FileStore) ListTenants(_ context.Context) ([]*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Tenant, 0, len(s.doc.Tenants))
	for _, t := range s.doc.Tenants {
		out = append(out, cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateTenant merges a partial update into an existing tenant.
func (s *FileStore) UpdateTenant(_ context.Context, tenantID string, upd domain.TenantUpdate) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.doc.Tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}

	upd.Apply(t)
	if err := s.save(); err != nil {
		return nil, err
	}
	return cloneTenant(t), nil
}

// DeleteTenant removes a tenant and its session record.
func (s *FileStore) DeleteTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Tenants[tenantID]; !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}

	delete(s.doc.Tenants, tenantID)
	delete(s.doc.Sessions, tenantID)
	return s.save()
}

// CreateSession stores the session record for a tenant.
func (s *FileStore) CreateSession(_ context.Context, sess *domain.Session) error {
	if sess.TenantID == "" {
		return fmt.Errorf("session requires a tenant id: %w", errdefs.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneSession(sess)
	now := time.Now().UTC()
	if stored.Status == "" {
		stored.Status = domain.SessionStarting
	}
	if stored.StartedAt.IsZero() {
		stored.StartedAt = now
	}
	stored.LastActivity = now

	s.doc.Sessions[sess.TenantID] = stored
	return s.save()
}

// GetSession retrieves the session record for a tenant.
func (s *FileStore) GetSession(_ context.Context, tenantID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.doc.Sessions[tenantID]
	if !ok {
		return nil, fmt.Errorf("session for tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}
	return cloneSession(sess), nil
}

// UpdateSession merges a partial update into a tenant's session record.
func (s *FileStore) UpdateSession(_ context.Context, tenantID string, upd domain.SessionUpdate) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.doc.Sessions[tenantID]
	if !ok {
		return nil, fmt.Errorf("session for tenant %s: %w", tenantID, errdefs.ErrNotFound)
	}

	upd.Apply(sess)
	if err := s.save(); err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// RemoveSession deletes a tenant's session record. Absent records are a
// no-op so disconnect cleanup and explicit stop may both run.
func (s *FileStore) RemoveSession(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Sessions[tenantID]; !ok {
		return nil
	}
	delete(s.doc.Sessions, tenantID)
	return s.save()
}

// RegisterFlow stores discovery metadata for a flow name.
func (s *FileStore) RegisterFlow(_ context.Context, info domain.FlowInfo) error {
	if info.Name == "" {
		return fmt.Errorf("flow requires a name: %w", errdefs.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := info
	s.doc.Flows[info.Name] = &clone
	return s.save()
}

// ListFlows returns the metadata of all registered flows ordered by name.
func (s *FileStore) ListFlows(_ context.Context) ([]*domain.FlowInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.FlowInfo, 0, len(s.doc.Flows))
	for _, f := range s.doc.Flows {
		clone := *f
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneTenant(t *domain.Tenant) *domain.Tenant {
	clone := *t
	if t.Config != nil {
		clone.Config = make(map[string]string, len(t.Config))
		for k, v := range t.Config {
			clone.Config[k] = v
		}
	}
	return &clone
}

func cloneSession(s *domain.Session) *domain.Session {
	clone := *s
	if s.Chats != nil {
		clone.Chats = make(map[string]domain.ChatState, len(s.Chats))
		for k, v := range s.Chats {
			cs := v
			if v.Data != nil {
				cs.Data = make(map[string]string, len(v.Data))
				for dk, dv := range v.Data {
					cs.Data[dk] = dv
				}
			}
			clone.Chats[k] = cs
		}
	}
	return &clone
}
