package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/containerd/errdefs"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.json")
	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return s, path
}

func testTenant(id string) *domain.Tenant {
	return &domain.Tenant{
		ID:    id,
		Name:  "Central",
		Email: "central@example.com",
		Phone: "+51999999999",
		Flow:  "foodies",
	}
}

func TestFileStore_InitializesEmptyDocument(t *testing.T) {
	_, path := newTestStore(t)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse backing file: %v", err)
	}
	for _, key := range []string{"tenants", "flows", "sessions"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("Expected top-level collection %q in fresh document", key)
		}
	}
}

func TestFileStore_CreateTenant_Conflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTenant(ctx, testTenant("central")); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	err := s.CreateTenant(ctx, testTenant("central"))
	if !errdefs.IsConflict(err) {
		t.Errorf("Expected conflict error, got %v", err)
	}
}

func TestFileStore_CreateTenant_Validation(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.CreateTenant(context.Background(), &domain.Tenant{ID: "x", Name: "no contact"})
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("Expected invalid-argument error, got %v", err)
	}
}

func TestFileStore_GetAfterDelete_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTenant(ctx, testTenant("central")); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if err := s.DeleteTenant(ctx, "central"); err != nil {
		t.Fatalf("DeleteTenant: %v", err)
	}

	if _, err := s.GetTenant(ctx, "central"); !errdefs.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestFileStore_CreateTenant_Defaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := testTenant("central")
	in.Flow = ""
	if err := s.CreateTenant(ctx, in); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}

	got, err := s.GetTenant(ctx, "central")
	if err != nil {
		t.Fatalf("GetTenant: %v", err)
	}
	if got.Flow != "default" {
		t.Errorf("Expected default flow, got %q", got.Flow)
	}
	if got.Status != domain.TenantInactive {
		t.Errorf("Expected inactive status, got %q", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestFileStore_Durability(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTenant(ctx, testTenant("central")); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	flowName := "hotel"
	if _, err := s.UpdateTenant(ctx, "central", domain.TenantUpdate{Flow: &flowName}); err != nil {
		t.Fatalf("UpdateTenant: %v", err)
	}
	if err := s.CreateSession(ctx, &domain.Session{TenantID: "central"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Reopen from disk: every mutation that returned success must be there.
	reloaded, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	tenant, err := reloaded.GetTenant(ctx, "central")
	if err != nil {
		t.Fatalf("GetTenant after reload: %v", err)
	}
	if tenant.Flow != "hotel" {
		t.Errorf("Expected flow %q after reload, got %q", "hotel", tenant.Flow)
	}

	sess, err := reloaded.GetSession(ctx, "central")
	if err != nil {
		t.Fatalf("GetSession after reload: %v", err)
	}
	if sess.Status != domain.SessionStarting {
		t.Errorf("Expected starting session after reload, got %q", sess.Status)
	}
}

func TestFileStore_SanitizesLiveHandleField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	doc := `{
		"tenants": {},
		"flows": {},
		"sessions": {
			"central": {
				"tenantId": "central",
				"status": "connected",
				"connected": false,
				"botInstance": {"pid": 4711}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("seed backing file: %v", err)
	}

	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	sess, err := s.GetSession(context.Background(), "central")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.Connected {
		t.Error("Expected connected flag coerced to true after sanitization")
	}

	// The persisted snapshot must no longer carry the handle field.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}
	var onDisk struct {
		Sessions map[string]map[string]json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("parse backing file: %v", err)
	}
	if _, ok := onDisk.Sessions["central"]["botInstance"]; ok {
		t.Error("Expected botInstance field stripped from persisted session")
	}
}

func TestFileStore_RemoveSession_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RemoveSession(ctx, "never-existed"); err != nil {
		t.Errorf("Expected no-op removal, got %v", err)
	}

	if err := s.CreateSession(ctx, &domain.Session{TenantID: "central"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.RemoveSession(ctx, "central"); err != nil {
		t.Fatalf("RemoveSession: %v", err)
	}
	if err := s.RemoveSession(ctx, "central"); err != nil {
		t.Errorf("Expected second removal to be a no-op, got %v", err)
	}
}

func TestFileStore_UpdateSession_ReplacesChatMap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, &domain.Session{TenantID: "central"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	chats := map[string]domain.ChatState{
		"55512345": {State: "awaiting_people"},
	}
	sess, err := s.UpdateSession(ctx, "central", domain.SessionUpdate{Chats: chats})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if sess.Chats["55512345"].State != "awaiting_people" {
		t.Errorf("Expected chat state persisted, got %+v", sess.Chats)
	}
	if sess.LastActivity.IsZero() {
		t.Error("Expected LastActivity bumped on update")
	}
}

func TestFileStore_RegisterAndListFlows(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, info := range []domain.FlowInfo{
		{Name: "hotel", Description: "Flujo para hoteles"},
		{Name: "default", Description: "Flujo por defecto"},
	} {
		if err := s.RegisterFlow(ctx, info); err != nil {
			t.Fatalf("RegisterFlow %s: %v", info.Name, err)
		}
	}

	flows, err := s.ListFlows(ctx)
	if err != nil {
		t.Fatalf("ListFlows: %v", err)
	}
	if len(flows) != 2 || flows[0].Name != "default" || flows[1].Name != "hotel" {
		t.Errorf("Expected sorted flow list, got %+v", flows)
	}
}
