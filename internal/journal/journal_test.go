package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "messages.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return j
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{TenantID: "central", ChatID: "55512345", Body: "hola", ReceivedAt: base},
		{TenantID: "central", ChatID: "55512345", Body: "reservas", ReceivedAt: base.Add(time.Minute)},
		{TenantID: "otro", ChatID: "55599999", Body: "buenas", ReceivedAt: base},
	}
	for _, e := range entries {
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := j.Recent(ctx, "central", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries for tenant central, got %d", len(got))
	}
	if got[0].Body != "reservas" {
		t.Errorf("Expected newest entry first, got %q", got[0].Body)
	}
	if got[1].ReceivedAt != base {
		t.Errorf("Expected timestamp round trip, got %v", got[1].ReceivedAt)
	}
}

func TestJournal_RecentLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := Entry{TenantID: "central", ChatID: "55512345", Body: "msg"}
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := j.Recent(ctx, "central", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected limit of 3 entries, got %d", len(got))
	}
}

func TestJournal_RecentUnknownTenant(t *testing.T) {
	j := newTestJournal(t)

	got, err := j.Recent(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no entries, got %d", len(got))
	}
}
