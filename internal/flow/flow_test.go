package flow

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/store"
)

type testMsg string

func (m testMsg) ChatID() string { return string(m) }

func newFlowStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.NewFile(filepath.Join(t.TempDir(), "database.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := s.CreateSession(context.Background(), &domain.Session{TenantID: "central"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func chatStateOf(t *testing.T, s *store.FileStore, tenantID, chatID string) domain.ChatState {
	t.Helper()
	sess, err := s.GetSession(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	return sess.Chats[chatID]
}

func TestRegistry_ResolveFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(DefaultName, Default())

	h, err := r.Resolve("never-registered")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	reply, err := h(context.Background(), "hola", testMsg("1"), "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "RIZZO") {
		t.Errorf("Expected default flow greeting, got %q", reply)
	}
}

func TestRegistry_ResolveDefaultNeverFails(t *testing.T) {
	r := NewRegistry()
	r.Register(DefaultName, Default())

	if _, err := r.Resolve(DefaultName); err != nil {
		t.Errorf("Resolve(default): %v", err)
	}
}

func TestRegistry_ResolveWithoutDefaultFails(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Resolve("foodies"); err == nil {
		t.Error("Expected resolution to fail with no default flow registered")
	}
}

func TestFoodies_ReservationRoundTrip(t *testing.T) {
	s := newFlowStore(t)
	h := Foodies(s)
	ctx := context.Background()
	msg := testMsg("55512345")

	// Idle -> awaiting_people.
	reply, err := h(ctx, "reservas", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "cuántas personas") {
		t.Errorf("Expected party-size prompt, got %q", reply)
	}
	if got := chatStateOf(t, s, "central", "55512345"); got.State != StateAwaitingPeople {
		t.Fatalf("Expected state %q, got %q", StateAwaitingPeople, got.State)
	}

	// Unparseable input re-prompts without touching state.
	reply, err = h(ctx, "x", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if reply != foodiesReprompt {
		t.Errorf("Expected re-prompt, got %q", reply)
	}
	if got := chatStateOf(t, s, "central", "55512345"); got.State != StateAwaitingPeople {
		t.Errorf("Expected state unchanged, got %q", got.State)
	}

	// Numeric answer confirms and returns to idle.
	reply, err = h(ctx, "3", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "3 personas") {
		t.Errorf("Expected confirmation for 3 people, got %q", reply)
	}
	if got := chatStateOf(t, s, "central", "55512345"); !got.Idle() {
		t.Errorf("Expected idle state after confirmation, got %q", got.State)
	}
}

func TestFoodies_SingularConfirmation(t *testing.T) {
	s := newFlowStore(t)
	h := Foodies(s)
	ctx := context.Background()
	msg := testMsg("55512345")

	// "3" while idle is the numbered reservation menu item.
	if _, err := h(ctx, "3", msg, "central"); err != nil {
		t.Fatalf("handler: %v", err)
	}
	reply, err := h(ctx, "1", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "1 persona.") {
		t.Errorf("Expected singular confirmation, got %q", reply)
	}
}

func TestFoodies_IntentPriority(t *testing.T) {
	s := newFlowStore(t)
	h := Foodies(s)
	ctx := context.Background()

	cases := []struct {
		in   string
		want string
	}{
		{"Hola!", foodiesGreeting},
		{"  BUENAS tardes ", foodiesGreeting},
		{"1", foodiesCard},
		{"quiero ver la carta", foodiesCard},
		{"2", foodiesPromos},
		{"promos?", foodiesPromos},
		{"ayuda", foodiesHelp},
		{"opciones", foodiesHelp},
		{"qwerty", foodiesFallback},
	}
	for _, tc := range cases {
		// Fresh chat per case so no waiting-state leaks between inputs.
		reply, err := h(ctx, tc.in, testMsg("chat-"+tc.in), "central")
		if err != nil {
			t.Fatalf("handler(%q): %v", tc.in, err)
		}
		if reply != tc.want {
			t.Errorf("handler(%q) = %q, want %q", tc.in, reply, tc.want)
		}
	}
}

func TestFoodies_FallbackLeavesStateIdle(t *testing.T) {
	s := newFlowStore(t)
	h := Foodies(s)

	if _, err := h(context.Background(), "qwerty", testMsg("55512345"), "central"); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := chatStateOf(t, s, "central", "55512345"); !got.Idle() {
		t.Errorf("Expected idle state after fallback, got %q", got.State)
	}
}

func TestHotel_DateRoundTrip(t *testing.T) {
	s := newFlowStore(t)
	h := Hotel(s)
	ctx := context.Background()
	msg := testMsg("55598765")

	if _, err := h(ctx, "reservar", msg, "central"); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := chatStateOf(t, s, "central", "55598765"); got.State != StateAwaitingDate {
		t.Fatalf("Expected state %q, got %q", StateAwaitingDate, got.State)
	}

	// Both accepted layouts plus rejection of nonsense.
	reply, err := h(ctx, "31/12/2026", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "31/12/2026") {
		t.Errorf("Expected date confirmation, got %q", reply)
	}
	if got := chatStateOf(t, s, "central", "55598765"); !got.Idle() {
		t.Errorf("Expected idle state after confirmation, got %q", got.State)
	}

	if _, err := h(ctx, "3", msg, "central"); err != nil {
		t.Fatalf("handler: %v", err)
	}
	reply, err = h(ctx, "99/99/9999", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if reply != hotelReprompt {
		t.Errorf("Expected re-prompt for invalid date, got %q", reply)
	}

	reply, err = h(ctx, "2026-12-31", msg, "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(reply, "2026-12-31") {
		t.Errorf("Expected ISO date confirmation, got %q", reply)
	}
}

func TestChatStates_IndependentPerChat(t *testing.T) {
	s := newFlowStore(t)
	h := Foodies(s)
	ctx := context.Background()

	if _, err := h(ctx, "reservas", testMsg("chat-a"), "central"); err != nil {
		t.Fatalf("handler: %v", err)
	}

	// A second chat stays idle and still gets the greeting.
	reply, err := h(ctx, "hola", testMsg("chat-b"), "central")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if reply != foodiesGreeting {
		t.Errorf("Expected greeting for independent chat, got %q", reply)
	}
	if got := chatStateOf(t, s, "central", "chat-a"); got.State != StateAwaitingPeople {
		t.Errorf("Expected chat-a still awaiting, got %q", got.State)
	}
}
