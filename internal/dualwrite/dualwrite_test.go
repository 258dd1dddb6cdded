package dualwrite

import (
	"context"
	"strings"
	"testing"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
)

// faultStore injects a write failure for one specific path while letting every
// other operation through to the real store.
type faultStore struct {
	docstore.Store
	failWritePath string
}

type injectedErr struct{ path string }

func (e injectedErr) Error() string { return "injected write failure at " + e.path }

func (f *faultStore) Write(ctx context.Context, path string, v any) error {
	if path == f.failWritePath {
		return injectedErr{path: path}
	}
	return f.Store.Write(ctx, path, v)
}

func rosterOf(uids ...string) map[string]models.RosterEntry {
	roster := make(map[string]models.RosterEntry, len(uids))
	for _, uid := range uids {
		roster[uid] = models.RosterEntry{UID: uid}
	}
	return roster
}

func seed(t *testing.T, store docstore.Store, game models.Game) {
	t.Helper()
	ctx := context.Background()
	if err := store.Write(ctx, models.GamePath(game.GameCode), game); err != nil {
		t.Fatalf("seed game: %v", err)
	}
	for uid := range game.PlayerRoster {
		if err := store.Write(ctx, models.UserGameCodePath(uid), game.GameCode); err != nil {
			t.Fatalf("seed pointer %s: %v", uid, err)
		}
	}
}

func pointer(t *testing.T, store docstore.Store, uid string) any {
	t.Helper()
	v, err := store.Read(context.Background(), models.UserGameCodePath(uid))
	if err != nil {
		t.Fatalf("read pointer %s: %v", uid, err)
	}
	return v
}

func TestCancelGame_MarksEveryMemberAndDeletesGame(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	game := models.Game{
		GameCode:     "WQDS",
		GameHostUID:  "h1",
		GameStatus:   models.StatusLobby,
		PlayerRoster: rosterOf("h1", "p1", "p2"),
	}
	seed(t, store, game)

	if err := New(store).CancelGame(ctx, game); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, uid := range []string{"h1", "p1", "p2"} {
		if got := pointer(t, store, uid); got != models.GameCodeCancelled {
			t.Fatalf("pointer %s = %v, want %q", uid, got, models.GameCodeCancelled)
		}
	}
	raw, err := store.Read(ctx, models.GamePath("WQDS"))
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	if raw != nil {
		t.Fatalf("game record survived cancel: %v", raw)
	}
}

// A failed pointer write must not stop the sibling writes: the other members
// still get marked and the game record is still deleted.
func TestCancelGame_PartialFailureStillCompletesSiblings(t *testing.T) {
	faulty := &faultStore{
		Store:         docstore.NewMemory(),
		failWritePath: models.UserGameCodePath("p1"),
	}
	ctx := context.Background()

	game := models.Game{
		GameCode:     "WQDS",
		GameHostUID:  "h1",
		GameStatus:   models.StatusLobby,
		PlayerRoster: rosterOf("h1", "p1"),
	}
	seed(t, faulty.Store, game)

	err := New(faulty).CancelGame(ctx, game)
	if err == nil {
		t.Fatalf("cancel swallowed the injected failure")
	}
	if !strings.Contains(err.Error(), "WQDS") {
		t.Fatalf("error lost the game code: %v", err)
	}

	if got := pointer(t, faulty.Store, "h1"); got != models.GameCodeCancelled {
		t.Fatalf("sibling pointer h1 = %v, want cancelled", got)
	}
	raw, _ := faulty.Store.Read(ctx, models.GamePath("WQDS"))
	if raw != nil {
		t.Fatalf("game record survived partial-failure cancel")
	}
	// The failed member keeps their stale pointer. Their client still sees
	// the game document vanish, which reads as "leave this lobby".
	if got := pointer(t, faulty.Store, "p1"); got != "WQDS" {
		t.Fatalf("failed pointer p1 = %v, want untouched WQDS", got)
	}
}

func TestLeave_ClearsEntryAndPointer(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	game := models.Game{
		GameCode:     "WQDS",
		GameStatus:   models.StatusLobby,
		PlayerRoster: rosterOf("h1", "p1"),
	}
	seed(t, store, game)

	if err := New(store).Leave(ctx, "WQDS", "p1"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if got := pointer(t, store, "p1"); got != nil {
		t.Fatalf("pointer p1 = %v, want absent", got)
	}
	entry, err := store.Read(ctx, models.RosterEntryPath("WQDS", "p1"))
	if err != nil || entry != nil {
		t.Fatalf("roster entry = %v err=%v, want gone", entry, err)
	}
	// The remaining member is untouched.
	if got := pointer(t, store, "h1"); got != "WQDS" {
		t.Fatalf("pointer h1 = %v", got)
	}
}

func TestKick_ClearsEntryAndMarksPointer(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	game := models.Game{
		GameCode:     "WQDS",
		GameStatus:   models.StatusLobby,
		PlayerRoster: rosterOf("h1", "p1"),
	}
	seed(t, store, game)

	if err := New(store).Kick(ctx, "WQDS", "p1"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	if got := pointer(t, store, "p1"); got != models.GameCodeCancelled {
		t.Fatalf("pointer p1 = %v, want cancelled marker", got)
	}
	entry, _ := store.Read(ctx, models.RosterEntryPath("WQDS", "p1"))
	if entry != nil {
		t.Fatalf("roster entry survived kick: %v", entry)
	}
}

func TestJoinThenClearCancelled(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()
	writes := New(store)

	if err := writes.Join(ctx, "p1", "WQDS"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := pointer(t, store, "p1"); got != "WQDS" {
		t.Fatalf("pointer after join = %v", got)
	}

	if err := store.Write(ctx, models.UserGameCodePath("p1"), models.GameCodeCancelled); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := writes.ClearCancelled(ctx, "p1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := pointer(t, store, "p1"); got != nil {
		t.Fatalf("pointer after clear = %v, want absent", got)
	}
}
