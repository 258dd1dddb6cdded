package lobby

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/identity"
	"gamelobby/coordinator/internal/models"
)

func strptr(s string) *string { return &s }

func TestDerivePhase(t *testing.T) {
	cancelled := models.GameCodeCancelled
	inGame := models.User{UID: "u1", CurrentGameCode: strptr("WQDS")}

	cases := []struct {
		name       string
		userLoaded bool
		user       models.User
		game       *models.Game
		want       Phase
	}{
		{name: "user not loaded", want: PhaseLoading},
		{name: "no current game", userLoaded: true, user: models.User{UID: "u1"}, want: PhaseStart},
		{
			name:       "cancelled marker",
			userLoaded: true,
			user:       models.User{UID: "u1", CurrentGameCode: &cancelled},
			want:       PhaseCanceled,
		},
		{
			name:       "cancelled marker wins over stale game doc",
			userLoaded: true,
			user:       models.User{UID: "u1", CurrentGameCode: &cancelled},
			game:       &models.Game{GameCode: "WQDS", GameStatus: models.StatusLobby},
			want:       PhaseCanceled,
		},
		{name: "pointer set but game unresolved", userLoaded: true, user: inGame, want: PhaseLoading},
		{
			name:       "lobby status",
			userLoaded: true,
			user:       inGame,
			game:       &models.Game{GameCode: "WQDS", GameStatus: models.StatusLobby},
			want:       PhaseInLobby,
		},
		{
			name:       "live status",
			userLoaded: true,
			user:       inGame,
			game:       &models.Game{GameCode: "WQDS", GameStatus: models.StatusLive},
			want:       PhaseLive,
		},
		{
			name:       "ended status",
			userLoaded: true,
			user:       inGame,
			game:       &models.Game{GameCode: "WQDS", GameStatus: models.StatusEnded},
			want:       PhaseEnded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := derivePhase(tc.userLoaded, tc.user, tc.game); got != tc.want {
				t.Fatalf("derivePhase() = %q, want %q", got, tc.want)
			}
		})
	}
}

// startSession creates the user record and a loaded session for uid.
func startSession(t *testing.T, ctx context.Context, store docstore.Store, uid, name string) *Session {
	t.Helper()
	resolver := identity.NewResolver(store)
	if _, _, err := resolver.EnsureUser(ctx, uid, name); err != nil {
		t.Fatalf("ensure user %s: %v", uid, err)
	}
	s := NewSession(ctx, store, identity.Principal{UID: uid, DisplayName: name})
	t.Cleanup(s.Close)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.WaitLoaded(waitCtx); err != nil {
		t.Fatalf("session %s never loaded: %v", uid, err)
	}
	return s
}

// waitForPhase polls the session until the derived phase matches, with a
// deadline so a wedged state machine fails instead of hanging.
func waitForPhase(t *testing.T, s *Session, want Phase) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := s.Snapshot()
		if snap.Phase == want {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("phase stuck at %q, want %q", snap.Phase, want)
		case <-s.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// waitForRosterSize waits until the session's game view shows n members.
func waitForRosterSize(t *testing.T, s *Session, n int) models.Game {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := s.Snapshot()
		if snap.Game != nil && len(snap.Game.PlayerRoster) == n {
			return *snap.Game
		}
		select {
		case <-deadline:
			got := -1
			if snap.Game != nil {
				got = len(snap.Game.PlayerRoster)
			}
			t.Fatalf("roster size stuck at %d, want %d", got, n)
		case <-s.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSession_CreateGameRegistersHost(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	if got := host.Phase(); got != PhaseStart {
		t.Fatalf("fresh session phase = %q, want %q", got, PhaseStart)
	}

	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(game.GameCode) != 4 {
		t.Fatalf("game code %q, want 4 characters", game.GameCode)
	}
	if game.GameHostUID != "h1" || game.GameGmUID != "h1" {
		t.Fatalf("host/gm = %s/%s, want h1/h1", game.GameHostUID, game.GameGmUID)
	}

	waitForPhase(t, host, PhaseInLobby)
	view := waitForRosterSize(t, host, 1)
	entry, ok := view.PlayerRoster["h1"]
	if !ok {
		t.Fatalf("host entry missing from roster")
	}
	if !entry.IsHost || !entry.IsGM {
		t.Fatalf("host flags = host:%v gm:%v, want true/true", entry.IsHost, entry.IsGM)
	}
	if entry.GameDisplayName != "Hope" {
		t.Fatalf("host display name = %q, want Hope", entry.GameDisplayName)
	}

	if _, err := host.CreateGame(ctx); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("second create: got %v, want ErrAlreadyInGame", err)
	}
}

func TestSession_JoinIsCaseInsensitive(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)

	joiner := startSession(t, ctx, store, "p1", "Pat")
	lowered := "  " + strings.ToLower(game.GameCode) + " "
	if err := joiner.JoinGame(ctx, lowered); err != nil {
		t.Fatalf("join %q: %v", lowered, err)
	}

	waitForPhase(t, joiner, PhaseInLobby)
	// Both clients converge on a two-member roster through the shared store.
	waitForRosterSize(t, joiner, 2)
	hostView := waitForRosterSize(t, host, 2)
	entry := hostView.PlayerRoster["p1"]
	if entry.IsHost || entry.IsGM {
		t.Fatalf("joiner flags = host:%v gm:%v, want false/false", entry.IsHost, entry.IsGM)
	}
}

func TestSession_JoinErrors(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)

	joiner := startSession(t, ctx, store, "p1", "Pat")
	if err := joiner.JoinGame(ctx, "ZZZZ"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("unknown code: got %v, want ErrGameNotFound", err)
	}

	// Games that have left lobby status are closed to new members.
	if err := store.Write(ctx, models.GamePath(game.GameCode)+"/gameStatus", models.StatusLive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := joiner.JoinGame(ctx, game.GameCode); !errors.Is(err, ErrGameNotJoinable) {
		t.Fatalf("live game: got %v, want ErrGameNotJoinable", err)
	}

	if err := joiner.LeaveGame(ctx); !errors.Is(err, ErrNotInGame) {
		t.Fatalf("leave without game: got %v, want ErrNotInGame", err)
	}
}

func TestSession_KickAndAcknowledge(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)

	target := startSession(t, ctx, store, "p1", "Pat")
	if err := target.JoinGame(ctx, game.GameCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitForRosterSize(t, host, 2)

	if err := target.KickPlayer(ctx, "h1"); err == nil {
		t.Fatalf("non-GM kick succeeded")
	}
	if err := host.KickPlayer(ctx, "p1"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	// The kicked client lands in the canceled phase and only their own
	// acknowledgement moves them back to start.
	waitForPhase(t, target, PhaseCanceled)
	waitForRosterSize(t, host, 1)

	if err := target.AcknowledgeCancel(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	waitForPhase(t, target, PhaseStart)

	// Acknowledging without the marker is a no-op.
	if err := host.AcknowledgeCancel(ctx); err != nil {
		t.Fatalf("needless ack: %v", err)
	}
	if got := host.Phase(); got != PhaseInLobby {
		t.Fatalf("host phase after needless ack = %q, want %q", got, PhaseInLobby)
	}
}

func TestSession_CancelPropagatesToAllMembers(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)

	p1 := startSession(t, ctx, store, "p1", "Pat")
	p2 := startSession(t, ctx, store, "p2", "Quinn")
	for _, s := range []*Session{p1, p2} {
		if err := s.JoinGame(ctx, game.GameCode); err != nil {
			t.Fatalf("join %s: %v", s.UID(), err)
		}
	}
	waitForRosterSize(t, host, 3)

	if err := p1.CancelGame(ctx); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host cancel: got %v, want ErrNotHost", err)
	}
	if err := host.CancelGame(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Every member, host included, observes the cancellation.
	waitForPhase(t, host, PhaseCanceled)
	waitForPhase(t, p1, PhaseCanceled)
	waitForPhase(t, p2, PhaseCanceled)

	raw, err := store.Read(ctx, models.GamePath(game.GameCode))
	if err != nil {
		t.Fatalf("read game: %v", err)
	}
	if raw != nil {
		t.Fatalf("game record survived cancellation: %v", raw)
	}
}

func TestSession_LeaveReturnsToStart(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	game, err := host.CreateGame(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)

	p1 := startSession(t, ctx, store, "p1", "Pat")
	if err := p1.JoinGame(ctx, game.GameCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitForRosterSize(t, host, 2)

	if err := p1.LeaveGame(ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// Leaving is voluntary: no cancelled marker, straight back to start.
	waitForPhase(t, p1, PhaseStart)
	waitForRosterSize(t, host, 1)
	if got := host.Phase(); got != PhaseInLobby {
		t.Fatalf("host phase after member leave = %q, want %q", got, PhaseInLobby)
	}
}

func TestSession_RenameFlowsThroughStore(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	host := startSession(t, ctx, store, "h1", "Hope")
	if _, err := host.CreateGame(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForPhase(t, host, PhaseInLobby)
	waitForRosterSize(t, host, 1)

	if err := host.RenamePlayer(ctx, "h1", "The Host"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		snap := host.Snapshot()
		if snap.Game != nil && snap.Game.PlayerRoster["h1"].GameDisplayName == "The Host" {
			if !snap.Game.PlayerRoster["h1"].IsHost {
				t.Fatalf("rename clobbered the host flag")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("rename never observed")
		case <-host.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
}
