// Package lobby runs the per-client lobby state machine. Every client runs
// the same logic against the shared store; there is no orchestrating server.
package lobby

import (
	"context"
	"errors"
	"log"
	"sync"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/dualwrite"
	"gamelobby/coordinator/internal/identity"
	"gamelobby/coordinator/internal/models"
	"gamelobby/coordinator/internal/registry"
	"gamelobby/coordinator/internal/roster"
	"gamelobby/coordinator/internal/syncfield"
)

var (
	ErrNotSignedIn     = errors.New("lobby: user record not loaded")
	ErrAlreadyInGame   = errors.New("lobby: user already has a current game")
	ErrNotInGame       = errors.New("lobby: user has no current game")
	ErrGameNotFound    = errors.New("lobby: no game found for that code")
	ErrGameNotJoinable = errors.New("lobby: game is no longer in lobby")
	ErrNotHost         = errors.New("lobby: only the host may cancel the game")
)

// Snapshot is one client's derived view: phase plus the inputs it was
// derived from.
type Snapshot struct {
	Phase Phase
	User  models.User
	Game  *models.Game
}

// Session binds one signed-in user to the live lobby protocol: it watches
// the user record and whichever game the pointer names, recomputes the phase
// on every change, opportunistically self-registers, and exposes the
// transition triggers. Close releases both subscriptions deterministically.
type Session struct {
	ctx      context.Context
	store    docstore.Store
	registry *registry.Registry
	roster   *roster.Synchronizer
	writes   *dualwrite.Coordinator

	uid       string
	userField *syncfield.Field[models.User]
	watcher   *registry.Watcher

	mu         sync.Mutex
	user       models.User
	userLoaded bool
	game       *models.Game
	closed     bool

	updates chan Snapshot
}

// NewSession starts the state machine for principal. The user record is
// expected to exist already (identity.Resolver.EnsureUser runs at sign-in).
func NewSession(ctx context.Context, store docstore.Store, principal identity.Principal) *Session {
	s := &Session{
		ctx:      ctx,
		store:    store,
		registry: registry.New(store),
		roster:   roster.New(store),
		writes:   dualwrite.New(store),
		uid:      principal.UID,
		updates:  make(chan Snapshot, 1),
	}

	s.watcher = s.registry.NewWatcher(s.onGameChange)
	resolver := identity.NewResolver(store)
	s.userField = resolver.WatchUser(principal.UID, s.onUserChange)
	return s
}

// Updates yields the latest snapshot after each recompute. Intermediate
// snapshots are coalesced; receivers always see the newest state.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Snapshot returns the current derived view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Phase returns the current derived phase.
func (s *Session) Phase() Phase {
	return s.Snapshot().Phase
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Phase: derivePhase(s.userLoaded, s.user, s.game),
		User:  s.user,
		Game:  s.game,
	}
}

func (s *Session) onUserChange(user models.User, present bool, err error) {
	if err != nil {
		log.Printf("lobby: user %s: %v", s.uid, err)
		return
	}
	s.mu.Lock()
	if !present {
		user = models.User{UID: s.uid}
	}
	s.user = user
	s.userLoaded = true
	s.mu.Unlock()

	// Re-point the game watcher at whatever the pointer now names. The
	// watcher drops the previous listener before attaching the next.
	s.watcher.SetCode(user.GameCode())
	s.recompute()
}

func (s *Session) onGameChange(game *models.Game) {
	s.mu.Lock()
	s.game = game
	user := s.user
	loaded := s.userLoaded
	s.mu.Unlock()

	// Self-registration runs on every observation, not just once. It is a
	// no-op when already registered or when the pointer is cancelled.
	if game != nil && loaded && user.GameCode() == game.GameCode {
		if err := s.roster.SelfRegister(s.ctx, *game, user); err != nil {
			log.Printf("lobby: self-register: %v", err)
		}
	}
	s.recompute()
}

func (s *Session) recompute() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	// Latest-wins mailbox.
	for {
		select {
		case s.updates <- snap:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// WaitLoaded blocks until the first user-record snapshot has arrived or ctx
// expires. Gateways call this right after NewSession so request handling sees
// resolved state.
func (s *Session) WaitLoaded(ctx context.Context) error {
	for {
		s.mu.Lock()
		loaded := s.userLoaded
		s.mu.Unlock()
		if loaded {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.updates:
		}
	}
}

// CreateGame generates a code, writes the game record, and points this user
// at it. The creator self-registers as host once the new game document is
// observed.
func (s *Session) CreateGame(ctx context.Context) (models.Game, error) {
	s.mu.Lock()
	user, loaded := s.user, s.userLoaded
	s.mu.Unlock()
	if !loaded {
		return models.Game{}, ErrNotSignedIn
	}
	if user.HasGameCode() {
		return models.Game{}, ErrAlreadyInGame
	}
	return s.registry.CreateGame(ctx, user)
}

// JoinGame resolves code case-insensitively and, only after the game is
// confirmed to exist in lobby status, points this user at it. The roster
// entry is not written here; self-registration follows once the subscription
// observes the membership gap.
func (s *Session) JoinGame(ctx context.Context, code string) error {
	s.mu.Lock()
	user, loaded := s.user, s.userLoaded
	s.mu.Unlock()
	if !loaded {
		return ErrNotSignedIn
	}
	if user.HasGameCode() {
		return ErrAlreadyInGame
	}

	game, ok, err := s.registry.LookupGame(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGameNotFound
	}
	if game.GameStatus != models.StatusLobby {
		return ErrGameNotJoinable
	}
	return s.writes.Join(ctx, s.uid, game.GameCode)
}

// LeaveGame removes this user's roster entry and clears their pointer.
func (s *Session) LeaveGame(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	game := s.game
	s.mu.Unlock()

	code := user.GameCode()
	if code == "" {
		return ErrNotInGame
	}
	if game == nil {
		// Pointer names a game whose document never resolved; clearing out
		// still needs both deletes, keyed by code alone.
		game = &models.Game{GameCode: code}
	}
	return s.roster.LeaveGame(ctx, *game, s.uid)
}

// CancelGame deletes the game and marks every roster member's pointer
// cancelled. Host only.
func (s *Session) CancelGame(ctx context.Context) error {
	s.mu.Lock()
	game := s.game
	s.mu.Unlock()
	if game == nil {
		return ErrNotInGame
	}
	if game.GameHostUID != s.uid {
		return ErrNotHost
	}
	return s.writes.CancelGame(ctx, *game)
}

// AcknowledgeCancel clears the cancelled marker, returning this user to the
// start phase. A no-op unless the pointer holds the marker.
func (s *Session) AcknowledgeCancel(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if !user.Cancelled() {
		return nil
	}
	return s.writes.ClearCancelled(ctx, s.uid)
}

// KickPlayer removes targetUID from the current game. Game master only,
// never self.
func (s *Session) KickPlayer(ctx context.Context, targetUID string) error {
	s.mu.Lock()
	game := s.game
	s.mu.Unlock()
	if game == nil {
		return ErrNotInGame
	}
	return s.roster.RemovePlayer(ctx, *game, s.uid, targetUID)
}

// RenamePlayer edits a roster entry's game-local display name. Permitted for
// the entry's owner and the game master.
func (s *Session) RenamePlayer(ctx context.Context, targetUID, newName string) error {
	s.mu.Lock()
	game := s.game
	s.mu.Unlock()
	if game == nil {
		return ErrNotInGame
	}
	return s.roster.EditDisplayName(ctx, *game, s.uid, targetUID, newName)
}

// UID returns the session's user id.
func (s *Session) UID() string { return s.uid }

// Close releases both store subscriptions. The session stops producing
// snapshots; in-flight operations are unaffected.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.userField.Close()
	s.watcher.Close()
}
