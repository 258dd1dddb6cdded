// Package roster maintains the live player-roster sub-document of a game.
// The roster is multi-writer with no locking: correctness comes from the
// operations being idempotent and commutative, not from mutual exclusion.
package roster

import (
	"context"
	"errors"
	"fmt"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/dualwrite"
	"gamelobby/coordinator/internal/models"
)

var (
	// ErrNotGM rejects game-master-only actions attempted by anyone else.
	ErrNotGM = errors.New("roster: game master privileges required")
	// ErrSelfKick rejects a game master removing themself.
	ErrSelfKick = errors.New("roster: game master cannot remove themself")
	// ErrNotPermitted rejects a name edit by someone who is neither the
	// entry's owner nor the game master.
	ErrNotPermitted = errors.New("roster: only the entry owner or game master may edit")
)

type Synchronizer struct {
	store  docstore.Store
	writes *dualwrite.Coordinator
}

func New(store docstore.Store) *Synchronizer {
	return &Synchronizer{store: store, writes: dualwrite.New(store)}
}

// SelfRegister writes the user's roster entry iff their uid is not already a
// roster key and their pointer is not the cancelled marker. It runs on every
// relevant state change, not just once, so invoking it while already
// registered is a deliberate no-op. Registration is client-driven and
// distributed; there is no single authoritative registrar.
func (s *Synchronizer) SelfRegister(ctx context.Context, game models.Game, user models.User) error {
	if user.Cancelled() {
		return nil
	}
	if _, registered := game.PlayerRoster[user.UID]; registered {
		return nil
	}
	entry := models.NewRosterEntry(game, user)
	if err := s.store.Write(ctx, models.RosterEntryPath(game.GameCode, user.UID), entry); err != nil {
		return fmt.Errorf("self-register %s in %s: %w", user.UID, game.GameCode, err)
	}
	return nil
}

// EditDisplayName changes one entry's game-local display name. Permitted for
// the entry's owner and the game master; host/GM flags are never touched.
func (s *Synchronizer) EditDisplayName(ctx context.Context, game models.Game, callerUID, targetUID, newName string) error {
	if callerUID != targetUID && !game.IsGM(callerUID) {
		return ErrNotPermitted
	}
	if err := s.store.Write(ctx, models.RosterNamePath(game.GameCode, targetUID), newName); err != nil {
		return fmt.Errorf("edit display name for %s in %s: %w", targetUID, game.GameCode, err)
	}
	return nil
}

// RemovePlayer kicks targetUID out of the game: roster entry deleted and the
// target's pointer marked cancelled, as one logical operation. Game master
// only, and never against themself; both checks run before any write.
func (s *Synchronizer) RemovePlayer(ctx context.Context, game models.Game, callerUID, targetUID string) error {
	if !game.IsGM(callerUID) {
		return ErrNotGM
	}
	if callerUID == targetUID {
		return ErrSelfKick
	}
	return s.writes.Kick(ctx, game.GameCode, targetUID)
}

// LeaveGame is the self-service removal: own roster entry deleted and own
// pointer cleared to absent, never to the cancelled marker.
func (s *Synchronizer) LeaveGame(ctx context.Context, game models.Game, uid string) error {
	return s.writes.Leave(ctx, game.GameCode, uid)
}
