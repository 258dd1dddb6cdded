// Package dualwrite keeps a game's membership and its members' pointers
// consistent under concurrent multi-client writes. The store offers no
// multi-location transactions, so each operation here picks the weakest
// coordination that still leaves every partial outcome independently
// interpretable: a batched concurrent fan-out for cancel, a sequenced pair
// for join, and an unordered pair for leave and kick.
package dualwrite

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
)

type Coordinator struct {
	store docstore.Store
}

func New(store docstore.Store) *Coordinator {
	return &Coordinator{store: store}
}

// CancelGame marks every current roster member's pointer cancelled and
// deletes the game record, all fired concurrently as one combined outcome.
// A partial pointer failure is degraded but recoverable: the affected member
// still observes the game document vanish, which independently means "leave
// this lobby". Every write runs to completion regardless of sibling errors.
func (c *Coordinator) CancelGame(ctx context.Context, game models.Game) error {
	var g errgroup.Group
	for _, entry := range game.Roster() {
		uid := entry.UID
		g.Go(func() error {
			return c.store.Write(ctx, models.UserGameCodePath(uid), models.GameCodeCancelled)
		})
	}
	g.Go(func() error {
		return c.store.Delete(ctx, models.GamePath(game.GameCode))
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("cancel game %s: %w", game.GameCode, err)
	}
	return nil
}

// Join points the user at an already-confirmed game code. Callers must have
// resolved the code first; roster materialization is not done here. It
// follows asynchronously via self-registration once any client observes the
// membership gap.
func (c *Coordinator) Join(ctx context.Context, uid, code string) error {
	if err := c.store.Write(ctx, models.UserGameCodePath(uid), code); err != nil {
		return fmt.Errorf("join %s: %w", code, err)
	}
	return nil
}

// Leave removes the caller's own roster entry and clears their pointer, as an
// unordered concurrent pair. Leaving is voluntary, so the pointer goes to
// absent rather than the cancelled marker.
func (c *Coordinator) Leave(ctx context.Context, code, uid string) error {
	var g errgroup.Group
	g.Go(func() error { return c.store.Delete(ctx, models.RosterEntryPath(code, uid)) })
	g.Go(func() error { return c.store.Delete(ctx, models.UserGameCodePath(uid)) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("leave game %s: %w", code, err)
	}
	return nil
}

// Kick removes the target's roster entry and marks their pointer cancelled so
// their client independently discovers the removal and navigates away. The
// two writes are an unordered pair; a stale roster entry whose owner no
// longer points at the game is harmless.
func (c *Coordinator) Kick(ctx context.Context, code, targetUID string) error {
	var g errgroup.Group
	g.Go(func() error { return c.store.Delete(ctx, models.RosterEntryPath(code, targetUID)) })
	g.Go(func() error {
		return c.store.Write(ctx, models.UserGameCodePath(targetUID), models.GameCodeCancelled)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("kick %s from %s: %w", targetUID, code, err)
	}
	return nil
}

// ClearCancelled acknowledges a cancellation notice by removing the terminal
// marker from the user's pointer.
func (c *Coordinator) ClearCancelled(ctx context.Context, uid string) error {
	return c.store.Delete(ctx, models.UserGameCodePath(uid))
}
