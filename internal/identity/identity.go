// Package identity maps authenticated principals to durable user records and
// hosts the sign-in providers.
package identity

import (
	"context"
	"fmt"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
	"gamelobby/coordinator/internal/syncfield"
)

// Principal is what a sign-in provider hands the lobby protocol: a stable
// uid plus the display name chosen at sign-in.
type Principal struct {
	UID         string
	DisplayName string
}

type Resolver struct {
	store docstore.Store
}

func NewResolver(store docstore.Store) *Resolver {
	return &Resolver{store: store}
}

// EnsureUser looks up the user record for an authenticated principal and
// creates a minimal one if absent. Exactly one write happens iff the record
// did not already exist. The read-then-write is not transactional against the
// store; two near-simultaneous first sign-ins both write the same initial
// shape, so the race is idempotent in outcome.
func (r *Resolver) EnsureUser(ctx context.Context, uid, displayName string) (models.User, bool, error) {
	raw, err := r.store.Read(ctx, models.UserPath(uid))
	if err != nil {
		return models.User{}, false, fmt.Errorf("ensure user %s: %w", uid, err)
	}
	user, exists, err := models.DecodeUser(raw)
	if err != nil {
		return models.User{}, false, err
	}
	if exists {
		return user, false, nil
	}

	user = models.User{UID: uid, DisplayName: displayName}
	if err := r.store.Write(ctx, models.UserPath(uid), user); err != nil {
		return models.User{}, false, fmt.Errorf("create user %s: %w", uid, err)
	}
	return user, true, nil
}

// WatchUser opens a live binding to the user record. The caller owns the
// returned field and must Close it.
func (r *Resolver) WatchUser(uid string, onChange func(models.User, bool, error)) *syncfield.Field[models.User] {
	return syncfield.New(r.store, models.UserPath(uid), models.DecodeUser, onChange)
}
