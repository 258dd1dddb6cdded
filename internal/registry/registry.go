// Package registry creates games under short human-readable codes and
// resolves codes back to live game documents.
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
)

const (
	codeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewGameCode draws a 4-character code, uniform per character. There is no
// uniqueness check against existing games; the collision window is an
// accepted property of the lobby-scale code space.
func NewGameCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			panic(fmt.Sprintf("registry: rand: %v", err))
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims user input so lookups are
// case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Registry struct {
	store docstore.Store
}

func New(store docstore.Store) *Registry {
	return &Registry{store: store}
}

// CreateGame writes a fresh game record in lobby status, then points the
// creator's user record at it. The pointer write happens only after the game
// write succeeds; if the pointer write fails the game is left orphaned with
// no compensating delete.
func (r *Registry) CreateGame(ctx context.Context, host models.User) (models.Game, error) {
	game := models.Game{
		GameCode:            NewGameCode(),
		GameHostDisplayName: host.DisplayName,
		GameHostUID:         host.UID,
		GameGmUID:           host.UID,
		GameCreateTimestamp: time.Now().UnixMilli(),
		GameStatus:          models.StatusLobby,
	}
	if err := r.store.Write(ctx, models.GamePath(game.GameCode), game); err != nil {
		return models.Game{}, fmt.Errorf("create game: %w", err)
	}
	if err := r.store.Write(ctx, models.UserGameCodePath(host.UID), game.GameCode); err != nil {
		return models.Game{}, fmt.Errorf("game %s created but host pointer not set: %w", game.GameCode, err)
	}
	return game, nil
}

// LookupGame resolves a code to its game document. A blank code
// short-circuits to not-found without touching the store.
func (r *Registry) LookupGame(ctx context.Context, code string) (models.Game, bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return models.Game{}, false, nil
	}
	raw, err := r.store.Read(ctx, models.GamePath(code))
	if err != nil {
		return models.Game{}, false, err
	}
	return models.DecodeGame(raw)
}

// GameExists reports whether code currently resolves to a game.
func (r *Registry) GameExists(ctx context.Context, code string) (bool, error) {
	_, ok, err := r.LookupGame(ctx, code)
	return ok, err
}
