package models

import (
	"errors"
	"fmt"
	"sort"
)

// Game lifecycle statuses. Cancellation has no status of its own: a canceled
// game is deleted outright and each member's pointer is marked instead.
const (
	StatusLobby = "lobby"
	StatusLive  = "live"
	StatusEnded = "ended"
)

// Game is the record stored at games/{code}.
type Game struct {
	GameCode            string                 `json:"gameCode"`
	GameHostDisplayName string                 `json:"gameHostDisplayName,omitempty"`
	GameHostUID         string                 `json:"gameHostUID"`
	GameGmUID           string                 `json:"gameGmUID"`
	GameCreateTimestamp int64                  `json:"gameCreateTimestamp"`
	GameStatus          string                 `json:"gameStatus"`
	PlayerRoster        map[string]RosterEntry `json:"playerRoster,omitempty"`
}

// RosterEntry is one member's per-game record, keyed by uid inside
// games/{code}/playerRoster. The display name is game-local and decoupled
// from the user's global one.
type RosterEntry struct {
	UID             string `json:"uid"`
	GameDisplayName string `json:"gameDisplayName"`
	IsHost          bool   `json:"isHost"`
	IsGM            bool   `json:"isGM"`
}

// NewRosterEntry builds the roster record for a user joining a game.
// Host and GM flags are fixed at creation time, not re-derived later.
func NewRosterEntry(game Game, user User) RosterEntry {
	return RosterEntry{
		UID:             user.UID,
		GameDisplayName: user.DisplayName,
		IsHost:          game.GameHostUID == user.UID,
		IsGM:            game.GameGmUID == user.UID,
	}
}

// IsGM reports whether uid holds game-master privileges for this game.
func (g Game) IsGM(uid string) bool {
	return g.GameGmUID == uid
}

// Roster returns the roster entries sorted by uid for stable iteration.
func (g Game) Roster() []RosterEntry {
	entries := make([]RosterEntry, 0, len(g.PlayerRoster))
	for _, e := range g.PlayerRoster {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UID < entries[j].UID })
	return entries
}

// DecodeGame validates and converts a raw store value into a Game.
// A nil value decodes to (zero, false, nil): "no game" is expected, not a fault.
func DecodeGame(v any) (Game, bool, error) {
	if v == nil {
		return Game{}, false, nil
	}
	var g Game
	if err := reencode(v, &g); err != nil {
		return Game{}, false, fmt.Errorf("decode game: %w", err)
	}
	if g.GameCode == "" {
		return Game{}, false, errors.New("decode game: missing gameCode")
	}
	switch g.GameStatus {
	case StatusLobby, StatusLive, StatusEnded:
	default:
		return Game{}, false, fmt.Errorf("decode game: unknown status %q", g.GameStatus)
	}
	return g, true, nil
}
