package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GameCodeCancelled is the terminal pointer value written when a user's game
// is canceled or they are removed from it. The owning client acknowledges it
// by clearing the pointer back to nil.
const GameCodeCancelled = "cancelled"

// User is the durable user record stored at users/{uid}.
type User struct {
	UID             string  `json:"uid"`
	DisplayName     string  `json:"displayName"`
	CurrentGameCode *string `json:"currentGameCode,omitempty"`
}

// HasGameCode reports whether the user currently points at anything,
// including the cancelled sentinel.
func (u User) HasGameCode() bool {
	return u.CurrentGameCode != nil
}

// Cancelled reports whether the user's game ended out from under them
// and has not been acknowledged yet.
func (u User) Cancelled() bool {
	return u.CurrentGameCode != nil && *u.CurrentGameCode == GameCodeCancelled
}

// GameCode returns the active game code, or "" when the user is not in a game
// (no pointer, or the cancelled sentinel).
func (u User) GameCode() string {
	if u.CurrentGameCode == nil || *u.CurrentGameCode == GameCodeCancelled {
		return ""
	}
	return *u.CurrentGameCode
}

// DecodeUser validates and converts a raw store value into a User.
// A nil value decodes to (zero, false, nil): an absent record is an expected
// outcome, not an error.
func DecodeUser(v any) (User, bool, error) {
	if v == nil {
		return User{}, false, nil
	}
	var u User
	if err := reencode(v, &u); err != nil {
		return User{}, false, fmt.Errorf("decode user: %w", err)
	}
	if u.UID == "" {
		return User{}, false, errors.New("decode user: missing uid")
	}
	return u, true, nil
}

// reencode round-trips a generic store value through JSON into a tagged
// struct, so shape problems surface here instead of at every read site.
func reencode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
