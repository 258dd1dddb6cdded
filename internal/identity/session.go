package identity

import (
	"context"
	"errors"
	"sync"

	"gamelobby/coordinator/internal/models"
	"gamelobby/coordinator/pkg/token"
)

// Event is a session-changed notification. SignedIn carries the principal;
// a sign-out event has a zero principal.
type Event struct {
	SignedIn  bool
	Principal Principal
}

// Session is one client's authentication state plus its change stream: the
// process-local equivalent of an auth-state listener. The lobby protocol only
// ever consumes the principal it yields.
type Session struct {
	provider *Provider

	mu      sync.Mutex
	current *Principal
	events  chan Event
}

func (p *Provider) NewSession() *Session {
	return &Session{provider: p, events: make(chan Event, 8)}
}

// Events yields signed-in / signed-out notifications in order. Events are
// dropped if the consumer falls more than the buffer behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Current returns the signed-in principal, if any.
func (s *Session) Current() (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Principal{}, false
	}
	return *s.current, true
}

// SignInAnonymously signs this session in with a fresh anonymous principal.
func (s *Session) SignInAnonymously(ctx context.Context, displayName string) (Principal, string, error) {
	principal, t, err := s.provider.SignInAnonymously(ctx, displayName)
	if err != nil {
		return Principal{}, "", err
	}
	s.setCurrent(principal)
	return principal, t, nil
}

// Resume restores a session from a previously issued token, re-reading the
// user record for the current display name.
func (s *Session) Resume(ctx context.Context, tokenString string) (Principal, error) {
	uid, err := token.ParseUID(tokenString)
	if err != nil {
		return Principal{}, err
	}
	raw, err := s.provider.store.Read(ctx, models.UserPath(uid))
	if err != nil {
		return Principal{}, err
	}
	user, ok, err := models.DecodeUser(raw)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, errors.New("identity: no user record for session")
	}
	principal := Principal{UID: user.UID, DisplayName: user.DisplayName}
	s.setCurrent(principal)
	return principal, nil
}

// SignOut clears the session and emits a signed-out event. The user record
// is never deleted.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.emit(Event{SignedIn: false})
}

func (s *Session) setCurrent(p Principal) {
	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()
	s.emit(Event{SignedIn: true, Principal: p})
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
