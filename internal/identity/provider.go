package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
	"gamelobby/coordinator/pkg/token"
)

var (
	ErrUsernameTaken      = errors.New("identity: username already taken")
	ErrInvalidCredentials = errors.New("identity: invalid username or password")
)

// account is a password-provider credential record stored at
// accounts/{username}. It carries only what login needs; the user record
// proper lives at users/{uid}.
type account struct {
	Username     string `json:"username"`
	UID          string `json:"uid"`
	PasswordHash string `json:"passwordHash"`
}

func accountPath(username string) string {
	return fmt.Sprintf("accounts/%s", username)
}

func decodeAccount(raw any) (account, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return account{}, err
	}
	var acct account
	if err := json.Unmarshal(data, &acct); err != nil {
		return account{}, err
	}
	return acct, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.ContainsAny(username, "/ ") {
		return "", errors.New("identity: invalid username")
	}
	return username, nil
}

// Provider supplies (uid, displayName) principals. Anonymous and password
// sign-in are both acceptable; the choice never affects the lobby protocol.
type Provider struct {
	store    docstore.Store
	resolver *Resolver
}

func NewProvider(store docstore.Store) *Provider {
	return &Provider{store: store, resolver: NewResolver(store)}
}

// SignInAnonymously mints a fresh uid, ensures its user record, and returns
// the principal with a session token.
func (p *Provider) SignInAnonymously(ctx context.Context, displayName string) (Principal, string, error) {
	uid := uuid.NewString()
	if _, _, err := p.resolver.EnsureUser(ctx, uid, displayName); err != nil {
		return Principal{}, "", err
	}
	t, err := token.Generate(uid)
	if err != nil {
		return Principal{}, "", fmt.Errorf("sign token: %w", err)
	}
	return Principal{UID: uid, DisplayName: displayName}, t, nil
}

// Register creates a password account and its user record.
func (p *Provider) Register(ctx context.Context, username, password, displayName string) (Principal, string, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Principal{}, "", err
	}

	raw, err := p.store.Read(ctx, accountPath(username))
	if err != nil {
		return Principal{}, "", err
	}
	if raw != nil {
		return Principal{}, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Principal{}, "", fmt.Errorf("hash password: %w", err)
	}

	acct := account{Username: username, UID: uuid.NewString(), PasswordHash: string(hash)}
	if err := p.store.Write(ctx, accountPath(username), acct); err != nil {
		return Principal{}, "", fmt.Errorf("create account %s: %w", username, err)
	}
	if _, _, err := p.resolver.EnsureUser(ctx, acct.UID, displayName); err != nil {
		return Principal{}, "", err
	}

	t, err := token.Generate(acct.UID)
	if err != nil {
		return Principal{}, "", fmt.Errorf("sign token: %w", err)
	}
	return Principal{UID: acct.UID, DisplayName: displayName}, t, nil
}

// Login verifies a password account and returns its principal.
func (p *Provider) Login(ctx context.Context, username, password string) (Principal, string, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return Principal{}, "", ErrInvalidCredentials
	}

	raw, err := p.store.Read(ctx, accountPath(username))
	if err != nil {
		return Principal{}, "", err
	}
	if raw == nil {
		return Principal{}, "", ErrInvalidCredentials
	}
	acct, err := decodeAccount(raw)
	if err != nil || acct.UID == "" {
		return Principal{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return Principal{}, "", ErrInvalidCredentials
	}

	userRaw, err := p.store.Read(ctx, models.UserPath(acct.UID))
	if err != nil {
		return Principal{}, "", err
	}
	user, ok, err := models.DecodeUser(userRaw)
	if err != nil || !ok {
		return Principal{}, "", fmt.Errorf("account %s has no user record", username)
	}

	t, err := token.Generate(acct.UID)
	if err != nil {
		return Principal{}, "", fmt.Errorf("sign token: %w", err)
	}
	return Principal{UID: acct.UID, DisplayName: user.DisplayName}, t, nil
}
