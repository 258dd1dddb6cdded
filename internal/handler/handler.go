package handler

import (
	"context"
	"sync"
	"time"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/hub"
	"gamelobby/coordinator/internal/identity"
	"gamelobby/coordinator/internal/lobby"
	"gamelobby/coordinator/internal/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// sessionIdleTTL is how long an untouched lobby session is kept before its
// store subscriptions are released. All state lives in the store, so an
// evicted session is rebuilt transparently on the next request.
const sessionIdleTTL = 30 * time.Minute

// Handler carries the protocol wiring shared by all endpoints. Each signed-in
// user gets one long-lived lobby session; requests for the same uid reuse it.
type Handler struct {
	ctx      context.Context
	store    docstore.Store
	provider *identity.Provider
	hub      *hub.Hub

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	bridges  map[string]*watchBridge
}

// sessionEntry pairs a lobby session with its last-use time for eviction.
type sessionEntry struct {
	sess     *lobby.Session
	lastSeen time.Time
}

func New(ctx context.Context, store docstore.Store, h *hub.Hub) *Handler {
	handler := &Handler{
		ctx:      ctx,
		store:    store,
		provider: identity.NewProvider(store),
		hub:      h,
		sessions: make(map[string]*sessionEntry),
		bridges:  make(map[string]*watchBridge),
	}
	go handler.evictLoop(ctx)
	return handler
}

// session returns the lobby session for uid, starting one on first use and
// waiting for its first user snapshot.
func (h *Handler) session(c *gin.Context) (*lobby.Session, error) {
	uid := c.GetString("uid")

	h.mu.Lock()
	entry, ok := h.sessions[uid]
	if !ok {
		entry = &sessionEntry{sess: lobby.NewSession(h.ctx, h.store, identity.Principal{UID: uid})}
		h.sessions[uid] = entry
	}
	entry.lastSeen = time.Now()
	sess := entry.sess
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := sess.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func (h *Handler) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.evictIdle(sessionIdleTTL)
		}
	}
}

// evictIdle closes and drops sessions unused for longer than maxIdle.
func (h *Handler) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	h.mu.Lock()
	var closing []*lobby.Session
	for uid, entry := range h.sessions {
		if entry.lastSeen.Before(cutoff) {
			closing = append(closing, entry.sess)
			delete(h.sessions, uid)
		}
	}
	h.mu.Unlock()

	for _, sess := range closing {
		sess.Close()
	}
}

// watchBridge is one store subscription per watched game code, broadcasting
// changes into the hub for however many SSE clients are attached.
type watchBridge struct {
	refs  int
	unsub docstore.UnsubscribeFunc
}

func (h *Handler) retainBridge(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.bridges[code]; ok {
		b.refs++
		return
	}
	b := &watchBridge{refs: 1}
	b.unsub = h.store.Subscribe(models.GamePath(code), func(raw any) {
		h.hub.Broadcast(code, hub.Event{Type: "game", Payload: raw})
	})
	h.bridges[code] = b
}

func (h *Handler) releaseBridge(code string) {
	h.mu.Lock()
	b, ok := h.bridges[code]
	if ok {
		b.refs--
		if b.refs <= 0 {
			delete(h.bridges, code)
		} else {
			b = nil
		}
	}
	h.mu.Unlock()

	if ok && b != nil {
		b.unsub()
	}
}
