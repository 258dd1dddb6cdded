package registry

import (
	"log"
	"sync"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
)

// Watcher is a live subscription to whichever game the current code names.
// SetCode re-points it: the previous listener is released before the next one
// attaches, so listeners never accumulate across code changes. onChange
// receives the full game document on every change, or nil when the code does
// not resolve to a game.
type Watcher struct {
	store    docstore.Store
	onChange func(*models.Game)

	mu          sync.Mutex
	code        string
	gen         int
	unsubscribe docstore.UnsubscribeFunc
}

func (r *Registry) NewWatcher(onChange func(*models.Game)) *Watcher {
	return &Watcher{store: r.store, onChange: onChange}
}

// SetCode switches the watcher to a new code. An empty code detaches and
// reports nil. Setting the same code again is a no-op.
func (w *Watcher) SetCode(code string) {
	code = NormalizeCode(code)

	w.mu.Lock()
	if code == w.code && (w.unsubscribe != nil || code == "") {
		w.mu.Unlock()
		return
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	w.code = code
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	if code == "" {
		w.onChange(nil)
		return
	}

	unsub := w.store.Subscribe(models.GamePath(code), func(raw any) {
		// A detached subscription may still flush one callback; drop it.
		w.mu.Lock()
		stale := w.gen != gen
		w.mu.Unlock()
		if stale {
			return
		}

		game, ok, err := models.DecodeGame(raw)
		if err != nil {
			log.Printf("registry: watch %s: %v", code, err)
			w.onChange(nil)
			return
		}
		if !ok {
			w.onChange(nil)
			return
		}
		w.onChange(&game)
	})

	w.mu.Lock()
	if w.gen == gen {
		w.unsubscribe = unsub
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	unsub()
}

// Code returns the currently watched code.
func (w *Watcher) Code() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code
}

// Close detaches the watcher.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	w.gen++
	w.code = ""
	w.mu.Unlock()
}
