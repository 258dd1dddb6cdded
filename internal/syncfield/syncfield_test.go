package syncfield

import (
	"context"
	"sync"
	"testing"
	"time"

	"gamelobby/coordinator/internal/docstore"
	"gamelobby/coordinator/internal/models"
)

type snapshot struct {
	user    models.User
	present bool
	err     error
}

// recorder collects onChange invocations for later assertion.
type recorder struct {
	mu    sync.Mutex
	snaps []snapshot
}

func (r *recorder) record(u models.User, present bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snapshot{user: u, present: present, err: err})
}

func (r *recorder) wait(t *testing.T, n int) []snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.snaps) >= n {
			out := append([]snapshot(nil), r.snaps...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d snapshots", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestField_InitialSnapshotAndUpdates(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	rec := &recorder{}
	field := New(store, models.UserPath("u1"), models.DecodeUser, rec.record)
	defer field.Close()

	// First snapshot reflects the (absent) current state.
	snaps := rec.wait(t, 1)
	if snaps[0].present {
		t.Fatalf("initial snapshot present, want absent")
	}
	if !field.Loaded() {
		t.Fatalf("field not loaded after initial snapshot")
	}

	if err := field.Set(ctx, models.User{UID: "u1", DisplayName: "Uma"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	snaps = rec.wait(t, 2)
	last := snaps[len(snaps)-1]
	if !last.present || last.user.DisplayName != "Uma" {
		t.Fatalf("snapshot after set = %+v", last)
	}

	got, ok := field.Get()
	if !ok || got.DisplayName != "Uma" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}
}

func TestField_DecodeErrorSurfacesInCallback(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	// A scalar where a user object belongs fails decoding.
	if err := store.Write(ctx, models.UserPath("u1"), 42); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := &recorder{}
	field := New(store, models.UserPath("u1"), models.DecodeUser, rec.record)
	defer field.Close()

	snaps := rec.wait(t, 1)
	if snaps[0].err == nil {
		t.Fatalf("decode error not surfaced")
	}
	if _, ok := field.Get(); ok {
		t.Fatalf("field reports present despite decode failure")
	}
}

func TestField_CloseStopsDelivery(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	ctx := context.Background()

	rec := &recorder{}
	field := New(store, models.UserPath("u1"), models.DecodeUser, rec.record)
	rec.wait(t, 1)
	field.Close()

	if err := store.Write(ctx, models.UserPath("u1"), models.User{UID: "u1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.snaps) != 1 {
		t.Fatalf("closed field received %d snapshots, want 1", len(rec.snaps))
	}
}

func TestField_WritingFlagClearsAfterError(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()

	field := New(store, "bad//path", func(raw any) (models.User, bool, error) {
		return models.User{}, false, nil
	}, nil)
	defer field.Close()

	if err := field.Set(context.Background(), models.User{UID: "u1"}); err == nil {
		t.Fatalf("write to malformed path succeeded")
	}
	if field.Writing() {
		t.Fatalf("writing flag stuck after failed Set")
	}
}
