// Package docstore is the boundary to the shared real-time document tree.
// Values cross this boundary as generic JSON (map[string]any, string, float64,
// bool, nil); tagged-struct validation happens in the models package.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// UnsubscribeFunc releases a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Store is a hierarchical key-path document store with live change
// notifications. Writes to the same path from the same caller are observed
// in issue order by that path's subscribers; writes to different paths carry
// no cross-path ordering guarantee. Transaction is the only concurrency
// primitive offered beyond per-path atomic writes.
type Store interface {
	// Read returns the value at path, or nil when nothing is stored there.
	Read(ctx context.Context, path string) (any, error)

	// Write replaces the subtree at path. A nil value deletes it.
	Write(ctx context.Context, path string, value any) error

	// Update merges the given children into the object at path, leaving
	// siblings untouched.
	Update(ctx context.Context, path string, merge map[string]any) error

	// Delete removes the subtree at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// Subscribe registers onChange for the value at path. The callback fires
	// once with the current value (possibly nil) and then on every change to
	// the subtree at path. Callbacks for one subscription are serialized and
	// delivered in order; intermediate values may be coalesced.
	Subscribe(path string, onChange func(value any)) UnsubscribeFunc

	// Transaction atomically replaces the value at path with fn(current).
	// Returning an error from fn aborts with no write.
	Transaction(ctx context.Context, path string, fn func(current any) (any, error)) error
}

// splitPath validates and splits a slash-separated path.
func splitPath(path string) ([]string, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return nil, fmt.Errorf("docstore: empty path %q", path)
	}
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("docstore: malformed path %q", path)
		}
	}
	return segs, nil
}

// normalize round-trips a value through JSON so the tree only ever holds
// generic JSON types, never caller-owned structs.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: unencodable value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
