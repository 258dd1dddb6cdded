package docstore

import (
	"context"
	"strings"
	"sync"
)

// Memory is the in-process reference implementation of Store: a mutex-guarded
// JSON tree with conflating per-subscriber delivery. It backs tests and the
// single-node deployment.
type Memory struct {
	mu     sync.Mutex
	root   map[string]any
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		root: make(map[string]any),
		subs: make(map[int]*subscriber),
	}
}

func (m *Memory) Read(_ context.Context, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyValue(getAt(m.root, segs)), nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	setAt(m.root, segs, norm)
	pending := m.snapshotSubscribers(path)
	m.mu.Unlock()
	dispatch(pending)
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, merge map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	// An empty (or nil) merge changes nothing. Normalizing it would yield
	// untyped nil, not an empty map.
	if len(merge) == 0 {
		return nil
	}
	norm, err := normalize(merge)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for k, v := range norm.(map[string]any) {
		setAt(m.root, append(append([]string{}, segs...), k), v)
	}
	pending := m.snapshotSubscribers(path)
	m.mu.Unlock()
	dispatch(pending)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Write(ctx, path, nil)
}

func (m *Memory) Transaction(_ context.Context, path string, fn func(current any) (any, error)) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	next, err := fn(copyValue(getAt(m.root, segs)))
	if err != nil {
		m.mu.Unlock()
		return err
	}
	norm, err := normalize(next)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	setAt(m.root, segs, norm)
	pending := m.snapshotSubscribers(path)
	m.mu.Unlock()
	dispatch(pending)
	return nil
}

func (m *Memory) Subscribe(path string, onChange func(any)) UnsubscribeFunc {
	segs, err := splitPath(path)
	if err != nil {
		// A malformed path can never hold a value; report that once.
		go onChange(nil)
		return func() {}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return func() {}
	}
	id := m.nextID
	m.nextID++
	sub := newSubscriber(path, onChange)
	m.subs[id] = sub
	initial := delivery{sub: sub, value: copyValue(getAt(m.root, segs))}
	m.mu.Unlock()

	// Initial snapshot, same as any later change.
	dispatch([]delivery{initial})

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		sub.stop()
	}
}

// Close stops all subscriber goroutines. Further subscriptions are inert.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	subs := make([]*subscriber, 0, len(m.subs))
	for id, s := range m.subs {
		subs = append(subs, s)
		delete(m.subs, id)
	}
	m.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}

// snapshotSubscribers gathers, under the store lock, the value each affected
// subscriber should observe after a mutation at path. Affected means the
// subscription path is an ancestor, descendant, or equal of the mutated one.
func (m *Memory) snapshotSubscribers(path string) []delivery {
	var pending []delivery
	for _, sub := range m.subs {
		if !pathsOverlap(sub.path, path) {
			continue
		}
		segs, err := splitPath(sub.path)
		if err != nil {
			continue
		}
		pending = append(pending, delivery{sub: sub, value: copyValue(getAt(m.root, segs))})
	}
	return pending
}

func pathsOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// getAt walks the tree. Missing nodes yield nil.
func getAt(node map[string]any, segs []string) any {
	var cur any = node
	for _, s := range segs {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[s]
	}
	return cur
}

// setAt writes value at segs, creating intermediate objects. A nil value
// deletes the node and prunes emptied ancestors; an object with no children
// never persists in the tree.
func setAt(node map[string]any, segs []string, value any) {
	if len(segs) == 1 {
		if value == nil {
			delete(node, segs[0])
		} else {
			node[segs[0]] = value
		}
		return
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]any)
		node[segs[0]] = child
	}
	setAt(child, segs[1:], value)
	if len(child) == 0 {
		delete(node, segs[0])
	}
}

// copyValue deep-copies a generic JSON value so subscribers and readers never
// alias the internal tree.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = copyValue(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = copyValue(c)
		}
		return out
	default:
		return v
	}
}

// delivery is one pending callback invocation, captured under the store lock
// and dispatched after it is released.
type delivery struct {
	sub   *subscriber
	value any
}

func dispatch(pending []delivery) {
	for _, d := range pending {
		d.sub.push(d.value)
	}
}

// subscriber serializes callback delivery for one subscription. Only the
// latest undelivered value is kept, so a slow consumer falls behind to the
// newest snapshot instead of blocking writers.
type subscriber struct {
	path string
	fn   func(any)

	mu      sync.Mutex
	pending any
	has     bool

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscriber(path string, fn func(any)) *subscriber {
	s := &subscriber{
		path:   path,
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) push(v any) {
	s.mu.Lock()
	s.pending = v
	s.has = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
			for {
				s.mu.Lock()
				if !s.has {
					s.mu.Unlock()
					break
				}
				v := s.pending
				s.pending = nil
				s.has = false
				s.mu.Unlock()
				s.fn(v)
			}
		}
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
