package docstore

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the full result set of a subscription at one point in time.
// A snapshot with Err set reports a failed re-query; the subscription stays open.
type Snapshot struct {
	Collection string
	Documents  []Document
	Err        error
	At         time.Time
}

// hub fans change signals out to the watchers of each collection.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	signal chan struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *hub) watch(collection string) *watcher {
	w := &watcher{signal: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[collection] = set
	}
	set[w] = struct{}{}
	return w
}

func (h *hub) unwatch(collection string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, collection)
		}
	}
}

// publish never blocks; a watcher with a signal already pending absorbs the new one.
func (h *hub) publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
}

func (h *hub) publishAll() {
	h.mu.Lock()
	collections := make([]string, 0, len(h.watchers))
	for c := range h.watchers {
		collections = append(collections, c)
	}
	h.mu.Unlock()
	for _, c := range collections {
		h.publish(c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}

type loadFunc func(ctx context.Context) ([]Document, error)

// Subscription is a live stream of snapshots for one collection query.
// Each subscription owns its goroutine and must be closed by its consumer.
type Subscription struct {
	collection string
	updates    chan Snapshot
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	finished  bool
	onClose   []func()
}

type loadTimeoutKey struct{}

// withLoadTimeout asks the subscription built under ctx to bound every snapshot query.
func withLoadTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, loadTimeoutKey{}, d)
}

func loadTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(loadTimeoutKey{}).(time.Duration)
	return d
}

func newSubscription(ctx context.Context, h *hub, collection string, load loadFunc) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		collection: collection,
		updates:    make(chan Snapshot),
		ctx:        subCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	w := h.watch(collection)
	s.addCloseHook(func() { h.unwatch(collection, w) })
	go s.run(w, load, loadTimeout(ctx))
	return s
}

// Updates delivers snapshots. The channel is closed after the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Collection reports the subscribed collection name.
func (s *Subscription) Collection() string {
	return s.collection
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops delivery. It is idempotent and returns only after the delivery goroutine has
// exited, so nothing is ever delivered once Close returns.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// addCloseHook registers fn to run once the subscription ends, either through Close or
// because its parent context was cancelled.
func (s *Subscription) addCloseHook(fn func()) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Subscription) run(w *watcher, load loadFunc, timeout time.Duration) {
	defer close(s.done)
	defer s.finish()
	defer close(s.updates)

	for {
		snap := s.snapshot(load, timeout)
		if s.ctx.Err() != nil {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case s.updates <- snap:
		}

		select {
		case <-s.ctx.Done():
			return
		case <-w.signal:
		}
	}
}

func (s *Subscription) snapshot(load loadFunc, timeout time.Duration) Snapshot {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	docs, err := load(ctx)
	if err != nil {
		return Snapshot{Collection: s.collection, Err: mapContextErr(err), At: time.Now().UTC()}
	}
	if docs == nil {
		docs = []Document{}
	}
	return Snapshot{Collection: s.collection, Documents: docs, At: time.Now().UTC()}
}
