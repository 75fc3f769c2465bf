// Package viewstate holds the screen-level state machines shared by every resource: a list
// controller that loads, projects and optimistically mutates a collection, and a form
// controller that validates and submits one record.
package viewstate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
)

var (
	// ErrNotReady is returned by operations that need loaded items.
	ErrNotReady = errors.New("viewstate: list is not ready")
	// ErrClosed is returned after teardown.
	ErrClosed = errors.New("viewstate: controller closed")
	// ErrUnknownItem is returned when deleting an id that is not in the list.
	ErrUnknownItem = errors.New("viewstate: item not in list")
)

// ListStatus is the lifecycle of a list screen.
type ListStatus string

const (
	ListLoading ListStatus = "loading"
	ListReady   ListStatus = "ready"
	ListFailed  ListStatus = "failed"
)

// ListState is a copy of the controller state. Pending holds ids removed locally whose
// delete has not been confirmed yet; ActionErr is the last failed user action.
type ListState[T models.Entity] struct {
	Status    ListStatus
	Items     []T
	Pending   []string
	Err       error
	ActionErr error
}

// Source is a live stream of full snapshots.
type Source[T models.Entity] interface {
	Updates() <-chan repository.Snapshot[T]
	Close()
}

// Filter is the user-controlled part of a projection.
type Filter struct {
	Search string
	Class  string
}

// Projector derives the visible list from loaded items: sort by Less (stable, ascending),
// then keep items matching the search text, the class selector and Scope.
type Projector[T models.Entity] struct {
	SearchFields func(T) []string
	ClassOf      func(T) string
	Scope        func(T) bool
	Less         func(a, b T) bool
}

// Apply returns a new slice; items is not modified.
func (p Projector[T]) Apply(items []T, f Filter) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	if p.Less != nil {
		sort.SliceStable(sorted, func(i, j int) bool { return p.Less(sorted[i], sorted[j]) })
	}
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]T, 0, len(sorted))
	for _, item := range sorted {
		if p.Scope != nil && !p.Scope(item) {
			continue
		}
		if p.ClassOf != nil && !models.MatchesClass(f.Class, p.ClassOf(item)) {
			continue
		}
		if needle != "" && !p.matchesSearch(item, needle) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (p Projector[T]) matchesSearch(item T, needle string) bool {
	if p.SearchFields == nil {
		return true
	}
	for _, field := range p.SearchFields(item) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// ListConfig wires a controller to its data. Exactly one of Fetch and Subscribe must be set.
// OnChange runs with the controller locked and must not call back into it.
type ListConfig[T models.Entity] struct {
	Projector[T]
	Fetch     func(ctx context.Context) ([]T, error)
	Subscribe func(ctx context.Context) (Source[T], error)
	Delete    func(ctx context.Context, id string) error
	OnChange  func(ListState[T])
	Logger    *zap.Logger
}

type pendingDelete[T models.Entity] struct {
	item  T
	index int
}

// ListController drives one list screen from Loading to Ready or Failed.
type ListController[T models.Entity] struct {
	cfg    ListConfig[T]
	logger *zap.Logger

	mu         sync.Mutex
	status     ListStatus
	items      []T
	err        error
	actionErr  error
	pending    map[string]pendingDelete[T]
	order      []string
	closed     bool
	generation int
	settled    chan struct{}
	source     Source[T]
	runCtx     context.Context
	cancel     context.CancelFunc
}

// NewListController builds a controller in the Loading state.
func NewListController[T models.Entity](cfg ListConfig[T]) *ListController[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListController[T]{
		cfg:     cfg,
		logger:  logger,
		status:  ListLoading,
		pending: map[string]pendingDelete[T]{},
		settled: make(chan struct{}),
	}
}

// Mount starts loading. In fetch mode the fetch runs in the background; in subscribe mode the
// stream is opened before Mount returns and every snapshot replaces the items.
func (c *ListController[T]) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.runCtx != nil {
		c.mu.Unlock()
		return nil
	}
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	return c.load()
}

// Reload re-runs the fetch or reopens the stream. Items stay visible while loading.
func (c *ListController[T]) Reload() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.runCtx == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.status = ListLoading
	c.err = nil
	c.settled = make(chan struct{})
	c.notifyLocked()
	c.mu.Unlock()
	return c.load()
}

func (c *ListController[T]) load() error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	ctx := c.runCtx
	previous := c.source
	c.source = nil
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	if c.cfg.Subscribe != nil {
		src, err := c.cfg.Subscribe(ctx)
		if err != nil {
			c.fail(gen, err)
			return err
		}
		c.mu.Lock()
		if c.closed || gen != c.generation {
			c.mu.Unlock()
			src.Close()
			return nil
		}
		c.source = src
		c.mu.Unlock()
		go c.consume(gen, src)
		return nil
	}

	if c.cfg.Fetch == nil {
		err := errors.New("viewstate: no fetch or subscribe configured")
		c.fail(gen, err)
		return err
	}
	go func() {
		items, err := c.cfg.Fetch(ctx)
		if err != nil {
			c.fail(gen, err)
			return
		}
		c.replace(gen, items)
	}()
	return nil
}

func (c *ListController[T]) consume(gen int, src Source[T]) {
	for snap := range src.Updates() {
		if snap.Err != nil {
			c.fail(gen, snap.Err)
			continue
		}
		c.replace(gen, snap.Items)
	}
}

// replace installs a full result set. Items with an unconfirmed delete stay hidden.
func (c *ListController[T]) replace(gen int, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(gen) {
		return
	}
	next := make([]T, 0, len(items))
	for _, item := range items {
		if _, hidden := c.pending[item.EntityID()]; hidden {
			continue
		}
		next = append(next, item)
	}
	c.items = next
	c.status = ListReady
	c.err = nil
	c.settleLocked()
	c.notifyLocked()
}

func (c *ListController[T]) fail(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(gen) {
		return
	}
	c.logger.Debug("list load failed", zap.Error(err))
	c.status = ListFailed
	c.err = err
	c.settleLocked()
	c.notifyLocked()
}

func (c *ListController[T]) stale(gen int) bool {
	return c.closed || gen != c.generation
}

func (c *ListController[T]) settleLocked() {
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}

// Await blocks until the current load leaves Loading or ctx ends.
func (c *ListController[T]) Await(ctx context.Context) (ListState[T], error) {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()
	select {
	case <-settled:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// Projection applies f to the loaded items. It fails with the load error in Failed and with
// ErrNotReady while Loading.
func (c *ListController[T]) Projection(f Filter) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case ListFailed:
		return nil, c.err
	case ListLoading:
		if c.items == nil {
			return nil, ErrNotReady
		}
	}
	return c.cfg.Projector.Apply(c.items, f), nil
}

// Delete removes id from the list immediately and asks the gateway to delete it. The
// returned channel yields the gateway outcome; on failure the item is put back at its old
// position and ActionErr is set.
func (c *ListController[T]) Delete(ctx context.Context, id string) <-chan error {
	result := make(chan error, 1)
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		result <- ErrClosed
		close(result)
		return result
	case c.status != ListReady:
		c.mu.Unlock()
		result <- ErrNotReady
		close(result)
		return result
	case c.cfg.Delete == nil:
		c.mu.Unlock()
		result <- errors.New("viewstate: delete not supported")
		close(result)
		return result
	}
	index := -1
	for i, item := range c.items {
		if item.EntityID() == id {
			index = i
			break
		}
	}
	if _, busy := c.pending[id]; busy || index < 0 {
		c.mu.Unlock()
		result <- ErrUnknownItem
		close(result)
		return result
	}
	removed := c.items[index]
	c.items = append(append(make([]T, 0, len(c.items)-1), c.items[:index]...), c.items[index+1:]...)
	c.pending[id] = pendingDelete[T]{item: removed, index: index}
	c.order = append(c.order, id)
	c.actionErr = nil
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		err := c.cfg.Delete(ctx, id)
		c.confirm(id, err)
		result <- err
		close(result)
	}()
	return result
}

func (c *ListController[T]) confirm(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	p, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	for i, pid := range c.order {
		if pid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if err == nil {
		c.notifyLocked()
		return
	}
	c.logger.Warn("delete rolled back", zap.String("id", id), zap.Error(err))
	index := p.index
	if index > len(c.items) {
		index = len(c.items)
	}
	restored := make([]T, 0, len(c.items)+1)
	restored = append(restored, c.items[:index]...)
	restored = append(restored, p.item)
	restored = append(restored, c.items[index:]...)
	c.items = restored
	c.actionErr = err
	c.notifyLocked()
}

// State returns a copy of the current state.
func (c *ListController[T]) State() ListState[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *ListController[T]) stateLocked() ListState[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	pending := make([]string, len(c.order))
	copy(pending, c.order)
	return ListState[T]{Status: c.status, Items: items, Pending: pending, Err: c.err, ActionErr: c.actionErr}
}

func (c *ListController[T]) notifyLocked() {
	if c.cfg.OnChange != nil && !c.closed {
		c.cfg.OnChange(c.stateLocked())
	}
}

// Close tears the controller down. Later snapshots, fetch results and delete confirmations
// are ignored. Safe to call more than once.
func (c *ListController[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	src := c.source
	c.source = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		src.Close()
	}
}
