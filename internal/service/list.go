package service

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

// ListQuery is the user-controlled part of a list screen.
type ListQuery struct {
	Search string `form:"search"`
	Class  string `form:"class"`
}

func (q ListQuery) filter() viewstate.Filter {
	return viewstate.Filter{Search: q.Search, Class: q.Class}
}

// ListView is one rendering of a list screen as pushed to stream clients.
type ListView[T models.Entity] struct {
	Status      viewstate.ListStatus `json:"status"`
	Items       []T                  `json:"items"`
	Pending     []string             `json:"pending,omitempty"`
	Error       *appErrors.Error     `json:"error,omitempty"`
	ActionError *appErrors.Error     `json:"action_error,omitempty"`
}

// ListWatch is a live list screen backed by a subscription. Close it when the client leaves.
type ListWatch[T models.Entity] struct {
	ctrl     *viewstate.ListController[T]
	views    chan ListView[T]
	notFound string
}

// Views yields the latest view. A slow reader skips intermediate views.
func (w *ListWatch[T]) Views() <-chan ListView[T] {
	return w.views
}

// Delete removes id optimistically; the next view no longer contains it.
func (w *ListWatch[T]) Delete(ctx context.Context, id string) <-chan error {
	return w.ctrl.Delete(ctx, id)
}

// Remove deletes id and waits for the gateway outcome, mapped onto the API taxonomy.
// The list rolls back on failure either way.
func (w *ListWatch[T]) Remove(ctx context.Context, id string) error {
	select {
	case err := <-w.ctrl.Delete(ctx, id):
		return gatewayError(err, w.notFound)
	case <-ctx.Done():
		return gatewayError(ctx.Err(), w.notFound)
	}
}

// State returns the controller state.
func (w *ListWatch[T]) State() viewstate.ListState[T] {
	return w.ctrl.State()
}

// Close tears the screen down and closes the subscription.
func (w *ListWatch[T]) Close() {
	w.ctrl.Close()
}

// fetchList mounts a fetch-mode controller, waits for it to settle and returns the projection.
func fetchList[T models.Entity](ctx context.Context, cfg viewstate.ListConfig[T], f viewstate.Filter, notFound string) ([]T, error) {
	cfg.Subscribe = nil
	ctrl := viewstate.NewListController(cfg)
	defer ctrl.Close()
	if err := ctrl.Mount(ctx); err != nil {
		return nil, gatewayError(err, notFound)
	}
	if _, err := ctrl.Await(ctx); err != nil {
		return nil, gatewayError(err, notFound)
	}
	items, err := ctrl.Projection(f)
	if err != nil {
		return nil, gatewayError(err, notFound)
	}
	return items, nil
}

// watchList mounts a subscribe-mode controller that renders every state change through f.
func watchList[T models.Entity](ctx context.Context, cfg viewstate.ListConfig[T], f viewstate.Filter, notFound string) (*ListWatch[T], error) {
	cfg.Fetch = nil
	w := &ListWatch[T]{views: make(chan ListView[T], 1), notFound: notFound}
	projector := cfg.Projector
	cfg.OnChange = func(st viewstate.ListState[T]) {
		w.push(render(projector, st, f, notFound))
	}
	w.ctrl = viewstate.NewListController(cfg)
	if err := w.ctrl.Mount(ctx); err != nil {
		w.ctrl.Close()
		return nil, gatewayError(err, notFound)
	}
	return w, nil
}

// push keeps only the newest view. OnChange runs under the controller lock, so there is
// a single producer.
func (w *ListWatch[T]) push(v ListView[T]) {
	select {
	case w.views <- v:
		return
	default:
	}
	select {
	case <-w.views:
	default:
	}
	select {
	case w.views <- v:
	default:
	}
}

func render[T models.Entity](p viewstate.Projector[T], st viewstate.ListState[T], f viewstate.Filter, notFound string) ListView[T] {
	view := ListView[T]{
		Status:      st.Status,
		Pending:     st.Pending,
		Error:       asAppError(st.Err, notFound),
		ActionError: asAppError(st.ActionErr, notFound),
	}
	if st.Status != viewstate.ListFailed {
		view.Items = p.Apply(st.Items, f)
	}
	return view
}

// subscribeWith adapts a typed repository stream to a controller source.
func subscribeWith[T models.Entity](open func(ctx context.Context) (*repository.Stream[T], error)) func(ctx context.Context) (viewstate.Source[T], error) {
	return func(ctx context.Context) (viewstate.Source[T], error) {
		stream, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}
