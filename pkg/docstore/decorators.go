package docstore

import (
	"context"
	"encoding/json"
	"time"
)

// WithTimeout bounds every call on gw by d and reports expiry as ErrUnavailable.
// Subscriptions stay open indefinitely but each snapshot query they run is bounded.
func WithTimeout(gw Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return gw
	}
	return &timeoutGateway{inner: gw, timeout: d}
}

type timeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

func (g *timeoutGateway) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	docs, err := g.inner.FetchAll(ctx, collection)
	return docs, bounded(ctx, err)
}

func (g *timeoutGateway) Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	docs, err := g.inner.Query(ctx, collection, conds...)
	return docs, bounded(ctx, err)
}

func (g *timeoutGateway) FetchByID(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	doc, err := g.inner.FetchByID(ctx, collection, id)
	return doc, bounded(ctx, err)
}

func (g *timeoutGateway) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	id, err := g.inner.Add(ctx, collection, data)
	return id, bounded(ctx, err)
}

func (g *timeoutGateway) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return bounded(ctx, g.inner.Set(ctx, collection, id, data))
}

func (g *timeoutGateway) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return bounded(ctx, g.inner.Update(ctx, collection, id, patch))
}

func (g *timeoutGateway) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return bounded(ctx, g.inner.Delete(ctx, collection, id))
}

func (g *timeoutGateway) Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error) {
	return g.inner.Subscribe(withLoadTimeout(ctx, g.timeout), collection, conds...)
}

func (g *timeoutGateway) Close() error {
	return g.inner.Close()
}

// bounded converts a failure caused by the call deadline into ErrUnavailable, even when the
// backend reported it through its own driver error.
func bounded(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return mapContextErr(ctx.Err())
	}
	return mapContextErr(err)
}

// Observer receives latency and subscription lifecycle events.
type Observer interface {
	ObserveDBQuery(label string, duration time.Duration)
	SubscriptionOpened(collection string)
	SubscriptionClosed(collection string)
}

// WithObserver reports every call on gw to obs.
func WithObserver(gw Gateway, obs Observer) Gateway {
	if obs == nil {
		return gw
	}
	return &observedGateway{inner: gw, obs: obs}
}

type observedGateway struct {
	inner Gateway
	obs   Observer
}

func (g *observedGateway) observe(op, collection string, start time.Time) {
	g.obs.ObserveDBQuery(op+":"+collection, time.Since(start))
}

func (g *observedGateway) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	defer g.observe("fetch_all", collection, time.Now())
	return g.inner.FetchAll(ctx, collection)
}

func (g *observedGateway) Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error) {
	defer g.observe("query", collection, time.Now())
	return g.inner.Query(ctx, collection, conds...)
}

func (g *observedGateway) FetchByID(ctx context.Context, collection, id string) (*Document, error) {
	defer g.observe("fetch_by_id", collection, time.Now())
	return g.inner.FetchByID(ctx, collection, id)
}

func (g *observedGateway) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	defer g.observe("add", collection, time.Now())
	return g.inner.Add(ctx, collection, data)
}

func (g *observedGateway) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	defer g.observe("set", collection, time.Now())
	return g.inner.Set(ctx, collection, id, data)
}

func (g *observedGateway) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	defer g.observe("update", collection, time.Now())
	return g.inner.Update(ctx, collection, id, patch)
}

func (g *observedGateway) Delete(ctx context.Context, collection, id string) error {
	defer g.observe("delete", collection, time.Now())
	return g.inner.Delete(ctx, collection, id)
}

func (g *observedGateway) Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error) {
	sub, err := g.inner.Subscribe(ctx, collection, conds...)
	if err != nil {
		return nil, err
	}
	g.obs.SubscriptionOpened(collection)
	sub.addCloseHook(func() { g.obs.SubscriptionClosed(collection) })
	return sub, nil
}

func (g *observedGateway) Close() error {
	return g.inner.Close()
}
