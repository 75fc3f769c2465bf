package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying the name of each mutated collection.
const ChangeChannel = "docstore_changes"

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, id)
)`

// PostgresOptions tunes the Postgres backend.
type PostgresOptions struct {
	// Notify issues pg_notify after every mutation so other processes see the change.
	Notify bool
	Logger *zap.Logger
}

// Postgres stores every collection in one JSONB documents table.
type Postgres struct {
	db        *sqlx.DB
	hub       *hub
	notify    bool
	listening atomic.Bool
	listener  *pq.Listener
	logger    *zap.Logger
	now       func() time.Time
}

// NewPostgres wraps an open sqlx handle.
func NewPostgres(db *sqlx.DB, opts PostgresOptions) *Postgres {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Postgres{
		db:     db,
		hub:    newHub(),
		notify: opts.Notify,
		logger: opts.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the documents table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("migrate documents: %w", mapPGErr(err))
	}
	return nil
}

// Listen starts a pq.Listener on ChangeChannel. Notifications from any process, this one
// included, re-query the matching local subscriptions. The listener stops with ctx.
func (p *Postgres) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			p.logger.Warn("docstore listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen %s: %w", ChangeChannel, mapPGErr(err))
	}
	p.listener = listener
	p.listening.Store(true)

	go func() {
		defer p.listening.Store(false)
		for {
			select {
			case <-ctx.Done():
				_ = listener.Close()
				return
			case n := <-listener.Notify:
				if n == nil {
					// Reconnected; notifications may have been missed.
					p.hub.publishAll()
					continue
				}
				p.hub.publish(n.Extra)
			case <-time.After(90 * time.Second):
				go func() {
					if err := listener.Ping(); err != nil {
						p.logger.Warn("docstore listener ping failed", zap.Error(err))
					}
				}()
			}
		}
	}()
	return nil
}

type pgDocument struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (d pgDocument) document() Document {
	return Document{ID: d.ID, Data: json.RawMessage(d.Data), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (p *Postgres) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	return p.Query(ctx, collection)
}

func (p *Postgres) Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1")
	args := []interface{}{collection}
	for _, c := range conds {
		args = append(args, c.Field, conditionText(c.Value))
		sb.WriteString(fmt.Sprintf(" AND data ->> $%d = $%d", len(args)-1, len(args)))
	}
	sb.WriteString(" ORDER BY id")

	var rows []pgDocument
	if err := p.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, mapPGErr(err))
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (p *Postgres) FetchByID(ctx context.Context, collection, id string) (*Document, error) {
	const query = `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	var row pgDocument
	if err := p.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, mapPGErr(err))
	}
	doc := row.document()
	return &doc, nil
}

func (p *Postgres) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: collection is required", ErrInvalidDocument)
	}
	raw, err := normaliseRaw(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := p.now()
	const query = `INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	if _, err := p.db.ExecContext(ctx, query, collection, id, []byte(raw), now); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, mapPGErr(err))
	}
	p.changed(ctx, collection)
	return id, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	raw, err := normaliseRaw(data)
	if err != nil {
		return err
	}
	const query = `INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, collection, id, []byte(raw), p.now()); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, mapPGErr(err))
	}
	p.changed(ctx, collection)
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	clean := make(map[string]any, len(patch))
	merge(clean, patch)
	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	const query = `UPDATE documents SET data = data || $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`
	res, err := p.db.ExecContext(ctx, query, collection, id, raw, p.now())
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, mapPGErr(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	p.changed(ctx, collection)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := p.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, mapPGErr(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	p.changed(ctx, collection)
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextErr(err)
	}
	return newSubscription(ctx, p.hub, collection, func(ctx context.Context) ([]Document, error) {
		return p.Query(ctx, collection, conds...)
	}), nil
}

// Close stops the listener. The sqlx handle belongs to the caller.
func (p *Postgres) Close() error {
	if p.listener != nil {
		return p.listener.Close()
	}
	return nil
}

// changed tells subscribers about a mutation. With a running listener the notification
// round-trips through Postgres; otherwise local subscribers are signalled directly.
func (p *Postgres) changed(ctx context.Context, collection string) {
	if p.notify {
		if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, collection); err != nil {
			p.logger.Warn("docstore notify failed", zap.String("collection", collection), zap.Error(err))
		} else if p.listening.Load() {
			return
		}
	}
	p.hub.publish(collection)
}

func normaliseRaw(data json.RawMessage) (json.RawMessage, error) {
	fields, err := normalise(data)
	if err != nil {
		return nil, err
	}
	return encode(fields)
}

func mapPGErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		case pqErr.Code == "42501":
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case pqErr.Code == "22P02", pqErr.Code.Class() == "23":
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return mapContextErr(err)
}
