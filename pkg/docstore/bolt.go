package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// boltRecord is the value stored under each key of a collection bucket.
type boltRecord struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Bolt is an embedded single-file Gateway. Each collection is one bucket keyed by document id.
type Bolt struct {
	db  *bbolt.DB
	hub *hub
	now func() time.Time
}

var errBoltDuplicate = errors.New("duplicate id")

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, mapBoltErr(err))
	}
	return &Bolt{db: db, hub: newHub(), now: func() time.Time { return time.Now().UTC() }}, nil
}

func (b *Bolt) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	return b.Query(ctx, collection)
}

func (b *Bolt) Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextErr(err)
	}
	docs := []Document{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, k, err)
			}
			if matches(rec.Data, conds) {
				docs = append(docs, rec.document(string(k)))
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapBoltErr(err)
	}
	return docs, nil
}

func (b *Bolt) FetchByID(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextErr(err)
	}
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, collection, id)
		if err != nil {
			return err
		}
		d := rec.document(id)
		doc = &d
		return nil
	})
	if err != nil {
		return nil, mapBoltErr(err)
	}
	return doc, nil
}

func (b *Bolt) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	if err := b.write(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (b *Bolt) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	return b.write(ctx, collection, id, data, true)
}

func (b *Bolt) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return mapContextErr(err)
	}
	if err := validateKey(collection, id); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, collection, id)
		if err != nil {
			return err
		}
		fields, err := normalise(rec.Data)
		if err != nil {
			return err
		}
		merge(fields, patch)
		if rec.Data, err = encode(fields); err != nil {
			return err
		}
		rec.UpdatedAt = b.now()
		return putRecord(tx.Bucket([]byte(collection)), id, rec)
	})
	if err != nil {
		return mapBoltErr(err)
	}
	b.hub.publish(collection)
	return nil
}

func (b *Bolt) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return mapContextErr(err)
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getRecord(tx, collection, id); err != nil {
			return err
		}
		return tx.Bucket([]byte(collection)).Delete([]byte(id))
	})
	if err != nil {
		return mapBoltErr(err)
	}
	b.hub.publish(collection)
	return nil
}

func (b *Bolt) Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapContextErr(err)
	}
	return newSubscription(ctx, b.hub, collection, func(ctx context.Context) ([]Document, error) {
		return b.Query(ctx, collection, conds...)
	}), nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) write(ctx context.Context, collection, id string, data json.RawMessage, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return mapContextErr(err)
	}
	if err := validateKey(collection, id); err != nil {
		return err
	}
	fields, err := normalise(data)
	if err != nil {
		return err
	}
	raw, err := encode(fields)
	if err != nil {
		return err
	}

	now := b.now()
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		rec := boltRecord{Data: raw, CreatedAt: now, UpdatedAt: now}
		if existing := bucket.Get([]byte(id)); existing != nil {
			if !upsert {
				return fmt.Errorf("%w: %w %s", ErrInvalidDocument, errBoltDuplicate, id)
			}
			var prev boltRecord
			if err := json.Unmarshal(existing, &prev); err == nil {
				rec.CreatedAt = prev.CreatedAt
			}
		}
		return putRecord(bucket, id, rec)
	})
	if err != nil {
		return mapBoltErr(err)
	}
	b.hub.publish(collection)
	return nil
}

func getRecord(tx *bbolt.Tx, collection, id string) (boltRecord, error) {
	var rec boltRecord
	bucket := tx.Bucket([]byte(collection))
	if bucket == nil {
		return rec, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	raw := bucket.Get([]byte(id))
	if raw == nil {
		return rec, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func putRecord(bucket *bbolt.Bucket, id string, rec boltRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(id), raw)
}

func mapBoltErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidDocument):
		return err
	case errors.Is(err, bbolt.ErrDatabaseNotOpen), errors.Is(err, bbolt.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, bbolt.ErrDatabaseReadOnly), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}

func (r boltRecord) document(id string) Document {
	return Document{ID: id, Data: r.Data, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}
