// Package docstore provides uniform access to named collections of schema-less JSON documents.
//
// Every backend implements Gateway: one-shot reads, single-record writes and live subscriptions
// that deliver full snapshots of a collection after each change.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Sentinel errors returned (wrapped) by every backend.
var (
	ErrNotFound         = errors.New("docstore: document not found")
	ErrInvalidDocument  = errors.New("docstore: invalid document")
	ErrUnavailable      = errors.New("docstore: store unavailable")
	ErrPermissionDenied = errors.New("docstore: permission denied")
	ErrClosed           = errors.New("docstore: gateway closed")
)

// Document is one stored record. Data never carries the id; it lives in ID.
type Document struct {
	ID        string          `json:"id" db:"id"`
	Data      json.RawMessage `json:"data" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Condition restricts a query to documents whose top-level field equals Value.
type Condition struct {
	Field string
	Value any
}

// Where builds an equality condition.
func Where(field string, value any) Condition {
	return Condition{Field: field, Value: value}
}

// Gateway is the contract shared by all document store backends.
type Gateway interface {
	FetchAll(ctx context.Context, collection string) ([]Document, error)
	Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error)
	FetchByID(ctx context.Context, collection, id string) (*Document, error)
	Add(ctx context.Context, collection string, data json.RawMessage) (string, error)
	Set(ctx context.Context, collection, id string, data json.RawMessage) error
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error)
	Close() error
}

// normalise decodes data as a JSON object and strips the reserved id key.
func normalise(data json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidDocument)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	delete(fields, "id")
	return fields, nil
}

func encode(fields map[string]any) (json.RawMessage, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return raw, nil
}

// merge applies a shallow patch; the id key is never patched.
func merge(fields map[string]any, patch map[string]any) {
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
}

// matches compares condition values by their printed form so numbers and booleans read back
// from JSON compare equal to the Go values callers pass in.
func matches(data json.RawMessage, conds []Condition) bool {
	if len(conds) == 0 {
		return true
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for _, c := range conds {
		v, ok := fields[c.Field]
		if !ok || v == nil {
			return false
		}
		if conditionText(v) != conditionText(c.Value) {
			return false
		}
	}
	return true
}

func conditionText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func sortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

func validateKey(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidDocument)
	}
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDocument)
	}
	return nil
}

// mapContextErr turns an expired or cancelled context into ErrUnavailable.
func mapContextErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
