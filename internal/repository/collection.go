package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// Collection maps documents of one collection onto entity structs.
type Collection[T models.Entity] struct {
	gw     docstore.Gateway
	name   string
	logger *zap.Logger
}

// NewCollection binds a typed view onto a gateway collection. Documents that fail to decode
// are reported on the global zap logger and left out of list results.
func NewCollection[T models.Entity](gw docstore.Gateway, name string) *Collection[T] {
	return &Collection[T]{gw: gw, name: name, logger: zap.L().Named("repository")}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// FetchAll returns every entity ordered by id.
func (c *Collection[T]) FetchAll(ctx context.Context) ([]T, error) {
	docs, err := c.gw.FetchAll(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.name, err)
	}
	return decodeDocuments[T](c.logger, c.name, docs), nil
}

// Query returns the entities whose fields equal every condition.
func (c *Collection[T]) Query(ctx context.Context, conds ...docstore.Condition) ([]T, error) {
	docs, err := c.gw.Query(ctx, c.name, conds...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	return decodeDocuments[T](c.logger, c.name, docs), nil
}

// FetchByID returns one entity.
func (c *Collection[T]) FetchByID(ctx context.Context, id string) (*T, error) {
	doc, err := c.gw.FetchByID(ctx, c.name, id)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	entity, err := decode[T](*doc)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Add stores a new entity and returns the generated id.
func (c *Collection[T]) Add(ctx context.Context, entity T) (string, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", c.name, err)
	}
	id, err := c.gw.Add(ctx, c.name, raw)
	if err != nil {
		return "", fmt.Errorf("add %s: %w", c.name, err)
	}
	return id, nil
}

// Set stores entity under its own id, creating or overwriting it.
func (c *Collection[T]) Set(ctx context.Context, entity T) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.gw.Set(ctx, c.name, entity.EntityID(), raw); err != nil {
		return fmt.Errorf("set %s %s: %w", c.name, entity.EntityID(), err)
	}
	return nil
}

// Update applies a shallow field patch.
func (c *Collection[T]) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := c.gw.Update(ctx, c.name, id, patch); err != nil {
		return fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	return nil
}

// Replace overwrites an existing entity. Missing ids fail with docstore.ErrNotFound.
func (c *Collection[T]) Replace(ctx context.Context, entity T) error {
	if _, err := c.gw.FetchByID(ctx, c.name, entity.EntityID()); err != nil {
		return fmt.Errorf("replace %s %s: %w", c.name, entity.EntityID(), err)
	}
	return c.Set(ctx, entity)
}

// Delete removes an entity.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.gw.Delete(ctx, c.name, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return nil
}

// Subscribe opens a typed live stream over the collection.
func (c *Collection[T]) Subscribe(ctx context.Context, conds ...docstore.Condition) (*Stream[T], error) {
	sub, err := c.gw.Subscribe(ctx, c.name, conds...)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c.name, err)
	}
	return newStream[T](sub, c.name, c.logger), nil
}

func decodeDocuments[T any](logger *zap.Logger, collection string, docs []docstore.Document) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := decode[T](doc)
		if err != nil {
			logger.Warn("skipping undecodable document",
				zap.String("collection", collection), zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		out = append(out, entity)
	}
	return out
}

// decode inserts the document id into the payload before unmarshalling so entity types with
// custom decoders see it like any other field.
func decode[T any](doc docstore.Document) (T, error) {
	var entity T
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return entity, fmt.Errorf("decode %s: %w: %v", doc.ID, docstore.ErrInvalidDocument, err)
	}
	id, _ := json.Marshal(doc.ID)
	fields["id"] = id
	raw, err := json.Marshal(fields)
	if err != nil {
		return entity, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("decode %s: %w: %v", doc.ID, docstore.ErrInvalidDocument, err)
	}
	return entity, nil
}
