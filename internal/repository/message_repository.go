package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// MessageRepository stores direct messages.
type MessageRepository struct {
	*Collection[models.Message]
}

// NewMessageRepository binds the messages collection.
func NewMessageRepository(gw docstore.Gateway) *MessageRepository {
	return &MessageRepository{Collection: NewCollection[models.Message](gw, models.CollectionMessages)}
}

// Conversation returns the messages exchanged between a and b.
func (r *MessageRepository) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	sent, err := r.Query(ctx, docstore.Where("sender_id", a), docstore.Where("receiver_id", b))
	if err != nil {
		return nil, err
	}
	received, err := r.Query(ctx, docstore.Where("sender_id", b), docstore.Where("receiver_id", a))
	if err != nil {
		return nil, err
	}
	return append(sent, received...), nil
}

// MarkRead flags a message as read.
func (r *MessageRepository) MarkRead(ctx context.Context, id string) error {
	return r.Update(ctx, id, map[string]any{"read": true})
}
