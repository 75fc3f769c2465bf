package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// ClassEventRepository stores teacher-posted class events.
type ClassEventRepository struct {
	*Collection[models.ClassEvent]
}

// NewClassEventRepository binds the class_events collection.
func NewClassEventRepository(gw docstore.Gateway) *ClassEventRepository {
	return &ClassEventRepository{Collection: NewCollection[models.ClassEvent](gw, models.CollectionEvents)}
}

// ForClass returns every event targeting className.
func (r *ClassEventRepository) ForClass(ctx context.Context, className string) ([]models.ClassEvent, error) {
	return r.Query(ctx, docstore.Where("target_class", className))
}

// SubscribeClass streams the events targeting className.
func (r *ClassEventRepository) SubscribeClass(ctx context.Context, className string) (*Stream[models.ClassEvent], error) {
	return r.Subscribe(ctx, docstore.Where("target_class", className))
}

// ByCreator returns the events posted by one user.
func (r *ClassEventRepository) ByCreator(ctx context.Context, userID string) ([]models.ClassEvent, error) {
	return r.Query(ctx, docstore.Where("created_by", userID))
}
