package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// NoticeRepository stores board notices.
type NoticeRepository struct {
	*Collection[models.Notice]
}

// NewNoticeRepository binds the notices collection.
func NewNoticeRepository(gw docstore.Gateway) *NoticeRepository {
	return &NoticeRepository{Collection: NewCollection[models.Notice](gw, models.CollectionNotices)}
}

// ByStatus returns notices in one approval state.
func (r *NoticeRepository) ByStatus(ctx context.Context, status models.NoticeStatus) ([]models.Notice, error) {
	return r.Query(ctx, docstore.Where("status", string(status)))
}
