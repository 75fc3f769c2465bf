package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// ScheduleRepository stores one-off class events.
type ScheduleRepository struct {
	*Collection[models.Schedule]
}

// NewScheduleRepository binds the schedules collection.
func NewScheduleRepository(gw docstore.Gateway) *ScheduleRepository {
	return &ScheduleRepository{Collection: NewCollection[models.Schedule](gw, models.CollectionSchedules)}
}

// ForClass returns the events of one class.
func (r *ScheduleRepository) ForClass(ctx context.Context, className string) ([]models.Schedule, error) {
	return r.Query(ctx, docstore.Where("class_name", className))
}
