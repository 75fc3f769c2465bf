package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// TimetableRepository stores recurring lesson slots.
type TimetableRepository struct {
	*Collection[models.Timetable]
}

// NewTimetableRepository binds the timetables collection.
func NewTimetableRepository(gw docstore.Gateway) *TimetableRepository {
	return &TimetableRepository{Collection: NewCollection[models.Timetable](gw, models.CollectionTimetables)}
}

// FindSlot returns the active entries occupying a class, day and slot.
func (r *TimetableRepository) FindSlot(ctx context.Context, classGrade string, day models.Weekday, slot string) ([]models.Timetable, error) {
	return r.Query(ctx,
		docstore.Where("class_grade", classGrade),
		docstore.Where("day_of_week", string(day)),
		docstore.Where("time_slot", slot),
		docstore.Where("is_active", true),
	)
}

// ForClass returns every entry of a class.
func (r *TimetableRepository) ForClass(ctx context.Context, classGrade string) ([]models.Timetable, error) {
	return r.Query(ctx, docstore.Where("class_grade", classGrade))
}
