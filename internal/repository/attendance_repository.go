package repository

import (
	"context"
	"strings"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// AttendanceRepository stores one record per person per day under a composite id.
type AttendanceRepository struct {
	*Collection[models.AttendanceRecord]
}

// NewAttendanceRepository binds the attendance collection.
func NewAttendanceRepository(gw docstore.Gateway) *AttendanceRepository {
	return &AttendanceRepository{Collection: NewCollection[models.AttendanceRecord](gw, models.CollectionAttendance)}
}

// Mark writes rec under its composite key, replacing an earlier mark for the same day.
func (r *AttendanceRepository) Mark(ctx context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error) {
	rec.ID = models.AttendanceKey(rec.Date, rec.PersonType, rec.PersonID)
	return rec, r.Set(ctx, rec)
}

// ForDate returns every mark of a person type on one day.
func (r *AttendanceRepository) ForDate(ctx context.Context, personType models.PersonType, date string) ([]models.AttendanceRecord, error) {
	return r.Query(ctx, docstore.Where("person_type", string(personType)), docstore.Where("date", date))
}

// ForMonth returns the marks of a person type whose date starts with month (yyyy-MM).
func (r *AttendanceRepository) ForMonth(ctx context.Context, personType models.PersonType, month string) ([]models.AttendanceRecord, error) {
	records, err := r.Query(ctx, docstore.Where("person_type", string(personType)))
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if strings.HasPrefix(rec.Date, month+"-") {
			out = append(out, rec)
		}
	}
	return out, nil
}
