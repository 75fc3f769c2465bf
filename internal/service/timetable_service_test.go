package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

func lesson(class, day, slot, subject, teacher string) models.TimetableInput {
	return models.TimetableInput{ClassGrade: class, DayOfWeek: day, TimeSlot: slot, Subject: subject, Teacher: teacher}
}

func TestTimetableServiceRejectsDoubleBooking(t *testing.T) {
	repo := repository.NewTimetableRepository(docstore.NewMemory())
	svc := NewTimetableService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, lesson("Class 1", "mon", "09:00 AM - 10:00 AM", "Maths", "Mr. Smith"))
	require.NoError(t, err)
	assert.Equal(t, models.Monday, first.DayOfWeek)
	assert.True(t, first.IsActive)

	_, err = svc.Create(ctx, lesson("Class 1", "Monday", "09:00 AM - 10:00 AM", "Science", "Ms. Jones"))
	appErr := requireCode(t, err, appErrors.ErrConflict.Code)
	assert.Contains(t, appErr.Message, "Maths")

	updated, err := svc.Update(ctx, first.ID, lesson("Class 1", "Monday", "09:00 AM - 10:00 AM", "Algebra", "Mr. Smith"))
	require.NoError(t, err)
	assert.Equal(t, "Algebra", updated.Subject)

	inactive := false
	in := lesson("Class 1", "Monday", "09:00 AM - 10:00 AM", "Art", "Ms. Jones")
	in.IsActive = &inactive
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTimetableServiceInvalidDay(t *testing.T) {
	svc := NewTimetableService(repository.NewTimetableRepository(docstore.NewMemory()), nil, nil)

	_, err := svc.Create(context.Background(), lesson("Class 1", "Funday", "09:00", "Maths", "Mr. Smith"))
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "day_of_week")

	_, err = svc.List(context.Background(), TimetableQuery{Day: "Funday"})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestTimetableServiceListOrdersBySlot(t *testing.T) {
	svc := NewTimetableService(repository.NewTimetableRepository(docstore.NewMemory()), nil, nil)
	ctx := context.Background()

	for _, in := range []models.TimetableInput{
		lesson("Class 1", "Tuesday", "08:00 AM - 09:00 AM", "History", "Ms. Jones"),
		lesson("Class 1", "Monday", "1:30 PM - 2:30 PM", "Art", "Ms. Jones"),
		lesson("Class 1", "Monday", "after lunch", "Free", "Mr. Smith"),
		lesson("Class 1", "Monday", "09:00 AM - 10:00 AM", "Maths", "Mr. Smith"),
		lesson("Class 2", "Monday", "08:00 AM - 09:00 AM", "Maths", "Mr. Smith"),
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	class1, err := svc.List(ctx, TimetableQuery{Class: "Class 1"})
	require.NoError(t, err)
	subjects := make([]string, 0, len(class1))
	for _, e := range class1 {
		subjects = append(subjects, e.Subject)
	}
	assert.Equal(t, []string{"Maths", "Art", "Free", "History"}, subjects)

	monday, err := svc.List(ctx, TimetableQuery{Class: models.AllClasses, Day: "MON", Teacher: "mr. smith"})
	require.NoError(t, err)
	assert.Len(t, monday, 3)
}
