package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

func newPersonFixture(t *testing.T) (*PersonService, *repository.PersonRepository, *countingNotifier) {
	t.Helper()
	people := repository.NewPersonRepository(docstore.NewMemory())
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	changes := &countingNotifier{}
	svc := NewPersonService(PersonServiceParams{
		Repo:    people,
		Photos:  repository.NewPhotoRepository(files, people, 16),
		Changes: changes,
	})
	return svc, people, changes
}

func studentInput(first, last, class string) models.PersonInput {
	return models.PersonInput{
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(first) + "@Example.com",
		ClassName: class,
		Age:       "12",
	}
}

func TestPersonServiceCreateAndList(t *testing.T) {
	svc, _, changes := newPersonFixture(t)
	ctx := context.Background()

	for _, in := range []models.PersonInput{
		studentInput("zoe", "Adams", "Class 2"),
		studentInput("Amy", "Brown", "Class 1"),
		studentInput("amy", "Allen", "Class 1"),
	} {
		_, err := svc.Create(ctx, models.PersonStudent, in)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, changes.count())

	all, err := svc.List(ctx, models.PersonStudent, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Allen", "Brown", "Adams"}, []string{all[0].LastName, all[1].LastName, all[2].LastName})
	assert.Equal(t, "amy@example.com", all[0].Email)
	assert.Equal(t, 12, all[0].Age)

	class1, err := svc.List(ctx, models.PersonStudent, ListQuery{Class: "Class 1"})
	require.NoError(t, err)
	assert.Len(t, class1, 2)

	everyone, err := svc.List(ctx, models.PersonStudent, ListQuery{Class: models.AllClasses})
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	searched, err := svc.List(ctx, models.PersonStudent, ListQuery{Search: "ZOE@", Class: models.AllClasses})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, "Adams", searched[0].LastName)
}

func TestPersonServiceValidation(t *testing.T) {
	svc, people, _ := newPersonFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.PersonStudent, models.PersonInput{FirstName: " ", LastName: "X", Email: "nope", MobileNo: "12ab"})
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	details := appErr.Details
	assert.Contains(t, details, "first_name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "mobile_no")
	assert.Equal(t, "is required", details["class_name"])

	stored, err := people.List(ctx, models.PersonStudent)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPersonServiceNormalisesTeacherClass(t *testing.T) {
	svc, _, _ := newPersonFixture(t)

	created, err := svc.Create(context.Background(), models.PersonTeacher, models.PersonInput{
		FirstName: "Tom", LastName: "Teacher", Email: "tom@example.com", ClassName: "3rd",
	})
	require.NoError(t, err)
	assert.Equal(t, "Class 3", created.ClassName)
	assert.Equal(t, models.PersonTeacher, created.Type)
}

func TestPersonServiceUpdateKeepsPhotoAndMissingFails(t *testing.T) {
	svc, people, _ := newPersonFixture(t)
	ctx := context.Background()

	id, err := people.Create(ctx, models.Person{Type: models.PersonStaff, FirstName: "Sam", LastName: "Staff", Email: "sam@example.com", ProfilePhoto: "photos/staff/x.png"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, models.PersonStaff, id, models.PersonInput{FirstName: "Samantha", LastName: "Staff", Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "photos/staff/x.png", updated.ProfilePhoto)

	got, err := svc.Get(ctx, models.PersonStaff, id)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", got.FirstName)

	_, err = svc.Update(ctx, models.PersonStaff, "missing", models.PersonInput{FirstName: "A", LastName: "B", Email: "a@example.com"})
	requireCode(t, err, appErrors.ErrNotFound.Code)

	err = svc.Delete(ctx, models.PersonStaff, "missing")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPersonServiceCurrentStudentFallsBackToEmail(t *testing.T) {
	svc, people, _ := newPersonFixture(t)
	ctx := context.Background()

	_, err := people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "Clss1", LastName: "Std01", Email: studentSession.Email, ClassName: "Class 1"})
	require.NoError(t, err)

	student, err := svc.CurrentStudent(ctx, studentSession)
	require.NoError(t, err)
	assert.Equal(t, "Class 1", student.ClassName)

	_, err = svc.CurrentStudent(ctx, teacherSession)
	requireCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.CurrentStudent(ctx, models.Session{UserID: "ghost", Role: models.RoleStudent})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPersonServiceUploadPhoto(t *testing.T) {
	svc, people, _ := newPersonFixture(t)
	ctx := context.Background()

	id, err := people.Create(ctx, models.Person{ID: studentSession.UserID, Type: models.PersonStudent, FirstName: "A", LastName: "B", Email: "a@example.com", ClassName: "Class 1"})
	require.NoError(t, err)

	stored, err := svc.UploadPhoto(ctx, studentSession, models.PersonStudent, id, "image/png; charset=binary", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "photos/students/"+id+".png", stored)

	got, err := people.Get(ctx, models.PersonStudent, id)
	require.NoError(t, err)
	assert.Equal(t, stored, got.ProfilePhoto)

	_, err = svc.UploadPhoto(ctx, studentSession, models.PersonStudent, id, "image/gif", strings.NewReader("gif"))
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.UploadPhoto(ctx, studentSession, models.PersonStudent, id, "image/png", strings.NewReader(strings.Repeat("x", 64)))
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.UploadPhoto(ctx, teacherSession, models.PersonStudent, id, "image/png", strings.NewReader("png"))
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestPersonServiceWatchOptimisticDelete(t *testing.T) {
	svc, people, changes := newPersonFixture(t)
	ctx := context.Background()

	id, err := people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "A", LastName: "B", Email: "a@example.com", ClassName: "Class 1"})
	require.NoError(t, err)
	_, err = people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "C", LastName: "D", Email: "c@example.com", ClassName: "Class 2"})
	require.NoError(t, err)

	watch, err := svc.Watch(ctx, models.PersonStudent, ListQuery{})
	require.NoError(t, err)
	defer watch.Close()

	nextView(t, watch, func(v ListView[models.Person]) bool {
		return v.Status == viewstate.ListReady && len(v.Items) == 2
	})

	require.NoError(t, <-watch.Delete(ctx, id))
	view := nextView(t, watch, func(v ListView[models.Person]) bool {
		return v.Status == viewstate.ListReady && len(v.Items) == 1 && len(v.Pending) == 0
	})
	assert.Equal(t, "C", view.Items[0].FirstName)
	assert.Equal(t, 1, changes.count())

	_, err = people.Get(ctx, models.PersonStudent, id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPersonServiceRejectsUnknownType(t *testing.T) {
	svc, _, _ := newPersonFixture(t)
	_, err := svc.List(context.Background(), models.PersonType("alien"), ListQuery{})
	requireCode(t, err, appErrors.ErrValidation.Code)
}
