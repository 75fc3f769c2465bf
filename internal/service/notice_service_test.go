package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

func newNoticeFixture(student *models.Person) (*NoticeService, *repository.NoticeRepository) {
	repo := repository.NewNoticeRepository(docstore.NewMemory())
	var lookup studentLookup
	if student != nil {
		lookup = stubStudents{student: student}
	} else {
		lookup = stubStudents{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	}
	svc := NewNoticeService(repo, lookup, nil, nil, nil)
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, repo
}

func titles(notices []models.Notice) []string {
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		out = append(out, n.Title)
	}
	return out
}

func TestNoticeServiceCreateStatusByRole(t *testing.T) {
	svc, _ := newNoticeFixture(nil)
	ctx := context.Background()

	byAdmin, err := svc.Create(ctx, adminSession, models.NoticeInput{Title: "Holiday", Content: "School closed"})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeApproved, byAdmin.Status)
	assert.Equal(t, models.NoticeAllClasses, byAdmin.TargetClass)
	assert.Equal(t, models.NoticePriorityNormal, byAdmin.Priority)

	byTeacher, err := svc.Create(ctx, teacherSession, models.NoticeInput{Title: "Trip", Content: "Museum", TargetClass: "Class 1"})
	require.NoError(t, err)
	assert.Equal(t, models.NoticePending, byTeacher.Status)
	assert.Equal(t, teacherSession.UserID, byTeacher.AuthorID)

	_, err = svc.Create(ctx, teacherSession, models.NoticeInput{Title: " ", Content: "x"})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestNoticeServiceVisibility(t *testing.T) {
	svc, _ := newNoticeFixture(&models.Person{ID: studentSession.UserID, ClassName: "Class 1"})
	ctx := context.Background()

	_, err := svc.Create(ctx, adminSession, models.NoticeInput{Title: "All", Content: "x"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminSession, models.NoticeInput{Title: "Class 1", Content: "x", TargetClass: "Class 1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminSession, models.NoticeInput{Title: "Class 2", Content: "x", TargetClass: "Class 2"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, teacherSession, models.NoticeInput{Title: "Pending", Content: "x"})
	require.NoError(t, err)

	student, err := svc.List(ctx, studentSession, NoticeQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Class 1", "All"}, titles(student))

	teacher, err := svc.List(ctx, teacherSession, NoticeQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending", "Class 2", "Class 1", "All"}, titles(teacher))

	other, err := svc.List(ctx, staffSession, NoticeQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Class 2", "Class 1", "All"}, titles(other))

	adminDefault, err := svc.List(ctx, adminSession, NoticeQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending"}, titles(adminDefault))

	adminAll, err := svc.List(ctx, adminSession, NoticeQuery{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, adminAll, 4)
}

func TestNoticeServiceStudentWithoutProfileSeesSchoolWide(t *testing.T) {
	svc, _ := newNoticeFixture(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, adminSession, models.NoticeInput{Title: "All", Content: "x"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminSession, models.NoticeInput{Title: "Class 1", Content: "x", TargetClass: "Class 1"})
	require.NoError(t, err)

	notices, err := svc.List(ctx, studentSession, NoticeQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"All"}, titles(notices))
}

func TestNoticeServiceReview(t *testing.T) {
	svc, repo := newNoticeFixture(nil)
	ctx := context.Background()

	pending, err := svc.Create(ctx, teacherSession, models.NoticeInput{Title: "Trip", Content: "Museum"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, teacherSession, pending.ID, models.ReviewInput{Approve: true})
	requireCode(t, err, appErrors.ErrForbidden.Code)

	reviewed, err := svc.Review(ctx, adminSession, pending.ID, models.ReviewInput{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeApproved, reviewed.Status)

	stored, err := repo.FetchByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeApproved, stored.Status)
	assert.Equal(t, adminSession.UserID, stored.ReviewedBy)

	_, err = svc.Review(ctx, adminSession, pending.ID, models.ReviewInput{Approve: false})
	requireCode(t, err, appErrors.ErrConflict.Code)

	_, err = svc.Review(ctx, adminSession, "missing", models.ReviewInput{})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestNoticeServiceOnlyAuthorEditsAndDeletes(t *testing.T) {
	svc, _ := newNoticeFixture(nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, teacherSession, models.NoticeInput{Title: "Trip", Content: "Museum"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, staffSession, n.ID, models.NoticeInput{Title: "Hijack", Content: "x"})
	requireCode(t, err, appErrors.ErrForbidden.Code)
	err = svc.Delete(ctx, staffSession, n.ID)
	requireCode(t, err, appErrors.ErrForbidden.Code)

	edited, err := svc.Update(ctx, teacherSession, n.ID, models.NoticeInput{Title: "Zoo trip", Content: "Zoo"})
	require.NoError(t, err)
	assert.True(t, n.CreatedAt.Equal(edited.CreatedAt))
	assert.Equal(t, models.NoticePending, edited.Status)

	require.NoError(t, svc.Delete(ctx, adminSession, n.ID))
}
