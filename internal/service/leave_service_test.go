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

func newLeaveFixture() (*LeaveService, *repository.LeaveRepository, *countingNotifier) {
	repo := repository.NewLeaveRepository(docstore.NewMemory())
	changes := &countingNotifier{}
	return NewLeaveService(repo, nil, nil, changes), repo, changes
}

func TestLeaveServiceApply(t *testing.T) {
	svc, _, changes := newLeaveFixture()
	ctx := context.Background()

	l, err := svc.Apply(ctx, teacherSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-05", Reason: " Conference "})
	require.NoError(t, err)
	assert.Equal(t, models.LeavePending, l.Status)
	assert.Equal(t, models.PersonTeacher, l.UserType)
	assert.Equal(t, "Conference", l.Reason)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, 1, changes.count())

	_, err = svc.Apply(ctx, staffSession, models.LeaveInput{FromDate: "2024-06-05", ToDate: "2024-06-03", Reason: "Oops"})
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "to_date")

	_, err = svc.Apply(ctx, studentSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Sick"})
	requireCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Apply(ctx, adminSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Sick"})
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestLeaveServiceListScopesToApplicant(t *testing.T) {
	svc, _, _ := newLeaveFixture()
	ctx := context.Background()

	_, err := svc.Apply(ctx, teacherSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Teacher leave"})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, staffSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Staff leave"})
	require.NoError(t, err)

	own, err := svc.List(ctx, teacherSession, LeaveQuery{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Teacher leave", own[0].Reason)

	all, err := svc.List(ctx, adminSession, LeaveQuery{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := svc.List(ctx, adminSession, LeaveQuery{Status: string(models.LeaveApproved)})
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestLeaveServiceReviewOnlyPending(t *testing.T) {
	svc, repo, _ := newLeaveFixture()
	ctx := context.Background()

	l, err := svc.Apply(ctx, teacherSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Sick"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, teacherSession, l.ID, models.ReviewInput{Approve: true})
	requireCode(t, err, appErrors.ErrForbidden.Code)

	reviewed, err := svc.Review(ctx, adminSession, l.ID, models.ReviewInput{Approve: false, Remarks: " exam week "})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveRejected, reviewed.Status)

	stored, err := repo.FetchByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveRejected, stored.Status)
	assert.Equal(t, "exam week", stored.AdminRemarks)
	require.NotNil(t, stored.ReviewedAt)

	_, err = svc.Review(ctx, adminSession, l.ID, models.ReviewInput{Approve: true})
	requireCode(t, err, appErrors.ErrConflict.Code)

	err = svc.Withdraw(ctx, teacherSession, l.ID)
	requireCode(t, err, appErrors.ErrConflict.Code)

	require.NoError(t, svc.Withdraw(ctx, adminSession, l.ID))
}

func TestLeaveServiceWithdrawOwnPending(t *testing.T) {
	svc, _, _ := newLeaveFixture()
	ctx := context.Background()

	l, err := svc.Apply(ctx, teacherSession, models.LeaveInput{FromDate: "2024-06-03", ToDate: "2024-06-03", Reason: "Sick"})
	require.NoError(t, err)

	err = svc.Withdraw(ctx, staffSession, l.ID)
	requireCode(t, err, appErrors.ErrForbidden.Code)

	require.NoError(t, svc.Withdraw(ctx, teacherSession, l.ID))

	err = svc.Withdraw(ctx, teacherSession, l.ID)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}
