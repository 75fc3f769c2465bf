package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// LeaveRepository stores leave applications.
type LeaveRepository struct {
	*Collection[models.LeaveApplication]
}

// NewLeaveRepository binds the leave applications collection.
func NewLeaveRepository(gw docstore.Gateway) *LeaveRepository {
	return &LeaveRepository{Collection: NewCollection[models.LeaveApplication](gw, models.CollectionLeaves)}
}

// ForUser returns the applications of one applicant.
func (r *LeaveRepository) ForUser(ctx context.Context, userID string) ([]models.LeaveApplication, error) {
	return r.Query(ctx, docstore.Where("user_id", userID))
}

// ByStatus returns applications in one review state.
func (r *LeaveRepository) ByStatus(ctx context.Context, status models.LeaveStatus) ([]models.LeaveApplication, error) {
	return r.Query(ctx, docstore.Where("status", string(status)))
}
