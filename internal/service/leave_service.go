package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const leaveNotFound = "leave application not found"

type leaveRepository interface {
	FetchAll(ctx context.Context) ([]models.LeaveApplication, error)
	FetchByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	ForUser(ctx context.Context, userID string) ([]models.LeaveApplication, error)
	Add(ctx context.Context, l models.LeaveApplication) (string, error)
	Update(ctx context.Context, id string, patch map[string]any) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.LeaveApplication], error)
}

// LeaveQuery filters leave applications. Status uses the selector semantics of lists.
type LeaveQuery struct {
	Search string `form:"search"`
	Status string `form:"status"`
}

// LeaveService handles leave applications from teachers and staff.
type LeaveService struct {
	repo      leaveRepository
	validator *validator.Validate
	logger    *zap.Logger
	changes   changeNotifier
	now       func() time.Time
}

// NewLeaveService constructs the leave service.
func NewLeaveService(repo leaveRepository, validate *validator.Validate, logger *zap.Logger, changes changeNotifier) *LeaveService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{repo: repo, validator: validate, logger: logger, changes: changes, now: func() time.Time { return time.Now().UTC() }}
}

func (s *LeaveService) listConfig(session models.Session) viewstate.ListConfig[models.LeaveApplication] {
	cfg := viewstate.ListConfig[models.LeaveApplication]{
		Projector: viewstate.Projector[models.LeaveApplication]{
			SearchFields: func(l models.LeaveApplication) []string { return []string{l.UserName, l.Reason} },
			ClassOf:      func(l models.LeaveApplication) string { return string(l.Status) },
			Less:         func(a, b models.LeaveApplication) bool { return a.AppliedAt.After(b.AppliedAt) },
		},
		Fetch:     s.repo.FetchAll,
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.LeaveApplication], error) { return s.repo.Subscribe(ctx) }),
		Logger:    s.logger,
	}
	if !session.IsAdmin() {
		cfg.Fetch = func(ctx context.Context) ([]models.LeaveApplication, error) { return s.repo.ForUser(ctx, session.UserID) }
		cfg.Subscribe = subscribeWith(func(ctx context.Context) (*repository.Stream[models.LeaveApplication], error) {
			return s.repo.Subscribe(ctx, docstore.Where("user_id", session.UserID))
		})
		cfg.Scope = func(l models.LeaveApplication) bool { return l.UserID == session.UserID }
	}
	return cfg
}

// List returns the caller's applications, or every application for admins.
func (s *LeaveService) List(ctx context.Context, session models.Session, q LeaveQuery) ([]models.LeaveApplication, error) {
	return fetchList(ctx, s.listConfig(session), viewstate.Filter{Search: q.Search, Class: statusSelector(q.Status)}, leaveNotFound)
}

// Watch opens the live application list.
func (s *LeaveService) Watch(ctx context.Context, session models.Session, q LeaveQuery) (*ListWatch[models.LeaveApplication], error) {
	return watchList(ctx, s.listConfig(session), viewstate.Filter{Search: q.Search, Class: statusSelector(q.Status)}, leaveNotFound)
}

// Apply submits a new application for the caller.
func (s *LeaveService) Apply(ctx context.Context, session models.Session, in models.LeaveInput) (*models.LeaveApplication, error) {
	personType, ok := session.Role.PersonType()
	if !ok || personType == models.PersonStudent {
		return nil, forbidden("only teachers and staff can apply for leave")
	}
	l, err := submitForm(ctx, s.logger, in, func(in models.LeaveInput) (models.LeaveApplication, error) {
		const message = "invalid leave application"
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			return models.LeaveApplication{}, err
		}
		if in.ToDate < in.FromDate {
			return models.LeaveApplication{}, appErrors.Validation(message, map[string]string{"to_date": "must not be before from_date"})
		}
		return models.LeaveApplication{
			UserID:    session.UserID,
			UserType:  personType,
			UserName:  session.Name,
			FromDate:  in.FromDate,
			ToDate:    in.ToDate,
			Reason:    strings.TrimSpace(in.Reason),
			Status:    models.LeavePending,
			AppliedAt: s.now(),
		}, nil
	}, func(ctx context.Context, l models.LeaveApplication) (models.LeaveApplication, error) {
		id, err := s.repo.Add(ctx, l)
		l.ID = id
		return l, err
	}, leaveNotFound)
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &l, nil
}

// Review approves or rejects a pending application.
func (s *LeaveService) Review(ctx context.Context, session models.Session, id string, in models.ReviewInput) (*models.LeaveApplication, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	l, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, leaveNotFound)
	}
	if l.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave application already reviewed")
	}
	reviewedAt := s.now()
	l.Status = models.LeaveRejected
	if in.Approve {
		l.Status = models.LeaveApproved
	}
	l.ReviewedBy = session.UserID
	l.ReviewedAt = &reviewedAt
	l.AdminRemarks = strings.TrimSpace(in.Remarks)
	patch := map[string]any{
		"status":        string(l.Status),
		"reviewed_by":   l.ReviewedBy,
		"reviewed_at":   reviewedAt,
		"admin_remarks": l.AdminRemarks,
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, gatewayError(err, leaveNotFound)
	}
	notifyChange(ctx, s.changes)
	return l, nil
}

// Withdraw deletes a pending application of the caller. Admins may delete any application.
func (s *LeaveService) Withdraw(ctx context.Context, session models.Session, id string) error {
	l, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return gatewayError(err, leaveNotFound)
	}
	if !session.IsAdmin() {
		if l.UserID != session.UserID {
			return forbidden("cannot withdraw another user's application")
		}
		if l.Status != models.LeavePending {
			return appErrors.Clone(appErrors.ErrConflict, "reviewed applications cannot be withdrawn")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, leaveNotFound)
	}
	notifyChange(ctx, s.changes)
	return nil
}
