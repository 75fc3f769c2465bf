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

const noticeNotFound = "notice not found"

type noticeRepository interface {
	FetchAll(ctx context.Context) ([]models.Notice, error)
	FetchByID(ctx context.Context, id string) (*models.Notice, error)
	Add(ctx context.Context, n models.Notice) (string, error)
	Replace(ctx context.Context, n models.Notice) error
	Update(ctx context.Context, id string, patch map[string]any) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.Notice], error)
}

// NoticeQuery filters the notice board. Status is only honoured for admins.
type NoticeQuery struct {
	Search string `form:"search"`
	Class  string `form:"class"`
	Status string `form:"status"`
}

// NoticeService runs the notice board and its approval workflow.
type NoticeService struct {
	repo      noticeRepository
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
	changes   changeNotifier
	now       func() time.Time
}

// NewNoticeService constructs the notice service.
func NewNoticeService(repo noticeRepository, students studentLookup, validate *validator.Validate, logger *zap.Logger, changes changeNotifier) *NoticeService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		changes:   changes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// visibility returns the audience rule for the caller.
func (s *NoticeService) visibility(ctx context.Context, session models.Session, status string) (func(models.Notice) bool, error) {
	switch session.Role {
	case models.RoleAdmin:
		wanted := models.NoticeStatus(strings.ToLower(strings.TrimSpace(status)))
		if wanted == "" {
			wanted = models.NoticePending
		}
		if wanted == "all" {
			return nil, nil
		}
		return func(n models.Notice) bool { return n.Status == wanted }, nil
	case models.RoleStudent:
		className := ""
		if s.students != nil {
			student, err := s.students.CurrentStudent(ctx, session)
			if err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				return nil, err
			}
			if student != nil {
				className = student.ClassName
			}
		}
		return func(n models.Notice) bool {
			if n.Status != models.NoticeApproved {
				return false
			}
			if className == "" {
				return n.TargetClass == "" || n.TargetClass == models.NoticeAllClasses
			}
			return n.TargetsClass(className)
		}, nil
	default:
		return func(n models.Notice) bool {
			return n.Status == models.NoticeApproved || n.AuthorID == session.UserID
		}, nil
	}
}

func (s *NoticeService) listConfig(scope func(models.Notice) bool) viewstate.ListConfig[models.Notice] {
	return viewstate.ListConfig[models.Notice]{
		Projector: viewstate.Projector[models.Notice]{
			SearchFields: func(n models.Notice) []string { return []string{n.Title, n.Content, n.AuthorName} },
			ClassOf:      func(n models.Notice) string { return n.TargetClass },
			Scope:        scope,
			Less:         func(a, b models.Notice) bool { return a.CreatedAt.After(b.CreatedAt) },
		},
		Fetch:     s.repo.FetchAll,
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Notice], error) { return s.repo.Subscribe(ctx) }),
		Delete: func(ctx context.Context, id string) error {
			if err := s.repo.Delete(ctx, id); err != nil {
				return err
			}
			notifyChange(ctx, s.changes)
			return nil
		},
		Logger: s.logger,
	}
}

// List returns the notices visible to the caller, newest first.
func (s *NoticeService) List(ctx context.Context, session models.Session, q NoticeQuery) ([]models.Notice, error) {
	scope, err := s.visibility(ctx, session, q.Status)
	if err != nil {
		return nil, err
	}
	return fetchList(ctx, s.listConfig(scope), viewstate.Filter{Search: q.Search, Class: q.Class}, noticeNotFound)
}

// Watch opens the live notice board for the caller.
func (s *NoticeService) Watch(ctx context.Context, session models.Session, q NoticeQuery) (*ListWatch[models.Notice], error) {
	scope, err := s.visibility(ctx, session, q.Status)
	if err != nil {
		return nil, err
	}
	return watchList(ctx, s.listConfig(scope), viewstate.Filter{Search: q.Search, Class: q.Class}, noticeNotFound)
}

// Create posts a notice. Admin notices are approved at once; others wait for review.
func (s *NoticeService) Create(ctx context.Context, session models.Session, in models.NoticeInput) (*models.Notice, error) {
	n, err := submitForm(ctx, s.logger, in, s.builder(session, nil), func(ctx context.Context, n models.Notice) (models.Notice, error) {
		id, err := s.repo.Add(ctx, n)
		n.ID = id
		return n, err
	}, noticeNotFound)
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &n, nil
}

// Update edits a notice. Only the author or an admin may edit; a non-admin edit goes back
// to review.
func (s *NoticeService) Update(ctx context.Context, session models.Session, id string, in models.NoticeInput) (*models.Notice, error) {
	existing, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, noticeNotFound)
	}
	if !session.IsAdmin() && existing.AuthorID != session.UserID {
		return nil, forbidden("only the author can edit this notice")
	}
	n, err := submitForm(ctx, s.logger, in, s.builder(session, existing), func(ctx context.Context, n models.Notice) (models.Notice, error) {
		return n, s.repo.Replace(ctx, n)
	}, noticeNotFound)
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &n, nil
}

// Review approves or rejects a pending notice.
func (s *NoticeService) Review(ctx context.Context, session models.Session, id string, in models.ReviewInput) (*models.Notice, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	n, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, noticeNotFound)
	}
	if n.Status != models.NoticePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "notice is not pending review")
	}
	n.Status = models.NoticeRejected
	if in.Approve {
		n.Status = models.NoticeApproved
	}
	n.ReviewedBy = session.UserID
	n.UpdatedAt = s.now()
	patch := map[string]any{"status": string(n.Status), "reviewed_by": n.ReviewedBy, "updated_at": n.UpdatedAt}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, gatewayError(err, noticeNotFound)
	}
	notifyChange(ctx, s.changes)
	s.logger.Info("notice reviewed", zap.String("id", id), zap.String("status", string(n.Status)))
	return n, nil
}

// Delete removes a notice. Only the author or an admin may delete.
func (s *NoticeService) Delete(ctx context.Context, session models.Session, id string) error {
	if !session.IsAdmin() {
		n, err := s.repo.FetchByID(ctx, id)
		if err != nil {
			return gatewayError(err, noticeNotFound)
		}
		if n.AuthorID != session.UserID {
			return forbidden("only the author can delete this notice")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, noticeNotFound)
	}
	notifyChange(ctx, s.changes)
	return nil
}

func (s *NoticeService) builder(session models.Session, existing *models.Notice) func(models.NoticeInput) (models.Notice, error) {
	return func(in models.NoticeInput) (models.Notice, error) {
		if err := viewstate.Validate(s.validator, in, "invalid notice payload"); err != nil {
			return models.Notice{}, err
		}
		target := strings.TrimSpace(in.TargetClass)
		if target == "" || strings.EqualFold(target, models.NoticeAllClasses) || target == models.AllClasses {
			target = models.NoticeAllClasses
		}
		priority := in.Priority
		if priority == "" {
			priority = models.NoticePriorityNormal
		}
		status := models.NoticePending
		switch {
		case in.Draft:
			status = models.NoticeDraft
		case session.IsAdmin():
			status = models.NoticeApproved
		}
		now := s.now()
		n := models.Notice{
			Title:       strings.TrimSpace(in.Title),
			Content:     strings.TrimSpace(in.Content),
			TargetClass: target,
			Priority:    priority,
			Status:      status,
			AuthorID:    session.UserID,
			AuthorName:  session.Name,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if existing != nil {
			n.ID = existing.ID
			n.AuthorID = existing.AuthorID
			n.AuthorName = existing.AuthorName
			n.CreatedAt = existing.CreatedAt
		}
		return n, nil
	}
}
