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
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const classEventNotFound = "class event not found"

type classEventRepository interface {
	ForClass(ctx context.Context, className string) ([]models.ClassEvent, error)
	SubscribeClass(ctx context.Context, className string) (*repository.Stream[models.ClassEvent], error)
	ByCreator(ctx context.Context, userID string) ([]models.ClassEvent, error)
	FetchByID(ctx context.Context, id string) (*models.ClassEvent, error)
	Add(ctx context.Context, e models.ClassEvent) (string, error)
	Replace(ctx context.Context, e models.ClassEvent) error
	Delete(ctx context.Context, id string) error
}

// ClassEventService lets teachers post events for a class and students follow their own.
type ClassEventService struct {
	repo      classEventRepository
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewClassEventService constructs the class event service.
func NewClassEventService(repo classEventRepository, students studentLookup, validate *validator.Validate, logger *zap.Logger) *ClassEventService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassEventService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func isActiveEvent(e models.ClassEvent) bool {
	return e.Status == "" || e.Status == models.EventActive
}

func newestEventFirst(a, b models.ClassEvent) bool { return a.EventDate.After(b.EventDate) }

func (s *ClassEventService) listConfig(session models.Session, className string, scope func(models.ClassEvent) bool, less func(a, b models.ClassEvent) bool) viewstate.ListConfig[models.ClassEvent] {
	return viewstate.ListConfig[models.ClassEvent]{
		Projector: viewstate.Projector[models.ClassEvent]{
			SearchFields: func(e models.ClassEvent) []string { return []string{e.Title, e.Description, e.Type} },
			Scope:        scope,
			Less:         less,
		},
		Fetch: func(ctx context.Context) ([]models.ClassEvent, error) { return s.repo.ForClass(ctx, className) },
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.ClassEvent], error) {
			return s.repo.SubscribeClass(ctx, className)
		}),
		Delete: func(ctx context.Context, id string) error { return s.remove(ctx, session, id) },
		Logger: s.logger,
	}
}

// resolveClass pins students to their own class. Everyone else must name one.
func (s *ClassEventService) resolveClass(ctx context.Context, session models.Session, requested string) (string, error) {
	if session.Role == models.RoleStudent {
		student, err := s.students.CurrentStudent(ctx, session)
		if err != nil {
			return "", err
		}
		return student.ClassName, nil
	}
	className := models.NormalizeClassName(requested)
	if className == "" || strings.TrimSpace(requested) == models.AllClasses {
		return "", appErrors.Validation("invalid class event query", map[string]string{"class": "is required"})
	}
	return className, nil
}

// ForClass returns the active events of a class, newest first.
func (s *ClassEventService) ForClass(ctx context.Context, session models.Session, q models.ClassEventQuery) ([]models.ClassEvent, error) {
	className, err := s.resolveClass(ctx, session, q.Class)
	if err != nil {
		return nil, err
	}
	return fetchList(ctx, s.listConfig(session, className, isActiveEvent, newestEventFirst), viewstate.Filter{Search: q.Search}, classEventNotFound)
}

// Upcoming returns the active events of a class that have not started yet, soonest first.
func (s *ClassEventService) Upcoming(ctx context.Context, session models.Session, q models.ClassEventQuery) ([]models.ClassEvent, error) {
	className, err := s.resolveClass(ctx, session, q.Class)
	if err != nil {
		return nil, err
	}
	now := s.now()
	scope := func(e models.ClassEvent) bool { return isActiveEvent(e) && e.EventDate.After(now) }
	soonest := func(a, b models.ClassEvent) bool { return a.EventDate.Before(b.EventDate) }
	return fetchList(ctx, s.listConfig(session, className, scope, soonest), viewstate.Filter{Search: q.Search}, classEventNotFound)
}

// Watch opens the live event list of a class.
func (s *ClassEventService) Watch(ctx context.Context, session models.Session, q models.ClassEventQuery) (*ListWatch[models.ClassEvent], error) {
	className, err := s.resolveClass(ctx, session, q.Class)
	if err != nil {
		return nil, err
	}
	return watchList(ctx, s.listConfig(session, className, isActiveEvent, newestEventFirst), viewstate.Filter{Search: q.Search}, classEventNotFound)
}

// Mine returns every event the caller posted, in any status, newest first.
func (s *ClassEventService) Mine(ctx context.Context, session models.Session) ([]models.ClassEvent, error) {
	cfg := s.listConfig(session, "", nil, newestEventFirst)
	cfg.Fetch = func(ctx context.Context) ([]models.ClassEvent, error) { return s.repo.ByCreator(ctx, session.UserID) }
	return fetchList(ctx, cfg, viewstate.Filter{}, classEventNotFound)
}

// Get returns one event. Students only see the events of their class.
func (s *ClassEventService) Get(ctx context.Context, session models.Session, id string) (*models.ClassEvent, error) {
	e, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, classEventNotFound)
	}
	if session.Role == models.RoleStudent {
		className, err := s.resolveClass(ctx, session, "")
		if err != nil {
			return nil, err
		}
		if e.TargetClass != className {
			return nil, appErrors.Clone(appErrors.ErrNotFound, classEventNotFound)
		}
	}
	return e, nil
}

// Create posts a new event authored by the caller.
func (s *ClassEventService) Create(ctx context.Context, session models.Session, in models.ClassEventInput) (*models.ClassEvent, error) {
	e, err := submitForm(ctx, s.logger, in, s.builder(session, "", nil), func(ctx context.Context, e models.ClassEvent) (models.ClassEvent, error) {
		id, err := s.repo.Add(ctx, e)
		e.ID = id
		return e, err
	}, classEventNotFound)
	if err != nil {
		return nil, err
	}
	s.logger.Info("class event posted", zap.String("class", e.TargetClass), zap.String("id", e.ID))
	return &e, nil
}

// Update replaces an event. Only its author or an admin may change it.
func (s *ClassEventService) Update(ctx context.Context, session models.Session, id string, in models.ClassEventInput) (*models.ClassEvent, error) {
	existing, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, classEventNotFound)
	}
	if err := authorizeEvent(session, *existing); err != nil {
		return nil, err
	}
	e, err := submitForm(ctx, s.logger, in, s.builder(session, id, existing), func(ctx context.Context, e models.ClassEvent) (models.ClassEvent, error) {
		return e, s.repo.Replace(ctx, e)
	}, classEventNotFound)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes an event. Only its author or an admin may delete it.
func (s *ClassEventService) Delete(ctx context.Context, session models.Session, id string) error {
	return gatewayError(s.remove(ctx, session, id), classEventNotFound)
}

func (s *ClassEventService) remove(ctx context.Context, session models.Session, id string) error {
	existing, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeEvent(session, *existing); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func authorizeEvent(session models.Session, e models.ClassEvent) error {
	if session.IsAdmin() {
		return nil
	}
	if session.Role == models.RoleTeacher && e.CreatedBy == session.UserID {
		return nil
	}
	return forbidden("only the author can change this event")
}

func (s *ClassEventService) builder(session models.Session, id string, existing *models.ClassEvent) func(models.ClassEventInput) (models.ClassEvent, error) {
	return func(in models.ClassEventInput) (models.ClassEvent, error) {
		const message = "invalid class event payload"
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			return models.ClassEvent{}, err
		}
		at, err := time.Parse(time.RFC3339, in.EventDate)
		if err != nil {
			return models.ClassEvent{}, appErrors.Validation(message, map[string]string{"event_date": "must be an RFC 3339 timestamp"})
		}
		now := s.now()
		e := models.ClassEvent{
			ID:          id,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			EventDate:   at.UTC(),
			TargetClass: models.NormalizeClassName(in.TargetClass),
			CreatedBy:   session.UserID,
			Priority:    in.Priority,
			Type:        in.Type,
			Status:      in.Status,
			Attachments: in.Attachments,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if e.Priority == "" {
			e.Priority = models.EventPriorityNormal
		}
		if e.Type == "" {
			e.Type = models.EventTypeGeneral
		}
		if e.Status == "" {
			e.Status = models.EventActive
		}
		if existing != nil {
			e.CreatedBy = existing.CreatedBy
			e.CreatedAt = existing.CreatedAt
		}
		return e, nil
	}
}
