package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

const scheduleNotFound = "schedule not found"

type scheduleRepository interface {
	FetchAll(ctx context.Context) ([]models.Schedule, error)
	FetchByID(ctx context.Context, id string) (*models.Schedule, error)
	Add(ctx context.Context, s models.Schedule) (string, error)
	Replace(ctx context.Context, s models.Schedule) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.Schedule], error)
}

// ScheduleService manages one-off class events.
type ScheduleService struct {
	repo      scheduleRepository
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleRepository, students studentLookup, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, students: students, validator: validate, logger: logger}
}

func (s *ScheduleService) listConfig(scope func(models.Schedule) bool) viewstate.ListConfig[models.Schedule] {
	return viewstate.ListConfig[models.Schedule]{
		Projector: viewstate.Projector[models.Schedule]{
			SearchFields: func(e models.Schedule) []string { return []string{e.Title, e.Description} },
			ClassOf:      func(e models.Schedule) string { return e.ClassName },
			Scope:        scope,
			Less: func(a, b models.Schedule) bool {
				if a.Date != b.Date {
					return a.Date < b.Date
				}
				return a.Time < b.Time
			},
		},
		Fetch:     s.repo.FetchAll,
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Schedule], error) { return s.repo.Subscribe(ctx) }),
		Delete:    s.repo.Delete,
		Logger:    s.logger,
	}
}

// scope limits students to the events of their own class.
func (s *ScheduleService) scope(ctx context.Context, session models.Session) (func(models.Schedule) bool, error) {
	if session.Role != models.RoleStudent || s.students == nil {
		return nil, nil
	}
	student, err := s.students.CurrentStudent(ctx, session)
	if err != nil {
		return nil, err
	}
	return func(e models.Schedule) bool { return e.ClassName == student.ClassName }, nil
}

// List returns events sorted by date and time.
func (s *ScheduleService) List(ctx context.Context, session models.Session, q ListQuery) ([]models.Schedule, error) {
	scope, err := s.scope(ctx, session)
	if err != nil {
		return nil, err
	}
	return fetchList(ctx, s.listConfig(scope), q.filter(), scheduleNotFound)
}

// Watch opens the live event list.
func (s *ScheduleService) Watch(ctx context.Context, session models.Session, q ListQuery) (*ListWatch[models.Schedule], error) {
	scope, err := s.scope(ctx, session)
	if err != nil {
		return nil, err
	}
	return watchList(ctx, s.listConfig(scope), q.filter(), scheduleNotFound)
}

// Get returns one event.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	e, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, scheduleNotFound)
	}
	return e, nil
}

// Create validates in and stores a new event.
func (s *ScheduleService) Create(ctx context.Context, in models.ScheduleInput) (*models.Schedule, error) {
	e, err := submitForm(ctx, s.logger, in, s.builder(""), func(ctx context.Context, e models.Schedule) (models.Schedule, error) {
		id, err := s.repo.Add(ctx, e)
		e.ID = id
		return e, err
	}, scheduleNotFound)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Update replaces an existing event.
func (s *ScheduleService) Update(ctx context.Context, id string, in models.ScheduleInput) (*models.Schedule, error) {
	e, err := submitForm(ctx, s.logger, in, s.builder(id), func(ctx context.Context, e models.Schedule) (models.Schedule, error) {
		return e, s.repo.Replace(ctx, e)
	}, scheduleNotFound)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes an event.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, scheduleNotFound)
	}
	return nil
}

func (s *ScheduleService) builder(id string) func(models.ScheduleInput) (models.Schedule, error) {
	return func(in models.ScheduleInput) (models.Schedule, error) {
		if err := viewstate.Validate(s.validator, in, "invalid schedule payload"); err != nil {
			return models.Schedule{}, err
		}
		status := strings.TrimSpace(in.Status)
		if status == "" {
			status = models.ScheduleStatusScheduled
		}
		return models.Schedule{
			ID:            id,
			Title:         strings.TrimSpace(in.Title),
			Description:   strings.TrimSpace(in.Description),
			Date:          in.Date,
			Time:          strings.TrimSpace(in.Time),
			ClassName:     strings.TrimSpace(in.ClassName),
			RecipientType: in.RecipientType,
			Status:        status,
		}, nil
	}
}
