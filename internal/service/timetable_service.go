package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const timetableNotFound = "timetable entry not found"

type timetableRepository interface {
	FetchAll(ctx context.Context) ([]models.Timetable, error)
	FetchByID(ctx context.Context, id string) (*models.Timetable, error)
	FindSlot(ctx context.Context, classGrade string, day models.Weekday, slot string) ([]models.Timetable, error)
	Add(ctx context.Context, t models.Timetable) (string, error)
	Replace(ctx context.Context, t models.Timetable) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.Timetable], error)
}

// TimetableQuery filters the weekly timetable.
type TimetableQuery struct {
	Search  string `form:"search"`
	Class   string `form:"class"`
	Day     string `form:"day"`
	Teacher string `form:"teacher"`
}

// TimetableService manages recurring lesson slots and prevents double-booking.
type TimetableService struct {
	repo      timetableRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo timetableRepository, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, validator: validate, logger: logger}
}

// lessBySlot orders by school day, then by parsed slot start. Parseable slots come before
// unparseable ones, which compare lexically.
func lessBySlot(a, b models.Timetable) bool {
	if da, db := a.DayOfWeek.Index(), b.DayOfWeek.Index(); da != db {
		return da < db
	}
	sa, okA := models.SlotStart(a.TimeSlot)
	sb, okB := models.SlotStart(b.TimeSlot)
	switch {
	case okA && okB:
		return sa < sb
	case okA != okB:
		return okA
	default:
		return a.TimeSlot < b.TimeSlot
	}
}

func (s *TimetableService) listConfig(q TimetableQuery) (viewstate.ListConfig[models.Timetable], error) {
	var day models.Weekday
	if strings.TrimSpace(q.Day) != "" {
		parsed, ok := models.ParseWeekday(q.Day)
		if !ok {
			return viewstate.ListConfig[models.Timetable]{}, appErrors.Validation("invalid timetable filter", map[string]string{"day": "must be a school day"})
		}
		day = parsed
	}
	teacher := strings.ToLower(strings.TrimSpace(q.Teacher))
	return viewstate.ListConfig[models.Timetable]{
		Projector: viewstate.Projector[models.Timetable]{
			SearchFields: func(t models.Timetable) []string { return []string{t.Subject, t.Teacher, t.RoomNumber} },
			ClassOf:      func(t models.Timetable) string { return t.ClassGrade },
			Scope: func(t models.Timetable) bool {
				if day != "" && t.DayOfWeek != day {
					return false
				}
				return teacher == "" || strings.ToLower(t.Teacher) == teacher
			},
			Less: lessBySlot,
		},
		Fetch:     s.repo.FetchAll,
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Timetable], error) { return s.repo.Subscribe(ctx) }),
		Delete:    s.repo.Delete,
		Logger:    s.logger,
	}, nil
}

// List returns the filtered timetable in lesson order.
func (s *TimetableService) List(ctx context.Context, q TimetableQuery) ([]models.Timetable, error) {
	cfg, err := s.listConfig(q)
	if err != nil {
		return nil, err
	}
	return fetchList(ctx, cfg, viewstate.Filter{Search: q.Search, Class: q.Class}, timetableNotFound)
}

// Watch opens the live timetable.
func (s *TimetableService) Watch(ctx context.Context, q TimetableQuery) (*ListWatch[models.Timetable], error) {
	cfg, err := s.listConfig(q)
	if err != nil {
		return nil, err
	}
	return watchList(ctx, cfg, viewstate.Filter{Search: q.Search, Class: q.Class}, timetableNotFound)
}

// Get returns one entry.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	t, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, timetableNotFound)
	}
	return t, nil
}

// Create validates in, checks the slot is free and stores the entry.
func (s *TimetableService) Create(ctx context.Context, in models.TimetableInput) (*models.Timetable, error) {
	t, err := submitForm(ctx, s.logger, in, s.builder(""), func(ctx context.Context, t models.Timetable) (models.Timetable, error) {
		if err := s.ensureNoConflict(ctx, t); err != nil {
			return t, err
		}
		id, err := s.repo.Add(ctx, t)
		t.ID = id
		return t, err
	}, timetableNotFound)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update replaces an entry; moving it onto an occupied slot fails with a conflict.
func (s *TimetableService) Update(ctx context.Context, id string, in models.TimetableInput) (*models.Timetable, error) {
	t, err := submitForm(ctx, s.logger, in, s.builder(id), func(ctx context.Context, t models.Timetable) (models.Timetable, error) {
		if err := s.ensureNoConflict(ctx, t); err != nil {
			return t, err
		}
		return t, s.repo.Replace(ctx, t)
	}, timetableNotFound)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes an entry.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, timetableNotFound)
	}
	return nil
}

func (s *TimetableService) ensureNoConflict(ctx context.Context, t models.Timetable) error {
	if !t.IsActive {
		return nil
	}
	taken, err := s.repo.FindSlot(ctx, t.ClassGrade, t.DayOfWeek, t.TimeSlot)
	if err != nil {
		return err
	}
	for _, other := range taken {
		if other.ID != t.ID {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s already has %s on %s at %s", t.ClassGrade, other.Subject, t.DayOfWeek, t.TimeSlot))
		}
	}
	return nil
}

func (s *TimetableService) builder(id string) func(models.TimetableInput) (models.Timetable, error) {
	return func(in models.TimetableInput) (models.Timetable, error) {
		const message = "invalid timetable payload"
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			return models.Timetable{}, err
		}
		day, ok := models.ParseWeekday(in.DayOfWeek)
		if !ok {
			return models.Timetable{}, appErrors.Validation(message, map[string]string{"day_of_week": "must be a school day"})
		}
		active := true
		if in.IsActive != nil {
			active = *in.IsActive
		}
		return models.Timetable{
			ID:         id,
			ClassGrade: strings.TrimSpace(in.ClassGrade),
			DayOfWeek:  day,
			TimeSlot:   strings.TrimSpace(in.TimeSlot),
			Subject:    strings.TrimSpace(in.Subject),
			Teacher:    strings.TrimSpace(in.Teacher),
			RoomNumber: strings.TrimSpace(in.RoomNumber),
			IsActive:   active,
		}, nil
	}
}
