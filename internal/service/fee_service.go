package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const feeNotFound = "fee not found"

type feeRepository interface {
	FetchAll(ctx context.Context) ([]models.Fee, error)
	FetchByID(ctx context.Context, id string) (*models.Fee, error)
	Add(ctx context.Context, fee models.Fee) (string, error)
	Replace(ctx context.Context, fee models.Fee) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status models.FeeStatus) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.Fee], error)
}

// FeeQuery filters the admin fee list. Status acts as the selector.
type FeeQuery struct {
	Search string `form:"search"`
	Status string `form:"status"`
}

// FeeService manages fees and the per-student fee view.
type FeeService struct {
	repo      feeRepository
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
	changes   changeNotifier
}

// NewFeeService constructs the fee service.
func NewFeeService(repo feeRepository, students studentLookup, validate *validator.Validate, logger *zap.Logger, changes changeNotifier) *FeeService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, students: students, validator: validate, logger: logger, changes: changes}
}

func byDueDate(a, b models.Fee) bool { return a.DueDate < b.DueDate }

func (s *FeeService) listConfig(scope func(models.Fee) bool) viewstate.ListConfig[models.Fee] {
	return viewstate.ListConfig[models.Fee]{
		Projector: viewstate.Projector[models.Fee]{
			SearchFields: func(f models.Fee) []string { return []string{f.StudentName, f.Description, f.ClassLabel()} },
			ClassOf:      func(f models.Fee) string { return string(f.Status) },
			Scope:        scope,
			Less:         byDueDate,
		},
		Fetch:     s.repo.FetchAll,
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Fee], error) { return s.repo.Subscribe(ctx) }),
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

func statusSelector(status string) string {
	if strings.EqualFold(status, "all") {
		return ""
	}
	return status
}

// List returns the admin fee list sorted by due date.
func (s *FeeService) List(ctx context.Context, q FeeQuery) ([]models.Fee, error) {
	return fetchList(ctx, s.listConfig(nil), viewstate.Filter{Search: q.Search, Class: statusSelector(q.Status)}, feeNotFound)
}

// Watch opens the live admin fee list.
func (s *FeeService) Watch(ctx context.Context, q FeeQuery) (*ListWatch[models.Fee], error) {
	return watchList(ctx, s.listConfig(nil), viewstate.Filter{Search: q.Search, Class: statusSelector(q.Status)}, feeNotFound)
}

// StudentFees returns the fees owed by the calling student: their individual fees and the
// class-wide fees of their class.
func (s *FeeService) StudentFees(ctx context.Context, session models.Session, q FeeQuery) ([]models.Fee, error) {
	student, err := s.students.CurrentStudent(ctx, session)
	if err != nil {
		return nil, err
	}
	cfg := s.listConfig(func(f models.Fee) bool { return f.AppliesTo(*student) })
	cfg.Delete = nil
	return fetchList(ctx, cfg, viewstate.Filter{Search: q.Search, Class: statusSelector(q.Status)}, feeNotFound)
}

// Get returns one fee.
func (s *FeeService) Get(ctx context.Context, id string) (*models.Fee, error) {
	fee, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, gatewayError(err, feeNotFound)
	}
	return fee, nil
}

// Create validates in and stores a new fee.
func (s *FeeService) Create(ctx context.Context, in models.FeeInput) (*models.Fee, error) {
	fee, err := submitForm(ctx, s.logger, in, s.builder(""), func(ctx context.Context, f models.Fee) (models.Fee, error) {
		id, err := s.repo.Add(ctx, f)
		f.ID = id
		return f, err
	}, feeNotFound)
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &fee, nil
}

// Update replaces an existing fee.
func (s *FeeService) Update(ctx context.Context, id string, in models.FeeInput) (*models.Fee, error) {
	fee, err := submitForm(ctx, s.logger, in, s.builder(id), func(ctx context.Context, f models.Fee) (models.Fee, error) {
		return f, s.repo.Replace(ctx, f)
	}, feeNotFound)
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &fee, nil
}

// MarkPaid records a payment.
func (s *FeeService) MarkPaid(ctx context.Context, id string) error {
	if err := s.repo.SetStatus(ctx, id, models.FeePaid); err != nil {
		return gatewayError(err, feeNotFound)
	}
	notifyChange(ctx, s.changes)
	return nil
}

// Delete removes a fee.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, feeNotFound)
	}
	notifyChange(ctx, s.changes)
	return nil
}

func (s *FeeService) builder(id string) func(models.FeeInput) (models.Fee, error) {
	return func(in models.FeeInput) (models.Fee, error) {
		const message = "invalid fee payload"
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			return models.Fee{}, err
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(in.Amount), 64)
		if err != nil {
			return models.Fee{}, appErrors.Validation(message, map[string]string{"amount": "must be a number"})
		}
		if amount < 0 {
			return models.Fee{}, appErrors.Validation(message, map[string]string{"amount": "must be greater than or equal to 0"})
		}
		var target models.FeeTarget
		switch in.TargetKind {
		case models.FeeTargetClass:
			className := strings.TrimSpace(in.ClassName)
			if className == "" {
				return models.Fee{}, appErrors.Validation(message, map[string]string{"class_name": "is required"})
			}
			target = models.ClassWide(className)
		default:
			studentID := strings.TrimSpace(in.StudentID)
			if studentID == "" {
				return models.Fee{}, appErrors.Validation(message, map[string]string{"student_id": "is required"})
			}
			target = models.Individual(studentID)
		}
		status := in.Status
		if status == "" {
			status = models.FeePending
		}
		return models.Fee{
			ID:          id,
			StudentName: strings.TrimSpace(in.StudentName),
			Target:      target,
			Amount:      amount,
			DueDate:     in.DueDate,
			Status:      status,
			Description: strings.TrimSpace(in.Description),
		}, nil
	}
}
