package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

type attendanceRepository interface {
	Mark(ctx context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error)
	ForDate(ctx context.Context, personType models.PersonType, date string) ([]models.AttendanceRecord, error)
	ForMonth(ctx context.Context, personType models.PersonType, month string) ([]models.AttendanceRecord, error)
}

// AttendanceService records daily attendance sheets.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// Mark writes one record per entry. Re-marking a person on the same day overwrites the
// earlier mark.
func (s *AttendanceService) Mark(ctx context.Context, session models.Session, in models.AttendanceInput) ([]models.AttendanceRecord, error) {
	if err := viewstate.Validate(s.validator, in, "invalid attendance sheet"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(in.Entries))
	for i, entry := range in.Entries {
		if seen[entry.PersonID] {
			return nil, appErrors.Validation("invalid attendance sheet", map[string]string{
				"entries[" + strconv.Itoa(i) + "].person_id": "is listed twice",
			})
		}
		seen[entry.PersonID] = true
	}

	records := make([]models.AttendanceRecord, 0, len(in.Entries))
	for _, entry := range in.Entries {
		rec, err := s.repo.Mark(ctx, models.AttendanceRecord{
			PersonID:   entry.PersonID,
			PersonType: in.PersonType,
			ClassName:  in.ClassName,
			Date:       in.Date,
			Option:     entry.Option,
			MarkedBy:   session.UserID,
		})
		if err != nil {
			return records, gatewayError(err, "attendance record not found")
		}
		records = append(records, rec)
	}
	s.logger.Info("attendance marked",
		zap.String("type", string(in.PersonType)),
		zap.String("date", in.Date),
		zap.Int("entries", len(records)),
	)
	return records, nil
}

// ForDate lists the marks of one day, optionally narrowed to a class.
func (s *AttendanceService) ForDate(ctx context.Context, personType models.PersonType, date, className string) ([]models.AttendanceRecord, error) {
	if !personType.Valid() {
		return nil, appErrors.Validation("invalid attendance filter", map[string]string{"person_type": "must be one of: student, teacher, staff"})
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, appErrors.Validation("invalid attendance filter", map[string]string{"date": "must be a date formatted 2006-01-02"})
	}
	records, err := s.repo.ForDate(ctx, personType, date)
	if err != nil {
		return nil, gatewayError(err, "attendance not found")
	}
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if models.MatchesClass(className, rec.ClassName) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

// MonthlySummary counts each option per person for month (yyyy-MM).
func (s *AttendanceService) MonthlySummary(ctx context.Context, personType models.PersonType, month string) ([]models.AttendanceSummary, error) {
	if !personType.Valid() {
		return nil, appErrors.Validation("invalid attendance filter", map[string]string{"person_type": "must be one of: student, teacher, staff"})
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, appErrors.Validation("invalid attendance filter", map[string]string{"month": "must be a date formatted 2006-01"})
	}
	records, err := s.repo.ForMonth(ctx, personType, month)
	if err != nil {
		return nil, gatewayError(err, "attendance not found")
	}
	byPerson := map[string]*models.AttendanceSummary{}
	for _, rec := range records {
		sum, ok := byPerson[rec.PersonID]
		if !ok {
			sum = &models.AttendanceSummary{PersonID: rec.PersonID}
			byPerson[rec.PersonID] = sum
		}
		switch rec.Option {
		case models.AttendancePresent:
			sum.Present++
		case models.AttendanceAbsent:
			sum.Absent++
		case models.AttendancePermission:
			sum.Permission++
		}
	}
	out := make([]models.AttendanceSummary, 0, len(byPerson))
	for _, sum := range byPerson {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}
