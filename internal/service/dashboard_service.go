package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
)

const dashboardCacheKey = "dashboard:summary"

type dashboardPeople interface {
	List(ctx context.Context, t models.PersonType) ([]models.Person, error)
}

type dashboardFees interface {
	ByStatus(ctx context.Context, status models.FeeStatus) ([]models.Fee, error)
}

type dashboardNotices interface {
	ByStatus(ctx context.Context, status models.NoticeStatus) ([]models.Notice, error)
}

type dashboardLeaves interface {
	ByStatus(ctx context.Context, status models.LeaveStatus) ([]models.LeaveApplication, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	People   dashboardPeople
	Fees     dashboardFees
	Notices  dashboardNotices
	Leaves   dashboardLeaves
	Cache    *CacheService
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// DashboardService composes counts across collections and caches the result.
type DashboardService struct {
	people  dashboardPeople
	fees    dashboardFees
	notices dashboardNotices
	leaves  dashboardLeaves
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		people:  params.People,
		fees:    params.Fees,
		notices: params.Notices,
		leaves:  params.Leaves,
		cache:   params.Cache,
		ttl:     ttl,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the dashboard counts and whether they came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	summary, hit, err := remember(ctx, s.cache, dashboardCacheKey, s.ttl, s.compose)
	if err != nil {
		return nil, false, err
	}
	return &summary, hit, nil
}

// Invalidate drops the cached summary. Safe on a nil receiver.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (models.DashboardSummary, error) {
	summary := models.DashboardSummary{GeneratedAt: s.now()}

	counts := map[models.PersonType]*int{
		models.PersonStudent: &summary.Students,
		models.PersonTeacher: &summary.Teachers,
		models.PersonStaff:   &summary.Staff,
	}
	for t, dst := range counts {
		people, err := s.people.List(ctx, t)
		if err != nil {
			return models.DashboardSummary{}, gatewayError(err, "people not found")
		}
		*dst = len(people)
	}

	fees, err := s.fees.ByStatus(ctx, models.FeePending)
	if err != nil {
		return models.DashboardSummary{}, gatewayError(err, feeNotFound)
	}
	summary.PendingFees = len(fees)
	for _, f := range fees {
		summary.PendingAmount += f.Amount
	}

	notices, err := s.notices.ByStatus(ctx, models.NoticePending)
	if err != nil {
		return models.DashboardSummary{}, gatewayError(err, noticeNotFound)
	}
	summary.PendingNotices = len(notices)

	leaves, err := s.leaves.ByStatus(ctx, models.LeavePending)
	if err != nil {
		return models.DashboardSummary{}, gatewayError(err, leaveNotFound)
	}
	summary.PendingLeaves = len(leaves)

	return summary, nil
}
