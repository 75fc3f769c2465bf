package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.deletes++
	return nil
}

func (m *memoryCache) DeleteByPattern(context.Context, string) error { return nil }

func TestDashboardServiceSummaryCachesAndInvalidates(t *testing.T) {
	gw := docstore.NewMemory()
	ctx := context.Background()
	people := repository.NewPersonRepository(gw)
	fees := repository.NewFeeRepository(gw)
	notices := repository.NewNoticeRepository(gw)
	leaves := repository.NewLeaveRepository(gw)

	_, err := people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "A", ClassName: "Class 1"})
	require.NoError(t, err)
	_, err = people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "B", ClassName: "Class 1"})
	require.NoError(t, err)
	_, err = people.Create(ctx, models.Person{Type: models.PersonTeacher, FirstName: "T"})
	require.NoError(t, err)
	_, err = fees.Add(ctx, models.Fee{StudentName: "A", Target: models.Individual("a"), Amount: 20, Status: models.FeePending})
	require.NoError(t, err)
	_, err = fees.Add(ctx, models.Fee{StudentName: "B", Target: models.ClassWide("Class 1"), Amount: 5.5, Status: models.FeePending})
	require.NoError(t, err)
	_, err = fees.Add(ctx, models.Fee{StudentName: "C", Target: models.Individual("c"), Amount: 100, Status: models.FeePaid})
	require.NoError(t, err)
	_, err = notices.Add(ctx, models.Notice{Title: "N", Status: models.NoticePending})
	require.NoError(t, err)
	_, err = leaves.Add(ctx, models.LeaveApplication{UserID: "t", Status: models.LeaveApproved})
	require.NoError(t, err)

	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewDashboardService(DashboardServiceParams{People: people, Fees: fees, Notices: notices, Leaves: leaves, Cache: cache})

	summary, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, summary.Students)
	assert.Equal(t, 1, summary.Teachers)
	assert.Equal(t, 0, summary.Staff)
	assert.Equal(t, 2, summary.PendingFees)
	assert.InDelta(t, 25.5, summary.PendingAmount, 0.001)
	assert.Equal(t, 1, summary.PendingNotices)
	assert.Equal(t, 0, summary.PendingLeaves)

	_, err = people.Create(ctx, models.Person{Type: models.PersonStaff, FirstName: "S"})
	require.NoError(t, err)

	cached, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0, cached.Staff)

	svc.Invalidate(ctx)
	assert.Equal(t, 1, cacheRepo.deletes)

	fresh, hit, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, fresh.Staff)
}

func TestDashboardServiceWithoutCache(t *testing.T) {
	gw := docstore.NewMemory()
	svc := NewDashboardService(DashboardServiceParams{
		People:  repository.NewPersonRepository(gw),
		Fees:    repository.NewFeeRepository(gw),
		Notices: repository.NewNoticeRepository(gw),
		Leaves:  repository.NewLeaveRepository(gw),
	})
	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, summary.Students)
}

func TestDashboardInvalidateNilSafe(t *testing.T) {
	var svc *DashboardService
	assert.NotPanics(t, func() { svc.Invalidate(context.Background()) })
}
