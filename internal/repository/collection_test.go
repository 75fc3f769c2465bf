package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

func TestCollectionInjectsDocumentID(t *testing.T) {
	gw := docstore.NewMemory()
	schedules := NewScheduleRepository(gw)
	ctx := context.Background()

	id, err := schedules.Add(ctx, models.Schedule{ID: "client-side", Title: "Sports day", ClassName: "Class 1"})
	require.NoError(t, err)
	assert.NotEqual(t, "client-side", id)

	got, err := schedules.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Sports day", got.Title)

	byClass, err := schedules.ForClass(ctx, "Class 1")
	require.NoError(t, err)
	require.Len(t, byClass, 1)
	assert.Equal(t, id, byClass[0].ID)
}

func TestCollectionDecodesLegacyFees(t *testing.T) {
	gw := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, gw.Set(ctx, models.CollectionFees, "f1",
		json.RawMessage(`{"studentId":"all","className":"Class 1","amount":50,"status":"Pending"}`)))
	require.NoError(t, gw.Set(ctx, models.CollectionFees, "f2",
		json.RawMessage(`{"student_id":"s9","amount":20,"status":"Paid"}`)))

	fees, err := NewFeeRepository(gw).FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, fees, 2)

	assert.Equal(t, "f1", fees[0].ID)
	class, ok := fees[0].Target.ClassName()
	assert.True(t, ok)
	assert.Equal(t, "Class 1", class)

	assert.Equal(t, "f2", fees[1].ID)
	student, ok := fees[1].Target.StudentID()
	assert.True(t, ok)
	assert.Equal(t, "s9", student)
}

func TestCollectionReplaceRequiresExisting(t *testing.T) {
	repo := NewFeeRepository(docstore.NewMemory())
	ctx := context.Background()

	err := repo.Replace(ctx, models.Fee{ID: "missing", Amount: 10})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	id, err := repo.Add(ctx, models.Fee{StudentName: "Ade", Target: models.Individual("s1"), Amount: 10, Status: models.FeePending})
	require.NoError(t, err)
	require.NoError(t, repo.Replace(ctx, models.Fee{ID: id, StudentName: "Ade", Target: models.ClassWide("Class 2"), Amount: 15, Status: models.FeePending}))
	require.NoError(t, repo.SetStatus(ctx, id, models.FeePaid))

	got, err := repo.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 15.0, got.Amount)
	assert.Equal(t, models.FeePaid, got.Status)
	assert.Equal(t, "Class 2", got.ClassLabel())

	paid, err := repo.ByStatus(ctx, models.FeePaid)
	require.NoError(t, err)
	assert.Len(t, paid, 1)
}

func TestStreamDecodesSnapshots(t *testing.T) {
	gw := docstore.NewMemory()
	notices := NewNoticeRepository(gw)
	ctx := context.Background()

	stream, err := notices.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	first := <-stream.Updates()
	require.NoError(t, first.Err)
	assert.Empty(t, first.Items)

	id, err := notices.Add(ctx, models.Notice{Title: "Exams", Status: models.NoticeApproved})
	require.NoError(t, err)

	select {
	case snap := <-stream.Updates():
		require.NoError(t, snap.Err)
		require.Len(t, snap.Items, 1)
		assert.Equal(t, id, snap.Items[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after add")
	}

	stream.Close()
	stream.Close()
	_, ok := <-stream.Updates()
	assert.False(t, ok)
}

func TestUndecodableDocumentsAreSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	gw := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, gw.Set(ctx, models.CollectionFees, "bad", json.RawMessage(`{"target":{"kind":"bogus"}}`)))
	fees := NewFeeRepository(gw)
	goodID, err := fees.Add(ctx, models.Fee{StudentName: "Amina", Target: models.Individual("s-1"), Amount: 10, DueDate: "2024-05-01", Status: models.FeePending})
	require.NoError(t, err)

	all, err := fees.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, goodID, all[0].ID)

	stream, err := fees.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	snap := <-stream.Updates()
	require.NoError(t, snap.Err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, goodID, snap.Items[0].ID)

	skipped := logs.FilterMessage("skipping undecodable document").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, "bad", skipped[0].ContextMap()["id"])
	assert.Equal(t, models.CollectionFees, skipped[0].ContextMap()["collection"])
}

func TestStreamDeliversNothingAfterClose(t *testing.T) {
	gw := docstore.NewMemory()
	notices := NewNoticeRepository(gw)
	ctx := context.Background()

	stream, err := notices.Subscribe(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := notices.Add(ctx, models.Notice{Title: "Exams", Status: models.NoticeApproved})
		require.NoError(t, err)
	}

	stream.Close()
	_, ok := <-stream.Updates()
	assert.False(t, ok)
}

func TestPersonRepositoryRoutesByType(t *testing.T) {
	gw := docstore.NewMemory()
	people := NewPersonRepository(gw)
	ctx := context.Background()

	sid, err := people.Create(ctx, models.Person{ID: "uid-1", Type: models.PersonStudent, FirstName: "Amina", Email: "amina@example.com", ClassName: "Class 1"})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", sid)
	_, err = people.Create(ctx, models.Person{Type: models.PersonTeacher, FirstName: "Bola", Email: "bola@example.com"})
	require.NoError(t, err)

	students, err := people.List(ctx, models.PersonStudent)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.PersonStudent, students[0].Type)

	teacherDocs, err := gw.FetchAll(ctx, models.CollectionTeachers)
	require.NoError(t, err)
	assert.Len(t, teacherDocs, 1)

	found, err := people.FindByEmail(ctx, models.PersonStudent, "amina@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", found.ID)

	_, err = people.FindByEmail(ctx, models.PersonStaff, "amina@example.com")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = people.List(ctx, models.PersonType("alumni"))
	assert.ErrorIs(t, err, docstore.ErrInvalidDocument)

	require.NoError(t, people.Delete(ctx, models.PersonStudent, "uid-1"))
	_, err = people.Get(ctx, models.PersonStudent, "uid-1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestAttendanceMarkOverwritesSameDay(t *testing.T) {
	repo := NewAttendanceRepository(docstore.NewMemory())
	ctx := context.Background()

	rec := models.AttendanceRecord{PersonID: "s1", PersonType: models.PersonStudent, Date: "2024-03-04", Option: models.AttendanceAbsent}
	saved, err := repo.Mark(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04_student_s1", saved.ID)

	rec.Option = models.AttendancePresent
	_, err = repo.Mark(ctx, rec)
	require.NoError(t, err)
	_, err = repo.Mark(ctx, models.AttendanceRecord{PersonID: "s1", PersonType: models.PersonStudent, Date: "2024-04-01", Option: models.AttendancePresent})
	require.NoError(t, err)

	day, err := repo.ForDate(ctx, models.PersonStudent, "2024-03-04")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, models.AttendancePresent, day[0].Option)

	march, err := repo.ForMonth(ctx, models.PersonStudent, "2024-03")
	require.NoError(t, err)
	assert.Len(t, march, 1)
}

func TestMessageConversationBothDirections(t *testing.T) {
	repo := NewMessageRepository(docstore.NewMemory())
	ctx := context.Background()
	for _, m := range []models.Message{
		{SenderID: "a", ReceiverID: "b", Body: "hi"},
		{SenderID: "b", ReceiverID: "a", Body: "hello"},
		{SenderID: "a", ReceiverID: "c", Body: "other"},
	} {
		_, err := repo.Add(ctx, m)
		require.NoError(t, err)
	}
	conv, err := repo.Conversation(ctx, "a", "b")
	require.NoError(t, err)
	assert.Len(t, conv, 2)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	repo := NewUserRepository(docstore.NewMemory())
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.User{ID: "uid-1", Email: "admin@example.com", Role: models.RoleAdmin, Active: true}))

	user, err := repo.FindByEmail(ctx, " Admin@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.ID)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, "uid-1", now))
	user, err = repo.FetchByID(ctx, "uid-1")
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.True(t, now.Equal(*user.LastLogin))

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPhotoRepositorySave(t *testing.T) {
	gw := docstore.NewMemory()
	people := NewPersonRepository(gw)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	photos := NewPhotoRepository(files, people, 16)
	ctx := context.Background()

	id, err := people.Create(ctx, models.Person{Type: models.PersonStudent, FirstName: "Amina"})
	require.NoError(t, err)

	stored, err := photos.Save(ctx, models.PersonStudent, id, ".jpg", strings.NewReader("tiny"))
	require.NoError(t, err)
	assert.Equal(t, "photos/students/"+id+".jpg", stored)

	p, err := people.Get(ctx, models.PersonStudent, id)
	require.NoError(t, err)
	assert.Equal(t, stored, p.ProfilePhoto)

	_, err = photos.Save(ctx, models.PersonStudent, id, ".jpg", strings.NewReader(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, storage.ErrTooLarge)

	_, err = photos.Save(ctx, models.PersonStudent, "ghost", ".jpg", strings.NewReader("tiny"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCacheRepositoryWithoutRedis(t *testing.T) {
	cache := NewCacheRepository(nil, "schmng", nil)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, cache.Get(ctx, "dashboard", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, cache.Set(ctx, "dashboard", map[string]int{"students": 1}, time.Minute))
	assert.NoError(t, cache.Delete(ctx, "dashboard"))
	assert.NoError(t, cache.DeleteByPattern(ctx, "*"))
	assert.NoError(t, cache.Ping(ctx))
}
