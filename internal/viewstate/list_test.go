package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

type fakeSource[T models.Entity] struct {
	ch     chan repository.Snapshot[T]
	mu     sync.Mutex
	closed bool
}

func newFakeSource[T models.Entity]() *fakeSource[T] {
	return &fakeSource[T]{ch: make(chan repository.Snapshot[T])}
}

func (f *fakeSource[T]) Updates() <-chan repository.Snapshot[T] { return f.ch }

func (f *fakeSource[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSource[T]) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func studentProjector() Projector[models.Person] {
	return Projector[models.Person]{
		SearchFields: func(p models.Person) []string { return []string{p.FirstName, p.LastName, p.Email} },
		ClassOf:      func(p models.Person) string { return p.ClassName },
		Less:         func(a, b models.Person) bool { return a.FirstName < b.FirstName },
	}
}

func samplePeople() []models.Person {
	return []models.Person{
		{ID: "1", FirstName: "Zara", LastName: "Okafor", Email: "zara@example.com", ClassName: "Class 1"},
		{ID: "2", FirstName: "Ade", LastName: "Bello", Email: "ade@example.com", ClassName: "Class 2"},
		{ID: "3", FirstName: "Musa", LastName: "Adeyemi", Email: "musa@school.org", ClassName: "Class 1"},
		{ID: "4", FirstName: "Ade", LastName: "Zubair", Email: "az@example.com", ClassName: "Class 1"},
		{ID: "42", FirstName: "Chi", LastName: "Eze", Email: "chi@example.com", ClassName: "Class 3"},
	}
}

func ids(people []models.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

// states collects OnChange notifications.
type states[T models.Entity] struct {
	ch chan ListState[T]
}

func newStates[T models.Entity]() *states[T] {
	return &states[T]{ch: make(chan ListState[T], 64)}
}

func (s *states[T]) record(st ListState[T]) { s.ch <- st }

func (s *states[T]) waitFor(t *testing.T, pred func(ListState[T]) bool) ListState[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-s.ch:
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
			return ListState[T]{}
		}
	}
}

func TestProjectorFilterIsOrderedSubset(t *testing.T) {
	p := studentProjector()
	items := samplePeople()
	filters := []Filter{
		{},
		{Search: "ADE"},
		{Class: "Class 1"},
		{Search: "example", Class: "Class 1"},
		{Search: "nobody"},
		{Class: models.AllClasses, Search: "e"},
	}
	sorted := p.Apply(items, Filter{})
	require.Equal(t, []string{"2", "4", "42", "3", "1"}, ids(sorted))

	for _, f := range filters {
		got := p.Apply(items, f)
		var want []models.Person
		for _, item := range sorted {
			classOK := f.Class == "" || f.Class == models.AllClasses || item.ClassName == f.Class
			text := strings.ToLower(item.FirstName + "|" + item.LastName + "|" + item.Email)
			if classOK && strings.Contains(text, strings.ToLower(f.Search)) {
				want = append(want, item)
			}
		}
		assert.Equal(t, ids(want), ids(got), "filter %+v", f)
	}
}

func TestProjectorAllClassesMatchesEverything(t *testing.T) {
	p := studentProjector()
	items := samplePeople()
	assert.Len(t, p.Apply(items, Filter{Class: models.AllClasses}), len(items))
	assert.Empty(t, p.Apply(items, Filter{Class: "Class 9"}))
}

func TestProjectorSortIsStable(t *testing.T) {
	p := studentProjector()
	got := p.Apply(samplePeople(), Filter{Search: "ade"})
	// Both "Ade" entries keep their upstream order.
	assert.Equal(t, []string{"2", "4", "3"}, ids(got))
}

func TestClassWideFeeVisibleToEveryClassmate(t *testing.T) {
	fees := []models.Fee{
		{ID: "f1", Target: models.ClassWide("Class 1"), Amount: 100, DueDate: "2024-03-01"},
		{ID: "f2", Target: models.Individual("s2"), Amount: 40, DueDate: "2024-02-01"},
		{ID: "f3", Target: models.ClassWide("Class 2"), Amount: 70, DueDate: "2024-01-01"},
	}
	feesFor := func(student models.Person) []string {
		p := Projector[models.Fee]{
			Scope: func(f models.Fee) bool { return f.AppliesTo(student) },
			Less:  func(a, b models.Fee) bool { return a.DueDate < b.DueDate },
		}
		var out []string
		for _, f := range p.Apply(fees, Filter{}) {
			out = append(out, f.ID)
		}
		return out
	}

	assert.Equal(t, []string{"f1"}, feesFor(models.Person{ID: "s1", ClassName: "Class 1"}))
	assert.Equal(t, []string{"f2", "f1"}, feesFor(models.Person{ID: "s2", ClassName: "Class 1"}))
	assert.Equal(t, []string{"f3"}, feesFor(models.Person{ID: "s3", ClassName: "Class 2"}))
}

func TestMountFetchReady(t *testing.T) {
	rec := newStates[models.Person]()
	c := NewListController(ListConfig[models.Person]{
		Projector: studentProjector(),
		Fetch:     func(context.Context) ([]models.Person, error) { return samplePeople(), nil },
		OnChange:  rec.record,
	})
	defer c.Close()
	assert.Equal(t, ListLoading, c.State().Status)
	_, err := c.Projection(Filter{})
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, c.Mount(context.Background()))
	st, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ListReady, st.Status)

	got, err := c.Projection(Filter{Class: "Class 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "1"}, ids(got))
}

func TestMountFetchFailed(t *testing.T) {
	boom := errors.New("store unreachable")
	c := NewListController(ListConfig[models.Person]{
		Fetch: func(context.Context) ([]models.Person, error) { return nil, boom },
	})
	defer c.Close()
	require.NoError(t, c.Mount(context.Background()))
	st, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ListFailed, st.Status)
	assert.Same(t, boom, st.Err)

	_, err = c.Projection(Filter{})
	assert.Same(t, boom, err)
}

func TestReloadRefetches(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	c := NewListController(ListConfig[models.Person]{
		Fetch: func(context.Context) ([]models.Person, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return nil, errors.New("offline")
			}
			return samplePeople(), nil
		},
	})
	defer c.Close()
	require.NoError(t, c.Mount(context.Background()))
	st, _ := c.Await(context.Background())
	require.Equal(t, ListFailed, st.Status)

	require.NoError(t, c.Reload())
	st, _ = c.Await(context.Background())
	assert.Equal(t, ListReady, st.Status)
	assert.Len(t, st.Items, 5)
}

func TestEmptySnapshotIsReadyNotFailed(t *testing.T) {
	src := newFakeSource[models.Person]()
	rec := newStates[models.Person]()
	c := NewListController(ListConfig[models.Person]{
		Subscribe: func(context.Context) (Source[models.Person], error) { return src, nil },
		OnChange:  rec.record,
	})
	defer close(src.ch)
	defer c.Close()
	require.NoError(t, c.Mount(context.Background()))

	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()[:2]}
	st := rec.waitFor(t, func(s ListState[models.Person]) bool { return s.Status == ListReady })
	require.Len(t, st.Items, 2)

	src.ch <- repository.Snapshot[models.Person]{Items: []models.Person{}}
	st = rec.waitFor(t, func(s ListState[models.Person]) bool { return len(s.Items) == 0 })
	assert.Equal(t, ListReady, st.Status)
	assert.NoError(t, st.Err)
}

func TestSnapshotErrorThenRecovery(t *testing.T) {
	src := newFakeSource[models.Person]()
	rec := newStates[models.Person]()
	c := NewListController(ListConfig[models.Person]{
		Subscribe: func(context.Context) (Source[models.Person], error) { return src, nil },
		OnChange:  rec.record,
	})
	defer close(src.ch)
	defer c.Close()
	require.NoError(t, c.Mount(context.Background()))

	src.ch <- repository.Snapshot[models.Person]{Err: docstore.ErrUnavailable}
	st := rec.waitFor(t, func(s ListState[models.Person]) bool { return s.Status == ListFailed })
	assert.ErrorIs(t, st.Err, docstore.ErrUnavailable)

	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}
	st = rec.waitFor(t, func(s ListState[models.Person]) bool { return s.Status == ListReady })
	assert.Len(t, st.Items, 5)
}

func TestSubscribeErrorFails(t *testing.T) {
	c := NewListController(ListConfig[models.Person]{
		Subscribe: func(context.Context) (Source[models.Person], error) { return nil, docstore.ErrPermissionDenied },
	})
	defer c.Close()
	assert.ErrorIs(t, c.Mount(context.Background()), docstore.ErrPermissionDenied)
	assert.Equal(t, ListFailed, c.State().Status)
}

func readyController(t *testing.T, del func(context.Context, string) error) (*ListController[models.Person], *states[models.Person]) {
	t.Helper()
	rec := newStates[models.Person]()
	c := NewListController(ListConfig[models.Person]{
		Fetch:    func(context.Context) ([]models.Person, error) { return samplePeople(), nil },
		Delete:   del,
		OnChange: rec.record,
	})
	require.NoError(t, c.Mount(context.Background()))
	_, err := c.Await(context.Background())
	require.NoError(t, err)
	return c, rec
}

func TestOptimisticDeleteRemovesBeforeConfirmation(t *testing.T) {
	release := make(chan struct{})
	c, _ := readyController(t, func(ctx context.Context, id string) error {
		<-release
		return nil
	})
	defer c.Close()

	done := c.Delete(context.Background(), "42")
	st := c.State()
	assert.Equal(t, ListReady, st.Status)
	assert.NotContains(t, ids(st.Items), "42")
	assert.Equal(t, []string{"42"}, st.Pending)

	close(release)
	require.NoError(t, <-done)
	st = c.State()
	assert.NotContains(t, ids(st.Items), "42")
	assert.Empty(t, st.Pending)
	assert.NoError(t, st.ActionErr)
}

func TestDeleteFailureRollsBack(t *testing.T) {
	denied := errors.New("permission denied")
	c, _ := readyController(t, func(context.Context, string) error { return denied })
	defer c.Close()

	before := ids(c.State().Items)
	err := <-c.Delete(context.Background(), "3")
	assert.Same(t, denied, err)

	st := c.State()
	assert.Equal(t, before, ids(st.Items))
	assert.Empty(t, st.Pending)
	assert.Same(t, denied, st.ActionErr)
}

func TestDeleteGuards(t *testing.T) {
	loading := NewListController(ListConfig[models.Person]{
		Fetch:  func(ctx context.Context) ([]models.Person, error) { <-ctx.Done(); return nil, ctx.Err() },
		Delete: func(context.Context, string) error { return nil },
	})
	assert.ErrorIs(t, <-loading.Delete(context.Background(), "1"), ErrNotReady)
	loading.Close()
	assert.ErrorIs(t, <-loading.Delete(context.Background(), "1"), ErrClosed)

	c, _ := readyController(t, func(context.Context, string) error { return nil })
	defer c.Close()
	assert.ErrorIs(t, <-c.Delete(context.Background(), "missing"), ErrUnknownItem)
}

func TestPendingDeleteSurvivesSnapshot(t *testing.T) {
	src := newFakeSource[models.Person]()
	rec := newStates[models.Person]()
	release := make(chan error)
	c := NewListController(ListConfig[models.Person]{
		Subscribe: func(context.Context) (Source[models.Person], error) { return src, nil },
		Delete:    func(context.Context, string) error { return <-release },
		OnChange:  rec.record,
	})
	defer close(src.ch)
	defer c.Close()
	require.NoError(t, c.Mount(context.Background()))

	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}
	rec.waitFor(t, func(s ListState[models.Person]) bool { return s.Status == ListReady })

	done := c.Delete(context.Background(), "42")
	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}
	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}
	st := c.State()
	assert.Len(t, st.Items, 4)
	assert.NotContains(t, ids(st.Items), "42")
	assert.Equal(t, []string{"42"}, st.Pending)

	release <- errors.New("network down")
	<-done
	assert.Contains(t, ids(c.State().Items), "42")
}

func TestTeardownIgnoresLateEvents(t *testing.T) {
	src := newFakeSource[models.Person]()
	var mu sync.Mutex
	changes := 0
	release := make(chan struct{})
	c := NewListController(ListConfig[models.Person]{
		Subscribe: func(context.Context) (Source[models.Person], error) { return src, nil },
		Delete: func(context.Context, string) error {
			<-release
			return errors.New("late failure")
		},
		OnChange: func(ListState[models.Person]) {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	})
	require.NoError(t, c.Mount(context.Background()))
	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}
	src.ch <- repository.Snapshot[models.Person]{Items: samplePeople()}

	done := c.Delete(context.Background(), "1")
	c.Close()
	c.Close()
	assert.True(t, src.isClosed())

	mu.Lock()
	seen := changes
	mu.Unlock()
	before := c.State()

	// Two sends guarantee the first late snapshot has been fully handled.
	src.ch <- repository.Snapshot[models.Person]{Items: nil}
	src.ch <- repository.Snapshot[models.Person]{Err: errors.New("late error")}
	close(release)
	<-done
	close(src.ch)

	mu.Lock()
	assert.Equal(t, seen, changes)
	mu.Unlock()
	assert.Equal(t, before, c.State())
	assert.ErrorIs(t, c.Mount(context.Background()), ErrClosed)
}

func TestTeardownInFlightFetchIsNoop(t *testing.T) {
	release := make(chan struct{})
	c := NewListController(ListConfig[models.Person]{
		Fetch: func(context.Context) ([]models.Person, error) {
			<-release
			return samplePeople(), nil
		},
	})
	require.NoError(t, c.Mount(context.Background()))
	c.Close()
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ListLoading, c.State().Status)
	assert.Empty(t, c.State().Items)
}

func TestSubscribeOverMemoryGateway(t *testing.T) {
	gw := docstore.NewMemory()
	people := repository.NewPersonRepository(gw)
	ctx := context.Background()
	_, err := people.Create(ctx, models.Person{ID: "s1", Type: models.PersonStudent, FirstName: "Amina", ClassName: "Class 1"})
	require.NoError(t, err)

	rec := newStates[models.Person]()
	c := NewListController(ListConfig[models.Person]{
		Projector: studentProjector(),
		Subscribe: func(ctx context.Context) (Source[models.Person], error) {
			s, err := people.Subscribe(ctx, models.PersonStudent)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Delete: func(ctx context.Context, id string) error {
			return people.Delete(ctx, models.PersonStudent, id)
		},
		OnChange: rec.record,
	})
	require.NoError(t, c.Mount(ctx))
	rec.waitFor(t, func(s ListState[models.Person]) bool { return s.Status == ListReady && len(s.Items) == 1 })

	_, err = people.Create(ctx, models.Person{ID: "s2", Type: models.PersonStudent, FirstName: "Bayo", ClassName: "Class 2"})
	require.NoError(t, err)
	rec.waitFor(t, func(s ListState[models.Person]) bool { return len(s.Items) == 2 })

	require.NoError(t, <-c.Delete(ctx, "s1"))
	st := rec.waitFor(t, func(s ListState[models.Person]) bool { return len(s.Items) == 1 && len(s.Pending) == 0 })
	assert.Equal(t, "s2", st.Items[0].ID)

	c.Close()
	assert.Eventually(t, func() bool { return gw.Watchers() == 0 }, time.Second, 10*time.Millisecond)
	before := c.State()
	require.NoError(t, gw.Set(ctx, models.CollectionStudents, "s3", json.RawMessage(`{"first_name":"Late"}`)))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, c.State())
}
