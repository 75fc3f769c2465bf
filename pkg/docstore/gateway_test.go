package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) Gateway

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) Gateway { return NewMemory() },
		"bolt": func(t *testing.T) Gateway {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "store.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	}
}

func nextSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestGatewayCRUD(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			ctx := context.Background()

			id, err := gw.Add(ctx, "students", json.RawMessage(`{"id":"ignored","first_name":"Amina","class_name":"Class 1"}`))
			require.NoError(t, err)
			require.NotEmpty(t, id)

			doc, err := gw.FetchByID(ctx, "students", id)
			require.NoError(t, err)
			assert.Equal(t, id, doc.ID)
			assert.JSONEq(t, `{"first_name":"Amina","class_name":"Class 1"}`, string(doc.Data))

			require.NoError(t, gw.Update(ctx, "students", id, map[string]any{"class_name": "Class 2", "id": "nope"}))
			doc, err = gw.FetchByID(ctx, "students", id)
			require.NoError(t, err)
			assert.JSONEq(t, `{"first_name":"Amina","class_name":"Class 2"}`, string(doc.Data))

			require.NoError(t, gw.Delete(ctx, "students", id))
			_, err = gw.FetchByID(ctx, "students", id)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGatewayMissingRecords(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			ctx := context.Background()

			assert.ErrorIs(t, gw.Update(ctx, "fees", "missing", map[string]any{"status": "Paid"}), ErrNotFound)
			assert.ErrorIs(t, gw.Delete(ctx, "fees", "missing"), ErrNotFound)

			docs, err := gw.FetchAll(ctx, "fees")
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestGatewayRejectsNonObjects(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			_, err := gw.Add(context.Background(), "notices", json.RawMessage(`["not","an","object"]`))
			assert.ErrorIs(t, err, ErrInvalidDocument)
			_, err = gw.Add(context.Background(), "notices", json.RawMessage(`{broken`))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestGatewayQueryAndIdempotentFetch(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			ctx := context.Background()

			require.NoError(t, gw.Set(ctx, "timetables", "b", json.RawMessage(`{"class_grade":"Class 1","day_of_week":"Monday","is_active":true}`)))
			require.NoError(t, gw.Set(ctx, "timetables", "a", json.RawMessage(`{"class_grade":"Class 1","day_of_week":"Tuesday","is_active":true}`)))
			require.NoError(t, gw.Set(ctx, "timetables", "c", json.RawMessage(`{"class_grade":"Class 2","day_of_week":"Monday","is_active":false}`)))

			first, err := gw.FetchAll(ctx, "timetables")
			require.NoError(t, err)
			second, err := gw.FetchAll(ctx, "timetables")
			require.NoError(t, err)
			assert.Equal(t, first, second)
			require.Len(t, first, 3)
			assert.Equal(t, []string{"a", "b", "c"}, []string{first[0].ID, first[1].ID, first[2].ID})

			monday, err := gw.Query(ctx, "timetables", Where("day_of_week", "Monday"), Where("is_active", true))
			require.NoError(t, err)
			require.Len(t, monday, 1)
			assert.Equal(t, "b", monday[0].ID)
		})
	}
}

func TestGatewaySetPreservesCreatedAt(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			ctx := context.Background()

			require.NoError(t, gw.Set(ctx, "users", "uid-1", json.RawMessage(`{"email":"a@example.com"}`)))
			before, err := gw.FetchByID(ctx, "users", "uid-1")
			require.NoError(t, err)

			require.NoError(t, gw.Set(ctx, "users", "uid-1", json.RawMessage(`{"email":"b@example.com"}`)))
			after, err := gw.FetchByID(ctx, "users", "uid-1")
			require.NoError(t, err)
			assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
			assert.JSONEq(t, `{"email":"b@example.com"}`, string(after.Data))
		})
	}
}

func TestSubscriptionDeliversFullSnapshots(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			gw := factory(t)
			ctx := context.Background()

			require.NoError(t, gw.Set(ctx, "fees", "x", json.RawMessage(`{"status":"Pending"}`)))
			require.NoError(t, gw.Set(ctx, "fees", "y", json.RawMessage(`{"status":"Pending"}`)))

			sub, err := gw.Subscribe(ctx, "fees")
			require.NoError(t, err)
			defer sub.Close()

			snap := nextSnapshot(t, sub)
			require.NoError(t, snap.Err)
			assert.Len(t, snap.Documents, 2)

			require.NoError(t, gw.Delete(ctx, "fees", "x"))
			snap = nextSnapshot(t, sub)
			require.Len(t, snap.Documents, 1)
			assert.Equal(t, "y", snap.Documents[0].ID)

			require.NoError(t, gw.Delete(ctx, "fees", "y"))
			snap = nextSnapshot(t, sub)
			require.NoError(t, snap.Err)
			assert.NotNil(t, snap.Documents)
			assert.Empty(t, snap.Documents)
		})
	}
}

func TestSubscriptionFiltersByCondition(t *testing.T) {
	gw := NewMemory()
	ctx := context.Background()

	sub, err := gw.Subscribe(ctx, "notices", Where("status", "approved"))
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, nextSnapshot(t, sub).Documents)

	require.NoError(t, gw.Set(ctx, "notices", "n1", json.RawMessage(`{"status":"approved"}`)))
	snap := nextSnapshot(t, sub)
	require.Len(t, snap.Documents, 1)

	require.NoError(t, gw.Set(ctx, "notices", "n2", json.RawMessage(`{"status":"pending"}`)))
	assert.Len(t, nextSnapshot(t, sub).Documents, 1)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	gw := NewMemory()
	ctx := context.Background()

	sub, err := gw.Subscribe(ctx, "schedules")
	require.NoError(t, err)
	nextSnapshot(t, sub)
	assert.Equal(t, 1, gw.Watchers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, gw.Watchers())

	require.NoError(t, gw.Set(ctx, "schedules", "s1", json.RawMessage(`{"title":"Sports day"}`)))

	_, ok := <-sub.Updates()
	assert.False(t, ok, "no snapshot may arrive after close")
}

func TestSubscriptionsAreIndependent(t *testing.T) {
	gw := NewMemory()
	ctx := context.Background()

	a, err := gw.Subscribe(ctx, "messages")
	require.NoError(t, err)
	b, err := gw.Subscribe(ctx, "messages")
	require.NoError(t, err)
	defer b.Close()

	nextSnapshot(t, a)
	nextSnapshot(t, b)
	a.Close()

	require.NoError(t, gw.Set(ctx, "messages", "m1", json.RawMessage(`{"body":"hi"}`)))
	assert.Len(t, nextSnapshot(t, b).Documents, 1)
}

func TestSubscriptionEndsWithParentContext(t *testing.T) {
	gw := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := gw.Subscribe(ctx, "students")
	require.NoError(t, err)
	nextSnapshot(t, sub)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Equal(t, 0, gw.Watchers())
}

func TestMemoryClosedIsUnavailable(t *testing.T) {
	gw := NewMemory()
	require.NoError(t, gw.Close())
	_, err := gw.FetchAll(context.Background(), "students")
	assert.True(t, errors.Is(err, ErrUnavailable))
}
