package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/pkg/docstore"
)

func seed(t *testing.T, gw docstore.Gateway, collection string, docs map[string]string) {
	t.Helper()
	for id, body := range docs {
		require.NoError(t, gw.Set(context.Background(), collection, id, json.RawMessage(body)))
	}
}

func TestCompareCollectionFindsDrift(t *testing.T) {
	source, dest := docstore.NewMemory(), docstore.NewMemory()
	seed(t, source, "fees", map[string]string{
		"a": `{"amount": 12, "status": "Pending"}`,
		"b": `{"amount": 5, "status": "Pending"}`,
		"c": `{"amount": 7, "status": "Paid"}`,
	})
	seed(t, dest, "fees", map[string]string{
		"a": `{"status":"Pending","amount":12.0}`,
		"b": `{"amount": 5, "status": "Paid"}`,
		"d": `{"amount": 1, "status": "Paid"}`,
	})

	comp := compareCollection(context.Background(), source, dest, target{Name: "fees", Critical: true})
	require.NoError(t, comp.Error)
	assert.Equal(t, 3, comp.SourceCount)
	assert.Equal(t, 3, comp.TargetCount)
	assert.Equal(t, []string{"c"}, comp.Missing)
	assert.Equal(t, []string{"d"}, comp.Extra)
	assert.Equal(t, []string{"b"}, comp.Changed)
	assert.True(t, comp.drifted())
}

func TestCompareCollectionMatchingStores(t *testing.T) {
	source, dest := docstore.NewMemory(), docstore.NewMemory()
	seed(t, source, "users", map[string]string{"u1": `{"email":"a@example.com","roles":[1,2]}`})
	seed(t, dest, "users", map[string]string{"u1": `{"roles":[1.0,2],"email":"a@example.com"}`})

	comp := compareCollection(context.Background(), source, dest, target{Name: "users"})
	assert.False(t, comp.drifted())

	var out bytes.Buffer
	printReport(&out, []comparison{comp})
	assert.Contains(t, out.String(), "[OK] users")
}

func TestCompareCollectionReportsFetchErrors(t *testing.T) {
	source, dest := docstore.NewMemory(), docstore.NewMemory()
	require.NoError(t, dest.Close())

	comp := compareCollection(context.Background(), source, dest, target{Name: "fees"})
	require.Error(t, comp.Error)
	assert.True(t, errors.Is(comp.Error, docstore.ErrUnavailable))
	assert.True(t, comp.drifted())

	var out bytes.Buffer
	printReport(&out, []comparison{comp})
	assert.Contains(t, out.String(), "[ERROR] fees")
}

func TestBodiesEqual(t *testing.T) {
	assert.True(t, bodiesEqual([]byte(`{"a":1}`), []byte(` {"a":1} `)))
	assert.True(t, bodiesEqual([]byte(`{"a":1,"b":[2]}`), []byte(`{"b":[2.0],"a":1}`)))
	assert.False(t, bodiesEqual([]byte(`{"a":1}`), []byte(`{"a":1.5}`)))
	assert.False(t, bodiesEqual([]byte(`not json`), []byte(`{"a":1}`)))
}
