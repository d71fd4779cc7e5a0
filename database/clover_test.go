package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-social/logger"
	"github.com/saiset-co/sai-social/types"
)

type note struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Rank    int64  `json:"rank"`
	Removed bool   `json:"removed"`
}

func newTestStore(t *testing.T) *CloverStore {
	t.Helper()

	store, err := NewCloverStore(&types.DatabaseConfig{InMemory: true}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() { _ = store.Stop() })

	return store
}

func seed(t *testing.T, store *CloverStore) {
	t.Helper()
	for _, n := range []note{
		{ID: "n1", Author: "ann", Rank: 1},
		{ID: "n2", Author: "bob", Rank: 3},
		{ID: "n3", Author: "ann", Rank: 2, Removed: true},
	} {
		require.NoError(t, store.Insert(PostsCollection, n))
	}
}

func TestFindByID(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	var got note
	require.NoError(t, store.FindByID(PostsCollection, "n2", &got))
	assert.Equal(t, note{ID: "n2", Author: "bob", Rank: 3}, got)

	err := store.FindByID(PostsCollection, "missing", &got)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}

func TestFindWithFilterSortAndPaging(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	var notes []note
	require.NoError(t, store.Find(PostsCollection, Filter{SortField: "rank", Descending: true}, &notes))
	require.Len(t, notes, 3)
	assert.Equal(t, []string{"n2", "n3", "n1"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})

	notes = nil
	require.NoError(t, store.Find(PostsCollection, Filter{
		NotEquals: map[string]interface{}{"removed": true},
		NotIn:     map[string][]interface{}{"id": {"n2"}},
	}, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)

	notes = nil
	require.NoError(t, store.Find(PostsCollection, Filter{SortField: "rank", Skip: 1, Limit: 1}, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "n3", notes[0].ID)

	count, err := store.Count(PostsCollection, Filter{Equals: map[string]interface{}{"author": "ann"}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	updated, err := store.Update(PostsCollection, Filter{Equals: map[string]interface{}{IDField: "n1"}}, map[string]interface{}{"rank": 10})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var got note
	require.NoError(t, store.FindByID(PostsCollection, "n1", &got))
	assert.Equal(t, int64(10), got.Rank)

	deleted, err := store.Delete(PostsCollection, Filter{Equals: map[string]interface{}{"author": "ann"}})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = store.Delete(PostsCollection, Filter{Equals: map[string]interface{}{"author": "ann"}})
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
