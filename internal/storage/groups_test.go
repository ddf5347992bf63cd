package storage_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nanoclaw/nanoclaw/internal/storage"
	"github.com/stretchr/testify/require"
)

func openGroupStore(t *testing.T) *storage.SQLiteGroupStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewSQLiteGroupStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteGroupStorePutGetRoundTrip(t *testing.T) {
	store := openGroupStore(t)
	group := storage.RegisteredGroup{
		ID: "g1", Name: "Research", Folder: "research", TriggerPattern: "^/research",
		AddedAtMS: 1000, ContainerConfig: `{"image":"custom:latest"}`, RequiresTrigger: true,
	}
	require.NoError(t, store.PutGroup(group))

	got, ok, err := store.GetGroup("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, group.Folder, got.Folder)
	require.Equal(t, group.ContainerConfig, got.ContainerConfig)
	require.True(t, got.RequiresTrigger)
}

func TestSQLiteGroupStoreListOrdersByAddedAt(t *testing.T) {
	store := openGroupStore(t)
	require.NoError(t, store.PutGroup(storage.RegisteredGroup{ID: "g2", Name: "b", Folder: "b", TriggerPattern: "x", AddedAtMS: 2000}))
	require.NoError(t, store.PutGroup(storage.RegisteredGroup{ID: "g1", Name: "a", Folder: "a", TriggerPattern: "x", AddedAtMS: 1000}))

	groups, err := store.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "g1", groups[0].ID)
	require.Equal(t, "g2", groups[1].ID)
}

func TestSQLiteGroupStoreRemove(t *testing.T) {
	store := openGroupStore(t)
	require.NoError(t, store.PutGroup(storage.RegisteredGroup{ID: "g1", Name: "a", Folder: "a", TriggerPattern: "x", AddedAtMS: 1000}))
	require.NoError(t, store.RemoveGroup("g1"))

	_, ok, err := store.GetGroup("g1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryGroupStorePutListGetRemove(t *testing.T) {
	store := storage.NewMemoryGroupStore()
	require.NoError(t, store.PutGroup(storage.RegisteredGroup{ID: "g1", Folder: "a", RequiresTrigger: true}))
	require.NoError(t, store.PutGroup(storage.RegisteredGroup{ID: "g2", Folder: "b"}))

	groups, err := store.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)

	got, ok, err := store.GetGroup("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.RequiresTrigger)

	require.NoError(t, store.RemoveGroup("g1"))
	_, ok, err = store.GetGroup("g1")
	require.NoError(t, err)
	require.False(t, ok)
}
