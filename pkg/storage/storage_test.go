package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "storage.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuildAndExtractArchiveRoundTrips(t *testing.T) {
	b := Bundle{
		Original:  []byte("package main\n\nfunc main() {}\n"),
		HunkText:  "<<<<<<< SEARCH\nfunc main() {}\n=======\nfunc main() { println() }\n>>>>>>> REPLACE\n",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	id, archive, err := BuildArchive(b)
	require.NoError(t, err)
	assert.Len(t, id, 8) // 5 bytes base32-encoded is 8 characters

	extracted, err := ExtractArchive(archive)
	require.NoError(t, err)
	assert.Equal(t, b.Original, extracted.Original)
	assert.Equal(t, b.HunkText, extracted.HunkText)
}

func TestBuildArchiveIsContentAddressed(t *testing.T) {
	b := Bundle{Original: []byte("same"), HunkText: "same hunk"}

	id1, _, err := BuildArchive(b)
	require.NoError(t, err)
	id2, _, err := BuildArchive(b)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	idDiff, _, err := BuildArchive(Bundle{Original: []byte("different"), HunkText: "same hunk"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, idDiff)
}

func TestBoltStoragePutGetDel(t *testing.T) {
	s := NewBoltStorage(newTestDB(t), []byte("bundles"))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "abc", []byte("data")))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Del(ctx, "abc"))
	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStorageList(t *testing.T) {
	s := NewBoltStorage(newTestDB(t), []byte("bundles"))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "one", []byte("1")))
	require.NoError(t, s.Put(ctx, "two", []byte("2")))

	seen := map[string]string{}
	require.NoError(t, s.List(ctx, func(id string, b []byte) error {
		seen[id] = string(b)
		return nil
	}))
	assert.Equal(t, map[string]string{"one": "1", "two": "2"}, seen)
}

func TestCachedStorageFallsThroughToPermanent(t *testing.T) {
	cache := NewBoltStorage(newTestDB(t), []byte("cache"))
	permanent := NewBoltStorage(newTestDB(t), []byte("permanent"))

	cs, err := NewCachedStorage(cache, permanent, 1<<20)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cs.Put(ctx, "k", []byte("v")))

	got, err := cs.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
