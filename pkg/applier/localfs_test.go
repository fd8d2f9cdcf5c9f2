package applier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSReadExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	fs := NewLocalFS(dir)
	ctx := context.Background()

	assert.True(t, fs.Exists(ctx, "a.txt"))
	assert.False(t, fs.Exists(ctx, "missing.txt"))

	data, err := fs.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalFSApplyAtomicDescendingOrderIndependentOfInputOrder(t *testing.T) {
	dir := t.TempDir()
	path := "doc.txt"
	require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte("0123456789"), 0o644))

	fs := NewLocalFS(dir)
	ctx := context.Background()

	// Pass edits in ascending order; ApplyAtomic must still behave as
	// if descending, since both ranges are computed against the
	// pre-edit snapshot.
	edits := []Edit{
		{Range: ByteRange{Start: 2, End: 4}, Replacement: "XX"},
		{Range: ByteRange{Start: 6, End: 8}, Replacement: "YYYY"},
	}
	require.NoError(t, fs.ApplyAtomic(ctx, path, edits))

	data, err := fs.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "01XX45YYYY89", string(data))
}

func TestLocalFSApplyAtomicRejectsOutOfBoundsRange(t *testing.T) {
	dir := t.TempDir()
	path := "doc.txt"
	require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte("short"), 0o644))

	fs := NewLocalFS(dir)
	err := fs.ApplyAtomic(context.Background(), path, []Edit{
		{Range: ByteRange{Start: 10, End: 20}, Replacement: "x"},
	})
	assert.Error(t, err)
}
