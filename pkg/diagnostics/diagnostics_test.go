package diagnostics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestMemoryRecordAndForFile(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Record(Event{FilePath: "a.go", Type: EventReceived}))
	require.NoError(t, m.Record(Event{FilePath: "b.go", Type: EventReceived}))
	require.NoError(t, m.Record(Event{FilePath: "a.go", Type: EventResult}))

	all := m.Events()
	assert.Len(t, all, 3)

	forA := m.ForFile("a.go")
	require.Len(t, forA, 2)
	assert.Equal(t, EventReceived, forA[0].Type)
	assert.Equal(t, EventResult, forA[1].Type)
}

func newTestBoltDB(t *testing.T) *bbolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagnostics.db")
	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBoltRecordAndForFile(t *testing.T) {
	sink := &Bolt{DB: newTestBoltDB(t)}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Record(Event{
		FilePath:  "pkg/foo.go",
		Type:      EventReceived,
		Timestamp: base,
		Data:      ReceivedData{RawLength: 42},
	}))
	require.NoError(t, sink.Record(Event{
		FilePath:  "pkg/foo.go",
		Type:      EventResult,
		Timestamp: base.Add(time.Second),
		Data:      ResultData{Success: true, Applied: 1, Total: 1},
	}))
	require.NoError(t, sink.Record(Event{
		FilePath:  "pkg/bar.go",
		Type:      EventReceived,
		Timestamp: base,
	}))

	events, err := sink.ForFile("pkg/foo.go")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventReceived, events[0].Type)
	assert.Equal(t, EventResult, events[1].Type)
}
