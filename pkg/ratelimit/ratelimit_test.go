package ratelimit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "ratelimit.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckAllowsWithinLimits(t *testing.T) {
	l := &Limiter{DB: newTestDB(t), Bucket: []byte("usage"), Limits: Limits{MaxBytes: 1000, MaxCalls: 10}}
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Check("1.2.3.4", 100))
	}
}

func TestCheckRejectsOverCallLimit(t *testing.T) {
	l := &Limiter{DB: newTestDB(t), Bucket: []byte("usage"), Limits: Limits{MaxBytes: 1 << 20, MaxCalls: 2}}
	require.NoError(t, l.Check("k", 1))
	require.NoError(t, l.Check("k", 1))
	assert.ErrorIs(t, l.Check("k", 1), ErrLimitsExceeded)
}

func TestCheckRejectsOverByteLimit(t *testing.T) {
	l := &Limiter{DB: newTestDB(t), Bucket: []byte("usage"), Limits: Limits{MaxBytes: 150, MaxCalls: 100}}
	require.NoError(t, l.Check("k", 100))
	assert.ErrorIs(t, l.Check("k", 100), ErrLimitsExceeded)
}

func TestCheckIsolatesKeys(t *testing.T) {
	l := &Limiter{DB: newTestDB(t), Bucket: []byte("usage"), Limits: Limits{MaxBytes: 100, MaxCalls: 1}}
	require.NoError(t, l.Check("a", 50))
	require.NoError(t, l.Check("b", 50))
}
