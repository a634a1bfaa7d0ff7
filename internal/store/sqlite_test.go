package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scans.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndRecentScans(t *testing.T) {
	s := openTestStore(t)

	base := time.Unix(1700000000, 0)
	for i, code := range []string{"4006381333931", "9780201616224", "5901234123457"} {
		_, err := s.InsertScan(Scan{
			CapturedAt: base.Add(time.Duration(i) * time.Second),
			Code:       code,
			Length:     len(code),
			MeanDelay:  5 * time.Millisecond,
			Source:     "evdev",
		})
		require.NoError(t, err)
	}

	scans, err := s.RecentScans(2)
	require.NoError(t, err)
	require.Len(t, scans, 2)

	// Most recent first.
	assert.Equal(t, "5901234123457", scans[0].Code)
	assert.Equal(t, "9780201616224", scans[1].Code)
	assert.Equal(t, 13, scans[0].Length)
	assert.Equal(t, 5*time.Millisecond, scans[0].MeanDelay)
	assert.Equal(t, "evdev", scans[0].Source)
	assert.True(t, scans[0].CapturedAt.Equal(base.Add(2*time.Second)))
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)

	_, err := s.InsertScan(Scan{CapturedAt: time.Now(), Code: "123456", Length: 6})
	require.NoError(t, err)
	_, err = s.InsertReject(Reject{CapturedAt: time.Now(), Reason: ReasonRejected, Length: 4})
	require.NoError(t, err)
	_, err = s.InsertReject(Reject{CapturedAt: time.Now(), Reason: ReasonRejected, Length: 2})
	require.NoError(t, err)

	scans, err := s.CountScans()
	require.NoError(t, err)
	assert.Equal(t, int64(1), scans)

	rejects, err := s.CountRejects()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rejects)
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		_, err := s.InsertScan(Scan{
			CapturedAt: base.Add(time.Duration(i) * time.Hour),
			Code:       "123456",
			Length:     6,
		})
		require.NoError(t, err)
	}
	_, err := s.InsertReject(Reject{CapturedAt: base, Reason: ReasonRejected, Length: 1})
	require.NoError(t, err)

	removed, err := s.PruneBefore(base.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	remaining, err := s.CountScans()
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
}

func TestRecentScansEmpty(t *testing.T) {
	s := openTestStore(t)
	scans, err := s.RecentScans(10)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "scans.db")
	s, err := Open(path, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
