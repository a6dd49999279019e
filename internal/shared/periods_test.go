package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowContainsIsInclusiveOnInstants(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC)
	w, err := NewWindow(from, to)
	require.NoError(t, err)

	require.True(t, w.Contains(from))
	require.True(t, w.Contains(to))
	require.False(t, w.Contains(to.Add(time.Second)))

	jakarta := time.FixedZone("WIB", 7*3600)
	// 06:59 WIB on Mar 2 is 23:59 UTC on Mar 1.
	require.True(t, w.Contains(time.Date(2025, 3, 2, 6, 59, 0, 0, jakarta)))
	require.False(t, w.Contains(time.Date(2025, 3, 2, 7, 0, 0, 0, jakarta)))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2025-03-01", "2025-03-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), w.To)

	_, err = ParseWindow("2025-03-02T00:00:00Z", "2025-03-01T00:00:00Z")
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ParseWindow("", "2025-03-01")
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestPageRequestDefaults(t *testing.T) {
	page, perPage := PageRequest("x", "")
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
	require.Equal(t, 40, Offset(3, 20))
	require.Equal(t, 3, NewPagination(1, 20, 41).TotalPages)
}
