package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysRoundsPartialDaysUp(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{start.Add(72 * time.Hour), 3},
		{start.Add(72*time.Hour + time.Minute), 4},
		{start.Add(time.Hour), 1},
	}
	for _, tc := range cases {
		dr, err := New(start, tc.end)
		require.NoError(t, err)
		require.Equal(t, tc.want, dr.Days())
	}
}

func TestNewRejectsEmptyOrInvertedRange(t *testing.T) {
	start := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)
	_, err := New(start, start)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(start, start.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(time.Time{}, start)
	require.ErrorIs(t, err, ErrStartMissing)
}

func TestOverlapsAndWindow(t *testing.T) {
	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := New(jan1, jan1.Add(72*time.Hour))
	b, _ := New(jan1.Add(72*time.Hour), jan1.Add(96*time.Hour))
	c, _ := New(jan1.Add(48*time.Hour), jan1.Add(96*time.Hour))
	require.False(t, a.Overlaps(b))
	require.True(t, a.Overlaps(c))

	tour, err := Single(jan1.Add(13 * time.Hour))
	require.NoError(t, err)
	require.True(t, tour.Open())
	require.Equal(t, 0, tour.Days())
	require.Equal(t, "2025-01-01", tour.Window())
	require.True(t, tour.Overlaps(a))
}
