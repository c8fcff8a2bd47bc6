package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func TestNoSnapshotIsAlwaysCurrentDated(t *testing.T) {
	c := Classify(false, time.Time{}, day(1), day(10))
	require.Equal(t, CurrentDated, c)
}

func TestEqualToTodayIsCurrentDated(t *testing.T) {
	c := Classify(true, day(5), day(10), day(10))
	require.Equal(t, CurrentDated, c)
}

func TestAfterLastEventButNotTodayIsForwardDated(t *testing.T) {
	c := Classify(true, day(5), day(10), day(9))
	require.Equal(t, ForwardDated, c)
}

func TestBeforeLastEventIsBackdated(t *testing.T) {
	c := Classify(true, day(10), day(5), day(10))
	require.Equal(t, BackDated, c)
}

func TestIsHotpath(t *testing.T) {
	require.True(t, IsHotpath(CurrentDated))
	require.True(t, IsHotpath(ForwardDated))
	require.False(t, IsHotpath(BackDated))
}
