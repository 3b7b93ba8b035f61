package nstime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustNormalizesOverflow(t *testing.T) {
	ti := Time{Sec: 1, Usec: 1_500_000}
	Adjust(&ti)
	assert.Equal(t, Time{Sec: 2, Usec: 500_000}, ti)
}

func TestAdjustBorrowsFromNegativeUsec(t *testing.T) {
	ti := Time{Sec: 2, Usec: -500_000}
	Adjust(&ti)
	assert.Equal(t, Time{Sec: 1, Usec: 500_000}, ti)
}

func TestAdjustKeepsZeroSecNegativeUsec(t *testing.T) {
	ti := Time{Sec: 0, Usec: -100_000}
	Adjust(&ti)
	assert.Equal(t, Time{Sec: 0, Usec: -100_000}, ti)
}

func TestDiffBasicOrdering(t *testing.T) {
	t0 := Time{Sec: 10, Usec: 500_000}
	t1 := Time{Sec: 13, Usec: 200_000}

	var diff Time
	cmp := Diff(t1, t0, &diff)

	require.Equal(t, 1, cmp)
	assert.Equal(t, Time{Sec: 2, Usec: 700_000}, diff)
}

func TestDiffEqualIsZero(t *testing.T) {
	t0 := Time{Sec: 5, Usec: 0}
	var diff Time
	cmp := Diff(t0, t0, &diff)
	assert.Equal(t, 0, cmp)
	assert.Equal(t, Time{Sec: 0, Usec: 0}, diff)
}

func TestDiffOfDiffWithItselfIsZero(t *testing.T) {
	t0 := Time{Sec: 100, Usec: 250_000}
	t1 := Time{Sec: 42, Usec: 900_000}

	var d Time
	Diff(t1, t0, &d)

	var zero Time
	cmp := Diff(d, d, &zero)
	assert.Equal(t, 0, cmp)
	assert.Equal(t, Time{Sec: 0, Usec: 0}, zero)
}

func TestDiffNegativeTimes(t *testing.T) {
	t0 := Time{Sec: -5, Usec: 0}
	t1 := Time{Sec: -2, Usec: 0}

	var diff Time
	cmp := Diff(t1, t0, &diff)
	require.Equal(t, 1, cmp)
	assert.Equal(t, Time{Sec: 3, Usec: 0}, diff)
}

func TestDiffMixedSigns(t *testing.T) {
	t0 := Time{Sec: -3, Usec: 0}
	t1 := Time{Sec: 2, Usec: 0}

	var diff Time
	cmp := Diff(t1, t0, &diff)
	require.Equal(t, 1, cmp)
	assert.Equal(t, Time{Sec: 5, Usec: 0}, diff)
}

func TestIncrIgnoresNegative(t *testing.T) {
	ti := Time{Sec: 1, Usec: 0}
	var warned string
	Incr(&ti, -1, 0, func(msg string) { warned = msg })
	assert.Equal(t, Time{Sec: 1, Usec: 0}, ti)
	assert.Contains(t, warned, "negative increment")
}

func TestIncrAddsAndNormalizes(t *testing.T) {
	ti := Time{Sec: 1, Usec: 900_000}
	Incr(&ti, 0, 200_000, nil)
	assert.Equal(t, Time{Sec: 2, Usec: 100_000}, ti)
}

func TestAbsoluteTreatsSmallAsRelative(t *testing.T) {
	before := Now()
	abs := Absolute(Time{Sec: 5, Usec: 0})
	var diff Time
	Diff(abs, before, &diff)
	assert.GreaterOrEqual(t, diff.Sec, int64(4))
	assert.LessOrEqual(t, diff.Sec, int64(6))
}

func TestAbsolutePassesThroughLarge(t *testing.T) {
	large := Time{Sec: absoluteThresholdSec + 100, Usec: 0}
	assert.Equal(t, large, Absolute(large))
}

func TestRelativePassesThroughSmall(t *testing.T) {
	small := Time{Sec: 30, Usec: 0}
	assert.Equal(t, small, Relative(small))
}

func TestToMillisecondsNeverCollapsesNonzero(t *testing.T) {
	assert.Equal(t, int64(1), ToMilliseconds(Time{Sec: 0, Usec: 1}))
	assert.Equal(t, int64(-1), ToMilliseconds(Time{Sec: 0, Usec: -1}))
	assert.Equal(t, int64(0), ToMilliseconds(Time{Sec: 0, Usec: 0}))
	assert.Equal(t, int64(1500), ToMilliseconds(Time{Sec: 1, Usec: 500_000}))
}

func TestDurationRoundTrip(t *testing.T) {
	ti := Time{Sec: 3, Usec: 250_000}
	d := ti.Duration()
	back := FromDuration(d)
	assert.Equal(t, ti, back)
}
