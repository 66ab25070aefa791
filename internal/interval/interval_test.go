package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func at(t *testing.T, loc *time.Location, hour, min int) time.Time {
	t.Helper()
	return time.Date(2025, time.July, 8, hour, min, 0, 0, loc)
}

func TestCompute_PartialOverlap(t *testing.T) {
	utc := time.UTC

	// Existing 14:00-15:00, proposed 14:45-15:45 overlaps by 15 minutes.
	result, err := Compute(at(t, utc, 14, 45), at(t, utc, 15, 45), at(t, utc, 14, 0), at(t, utc, 15, 0))
	require.NoError(t, err)
	assert.True(t, result.HasConflict)
	assert.Equal(t, 15, result.OverlapMinutes)
}

func TestCompute_Containment(t *testing.T) {
	utc := time.UTC

	// Proposed 13:00-17:00 fully contains existing 14:00-15:00; the overlap
	// is the contained hour, not the containing span.
	result, err := Compute(at(t, utc, 13, 0), at(t, utc, 17, 0), at(t, utc, 14, 0), at(t, utc, 15, 0))
	require.NoError(t, err)
	assert.True(t, result.HasConflict)
	assert.Equal(t, 60, result.OverlapMinutes)
}

func TestCompute_BackToBack(t *testing.T) {
	utc := time.UTC

	tests := []struct {
		name                               string
		pStart, pEnd, eStart, eEnd         time.Time
	}{
		{"proposed ends when existing starts", at(t, utc, 13, 0), at(t, utc, 14, 0), at(t, utc, 14, 0), at(t, utc, 15, 0)},
		{"proposed starts when existing ends", at(t, utc, 15, 0), at(t, utc, 16, 0), at(t, utc, 14, 0), at(t, utc, 15, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Compute(tt.pStart, tt.pEnd, tt.eStart, tt.eEnd)
			require.NoError(t, err)
			assert.False(t, result.HasConflict)
			assert.Zero(t, result.OverlapMinutes)
		})
	}
}

func TestCompute_Symmetry(t *testing.T) {
	utc := time.UTC

	pairs := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
	}{
		{"overlapping", at(t, utc, 9, 0), at(t, utc, 10, 30), at(t, utc, 10, 0), at(t, utc, 11, 0)},
		{"disjoint", at(t, utc, 9, 0), at(t, utc, 10, 0), at(t, utc, 11, 0), at(t, utc, 12, 0)},
		{"touching", at(t, utc, 9, 0), at(t, utc, 10, 0), at(t, utc, 10, 0), at(t, utc, 11, 0)},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			forward, err := Compute(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd)
			require.NoError(t, err)
			backward, err := Compute(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd)
			require.NoError(t, err)
			assert.Equal(t, forward.HasConflict, backward.HasConflict)
			assert.Equal(t, forward.OverlapMinutes, backward.OverlapMinutes)
		})
	}
}

func TestCompute_TimezoneResolution(t *testing.T) {
	chicago := mustLoc(t, "America/Chicago")
	newYork := mustLoc(t, "America/New_York")

	// 14:00 in Chicago is 19:00 UTC; 14:00 in New York is 18:00 UTC.
	// Same wall-clock time, but as instants they are back-to-back for a
	// one-hour duration and must not conflict.
	existingStart := time.Date(2025, time.July, 8, 14, 0, 0, 0, chicago)
	proposedStart := time.Date(2025, time.July, 8, 14, 0, 0, 0, newYork)

	result, err := Compute(proposedStart, proposedStart.Add(time.Hour), existingStart, existingStart.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

func TestCompute_InvalidIntervals(t *testing.T) {
	utc := time.UTC

	// Zero-length proposed interval.
	_, err := Compute(at(t, utc, 14, 0), at(t, utc, 14, 0), at(t, utc, 15, 0), at(t, utc, 16, 0))
	assert.Error(t, err)

	// Inverted existing interval.
	_, err = Compute(at(t, utc, 14, 0), at(t, utc, 15, 0), at(t, utc, 17, 0), at(t, utc, 16, 0))
	assert.Error(t, err)
}

func TestCompute_FloorsPartialMinutes(t *testing.T) {
	utc := time.UTC

	start := at(t, utc, 14, 0)
	// 15 minutes and 30 seconds of overlap floors to 15 minutes.
	result, err := Compute(start, start.Add(15*time.Minute+30*time.Second), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, result.HasConflict)
	assert.Equal(t, 15, result.OverlapMinutes)
}

func TestConflicts(t *testing.T) {
	utc := time.UTC

	assert.True(t, Conflicts(at(t, utc, 9, 0), at(t, utc, 10, 0), at(t, utc, 9, 30), at(t, utc, 10, 30)))
	assert.False(t, Conflicts(at(t, utc, 9, 0), at(t, utc, 10, 0), at(t, utc, 10, 0), at(t, utc, 11, 0)))
}
