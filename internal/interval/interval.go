package interval

import (
	"fmt"
	"time"
)

// Overlap describes the intersection of a proposed interval with an
// existing one.
type Overlap struct {
	HasConflict    bool
	OverlapMinutes int
}

// Compute checks whether the proposed interval [proposedStart, proposedEnd)
// overlaps the existing interval [existingStart, existingEnd).
//
// Intervals are half-open: back-to-back intervals, where one starts exactly
// when the other ends, do not conflict. When the intervals overlap,
// OverlapMinutes is the floor of the intersection duration in minutes.
//
// Zero- or negative-length intervals are invalid and rejected.
func Compute(proposedStart, proposedEnd, existingStart, existingEnd time.Time) (Overlap, error) {
	if !proposedStart.Before(proposedEnd) {
		return Overlap{}, fmt.Errorf("invalid proposed interval: start %s is not before end %s",
			proposedStart.Format(time.RFC3339), proposedEnd.Format(time.RFC3339))
	}
	if !existingStart.Before(existingEnd) {
		return Overlap{}, fmt.Errorf("invalid existing interval: start %s is not before end %s",
			existingStart.Format(time.RFC3339), existingEnd.Format(time.RFC3339))
	}

	if !proposedStart.Before(existingEnd) || !proposedEnd.After(existingStart) {
		return Overlap{}, nil
	}

	start := proposedStart
	if existingStart.After(start) {
		start = existingStart
	}
	end := proposedEnd
	if existingEnd.Before(end) {
		end = existingEnd
	}

	return Overlap{
		HasConflict:    true,
		OverlapMinutes: int(end.Sub(start) / time.Minute),
	}, nil
}

// Conflicts reports whether two valid intervals overlap without computing
// the overlap duration. It is the strict-inequality check used by the
// free-slot scan.
func Conflicts(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
