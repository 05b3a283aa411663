package recurrence

import (
	"errors"
	"time"
)

// ErrInvalidPeriod indicates the template period is not positive.
var ErrInvalidPeriod = errors.New("recurrence: template period must be positive")

// ErrNoSegments indicates the template has no segments to expand.
var ErrNoSegments = errors.New("recurrence: template requires at least one segment")

// ErrInvalidHorizon indicates the generation horizon is not positive.
var ErrInvalidHorizon = errors.New("recurrence: horizon must be positive")

// ErrInvalidSegment indicates a segment has a non-positive duration or a
// negative offset.
var ErrInvalidSegment = errors.New("recurrence: segment offset must be non-negative and duration positive")

// Segment is one sub-interval of a template period, expressed as an offset
// from the period start and a duration.
type Segment struct {
	Offset   time.Duration
	Duration time.Duration
}

// Template describes a recurring shift: an ordered list of segments repeated
// every Period. Segments of the same period form one assignment once a user
// is chosen.
type Template struct {
	Period   time.Duration
	Segments []Segment
}

// Window is a half-open [Start, End) interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// Period is one recurrence instance of a template: the k-th period window
// and its concrete segment windows.
type Period struct {
	Index    int
	Start    time.Time
	End      time.Time
	Segments []Window
}

// Expansion is a finite, restartable sequence of periods generated from a
// template, a start instant and a horizon in days. Expansion is pure
// arithmetic over absolute durations; no timezone or DST adjustment applies.
type Expansion struct {
	template Template
	start    time.Time
	count    int
}

// Expand validates the template and produces the expansion covering
// [start, start + horizonDays). The number of periods is
// ceil(horizonDays*86400 / Period).
func Expand(template Template, start time.Time, horizonDays int) (*Expansion, error) {
	if template.Period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(template.Segments) == 0 {
		return nil, ErrNoSegments
	}
	for _, segment := range template.Segments {
		if segment.Offset < 0 || segment.Duration <= 0 {
			return nil, ErrInvalidSegment
		}
	}
	if horizonDays <= 0 {
		return nil, ErrInvalidHorizon
	}

	horizon := time.Duration(horizonDays) * 24 * time.Hour
	count := int(horizon / template.Period)
	if horizon%template.Period != 0 {
		count++
	}

	return &Expansion{template: template, start: start, count: count}, nil
}

// Len returns the number of periods in the expansion.
func (e *Expansion) Len() int {
	return e.count
}

// Period returns the k-th period of the expansion. It panics if k is out of
// range, mirroring slice indexing.
func (e *Expansion) Period(k int) Period {
	if k < 0 || k >= e.count {
		panic("recurrence: period index out of range")
	}

	periodStart := e.start.Add(time.Duration(k) * e.template.Period)
	segments := make([]Window, 0, len(e.template.Segments))
	for _, segment := range e.template.Segments {
		segments = append(segments, Window{
			Start: periodStart.Add(segment.Offset),
			End:   periodStart.Add(segment.Offset + segment.Duration),
		})
	}

	return Period{
		Index:    k,
		Start:    periodStart,
		End:      periodStart.Add(e.template.Period),
		Segments: segments,
	}
}

// Periods materializes the full expansion. Intended for tests and small
// horizons; the engine iterates lazily via Len and Period.
func (e *Expansion) Periods() []Period {
	periods := make([]Period, 0, e.count)
	for k := 0; k < e.count; k++ {
		periods = append(periods, e.Period(k))
	}
	return periods
}
