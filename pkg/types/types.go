package types

import (
	"errors"
	"fmt"
)

// ErrMalformedSeries reports a time series the engine refuses to iterate:
// empty, misaligned or not sorted ascending by time.
var ErrMalformedSeries = errors.New("malformed time series")

// TimeSeries holds one channel of a recording: elapsed seconds since the
// first sample and the channel values, aligned by index. The series is
// owned by the caller and never mutated by the engine.
type TimeSeries struct {
	Times  []float64 `json:"times"`
	Values []float64 `json:"values"`
}

// Len returns the number of samples in the series.
func (ts TimeSeries) Len() int {
	return len(ts.Times)
}

// Span returns the elapsed time covered by the series.
func (ts TimeSeries) Span() float64 {
	if len(ts.Times) == 0 {
		return 0
	}
	return ts.Times[len(ts.Times)-1] - ts.Times[0]
}

// Validate rejects series the window engine cannot index safely.
func (ts TimeSeries) Validate() error {
	if len(ts.Times) == 0 {
		return fmt.Errorf("%w: no samples", ErrMalformedSeries)
	}
	if len(ts.Times) != len(ts.Values) {
		return fmt.Errorf("%w: %d time points but %d values",
			ErrMalformedSeries, len(ts.Times), len(ts.Values))
	}
	for i := 1; i < len(ts.Times); i++ {
		if ts.Times[i] < ts.Times[i-1] {
			return fmt.Errorf("%w: timestamps not ascending at index %d",
				ErrMalformedSeries, i)
		}
	}
	return nil
}

// Result is the outcome of one aggregation call. A failed call keeps its
// error here instead of aborting the window run, so a consumer can tell
// "function failed" apart from a genuine zero value.
type Result[R any] struct {
	Value R
	Err   error
}

// Failed reports whether the aggregation call for this window errored.
func (r Result[R]) Failed() bool {
	return r.Err != nil
}

// Window describes one emitted window: the half-open time interval
// [BeginTime, EndTime), the first and last series positions whose
// timestamp falls inside it, and the aggregation outcome.
type Window[R any] struct {
	BeginTime  float64
	EndTime    float64
	BeginIndex int
	EndIndex   int
	Result     Result[R]
}
