// Package window applies an aggregation function over a sliding window of
// a time series. Window n covers the half-open interval
//
//	[origin + n*step, origin + n*step + length)
//
// and windows that contain no samples are skipped. Because the series may
// be irregularly sampled, the number of samples per window varies; the
// window bounds never do.
//
// The content handed to the aggregation function is the series prefix up
// to (excluding) the window's last matching index, not the window's own
// slice. Successive windows therefore see overlapping, growing input.
// This mirrors the behavior the downstream curve computations were built
// against; changing it changes every published number, so it must be a
// deliberate, versioned decision. See the tests pinning this down.
package window

import (
	"errors"
	"fmt"
	"sort"

	"github.com/summavi/summavi/pkg/types"
)

// ErrBadSpec reports a non-positive window length or step.
var ErrBadSpec = errors.New("invalid window spec")

// Spec describes one sliding-window run. Length and Step are in the same
// unit as the series time points (seconds for recordings). A nil Origin
// means the run starts at the first time point of the series.
type Spec struct {
	Length float64
	Step   float64
	Origin *float64
}

func (s Spec) validate() error {
	if s.Length <= 0 {
		return fmt.Errorf("%w: length %v", ErrBadSpec, s.Length)
	}
	if s.Step <= 0 {
		return fmt.Errorf("%w: step %v", ErrBadSpec, s.Step)
	}
	return nil
}

// TimeValueFunc is an aggregation function that receives the time points
// of the window content alongside the values. Additional parameters are
// closure captures on the caller's side.
type TimeValueFunc[R any] func(times, values []float64) (R, error)

// ValueFunc is an aggregation function over values alone.
type ValueFunc[R any] func(values []float64) (R, error)

// Advance returns a fresh iterator over the windows of series under spec.
// The iterator is lazy, forward-only and single-pass: re-iterating
// requires another Advance call. Independent iterators may run
// concurrently as long as fn is reentrant.
func Advance[R any](series types.TimeSeries, spec Spec, fn TimeValueFunc[R]) (*Iterator[R], error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	begin := series.Times[0]
	if spec.Origin != nil {
		begin = *spec.Origin
	}
	end := begin + spec.Length

	// Fast-forward until the window covers at least one point of the
	// series; windows entirely before the first sample are never tested.
	for end < series.Times[0] {
		begin += spec.Step
		end += spec.Step
	}

	return &Iterator[R]{
		series: series,
		spec:   spec,
		fn:     fn,
		begin:  begin,
		end:    end,
	}, nil
}

// AdvanceValues is Advance for aggregation functions that do not need the
// time points of the window content.
func AdvanceValues[R any](series types.TimeSeries, spec Spec, fn ValueFunc[R]) (*Iterator[R], error) {
	return Advance(series, spec, func(_, values []float64) (R, error) {
		return fn(values)
	})
}

// Iterator walks the windows of one Advance call.
type Iterator[R any] struct {
	series types.TimeSeries
	spec   Spec
	fn     TimeValueFunc[R]

	begin, end float64
	done       bool
	cur        types.Window[R]
}

// Next advances to the next window that contains samples, invoking the
// aggregation function exactly once for it. It returns false once the
// run is exhausted: exactly one more window is tested after the window
// end reaches or passes the last time point of the series.
func (it *Iterator[R]) Next() bool {
	times := it.series.Times
	last := times[len(times)-1]

	for !it.done {
		beginIdx, endIdx, ok := it.indices()
		if ok {
			it.cur = types.Window[R]{
				BeginTime:  it.begin,
				EndTime:    it.end,
				BeginIndex: beginIdx,
				EndIndex:   endIdx,
			}
			it.cur.Result.Value, it.cur.Result.Err = it.invoke(endIdx)
		}

		if it.end <= last {
			it.begin += it.spec.Step
			it.end += it.spec.Step
		} else {
			it.done = true
		}

		if ok {
			return true
		}
	}
	return false
}

// Window returns the window produced by the last successful Next call.
func (it *Iterator[R]) Window() types.Window[R] {
	return it.cur
}

// indices resolves the first and last series positions whose timestamp
// falls in [begin, end), or ok=false when the window is empty.
func (it *Iterator[R]) indices() (beginIdx, endIdx int, ok bool) {
	times := it.series.Times
	lo := sort.SearchFloat64s(times, it.begin)
	hi := sort.SearchFloat64s(times, it.end)
	if lo >= hi {
		return 0, 0, false
	}
	return lo, hi - 1, true
}

// invoke calls the aggregation function on the series prefix through
// endIdx (exclusive; see the package doc). A failure is contained in the
// returned error, including panics, so the run continues to later windows.
func (it *Iterator[R]) invoke(endIdx int) (val R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation function panicked: %v", r)
		}
	}()
	return it.fn(it.series.Times[:endIdx], it.series.Values[:endIdx])
}

// Collect drains an iterator into a slice. Mostly useful in tests and the
// HTTP surface; large runs should consume the iterator directly.
func Collect[R any](it *Iterator[R]) []types.Window[R] {
	var out []types.Window[R]
	for it.Next() {
		out = append(out, it.Window())
	}
	return out
}
