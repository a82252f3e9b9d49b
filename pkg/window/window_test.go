package window

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summavi/summavi/pkg/types"
)

// gappedSeries has a hole between t=3 and t=10.
func gappedSeries() types.TimeSeries {
	return types.TimeSeries{
		Times:  []float64{0, 1, 2, 3, 10, 11, 12},
		Values: []float64{1, 2, 3, 4, 5, 6, 7},
	}
}

func sum(values []float64) (float64, error) {
	var s float64
	for _, v := range values {
		s += v
	}
	return s, nil
}

func origin(t float64) *float64 { return &t }

func TestAdvanceGappedSeries(t *testing.T) {
	it, err := AdvanceValues(gappedSeries(), Spec{Length: 3, Step: 3, Origin: origin(0)}, sum)
	require.NoError(t, err)

	windows := Collect(it)
	require.Len(t, windows, 4, "the empty [6,9) window must be skipped")

	expected := []struct {
		beginTime, endTime   float64
		beginIdx, endIdx     int
		sumOfPrefixThroughEI float64
	}{
		// The function receives the series prefix up to (excluding)
		// EndIndex, so each window's sum includes all earlier samples.
		{0, 3, 0, 2, 1 + 2},
		{3, 6, 3, 3, 1 + 2 + 3},
		{9, 12, 4, 5, 1 + 2 + 3 + 4 + 5},
		{12, 15, 6, 6, 1 + 2 + 3 + 4 + 5 + 6},
	}

	for i, want := range expected {
		w := windows[i]
		assert.Equal(t, want.beginTime, w.BeginTime, "window %d begin time", i)
		assert.Equal(t, want.endTime, w.EndTime, "window %d end time", i)
		assert.Equal(t, want.beginIdx, w.BeginIndex, "window %d begin index", i)
		assert.Equal(t, want.endIdx, w.EndIndex, "window %d end index", i)
		require.False(t, w.Result.Failed(), "window %d", i)
		assert.Equal(t, want.sumOfPrefixThroughEI, w.Result.Value, "window %d sum", i)
	}

	// The run stops after the window covering the last time point.
	require.False(t, it.Next())
}

func TestAdvanceOverlappingWindowsStopAfterLast(t *testing.T) {
	// With step < length the windows overlap; only one more window may be
	// tested after the window end reaches the last time point, so the run
	// ends with [10,13) and never emits [11,14) or [12,15).
	it, err := AdvanceValues(gappedSeries(), Spec{Length: 3, Step: 1, Origin: origin(0)}, sum)
	require.NoError(t, err)

	windows := Collect(it)
	require.NotEmpty(t, windows)

	begins := make([]float64, len(windows))
	for i, w := range windows {
		begins[i] = w.BeginTime
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 8, 9, 10}, begins)

	final := windows[len(windows)-1]
	assert.Equal(t, 10.0, final.BeginTime)
	assert.Equal(t, 13.0, final.EndTime)
	assert.Equal(t, 4, final.BeginIndex)
	assert.Equal(t, 6, final.EndIndex)
}

func TestAdvanceFastForward(t *testing.T) {
	// An origin far before the series must be fast-forwarded until the
	// first tested window can contain data.
	it, err := AdvanceValues(gappedSeries(), Spec{Length: 1, Step: 1, Origin: origin(-100)}, sum)
	require.NoError(t, err)

	windows := Collect(it)
	require.NotEmpty(t, windows)
	assert.Equal(t, 0.0, windows[0].BeginTime)
	assert.Equal(t, 1.0, windows[0].EndTime)
	assert.Equal(t, 0, windows[0].BeginIndex)

	// One unit window per populated second: 0,1,2,3 and 10,11,12.
	assert.Len(t, windows, 7)
}

func TestAdvanceDefaultOrigin(t *testing.T) {
	series := types.TimeSeries{
		Times:  []float64{5, 6, 7},
		Values: []float64{1, 1, 1},
	}
	it, err := AdvanceValues(series, Spec{Length: 2, Step: 2}, sum)
	require.NoError(t, err)

	windows := Collect(it)
	require.NotEmpty(t, windows)
	assert.Equal(t, 5.0, windows[0].BeginTime, "origin defaults to the first time point")
}

func TestAdvanceInvariants(t *testing.T) {
	series := gappedSeries()
	spec := Spec{Length: 2.5, Step: 0.75, Origin: origin(-1)}

	it, err := AdvanceValues(series, spec, sum)
	require.NoError(t, err)

	alignedOrigin := -1.0
	for alignedOrigin+spec.Length < series.Times[0] {
		alignedOrigin += spec.Step
	}
	last := series.Times[series.Len()-1]
	bound := int(math.Ceil((last-alignedOrigin)/spec.Step)) + 1

	count := 0
	for it.Next() {
		w := it.Window()
		count++

		require.LessOrEqual(t, w.BeginIndex, w.EndIndex)
		for i := w.BeginIndex; i <= w.EndIndex; i++ {
			assert.LessOrEqual(t, w.BeginTime, series.Times[i])
			assert.Less(t, series.Times[i], w.EndTime)
		}
	}
	assert.LessOrEqual(t, count, bound)
}

func TestAdvanceIdempotent(t *testing.T) {
	series := gappedSeries()
	spec := Spec{Length: 3, Step: 1.5}

	run := func() []types.Window[float64] {
		it, err := AdvanceValues(series, spec, sum)
		require.NoError(t, err)
		return Collect(it)
	}

	assert.Equal(t, run(), run())
}

func TestAdvanceContainsFunctionError(t *testing.T) {
	boom := errors.New("boom")
	fn := func(values []float64) (float64, error) {
		if len(values) == 3 {
			return 0, boom
		}
		return sum(values)
	}

	it, err := AdvanceValues(gappedSeries(), Spec{Length: 3, Step: 3, Origin: origin(0)}, fn)
	require.NoError(t, err)

	windows := Collect(it)
	require.Len(t, windows, 4, "a failed window is still emitted")

	assert.False(t, windows[0].Result.Failed())
	require.True(t, windows[1].Result.Failed())
	assert.ErrorIs(t, windows[1].Result.Err, boom)

	// Later windows are unaffected by the failure.
	assert.False(t, windows[2].Result.Failed())
	assert.Equal(t, 15.0, windows[2].Result.Value)
	assert.False(t, windows[3].Result.Failed())
	assert.Equal(t, 21.0, windows[3].Result.Value)
}

func TestAdvanceContainsFunctionPanic(t *testing.T) {
	calls := 0
	fn := func(values []float64) (float64, error) {
		calls++
		if calls == 1 {
			panic("unexpected input")
		}
		return sum(values)
	}

	it, err := AdvanceValues(gappedSeries(), Spec{Length: 3, Step: 3, Origin: origin(0)}, fn)
	require.NoError(t, err)

	windows := Collect(it)
	require.Len(t, windows, 4)
	require.True(t, windows[0].Result.Failed())
	assert.Contains(t, windows[0].Result.Err.Error(), "panicked")
	assert.False(t, windows[1].Result.Failed())
}

func TestAdvancePassesTimePrefix(t *testing.T) {
	var gotTimes [][]float64
	fn := func(times, values []float64) (int, error) {
		require.Equal(t, len(times), len(values))
		gotTimes = append(gotTimes, append([]float64(nil), times...))
		return len(times), nil
	}

	it, err := Advance(gappedSeries(), Spec{Length: 3, Step: 3, Origin: origin(0)}, fn)
	require.NoError(t, err)

	windows := Collect(it)
	require.Len(t, windows, 4)

	series := gappedSeries()
	for i, w := range windows {
		assert.Equal(t, series.Times[:w.EndIndex], gotTimes[i],
			"window %d must see the time prefix through its end index", i)
	}
}

func TestAdvanceRejectsBadInput(t *testing.T) {
	good := gappedSeries()

	cases := []struct {
		name   string
		series types.TimeSeries
		spec   Spec
		want   error
	}{
		{"zero length", good, Spec{Length: 0, Step: 1}, ErrBadSpec},
		{"negative step", good, Spec{Length: 1, Step: -1}, ErrBadSpec},
		{"empty series", types.TimeSeries{}, Spec{Length: 1, Step: 1}, types.ErrMalformedSeries},
		{
			"unsorted series",
			types.TimeSeries{Times: []float64{2, 1}, Values: []float64{1, 2}},
			Spec{Length: 1, Step: 1},
			types.ErrMalformedSeries,
		},
		{
			"misaligned series",
			types.TimeSeries{Times: []float64{1, 2}, Values: []float64{1}},
			Spec{Length: 1, Step: 1},
			types.ErrMalformedSeries,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AdvanceValues(tc.series, tc.spec, sum)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAdvanceSinglePoint(t *testing.T) {
	series := types.TimeSeries{Times: []float64{4}, Values: []float64{9}}
	it, err := AdvanceValues(series, Spec{Length: 10, Step: 5}, sum)
	require.NoError(t, err)

	windows := Collect(it)
	require.Len(t, windows, 1)
	assert.Equal(t, 0, windows[0].BeginIndex)
	assert.Equal(t, 0, windows[0].EndIndex)
	// Prefix through index 0 is empty.
	assert.Equal(t, 0.0, windows[0].Result.Value)
}
