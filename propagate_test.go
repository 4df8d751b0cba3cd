package orb

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestYoshidaWeights(t *testing.T) {
	sum := 0.0
	for i, w := range yoshida {
		sum += w
		assert.Equal(t, w, yoshida[len(yoshida)-1-i], "the composition must be symmetric")
	}
	assert.True(t, scalar.EqualWithinAbs(sum, 1, 1e-14), "weights sum to %f", sum)
}

func TestScheduleCalls(t *testing.T) {
	for _, tc := range []struct {
		deltaNs int64
		calls   int32
	}{
		{0, 0},
		{1, 1},
		{100_000_000, 1},
		{200_000_000, 1},
		{200_000_001, 2},
		{1_200_000_000, 6},
		{1_200_000_001, 7},
		{50_000_000_000, 7},
		{100_000_000_000, 7},
		{101_000_000_000, 12},
		{250_000_000_000, 21},
		{-250_000_000_000, 21},
		{-100_000_000, 1},
	} {
		assert.Equal(t, tc.calls, scheduleCalls(tc.deltaNs), "Δ=%d ns", tc.deltaNs)
	}
}

func TestPropagationReachesTarget(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		o := leo(EarthZonal())
		delta := rng.Int64N(600_000_000_000) - 300_000_000_000
		target := uint64(int64(t0) + delta)
		o.StartPropagating(target, EarthRate())
		exp := scheduleCalls(delta)
		require.Equal(t, exp, o.NumGravCallsLeft())
		require.Equal(t, target, o.TargetGPSTime())
		calls := int32(0)
		for o.NumGravCallsLeft() > 0 {
			o.OneGravCall()
			calls++
		}
		assert.Equal(t, exp, calls)
		assert.True(t, o.Valid())
		assert.Equal(t, target, o.NsGPSTime(), "Δ=%d ns", delta)
		assert.Equal(t, 0, o.Stage())
	}
}

func TestShortStepsStayShort(t *testing.T) {
	o := leo(EarthPointMass())
	o.StartPropagating(t0+1_199_999_999, EarthRate())
	require.Equal(t, int32(6), o.NumGravCallsLeft())
	prev := o.NsGPSTime()
	for o.NumGravCallsLeft() > 0 {
		o.OneGravCall()
		assert.LessOrEqual(t, o.NsGPSTime()-prev, uint64(MaxShortTimeStepNs))
		prev = o.NsGPSTime()
	}
	assert.Equal(t, t0+1_199_999_999, o.NsGPSTime())
}

func TestRetargetMidLongStep(t *testing.T) {
	o := leo(EarthZonal())
	o.StartPropagating(t0+300_000_000_000, EarthRate())
	require.Equal(t, int32(21), o.NumGravCallsLeft())
	for i := 0; i < 3; i++ {
		o.OneGravCall()
	}
	require.Equal(t, 3, o.Stage())

	// The block in flight ends at t0+100 s, and 50 s back are a partial long step.
	o.StartPropagating(t0+50_000_000_000, r3.Vec{Z: 1})
	assert.Equal(t, int32(4+7), o.NumGravCallsLeft())
	assert.Equal(t, EarthRate(), o.earthRate, "the Earth rate of a propagation in flight is kept")
	for i := 0; i < 4; i++ {
		o.OneGravCall()
	}
	assert.Equal(t, 0, o.Stage())
	assert.Equal(t, t0+100_000_000_000, o.NsGPSTime())
	o.FinishPropagating()
	assert.Equal(t, t0+50_000_000_000, o.NsGPSTime())

	// A direct propagation to the same target agrees.
	exp := leo(EarthZonal())
	exp.StartPropagating(t0+50_000_000_000, EarthRate())
	exp.FinishPropagating()
	requireVecWithin(t, exp.R(), o.R(), 1e-2, "position")
	requireVecWithin(t, exp.V(), o.V(), 1e-5, "velocity")
}

func TestRetargetToNow(t *testing.T) {
	o := leo(EarthZonal())
	o.StartPropagating(t0+1_000_000_000, EarthRate())
	o.OneGravCall()
	now := o.NsGPSTime()
	o.StartPropagating(now, EarthRate())
	assert.Equal(t, int32(0), o.NumGravCallsLeft())
	o.OneGravCall()
	assert.Equal(t, now, o.NsGPSTime())
}

func TestMidBlockState(t *testing.T) {
	o := leo(EarthZonal())
	o.StartPropagating(t0+100_000_000_000, EarthRate())
	for i := 0; i < LongStepCalls-1; i++ {
		o.OneGravCall()
		require.True(t, o.Valid())
		assert.Equal(t, i+1, o.Stage())
		assert.InDelta(t, 6.9e6, r3.Norm(o.R()), 0.05e6)
	}
	o.OneGravCall()
	assert.Equal(t, 0, o.Stage())
	assert.Equal(t, int32(0), o.NumGravCallsLeft())
}
